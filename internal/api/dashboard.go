package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"messenger-commerce/internal/models"
)

type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

func (h *DashboardHandler) GetConversations(c *gin.Context) {
	var conversations []models.Conversation
	if err := h.DB.Order("updated_at DESC").Limit(100).Find(&conversations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	c.JSON(http.StatusOK, conversations)
}

func (h *DashboardHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("id")
	var messages []models.Message
	if err := h.DB.Where("conversation_id = ?", conversationID).Order("id ASC").Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func (h *DashboardHandler) GetOrders(c *gin.Context) {
	var orders []models.Order
	if err := h.DB.Preload("Items").Order("created_at DESC").Limit(100).Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// GetUsageSummary aggregates AI spend for the billing panel.
func (h *DashboardHandler) GetUsageSummary(c *gin.Context) {
	type row struct {
		Kind         string  `json:"kind"`
		Calls        int64   `json:"calls"`
		InputTokens  int64   `json:"input_tokens"`
		OutputTokens int64   `json:"output_tokens"`
		CostUSD      float64 `json:"cost_usd"`
	}
	var rows []row
	err := h.DB.Model(&models.AIUsageLog{}).
		Select("kind, COUNT(*) as calls, SUM(input_tokens) as input_tokens, SUM(output_tokens) as output_tokens, SUM(cost_usd) as cost_usd").
		Group("kind").Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []row{}
	}
	c.JSON(http.StatusOK, rows)
}
