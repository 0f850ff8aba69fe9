package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"messenger-commerce/internal/llm"
	"messenger-commerce/internal/models"
)

// GormStore is the gorm-backed implementation of the engine's storage
// contracts (Store, UsageRecorder, recognition.UsageRecorder).
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	return &GormStore{db: db, log: log}
}

// LoadConversation fetches or creates the conversation row for a
// (page, customer) pair.
func (s *GormStore) LoadConversation(ctx context.Context, workspaceID uint, pageID, psid string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Where("page_id = ? AND psid = ?", pageID, psid).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = models.Conversation{
			WorkspaceID:  workspaceID,
			PageID:       pageID,
			PSID:         psid,
			CurrentState: string(StateIdle),
			Context:      "{}",
		}
		if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
			return nil, err
		}
		return &conv, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// SaveConversation persists state, context and customer name in one update
// so current_state can never drift from the context JSON.
func (s *GormStore) SaveConversation(ctx context.Context, conv *models.Conversation, cctx *Context) error {
	encoded, err := cctx.Encode()
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"current_state": string(cctx.State),
			"context":       encoded,
			"customer_name": cctx.Checkout.CustomerName,
		}).Error
}

// History returns the most recent turns, oldest first.
func (s *GormStore) History(ctx context.Context, conversationID uint, limit int) ([]HistoryTurn, error) {
	var rows []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	turns := make([]HistoryTurn, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		turns = append(turns, HistoryTurn{Sender: rows[i].Sender, Content: rows[i].Content})
	}
	return turns, nil
}

func (s *GormStore) AppendMessage(ctx context.Context, conversationID uint, sender, content, msgType string) error {
	return s.db.WithContext(ctx).Create(&models.Message{
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Type:           msgType,
	}).Error
}

func (s *GormStore) InsertOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Create(order).Error
}

func (s *GormStore) ProductByID(ctx context.Context, id, workspaceID uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SearchProducts does a keyword search over name, description and category.
func (s *GormStore) SearchProducts(ctx context.Context, query string, workspaceID uint) ([]models.Product, error) {
	var products []models.Product
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND (lower(name) LIKE ? OR lower(description) LIKE ? OR lower(category) LIKE ?)",
			workspaceID, pattern, pattern, pattern).
		Limit(5).Find(&products).Error
	return products, err
}

// RegisterEvent is the idempotency primitive: insert a webhook-event row
// keyed by its deterministic id. Returns false when the event was already
// processed.
func (s *GormStore) RegisterEvent(ctx context.Context, eventID, pageID string) (bool, error) {
	var existing models.WebhookEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	err = s.db.WithContext(ctx).Create(&models.WebhookEvent{EventID: eventID, PageID: pageID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent duplicate hit the unique index: already processed.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecordUsage logs token usage with its computed USD cost. Failures are
// logged and swallowed: billing bookkeeping never breaks a conversation.
func (s *GormStore) RecordUsage(ctx context.Context, workspaceID uint, kind string, usage llm.Usage, success bool) {
	row := models.AIUsageLog{
		WorkspaceID:  workspaceID,
		Kind:         kind,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      llm.Cost(usage),
		Success:      success,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Error("failed to record ai usage", zap.Error(err))
	}
}

// LoadSettingsRow resolves a workspace's settings row into a fully
// defaulted settings object. A missing row yields pure defaults.
func (s *GormStore) LoadSettingsRow(ctx context.Context, workspaceID uint) (*ResolvedSettings, error) {
	var row models.WorkspaceSettings
	err := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultSettings(workspaceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings load failed: %w", err)
	}
	return ParseSettingsRow(workspaceID, row.BusinessName, row.Tone, row.LanguageMix, row.UseEmoji,
		row.DeliveryChargeInside, row.DeliveryChargeOutside, row.PaymentMethods, row.PaymentNumber,
		row.ConfidenceThreshold, row.QuickForm, row.Templates), nil
}
