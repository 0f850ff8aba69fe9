package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-commerce/internal/api"
	"messenger-commerce/internal/config"
	"messenger-commerce/internal/conversation"
	"messenger-commerce/internal/database"
	"messenger-commerce/internal/llm"
	"messenger-commerce/internal/logging"
	"messenger-commerce/internal/messenger"
	"messenger-commerce/internal/recognition"
	"messenger-commerce/internal/webhook"
	"messenger-commerce/internal/ws"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	database.InitGorm(cfg)

	llmClient := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.ChatModel, cfg.VisionModel,
		time.Duration(cfg.LLMTimeoutSec)*time.Second)
	messengerClient := messenger.NewClient(cfg.PageToken)

	store := conversation.NewGormStore(database.GormDB, logger)
	settingsCache := conversation.NewSettingsCache(store, time.Duration(cfg.SettingsTTLSec)*time.Second)

	recognitionCfg := recognition.DefaultConfig()
	recognitionCfg.ImageFetchTimeout = time.Duration(cfg.ImageFetchSec) * time.Second
	pipeline := recognition.NewPipeline(database.GormDB, llmClient, store, recognitionCfg, logger)

	director := conversation.NewDirector(llmClient, store, logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	orchestrator := conversation.NewOrchestrator(store, settingsCache, pipeline, director, messengerClient, hub, logger)

	webhookHandler := webhook.NewHandler(cfg, orchestrator, store, logger)
	dashboardHandler := api.NewDashboardHandler(database.GormDB)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Dashboard API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/conversations", dashboardHandler.GetConversations)
		apiGroup.GET("/conversations/:id/messages", dashboardHandler.GetMessages)
		apiGroup.GET("/orders", dashboardHandler.GetOrders)
		apiGroup.GET("/usage", dashboardHandler.GetUsageSummary)
	}

	// Live message feed for the dashboard
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("failed to run server", zap.Error(err))
	}
}
