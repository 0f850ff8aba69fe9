package database

import (
	"fmt"
	"log"

	"messenger-commerce/internal/config"
	"messenger-commerce/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

func InitGorm(cfg *config.Config) {
	var err error

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		GormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Warn),
			TranslateError: true,
		})
	default:
		GormDB, err = gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Warn),
			TranslateError: true,
		})
	}

	if err != nil {
		log.Fatalf("Failed to connect to database (%s): %v", cfg.DBDriver, err)
	}

	log.Printf("Connected to %s successfully", cfg.DBDriver)

	// Auto Migration
	err = GormDB.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.Product{},
		&models.ProductImageHash{},
		&models.Order{},
		&models.OrderItem{},
		&models.WebhookEvent{},
		&models.WorkspaceSettings{},
		&models.AIUsageLog{},
	)
	if err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
}
