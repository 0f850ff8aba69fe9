package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"messenger-commerce/internal/models"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&models.WebhookEvent{}); err != nil {
		t.Fatal(err)
	}
	return NewGormStore(db, zap.NewNop())
}

func TestRegisterEventReplay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh, err := store.RegisterEvent(ctx, "evt-1", "page1")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("first delivery must be fresh")
	}

	fresh, err = store.RegisterEvent(ctx, "evt-1", "page1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Error("replayed delivery must not be fresh")
	}

	var count int64
	if err := store.db.Model(&models.WebhookEvent{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("event rows = %d, want exactly one", count)
	}

	fresh, err = store.RegisterEvent(ctx, "evt-2", "page1")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Error("a distinct event must be fresh")
	}
}

// A concurrent duplicate surfaces as a unique-index violation on the insert;
// that one case means already-processed, everything else is a real error.
func TestRegisterEventErrorHandling(t *testing.T) {
	t.Run("unique violation translates to duplicated key", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.db.Create(&models.WebhookEvent{EventID: "dup", PageID: "page1"}).Error; err != nil {
			t.Fatal(err)
		}
		err := store.db.Create(&models.WebhookEvent{EventID: "dup", PageID: "page1"}).Error
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			t.Fatalf("err = %v, want gorm.ErrDuplicatedKey", err)
		}
	})

	t.Run("storage failure surfaces as an error", func(t *testing.T) {
		store := newTestStore(t)
		sqlDB, err := store.db.DB()
		if err != nil {
			t.Fatal(err)
		}
		sqlDB.Close()

		fresh, err := store.RegisterEvent(context.Background(), "evt-3", "page1")
		if err == nil {
			t.Fatal("a failed idempotency check must not report already-processed")
		}
		if fresh {
			t.Error("fresh = true on failure")
		}
	})
}
