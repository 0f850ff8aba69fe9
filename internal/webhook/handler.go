package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-commerce/internal/config"
	"messenger-commerce/internal/conversation"
	"messenger-commerce/pkg/models"
)

// EventRegistry is the idempotency primitive: register an event id, get
// back whether this delivery is the first.
type EventRegistry interface {
	RegisterEvent(ctx context.Context, eventID, pageID string) (bool, error)
}

type Handler struct {
	Config       *config.Config
	Orchestrator *conversation.Orchestrator
	Events       EventRegistry
	Log          *zap.Logger
}

func NewHandler(cfg *config.Config, orchestrator *conversation.Orchestrator, events EventRegistry, log *zap.Logger) *Handler {
	return &Handler{
		Config:       cfg,
		Orchestrator: orchestrator,
		Events:       events,
		Log:          log,
	}
}

// VerifyWebhook answers the Messenger subscription handshake.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			h.Log.Info("webhook verified successfully")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

// HandleMessage ingests a webhook delivery. Each messaging event passes the
// idempotency check before any side effect; duplicates are silent no-ops.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Log.Warn("webhook payload bind failed", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, messaging := range entry.Messaging {
			ev, ok := h.toInboundEvent(entry, messaging)
			if !ok {
				continue
			}

			eventID := EventID(entry.ID, messaging.Timestamp, messageID(messaging))
			fresh, err := h.Events.RegisterEvent(c.Request.Context(), eventID, entry.ID)
			if err != nil {
				h.Log.Error("idempotency check failed", zap.Error(err), zap.String("event_id", eventID))
				continue
			}
			if !fresh {
				h.Log.Debug("duplicate event skipped", zap.String("event_id", eventID))
				continue
			}

			if err := h.Orchestrator.HandleEvent(c.Request.Context(), ev); err != nil {
				h.Log.Error("event handling failed", zap.Error(err), zap.String("event_id", eventID))
			}
		}
	}

	// Messenger expects 200 quickly regardless of processing outcome.
	c.Status(http.StatusOK)
}

// toInboundEvent flattens a messaging event; echoes and empty events are
// dropped.
func (h *Handler) toInboundEvent(entry models.Entry, messaging models.Messaging) (conversation.InboundEvent, bool) {
	ev := conversation.InboundEvent{
		WorkspaceID: 1, // single-tenant deployments; multi-page routing maps page->workspace here
		PageID:      messaging.Recipient.ID,
		PSID:        messaging.Sender.ID,
		Timestamp:   time.UnixMilli(messaging.Timestamp),
	}

	switch {
	case messaging.Message != nil && !messaging.Message.IsEcho:
		ev.MessageID = messaging.Message.MID
		ev.Text = messaging.Message.Text
		for _, att := range messaging.Message.Attachments {
			if att.Type == "image" && att.Payload.URL != "" {
				ev.ImageURL = att.Payload.URL
				break
			}
		}
	case messaging.Postback != nil:
		ev.MessageID = messaging.Postback.Payload
		ev.Text = messaging.Postback.Title
	default:
		return conversation.InboundEvent{}, false
	}

	if ev.Text == "" && ev.ImageURL == "" {
		return conversation.InboundEvent{}, false
	}
	return ev, true
}

func messageID(messaging models.Messaging) string {
	if messaging.Message != nil {
		return messaging.Message.MID
	}
	if messaging.Postback != nil {
		return messaging.Postback.Payload
	}
	return ""
}

// EventID derives the deterministic idempotency key from source event
// metadata.
func EventID(entryID string, timestamp int64, messageID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", entryID, timestamp, messageID)))
	return hex.EncodeToString(sum[:])
}
