package logging

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a private type to avoid context key collisions.
type contextKey string

const WorkspaceKey contextKey = "workspace_id"
const ConversationKey contextKey = "conversation_key"

// New builds the process-wide logger. env is "production" or anything else
// for development output.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// WithFields stores workspace and conversation identifiers on the context so
// every layer can tag its log lines consistently.
func WithFields(ctx context.Context, workspaceID uint, conversationKey string) context.Context {
	if workspaceID != 0 {
		ctx = context.WithValue(ctx, WorkspaceKey, workspaceID)
	}
	if conversationKey != "" {
		ctx = context.WithValue(ctx, ConversationKey, conversationKey)
	}
	return ctx
}

// FieldsFromContext extracts the identifiers stored by WithFields as zap
// fields. Missing values are simply omitted.
func FieldsFromContext(ctx context.Context) []zap.Field {
	fields := []zap.Field{}
	if id, ok := ctx.Value(WorkspaceKey).(uint); ok && id != 0 {
		fields = append(fields, zap.Uint("workspace_id", id))
	}
	if key, ok := ctx.Value(ConversationKey).(string); ok && key != "" {
		fields = append(fields, zap.String("conversation_key", key))
	}
	return fields
}
