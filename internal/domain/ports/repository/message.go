package repository

import (
	"context"

	"tutoring-ai-platform/internal/domain/model"
)

// MessageRepository persists completed chat exchanges.
type MessageRepository interface {
	// SavePair writes the user message and the assistant reply as one
	// logical unit. Partial persistence must not be reported as success.
	SavePair(ctx context.Context, pair *model.MessagePair) error
	FindRecentByUser(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error)
}
