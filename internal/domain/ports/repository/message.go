package repository

import (
	"context"
	"time"

	"counseling-platform/internal/domain/model"
)

// -----------------------------
// Messages
// -----------------------------

type MessageRepository interface {
	// Insert persists a new message and fills in its server-assigned id.
	// Returns domain.ErrDuplicateMessage when the (sender, client message id)
	// uniqueness constraint rejects the row.
	Insert(ctx context.Context, qx any, m *model.Message) error
	// FindByClientKey resolves a previous send with the same idempotency key.
	FindByClientKey(ctx context.Context, qx any, senderID int64, clientMessageID string) (*model.Message, error)
	// FindRecentDuplicate implements the fallback dedup rule: same chat,
	// same author, identical text, created at or after `since`.
	FindRecentDuplicate(ctx context.Context, qx any, chatID, senderID int64, text string, since time.Time) (*model.Message, error)
	// ListByChat returns all messages in canonical (created_at, id) order.
	ListByChat(ctx context.Context, qx any, chatID int64) ([]*model.Message, error)
}
