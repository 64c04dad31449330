package repository

import (
	"context"

	"counseling-platform/internal/domain/model"
)

// -----------------------------
// Chats
// -----------------------------

type ChatRepository interface {
	Create(ctx context.Context, qx any, chat *model.Chat) error
	// FindByIDForUpdate must be called with a live tx handle; the row stays
	// locked until the transaction ends.
	FindByIDForUpdate(ctx context.Context, tx Tx, id int64) (*model.Chat, error)
	FindByID(ctx context.Context, qx any, id int64) (*model.Chat, error)
	Update(ctx context.Context, qx any, chat *model.Chat) error
	FindByUser(ctx context.Context, qx any, userID int64) ([]*model.Chat, error)
	FindByCounsellor(ctx context.Context, qx any, counsellorID int64) ([]*model.Chat, error)
	FindQueued(ctx context.Context, qx any) ([]*model.Chat, error)
	// FindOpenByUser returns the user's queued or active chat, if any.
	FindOpenByUser(ctx context.Context, qx any, userID int64) (*model.Chat, error)
}
