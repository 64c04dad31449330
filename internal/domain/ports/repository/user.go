package repository

import (
	"context"

	"counseling-platform/internal/domain/model"
)

// -----------------------------
// Users (directory collaborator)
// -----------------------------

type UserRepository interface {
	FindByID(ctx context.Context, qx any, id int64) (*model.User, error)
	// FindAvailableCounsellor picks the first account with counsellor
	// capability, for auto-assignment on first activation.
	FindAvailableCounsellor(ctx context.Context, qx any) (*model.User, error)
}
