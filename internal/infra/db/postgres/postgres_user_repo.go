package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) FindByID(ctx context.Context, qx any, id int64) (*model.User, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT id, username, role, created_at FROM users WHERE id=$1;`
	return scanUser(ex.QueryRow(ctx, q, id))
}

// FindAvailableCounsellor picks the counsellor with the fewest active chats,
// falling back to id order for a stable choice.
func (r *UserRepo) FindAvailableCounsellor(ctx context.Context, qx any) (*model.User, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT u.id, u.username, u.role, u.created_at
FROM users u
LEFT JOIN chats c ON c.counsellor_id = u.id AND c.status = 'active'
WHERE u.role = 'counsellor'
GROUP BY u.id
ORDER BY COUNT(c.id) ASC, u.id ASC
LIMIT 1;`
	return scanUser(ex.QueryRow(ctx, q))
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &role, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}
