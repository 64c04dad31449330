package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/domain/ports/repository"
	"counseling-platform/internal/infra/redis"
)

// Ensure compile-time conformance
var _ repository.ChatRepository = (*ChatRepo)(nil)

const chatColumns = `id, user_id, counsellor_id, status, created_at, updated_at,
started_at, ended_at, last_user_activity,
duration_minutes, billed_amount, is_billed, billing_processed_at`

// ChatRepo persists chats. Reads outside a transaction are served from the
// Redis cache on a best-effort basis; every write refreshes the cache.
type ChatRepo struct {
	pool  *pgxpool.Pool
	cache *redis.ChatCache
}

func NewChatRepo(pool *pgxpool.Pool, cache *redis.ChatCache) *ChatRepo {
	return &ChatRepo{pool: pool, cache: cache}
}

func (r *ChatRepo) Create(ctx context.Context, qx any, chat *model.Chat) error {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO chats (user_id, counsellor_id, status, created_at, updated_at,
  started_at, ended_at, last_user_activity,
  duration_minutes, billed_amount, is_billed, billing_processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id;`
	err = ex.QueryRow(ctx, q,
		chat.UserID, chat.CounsellorID, string(chat.Status), chat.CreatedAt, chat.UpdatedAt,
		chat.StartedAt, chat.EndedAt, chat.LastUserActivity,
		chat.DurationMinutes, chat.BilledAmount, chat.IsBilled, chat.BillingProcessedAt,
	).Scan(&chat.ID)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	r.storeCache(ctx, chat)
	return nil
}

func (r *ChatRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id int64) (*model.Chat, error) {
	if !inTx(tx) {
		return nil, domain.ErrInvalidExecContext
	}
	return r.findByID(ctx, tx, id, true)
}

func (r *ChatRepo) FindByID(ctx context.Context, qx any, id int64) (*model.Chat, error) {
	if qx == nil && r.cache != nil {
		if chat, err := r.cache.GetChat(ctx, id); err == nil {
			return chat, nil
		}
	}
	return r.findByID(ctx, qx, id, false)
}

func (r *ChatRepo) findByID(ctx context.Context, qx any, id int64, forUpdate bool) (*model.Chat, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + chatColumns + ` FROM chats WHERE id=$1`
	if forUpdate {
		q += " FOR UPDATE"
	}
	q += ";"
	chat, err := scanChat(ex.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if !forUpdate {
		r.storeCache(ctx, chat)
	}
	return chat, nil
}

func (r *ChatRepo) Update(ctx context.Context, qx any, chat *model.Chat) error {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	const q = `
UPDATE chats SET
  counsellor_id=$2, status=$3, updated_at=$4,
  started_at=$5, ended_at=$6, last_user_activity=$7,
  duration_minutes=$8, billed_amount=$9, is_billed=$10, billing_processed_at=$11
WHERE id=$1;`
	tag, err := ex.Exec(ctx, q,
		chat.ID, chat.CounsellorID, string(chat.Status), chat.UpdatedAt,
		chat.StartedAt, chat.EndedAt, chat.LastUserActivity,
		chat.DurationMinutes, chat.BilledAmount, chat.IsBilled, chat.BillingProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.storeCache(ctx, chat)
	return nil
}

func (r *ChatRepo) FindByUser(ctx context.Context, qx any, userID int64) ([]*model.Chat, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.findAll(ctx, qx, q, userID)
}

func (r *ChatRepo) FindByCounsellor(ctx context.Context, qx any, counsellorID int64) ([]*model.Chat, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE counsellor_id=$1 ORDER BY created_at DESC;`
	return r.findAll(ctx, qx, q, counsellorID)
}

func (r *ChatRepo) FindQueued(ctx context.Context, qx any) ([]*model.Chat, error) {
	q := `SELECT ` + chatColumns + ` FROM chats WHERE status='queued' ORDER BY created_at ASC;`
	return r.findAll(ctx, qx, q)
}

func (r *ChatRepo) FindOpenByUser(ctx context.Context, qx any, userID int64) (*model.Chat, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + chatColumns + ` FROM chats
WHERE user_id=$1 AND status IN ('queued','active')
ORDER BY created_at DESC LIMIT 1;`
	return scanChat(ex.QueryRow(ctx, q, userID))
}

func (r *ChatRepo) findAll(ctx context.Context, qx any, q string, args ...any) ([]*model.Chat, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()
	var out []*model.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chat)
	}
	return out, rows.Err()
}

func (r *ChatRepo) storeCache(ctx context.Context, chat *model.Chat) {
	if r.cache != nil {
		_ = r.cache.StoreChat(ctx, chat)
	}
}

func scanChat(row pgx.Row) (*model.Chat, error) {
	var c model.Chat
	var status string
	err := row.Scan(
		&c.ID, &c.UserID, &c.CounsellorID, &status, &c.CreatedAt, &c.UpdatedAt,
		&c.StartedAt, &c.EndedAt, &c.LastUserActivity,
		&c.DurationMinutes, &c.BilledAmount, &c.IsBilled, &c.BillingProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	c.Status = model.ChatStatus(status)
	return &c, nil
}
