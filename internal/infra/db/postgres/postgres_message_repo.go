package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, chat_id, sender_id, text, client_message_id, created_at`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Insert(ctx context.Context, qx any, m *model.Message) error {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	// client_message_id is stored as NULL when absent so the partial unique
	// index on (sender_id, client_message_id) ignores key-less sends.
	var clientID *string
	if m.ClientMessageID != "" {
		clientID = &m.ClientMessageID
	}
	const q = `
INSERT INTO messages (chat_id, sender_id, text, client_message_id, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id;`
	err = ex.QueryRow(ctx, q, m.ChatID, m.SenderID, m.Text, clientID, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateMessage
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) FindByClientKey(ctx context.Context, qx any, senderID int64, clientMessageID string) (*model.Message, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + messageColumns + ` FROM messages
WHERE sender_id=$1 AND client_message_id=$2;`
	return scanMessage(ex.QueryRow(ctx, q, senderID, clientMessageID))
}

func (r *MessageRepo) FindRecentDuplicate(ctx context.Context, qx any, chatID, senderID int64, text string, since time.Time) (*model.Message, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + messageColumns + ` FROM messages
WHERE chat_id=$1 AND sender_id=$2 AND text=$3 AND created_at >= $4
ORDER BY created_at DESC LIMIT 1;`
	return scanMessage(ex.QueryRow(ctx, q, chatID, senderID, text, since))
}

func (r *MessageRepo) ListByChat(ctx context.Context, qx any, chatID int64) ([]*model.Message, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + messageColumns + ` FROM messages
WHERE chat_id=$1 ORDER BY created_at ASC, id ASC;`
	rows, err := ex.Query(ctx, q, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	var out []*model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var clientID *string
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Text, &clientID, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if clientID != nil {
		m.ClientMessageID = *clientID
	}
	return &m, nil
}
