//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/domain/ports/repository"
)

// ---- Fakes ----

// memTx marks "inside a transaction" for the fakes.
type memTx struct{}

type memTxManager struct {
	mu sync.Mutex
}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	// One big lock stands in for row locking; good enough to serialize the
	// lifecycle pipeline in tests.
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, memTx{})
}

type memChatRepo struct {
	mu     sync.Mutex
	nextID int64
	chats  map[int64]model.Chat
}

func newMemChatRepo() *memChatRepo {
	return &memChatRepo{nextID: 1, chats: make(map[int64]model.Chat)}
}

func (m *memChatRepo) Create(ctx context.Context, qx any, chat *model.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat.ID = m.nextID
	m.nextID++
	m.chats[chat.ID] = *chat
	return nil
}

func (m *memChatRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id int64) (*model.Chat, error) {
	if _, ok := tx.(memTx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	return m.FindByID(ctx, tx, id)
}

func (m *memChatRepo) FindByID(ctx context.Context, qx any, id int64) (*model.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (m *memChatRepo) Update(ctx context.Context, qx any, chat *model.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[chat.ID]; !ok {
		return domain.ErrNotFound
	}
	m.chats[chat.ID] = *chat
	return nil
}

func (m *memChatRepo) FindByUser(ctx context.Context, qx any, userID int64) ([]*model.Chat, error) {
	return m.filter(func(c model.Chat) bool { return c.UserID == userID }), nil
}

func (m *memChatRepo) FindByCounsellor(ctx context.Context, qx any, counsellorID int64) ([]*model.Chat, error) {
	return m.filter(func(c model.Chat) bool {
		return c.CounsellorID != nil && *c.CounsellorID == counsellorID
	}), nil
}

func (m *memChatRepo) FindQueued(ctx context.Context, qx any) ([]*model.Chat, error) {
	return m.filter(func(c model.Chat) bool { return c.Status == model.ChatQueued }), nil
}

func (m *memChatRepo) FindOpenByUser(ctx context.Context, qx any, userID int64) (*model.Chat, error) {
	open := m.filter(func(c model.Chat) bool {
		return c.UserID == userID && (c.Status == model.ChatQueued || c.Status == model.ChatActive)
	})
	if len(open) == 0 {
		return nil, domain.ErrNotFound
	}
	return open[0], nil
}

func (m *memChatRepo) filter(keep func(model.Chat) bool) []*model.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Chat
	for _, c := range m.chats {
		if keep(c) {
			cp := c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	msgs   []model.Message
}

func newMemMessageRepo() *memMessageRepo { return &memMessageRepo{nextID: 1} }

func (m *memMessageRepo) Insert(ctx context.Context, qx any, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ClientMessageID != "" {
		for _, existing := range m.msgs {
			if existing.SenderID == msg.SenderID && existing.ClientMessageID == msg.ClientMessageID {
				return domain.ErrDuplicateMessage
			}
		}
	}
	msg.ID = m.nextID
	m.nextID++
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessageRepo) FindByClientKey(ctx context.Context, qx any, senderID int64, clientMessageID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.msgs {
		if msg.SenderID == senderID && msg.ClientMessageID == clientMessageID {
			cp := msg
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMessageRepo) FindRecentDuplicate(ctx context.Context, qx any, chatID, senderID int64, text string, since time.Time) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		msg := m.msgs[i]
		if msg.ChatID == chatID && msg.SenderID == senderID && msg.Text == text && !msg.CreatedAt.Before(since) {
			cp := msg
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMessageRepo) ListByChat(ctx context.Context, qx any, chatID int64) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.msgs {
		if msg.ChatID == chatID {
			cp := msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]model.User
}

func newMemUserRepo(users ...model.User) *memUserRepo {
	m := &memUserRepo{users: make(map[int64]model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserRepo) FindByID(ctx context.Context, qx any, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (m *memUserRepo) FindAvailableCounsellor(ctx context.Context, qx any) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, u := range m.users {
		if u.Role == model.RoleCounsellor {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	u := m.users[ids[0]]
	return &u, nil
}

type memWalletRepo struct {
	mu       sync.Mutex
	balances map[int64]int64
}

func newMemWalletRepo() *memWalletRepo { return &memWalletRepo{balances: make(map[int64]int64)} }

func (m *memWalletRepo) Balance(ctx context.Context, qx any, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return b, nil
}

func (m *memWalletRepo) BalanceForUpdate(ctx context.Context, tx repository.Tx, userID int64) (int64, error) {
	if _, ok := tx.(memTx); !ok {
		return 0, domain.ErrInvalidExecContext
	}
	return m.Balance(ctx, tx, userID)
}

func (m *memWalletRepo) Debit(ctx context.Context, qx any, userID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < amount {
		return domain.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	return nil
}

func (m *memWalletRepo) Credit(ctx context.Context, qx any, userID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return nil
}

// Interface conformance for the fakes.
var (
	_ repository.TransactionManager = (*memTxManager)(nil)
	_ repository.ChatRepository     = (*memChatRepo)(nil)
	_ repository.MessageRepository  = (*memMessageRepo)(nil)
	_ repository.UserRepository     = (*memUserRepo)(nil)
	_ repository.WalletRepository   = (*memWalletRepo)(nil)
)
