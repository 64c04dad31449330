//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/usecase"
)

// ---- Fakes ----

type fakeChatUC struct {
	mu     sync.Mutex
	nextID int64
	chats  map[int64]*model.Chat
	msgs   map[int64][]*model.Message
	seen   map[string]bool
	roles  map[int64]model.Role
}

func newFakeChatUC() *fakeChatUC {
	return &fakeChatUC{
		nextID: 1,
		chats:  make(map[int64]*model.Chat),
		msgs:   make(map[int64][]*model.Message),
		seen:   make(map[string]bool),
		roles:  make(map[int64]model.Role),
	}
}

func (f *fakeChatUC) role(userID int64) model.Role {
	if r, ok := f.roles[userID]; ok {
		return r
	}
	return model.RoleUser
}

func (f *fakeChatUC) CreateChat(ctx context.Context, userID int64) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chats {
		if c.UserID == userID && (c.Status == model.ChatQueued || c.Status == model.ChatActive) {
			return c, domain.ErrOpenChatExists
		}
	}
	chat, err := model.NewChat(userID)
	if err != nil {
		return nil, err
	}
	chat.ID = f.nextID
	f.nextID++
	f.chats[chat.ID] = chat
	return chat, nil
}

func (f *fakeChatUC) GetChat(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !chat.IsParticipant(callerID) {
		return nil, domain.ErrAccessDenied
	}
	return chat, nil
}

func (f *fakeChatUC) SendMessage(ctx context.Context, chatID, senderID int64, text, clientMessageID string) (*usecase.SendOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !chat.IsParticipant(senderID) {
		return nil, domain.ErrAccessDenied
	}
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if clientMessageID != "" && f.seen[clientMessageID] {
		return &usecase.SendOutcome{Duplicate: true, Chat: chat}, nil
	}
	f.seen[clientMessageID] = true
	statusChanged := chat.Status != model.ChatActive
	chat.Status = model.ChatActive
	msg := &model.Message{
		ID:              int64(len(f.msgs[chatID]) + 1),
		ChatID:          chatID,
		SenderID:        senderID,
		Text:            text,
		ClientMessageID: clientMessageID,
		CreatedAt:       time.Now(),
	}
	f.msgs[chatID] = append(f.msgs[chatID], msg)
	return &usecase.SendOutcome{
		Message:       msg,
		Chat:          chat,
		IsOwner:       chat.IsOwner(senderID),
		StatusChanged: statusChanged,
	}, nil
}

func (f *fakeChatUC) ListMessages(ctx context.Context, chatID, callerID int64) ([]*model.Message, *model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if !chat.IsParticipant(callerID) {
		return nil, nil, domain.ErrAccessDenied
	}
	return f.msgs[chatID], chat, nil
}

func (f *fakeChatUC) Accept(ctx context.Context, chatID, counsellorID int64) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.role(counsellorID) != model.RoleCounsellor {
		return nil, domain.ErrAccessDenied
	}
	chat, ok := f.chats[chatID]
	if !ok || chat.Status != model.ChatQueued {
		return nil, domain.ErrNotFound
	}
	chat.CounsellorID = &counsellorID
	chat.Status = model.ChatActive
	now := time.Now()
	chat.StartedAt = &now
	return chat, nil
}

func (f *fakeChatUC) Complete(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	return f.close(chatID, callerID, model.ChatCompleted)
}

func (f *fakeChatUC) Cancel(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	return f.close(chatID, callerID, model.ChatCancelled)
}

func (f *fakeChatUC) close(chatID, callerID int64, target model.ChatStatus) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !chat.IsParticipant(callerID) {
		return nil, domain.ErrAccessDenied
	}
	chat.Status = target
	return chat, nil
}

func (f *fakeChatUC) ListForUser(ctx context.Context, callerID int64) ([]*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Chat
	for _, c := range f.chats {
		if c.UserID == callerID || (c.CounsellorID != nil && *c.CounsellorID == callerID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChatUC) ListQueued(ctx context.Context, callerID int64) ([]*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.role(callerID) != model.RoleCounsellor {
		return nil, domain.ErrAccessDenied
	}
	var out []*model.Chat
	for _, c := range f.chats {
		if c.Status == model.ChatQueued {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ usecase.ChatUseCase = (*fakeChatUC)(nil)

type fakeWalletUC struct {
	mu       sync.Mutex
	balances map[int64]int64
}

func newFakeWalletUC() *fakeWalletUC { return &fakeWalletUC{balances: make(map[int64]int64)} }

func (f *fakeWalletUC) Balance(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeWalletUC) TopUp(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	return f.balances[userID], nil
}

var _ usecase.WalletUseCase = (*fakeWalletUC)(nil)

type fakeBillingUC struct{}

func (f *fakeBillingUC) Settle(ctx context.Context, chatID int64) (usecase.SettleResult, error) {
	return usecase.SettleResult{Outcome: usecase.SettleBilled}, nil
}

func (f *fakeBillingUC) EstimateCost(ctx context.Context, chatID int64) (usecase.CostEstimate, error) {
	return usecase.CostEstimate{Minutes: 5, Amount: 10, IsActive: true}, nil
}

var _ usecase.BillingUseCase = (*fakeBillingUC)(nil)
