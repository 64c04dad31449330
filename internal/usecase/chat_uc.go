package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/domain/ports/repository"
	"counseling-platform/internal/infra/logging"
	"counseling-platform/internal/infra/metrics"
)

// SendOutcome is what a transport layer needs to acknowledge and broadcast
// one message send.
type SendOutcome struct {
	// Duplicate: the send was a resubmission; Message is nil and nothing
	// was stored or broadcast-worthy.
	Duplicate bool
	Message   *model.Message
	Chat      *model.Chat
	// IsOwner reports whether the author is the chat's owning user.
	IsOwner bool
	// StatusChanged: the chat was (re)activated; the counsellor queue topic
	// should be notified.
	StatusChanged bool
}

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase is the lifecycle controller: every chat state transition in the
// system goes through it. Transitions are evaluated on a row-locked chat,
// persisted, and only then is billing invoked as its own step.
type ChatUseCase interface {
	CreateChat(ctx context.Context, userID int64) (*model.Chat, error)
	GetChat(ctx context.Context, chatID, callerID int64) (*model.Chat, error)
	SendMessage(ctx context.Context, chatID, senderID int64, text, clientMessageID string) (*SendOutcome, error)
	ListMessages(ctx context.Context, chatID, callerID int64) ([]*model.Message, *model.Chat, error)
	Accept(ctx context.Context, chatID, counsellorID int64) (*model.Chat, error)
	Complete(ctx context.Context, chatID, callerID int64) (*model.Chat, error)
	Cancel(ctx context.Context, chatID, callerID int64) (*model.Chat, error)
	ListForUser(ctx context.Context, callerID int64) ([]*model.Chat, error)
	ListQueued(ctx context.Context, callerID int64) ([]*model.Chat, error)
}

type chatUC struct {
	tm       repository.TransactionManager
	chats    repository.ChatRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	wallets  repository.WalletRepository
	billing  BillingUseCase
	rate     int64
	log      *zerolog.Logger
}

func NewChatUseCase(
	tm repository.TransactionManager,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	wallets repository.WalletRepository,
	billing BillingUseCase,
	ratePerMinute int64,
	logger *zerolog.Logger,
) *chatUC {
	return &chatUC{
		tm:       tm,
		chats:    chats,
		messages: messages,
		users:    users,
		wallets:  wallets,
		billing:  billing,
		rate:     ratePerMinute,
		log:      logger,
	}
}

// CreateChat opens a new queued conversation for the user. Only one open
// (queued or active) chat per user is allowed.
func (uc *chatUC) CreateChat(ctx context.Context, userID int64) (*model.Chat, error) {
	if existing, err := uc.chats.FindOpenByUser(ctx, nil, userID); err == nil && existing != nil {
		return existing, domain.ErrOpenChatExists
	}
	chat, err := model.NewChat(userID)
	if err != nil {
		return nil, err
	}
	if err := uc.chats.Create(ctx, nil, chat); err != nil {
		return nil, err
	}
	uc.log.Info().Int64("chat_id", chat.ID).Int64("user_id", userID).Msg("chat created")
	return chat, nil
}

func (uc *chatUC) GetChat(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	chat, err := uc.chats.FindByID(ctx, nil, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.IsParticipant(callerID) {
		return nil, domain.ErrAccessDenied
	}
	return chat, nil
}

// SendMessage runs the full pipeline for one inbound message: lock the chat
// row, dedup, evaluate the lifecycle transition, persist chat + message,
// commit, then settle billing if the transition closed a billable window.
func (uc *chatUC) SendMessage(ctx context.Context, chatID, senderID int64, text, clientMessageID string) (*SendOutcome, error) {
	defer logging.TraceDuration(uc.log, "ChatUC.SendMessage")()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(text) > model.MaxMessageLen {
		return nil, domain.ErrMessageTooLong
	}

	out := &SendOutcome{}
	var fx model.Effects
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		chat, err := uc.chats.FindByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.IsParticipant(senderID) {
			return domain.ErrAccessDenied
		}
		out.Chat = chat
		out.IsOwner = chat.IsOwner(senderID)

		// Dedup before any lifecycle effect: a resubmission must not
		// re-activate or re-bill anything.
		now := time.Now()
		if dup, err := uc.findDuplicate(ctx, tx, chat.ID, senderID, text, clientMessageID, now); err != nil {
			return err
		} else if dup != nil {
			out.Duplicate = true
			return nil
		}

		ev := model.Event{Kind: model.EventUserMessage, Now: now}
		if !out.IsOwner {
			ev.Kind = model.EventCounsellorMessage
		}
		prevStatus := chat.Status
		fx, err = chat.Apply(ev)
		if err != nil {
			return err
		}
		uc.execLockedEffects(ctx, tx, chat, fx)
		if prevStatus != chat.Status {
			metrics.IncTransition(string(prevStatus), string(chat.Status))
		}
		if err := uc.chats.Update(ctx, tx, chat); err != nil {
			return err
		}

		msg, err := model.NewMessage(chat.ID, senderID, text, clientMessageID)
		if err != nil {
			return err
		}
		if err := uc.messages.Insert(ctx, tx, msg); err != nil {
			return err
		}
		out.Message = msg
		out.StatusChanged = fx.NotifyQueue
		return nil
	})
	if err != nil {
		// Two racing identical sends: the loser hits the uniqueness
		// constraint instead of the pre-check.
		if err == domain.ErrDuplicateMessage {
			out.Duplicate = true
			out.Message = nil
			return out, nil
		}
		return nil, err
	}

	if out.Duplicate {
		metrics.IncMessage("duplicate")
		return out, nil
	}
	metrics.IncMessage("stored")
	if fx.IdleReturn {
		uc.log.Info().Int64("chat_id", chatID).Int64("user_id", senderID).Msg("user returned after inactivity")
	}
	if fx.SettleBilling {
		uc.settle(ctx, chatID)
	}
	return out, nil
}

// ListMessages returns the chat's messages in canonical order. For the owning
// user a list read is a lifecycle access: it refreshes last_user_activity and
// may lazily auto-close (and bill) a long-abandoned active chat.
func (uc *chatUC) ListMessages(ctx context.Context, chatID, callerID int64) ([]*model.Message, *model.Chat, error) {
	var chat *model.Chat
	var fx model.Effects
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		chat, err = uc.chats.FindByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.IsParticipant(callerID) {
			return domain.ErrAccessDenied
		}
		if !chat.IsOwner(callerID) {
			return nil
		}
		prevStatus := chat.Status
		fx, err = chat.Apply(model.Event{Kind: model.EventUserRead, Now: time.Now()})
		if err != nil {
			return err
		}
		if prevStatus != chat.Status {
			metrics.IncTransition(string(prevStatus), string(chat.Status))
		}
		return uc.chats.Update(ctx, tx, chat)
	})
	if err != nil {
		return nil, nil, err
	}
	if fx.SettleBilling {
		uc.settle(ctx, chatID)
	}

	msgs, err := uc.messages.ListByChat(ctx, nil, chatID)
	if err != nil {
		return nil, nil, err
	}
	return msgs, chat, nil
}

// Accept lets a counsellor claim a queued chat from the shared queue.
func (uc *chatUC) Accept(ctx context.Context, chatID, counsellorID int64) (*model.Chat, error) {
	caller, err := uc.users.FindByID(ctx, nil, counsellorID)
	if err != nil {
		return nil, err
	}
	if !caller.IsCounsellor() {
		return nil, domain.ErrAccessDenied
	}
	var chat *model.Chat
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		chat, err = uc.chats.FindByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if chat.Status != model.ChatQueued {
			return domain.ErrNotFound
		}
		now := time.Now()
		chat.CounsellorID = &counsellorID
		chat.Status = model.ChatActive
		if chat.StartedAt == nil {
			chat.StartedAt = &now
		}
		chat.UpdatedAt = now
		metrics.IncTransition(string(model.ChatQueued), string(model.ChatActive))
		return uc.chats.Update(ctx, tx, chat)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Int64("chat_id", chatID).Int64("counsellor_id", counsellorID).Msg("chat accepted")
	return chat, nil
}

func (uc *chatUC) Complete(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	return uc.close(ctx, chatID, callerID, model.EventComplete)
}

func (uc *chatUC) Cancel(ctx context.Context, chatID, callerID int64) (*model.Chat, error) {
	return uc.close(ctx, chatID, callerID, model.EventCancel)
}

func (uc *chatUC) close(ctx context.Context, chatID, callerID int64, kind model.EventKind) (*model.Chat, error) {
	var chat *model.Chat
	var fx model.Effects
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		chat, err = uc.chats.FindByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}
		if !chat.IsParticipant(callerID) {
			return domain.ErrAccessDenied
		}
		prevStatus := chat.Status
		fx, err = chat.Apply(model.Event{Kind: kind, Now: time.Now()})
		if err != nil {
			return err
		}
		if prevStatus != chat.Status {
			metrics.IncTransition(string(prevStatus), string(chat.Status))
		}
		return uc.chats.Update(ctx, tx, chat)
	})
	if err != nil {
		return nil, err
	}
	if fx.SettleBilling {
		uc.settle(ctx, chatID)
	}
	return chat, nil
}

func (uc *chatUC) ListForUser(ctx context.Context, callerID int64) ([]*model.Chat, error) {
	caller, err := uc.users.FindByID(ctx, nil, callerID)
	if err != nil {
		return nil, err
	}
	if caller.IsCounsellor() {
		return uc.chats.FindByCounsellor(ctx, nil, callerID)
	}
	return uc.chats.FindByUser(ctx, nil, callerID)
}

func (uc *chatUC) ListQueued(ctx context.Context, callerID int64) ([]*model.Chat, error) {
	caller, err := uc.users.FindByID(ctx, nil, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsCounsellor() {
		return nil, domain.ErrAccessDenied
	}
	return uc.chats.FindQueued(ctx, nil)
}

func (uc *chatUC) findDuplicate(ctx context.Context, tx repository.Tx, chatID, senderID int64, text, clientMessageID string, now time.Time) (*model.Message, error) {
	if clientMessageID != "" {
		dup, err := uc.messages.FindByClientKey(ctx, tx, senderID, clientMessageID)
		if err != nil && err != domain.ErrNotFound {
			return nil, err
		}
		return dup, nil
	}
	dup, err := uc.messages.FindRecentDuplicate(ctx, tx, chatID, senderID, text, now.Add(-model.DedupWindow))
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	return dup, nil
}

// execLockedEffects executes the effects that must land in the same
// transaction as the transition itself: counsellor assignment and the
// low-balance warning on first activation.
func (uc *chatUC) execLockedEffects(ctx context.Context, tx repository.Tx, chat *model.Chat, fx model.Effects) {
	if fx.AssignCounsellor {
		counsellor, err := uc.users.FindAvailableCounsellor(ctx, tx)
		if err != nil {
			uc.log.Warn().Int64("chat_id", chat.ID).Msg("no counsellor available for assignment")
		} else {
			chat.CounsellorID = &counsellor.ID
			uc.log.Info().Int64("chat_id", chat.ID).Int64("counsellor_id", counsellor.ID).Msg("counsellor auto-assigned")
		}
	}
	if fx.CheckBalance {
		balance, err := uc.wallets.Balance(ctx, tx, chat.UserID)
		if err == nil && balance < uc.rate {
			uc.log.Warn().
				Int64("chat_id", chat.ID).
				Int64("user_id", chat.UserID).
				Int64("balance", balance).
				Msg("low wallet balance at activation; chat will be billed when it ends")
		}
	}
}

// settle runs billing after an ending transition has committed. Failures are
// logged and retried lazily on a later access; they never block closure.
func (uc *chatUC) settle(ctx context.Context, chatID int64) {
	if _, err := uc.billing.Settle(ctx, chatID); err != nil {
		uc.log.Error().Err(err).Int64("chat_id", chatID).Msg("billing settlement failed")
	}
}
