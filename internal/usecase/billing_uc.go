package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"counseling-platform/internal/domain/model"
	"counseling-platform/internal/domain/ports/repository"
	"counseling-platform/internal/infra/logging"
	"counseling-platform/internal/infra/metrics"
)

type SettleOutcome string

const (
	SettleBilled        SettleOutcome = "billed"
	SettleAlreadyBilled SettleOutcome = "already_billed"
	SettleInsufficient  SettleOutcome = "insufficient_funds"
	SettleNothing       SettleOutcome = "nothing_to_bill"
)

type SettleResult struct {
	Outcome SettleOutcome
	Minutes int
	Amount  int64
}

// CostEstimate is the read-only billing view of a chat (for the wallet
// surface): how much the chat has cost, or would cost if it ended now.
type CostEstimate struct {
	Minutes  int
	Amount   int64
	IsActive bool
	IsBilled bool
}

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// BillingUseCase settles a chat's charge exactly once. Settlement is a
// separate, retriable concern from lifecycle closure: an ending transition
// always commits first, settle runs afterwards in its own transaction.
type BillingUseCase interface {
	Settle(ctx context.Context, chatID int64) (SettleResult, error)
	EstimateCost(ctx context.Context, chatID int64) (CostEstimate, error)
}

type billingUC struct {
	tm      repository.TransactionManager
	chats   repository.ChatRepository
	wallets repository.WalletRepository
	rate    int64
	log     *zerolog.Logger
}

func NewBillingUseCase(tm repository.TransactionManager, chats repository.ChatRepository, wallets repository.WalletRepository, ratePerMinute int64, logger *zerolog.Logger) *billingUC {
	return &billingUC{tm: tm, chats: chats, wallets: wallets, rate: ratePerMinute, log: logger}
}

// Settle computes the charge for an ended chat and debits the owner's wallet
// under a row lock. Calling it on an already-billed chat is a no-op success;
// an insufficient balance records the computed charge on the chat and leaves
// it unbilled so a later access can retry. The wallet never goes negative.
func (b *billingUC) Settle(ctx context.Context, chatID int64) (SettleResult, error) {
	defer logging.TraceDuration(b.log, "BillingUC.Settle")()
	var res SettleResult
	err := b.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		chat, err := b.chats.FindByIDForUpdate(ctx, tx, chatID)
		if err != nil {
			return err
		}
		now := time.Now()

		if chat.IsBilled {
			res = SettleResult{Outcome: SettleAlreadyBilled, Minutes: chat.DurationMinutes, Amount: chat.BilledAmount}
			return nil
		}
		if chat.StartedAt == nil {
			// Never started: nothing to charge. The billing flag stays
			// clear so a reopened chat still bills at its real end.
			res = SettleResult{Outcome: SettleNothing}
			return nil
		}

		minutes := chat.DurationMinutes
		if chat.EndedAt != nil {
			minutes = model.BillableMinutes(*chat.StartedAt, *chat.EndedAt)
		}
		amount := model.ChargeFor(minutes, b.rate)
		if amount == 0 {
			chat.MarkBilled(minutes, 0, now)
			res = SettleResult{Outcome: SettleBilled, Minutes: minutes}
			return b.chats.Update(ctx, tx, chat)
		}

		balance, err := b.wallets.BalanceForUpdate(ctx, tx, chat.UserID)
		if err != nil {
			return err
		}
		if balance < amount {
			chat.RecordBillingAttempt(minutes, amount, now)
			res = SettleResult{Outcome: SettleInsufficient, Minutes: minutes, Amount: amount}
			return b.chats.Update(ctx, tx, chat)
		}
		if err := b.wallets.Debit(ctx, tx, chat.UserID, amount); err != nil {
			return err
		}
		chat.MarkBilled(minutes, amount, now)
		res = SettleResult{Outcome: SettleBilled, Minutes: minutes, Amount: amount}
		return b.chats.Update(ctx, tx, chat)
	})
	if err != nil {
		return SettleResult{}, err
	}

	metrics.IncSettlement(string(res.Outcome))
	ev := b.log.Info()
	if res.Outcome == SettleInsufficient {
		ev = b.log.Warn()
	}
	ev.Int64("chat_id", chatID).
		Str("outcome", string(res.Outcome)).
		Int("minutes", res.Minutes).
		Int64("amount", res.Amount).
		Msg("billing settlement")
	return res, nil
}

func (b *billingUC) EstimateCost(ctx context.Context, chatID int64) (CostEstimate, error) {
	chat, err := b.chats.FindByID(ctx, nil, chatID)
	if err != nil {
		return CostEstimate{}, err
	}
	est := CostEstimate{IsActive: chat.Status == model.ChatActive, IsBilled: chat.IsBilled}
	if chat.IsBilled {
		est.Minutes = chat.DurationMinutes
		est.Amount = chat.BilledAmount
		return est, nil
	}
	if chat.StartedAt == nil {
		return est, nil
	}
	end := time.Now()
	if chat.EndedAt != nil {
		end = *chat.EndedAt
	}
	est.Minutes = model.BillableMinutes(*chat.StartedAt, end)
	est.Amount = model.ChargeFor(est.Minutes, b.rate)
	return est, nil
}
