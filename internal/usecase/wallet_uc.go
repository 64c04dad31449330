package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/ports/repository"
)

// Compile-time check
var _ WalletUseCase = (*walletUC)(nil)

// WalletUseCase is the thin read/top-up surface over the prepaid balance.
// Debits happen exclusively through billing settlement.
type WalletUseCase interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	TopUp(ctx context.Context, userID, amount int64) (int64, error)
}

type walletUC struct {
	wallets repository.WalletRepository
	log     *zerolog.Logger
}

func NewWalletUseCase(wallets repository.WalletRepository, logger *zerolog.Logger) *walletUC {
	return &walletUC{wallets: wallets, log: logger}
}

func (w *walletUC) Balance(ctx context.Context, userID int64) (int64, error) {
	return w.wallets.Balance(ctx, nil, userID)
}

func (w *walletUC) TopUp(ctx context.Context, userID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	if err := w.wallets.Credit(ctx, nil, userID, amount); err != nil {
		return 0, err
	}
	balance, err := w.wallets.Balance(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	w.log.Info().Int64("user_id", userID).Int64("amount", amount).Int64("balance", balance).Msg("wallet topped up")
	return balance, nil
}
