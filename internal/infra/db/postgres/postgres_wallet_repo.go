package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"counseling-platform/internal/domain"
	"counseling-platform/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.WalletRepository = (*WalletRepo)(nil)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Balance(ctx context.Context, qx any, userID int64) (int64, error) {
	return r.balance(ctx, qx, userID, false)
}

func (r *WalletRepo) BalanceForUpdate(ctx context.Context, tx repository.Tx, userID int64) (int64, error) {
	if !inTx(tx) {
		return 0, domain.ErrInvalidExecContext
	}
	return r.balance(ctx, tx, userID, true)
}

func (r *WalletRepo) balance(ctx context.Context, qx any, userID int64, forUpdate bool) (int64, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return 0, err
	}
	q := `SELECT balance FROM wallets WHERE user_id=$1`
	if forUpdate {
		q += " FOR UPDATE"
	}
	q += ";"
	var balance int64
	if err := ex.QueryRow(ctx, q, userID).Scan(&balance); err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("query wallet: %w", err)
	}
	return balance, nil
}

func (r *WalletRepo) Debit(ctx context.Context, qx any, userID, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	// The balance >= amount guard keeps the wallet non-negative even if a
	// caller skips the locked balance check.
	const q = `UPDATE wallets SET balance = balance - $2, updated_at = now()
WHERE user_id=$1 AND balance >= $2;`
	tag, err := ex.Exec(ctx, q, userID, amount)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (r *WalletRepo) Credit(ctx context.Context, qx any, userID, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	// Upsert so a first top-up creates the wallet row.
	const q = `
INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + $2, updated_at = now();`
	if _, err := ex.Exec(ctx, q, userID, amount); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}
