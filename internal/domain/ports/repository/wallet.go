package repository

import "context"

// -----------------------------
// Wallets
// -----------------------------

// WalletRepository mutates the per-user prepaid balance. The balance is the
// only cross-chat shared mutable resource; debits happen under a row lock.
type WalletRepository interface {
	Balance(ctx context.Context, qx any, userID int64) (int64, error)
	// BalanceForUpdate locks the wallet row; requires a live tx handle.
	BalanceForUpdate(ctx context.Context, tx Tx, userID int64) (int64, error)
	Debit(ctx context.Context, qx any, userID, amount int64) error
	Credit(ctx context.Context, qx any, userID, amount int64) error
}
