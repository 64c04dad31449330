package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Repository methods accept `qx any` and detect a tx implementation-side, so
// they can run SELECT ... FOR UPDATE / use tx-bound Exec/Query as needed.
// Repositories MUST gracefully accept `nil` qx (non-transactional path).
//
// Lock hold times are expected to be short: a lifecycle transition plus a
// handful of field updates, never external I/O.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
