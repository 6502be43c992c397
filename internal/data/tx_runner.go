package data

import (
	"context"
	"database/sql"

	"github.com/target/scriptcheck/internal/data/pgxutil"
)

// TxRunner implements core.TxRunner over a database/sql pool.
type TxRunner struct {
	DB *sql.DB
}

// WithTx runs fn in a read-committed transaction.
func (r TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn:   func(tx *sql.Tx) error { return fn(ctx, tx) },
	})
}
