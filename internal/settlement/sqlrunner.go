package settlement

import (
	"context"
	"database/sql"

	"github.com/dukerupert/messledger/internal/store"
)

// SQLRunner runs settlements against the SQLite ledger. Writes use a single
// immediate transaction, so concurrent closes are serialised by the database.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) Read(ctx context.Context, fn func(Stores) error) error {
	return fn(storesOf(store.NewLedger(r.db)))
}

func (r *SQLRunner) Write(ctx context.Context, fn func(Stores) error) error {
	return store.RunInTx(ctx, r.db, func(l *store.Ledger) error {
		return fn(storesOf(l))
	})
}

func storesOf(l *store.Ledger) Stores {
	return Stores{
		Users:    l.Users,
		Meals:    l.Meals,
		Deposits: l.Deposits,
		Expenses: l.Expenses,
		Reports:  l.Reports,
	}
}
