package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every store can run
// standalone or as part of a larger transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// inTx runs fn inside a transaction. When db is already a transaction fn
// joins it and the caller owns commit/rollback.
func inTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	b, ok := db.(txBeginner)
	if !ok {
		return fn(db)
	}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ledger bundles the record stores over one connection or transaction.
type Ledger struct {
	Users    *UserStore
	Meals    *MealStore
	Deposits *DepositStore
	Expenses *ExpenseStore
	Reports  *ReportStore
}

func NewLedger(db DBTX) *Ledger {
	return &Ledger{
		Users:    NewUserStore(db),
		Meals:    NewMealStore(db),
		Deposits: NewDepositStore(db),
		Expenses: NewExpenseStore(db),
		Reports:  NewReportStore(db),
	}
}

// RunInTx runs fn with a Ledger bound to a single transaction. Nothing is
// committed unless fn returns nil.
func RunInTx(ctx context.Context, db *sql.DB, fn func(*Ledger) error) error {
	return inTx(ctx, db, func(tx DBTX) error {
		return fn(NewLedger(tx))
	})
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
