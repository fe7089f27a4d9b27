package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukerupert/messledger/internal/database"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, name string, role model.Role) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(context.Background(), name, "", role)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
