package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

type ExpenseStore struct {
	db DBTX
}

func NewExpenseStore(db DBTX) *ExpenseStore {
	return &ExpenseStore{db: db}
}

type ExpenseInput struct {
	Category    model.ExpenseCategory
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

func scanExpense(scanner interface{ Scan(...any) error }) (*model.Expense, error) {
	var e model.Expense
	var date string
	var locked int

	err := scanner.Scan(&e.ID, &e.Category, &e.Amount, &date, &e.Month, &e.Description,
		&e.AddedBy, &locked, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if e.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	e.Locked = locked != 0
	return &e, nil
}

const expenseCols = `id, category, amount, date, month, description, added_by, locked, created_at, updated_at`

func (s *ExpenseStore) Create(ctx context.Context, in ExpenseInput, addedBy int64) (*model.Expense, error) {
	target := month.Of(in.Date)
	var id int64

	err := inTx(ctx, s.db, func(q DBTX) error {
		if err := guardWrite(ctx, q, nil, target); err != nil {
			return err
		}
		now := time.Now().UTC()
		result, err := q.ExecContext(ctx,
			`INSERT INTO expenses (category, amount, date, month, description, added_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.Category, in.Amount, formatDate(in.Date), target, in.Description, addedBy, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ExpenseStore) GetByID(ctx context.Context, id int64) (*model.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseCols+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// List returns expenses matching the filter, newest first.
func (s *ExpenseStore) List(ctx context.Context, f model.ExpenseFilter) ([]model.Expense, error) {
	var where []string
	var args []any
	if f.Month != nil {
		where = append(where, "month = ?")
		args = append(args, *f.Month)
	}
	if f.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *f.Category)
	}

	q := `SELECT ` + expenseCols + ` FROM expenses`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date DESC, id DESC`
	return s.query(ctx, q, args...)
}

func (s *ExpenseStore) FindByMonth(ctx context.Context, m month.Key) ([]model.Expense, error) {
	return s.query(ctx, `SELECT `+expenseCols+` FROM expenses WHERE month = ? ORDER BY id ASC`, m)
}

func (s *ExpenseStore) Update(ctx context.Context, id int64, in ExpenseInput) (*model.Expense, error) {
	err := inTx(ctx, s.db, func(q DBTX) error {
		state, err := expenseLockState(ctx, q, id)
		if err != nil {
			return err
		}
		target := month.Of(in.Date)
		if err := guardWrite(ctx, q, state, target); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`UPDATE expenses SET category = ?, amount = ?, date = ?, month = ?, description = ?, updated_at = ?
			 WHERE id = ?`,
			in.Category, in.Amount, formatDate(in.Date), target, in.Description, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ExpenseStore) Delete(ctx context.Context, id int64) error {
	return inTx(ctx, s.db, func(q DBTX) error {
		state, err := expenseLockState(ctx, q, id)
		if err != nil {
			return err
		}
		if err := guardWrite(ctx, q, state, state.Month); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		return nil
	})
}

func (s *ExpenseStore) LockAll(ctx context.Context, m month.Key) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE expenses SET locked = 1 WHERE month = ? AND locked = 0`, m)
	if err != nil {
		return 0, fmt.Errorf("lock expenses: %w", err)
	}
	return result.RowsAffected()
}

// Summary totals the month's expenses per category.
func (s *ExpenseStore) Summary(ctx context.Context, m month.Key) (*model.ExpenseSummary, error) {
	expenses, err := s.FindByMonth(ctx, m)
	if err != nil {
		return nil, err
	}
	sum := &model.ExpenseSummary{Month: m, Total: decimal.Zero, Count: len(expenses), Breakdown: model.NewBreakdown()}
	for _, e := range expenses {
		sum.Total = sum.Total.Add(e.Amount)
		sum.Breakdown.Add(e.Category, e.Amount)
	}
	return sum, nil
}

func expenseLockState(ctx context.Context, q DBTX, id int64) (*lockState, error) {
	var st lockState
	var locked int
	err := q.QueryRowContext(ctx, `SELECT locked, month FROM expenses WHERE id = ?`, id).Scan(&locked, &st.Month)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("expense")
	}
	if err != nil {
		return nil, fmt.Errorf("get expense lock: %w", err)
	}
	st.Locked = locked != 0
	return &st, nil
}

func (s *ExpenseStore) query(ctx context.Context, q string, args ...any) ([]model.Expense, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []model.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}
