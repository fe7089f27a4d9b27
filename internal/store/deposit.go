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

type DepositStore struct {
	db DBTX
}

func NewDepositStore(db DBTX) *DepositStore {
	return &DepositStore{db: db}
}

type DepositInput struct {
	UserID        int64
	Amount        decimal.Decimal
	Date          time.Time
	PaymentMethod model.PaymentMethod
	Note          string
	Status        model.DepositStatus
}

func scanDeposit(scanner interface{ Scan(...any) error }) (*model.Deposit, error) {
	var d model.Deposit
	var date string
	var locked int

	err := scanner.Scan(&d.ID, &d.UserID, &d.UserName, &d.Amount, &date, &d.Month, &d.PaymentMethod,
		&d.Note, &d.Status, &d.AddedBy, &locked, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if d.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	d.Locked = locked != 0
	return &d, nil
}

const depositCols = `d.id, d.user_id, COALESCE(u.name, ''), d.amount, d.date, d.month, d.payment_method,
	d.note, d.status, d.added_by, d.locked, d.created_at, d.updated_at`

const depositFrom = ` FROM deposits d LEFT JOIN users u ON u.id = d.user_id`

func (s *DepositStore) Create(ctx context.Context, in DepositInput, addedBy int64) (*model.Deposit, error) {
	target := month.Of(in.Date)
	var id int64

	err := inTx(ctx, s.db, func(q DBTX) error {
		if err := guardWrite(ctx, q, nil, target); err != nil {
			return err
		}
		now := time.Now().UTC()
		result, err := q.ExecContext(ctx,
			`INSERT INTO deposits (user_id, amount, date, month, payment_method, note, status, added_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.UserID, in.Amount, formatDate(in.Date), target, in.PaymentMethod, in.Note, in.Status, addedBy, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert deposit: %w", err)
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

func (s *DepositStore) GetByID(ctx context.Context, id int64) (*model.Deposit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+depositCols+depositFrom+` WHERE d.id = ?`, id)
	d, err := scanDeposit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deposit: %w", err)
	}
	return d, nil
}

// List returns deposits matching the filter, newest first.
func (s *DepositStore) List(ctx context.Context, f model.DepositFilter) ([]model.Deposit, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		where = append(where, "d.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Month != nil {
		where = append(where, "d.month = ?")
		args = append(args, *f.Month)
	}
	if f.Status != nil {
		where = append(where, "d.status = ?")
		args = append(args, *f.Status)
	}

	q := `SELECT ` + depositCols + depositFrom
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY d.date DESC, d.id DESC`
	return s.query(ctx, q, args...)
}

// FindByMonth returns every deposit of the month regardless of status.
func (s *DepositStore) FindByMonth(ctx context.Context, m month.Key) ([]model.Deposit, error) {
	return s.query(ctx, `SELECT `+depositCols+depositFrom+` WHERE d.month = ? ORDER BY d.id ASC`, m)
}

// Update changes amount, date, payment method and note. Status changes go
// through SetStatus.
func (s *DepositStore) Update(ctx context.Context, id int64, in DepositInput) (*model.Deposit, error) {
	return s.update(ctx, id, in, false)
}

// UpdatePending is Update for a member's own request. It fails with
// apperr.ErrNotPending if the deposit was approved or rejected in the meantime.
func (s *DepositStore) UpdatePending(ctx context.Context, id int64, in DepositInput) (*model.Deposit, error) {
	return s.update(ctx, id, in, true)
}

func (s *DepositStore) update(ctx context.Context, id int64, in DepositInput, pendingOnly bool) (*model.Deposit, error) {
	err := inTx(ctx, s.db, func(q DBTX) error {
		state, status, err := depositState(ctx, q, id)
		if err != nil {
			return err
		}
		target := month.Of(in.Date)
		if err := guardWrite(ctx, q, state, target); err != nil {
			return err
		}
		if pendingOnly && status != model.DepositPending {
			return apperr.ErrNotPending
		}
		_, err = q.ExecContext(ctx,
			`UPDATE deposits SET amount = ?, date = ?, month = ?, payment_method = ?, note = ?, updated_at = ?
			 WHERE id = ?`,
			in.Amount, formatDate(in.Date), target, in.PaymentMethod, in.Note, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("update deposit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *DepositStore) SetStatus(ctx context.Context, id int64, status model.DepositStatus) (*model.Deposit, error) {
	err := inTx(ctx, s.db, func(q DBTX) error {
		state, current, err := depositState(ctx, q, id)
		if err != nil {
			return err
		}
		if err := guardWrite(ctx, q, state, state.Month); err != nil {
			return err
		}
		if current != model.DepositPending {
			return apperr.Validation("deposit is already %s", current)
		}
		_, err = q.ExecContext(ctx,
			`UPDATE deposits SET status = ?, updated_at = ? WHERE id = ?`,
			status, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("update deposit status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *DepositStore) Delete(ctx context.Context, id int64) error {
	return s.delete(ctx, id, false)
}

// DeletePending is Delete for a member's own request. It fails with
// apperr.ErrNotPending if the deposit was approved or rejected in the meantime.
func (s *DepositStore) DeletePending(ctx context.Context, id int64) error {
	return s.delete(ctx, id, true)
}

func (s *DepositStore) delete(ctx context.Context, id int64, pendingOnly bool) error {
	return inTx(ctx, s.db, func(q DBTX) error {
		state, status, err := depositState(ctx, q, id)
		if err != nil {
			return err
		}
		if err := guardWrite(ctx, q, state, state.Month); err != nil {
			return err
		}
		if pendingOnly && status != model.DepositPending {
			return apperr.ErrNotPending
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM deposits WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete deposit: %w", err)
		}
		return nil
	})
}

func (s *DepositStore) LockAll(ctx context.Context, m month.Key) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE deposits SET locked = 1 WHERE month = ? AND locked = 0`, m)
	if err != nil {
		return 0, fmt.Errorf("lock deposits: %w", err)
	}
	return result.RowsAffected()
}

// Summary totals a member's approved deposits for the month.
func (s *DepositStore) Summary(ctx context.Context, userID int64, m month.Key) (*model.DepositSummary, error) {
	deposits, err := s.List(ctx, model.DepositFilter{UserID: &userID, Month: &m})
	if err != nil {
		return nil, err
	}
	sum := &model.DepositSummary{Month: m, UserID: userID, Total: decimal.Zero}
	for _, d := range deposits {
		if d.Status != model.DepositApproved {
			continue
		}
		sum.Total = sum.Total.Add(d.Amount)
		sum.Count++
	}
	return sum, nil
}

// ByMonth groups the month's deposits per member. Active members without
// deposits are listed with a zero total; inactive members appear only when
// they have deposits.
func (s *DepositStore) ByMonth(ctx context.Context, m month.Key) (*model.MonthDeposits, error) {
	active, err := NewUserStore(s.db).ListActive(ctx)
	if err != nil {
		return nil, err
	}
	deposits, err := s.List(ctx, model.DepositFilter{Month: &m})
	if err != nil {
		return nil, err
	}

	out := &model.MonthDeposits{Month: m, Total: decimal.Zero, Deposits: deposits}
	if out.Deposits == nil {
		out.Deposits = []model.Deposit{}
	}
	index := make(map[int64]int)
	for _, u := range active {
		index[u.ID] = len(out.Users)
		out.Users = append(out.Users, model.UserDeposits{UserID: u.ID, UserName: u.Name, Total: decimal.Zero, Deposits: []model.Deposit{}})
	}
	for _, d := range deposits {
		i, ok := index[d.UserID]
		if !ok {
			i = len(out.Users)
			index[d.UserID] = i
			out.Users = append(out.Users, model.UserDeposits{UserID: d.UserID, UserName: d.UserName, Total: decimal.Zero})
		}
		if d.Status == model.DepositApproved {
			out.Users[i].Total = out.Users[i].Total.Add(d.Amount)
			out.Total = out.Total.Add(d.Amount)
		}
		out.Users[i].Deposits = append(out.Users[i].Deposits, d)
	}
	return out, nil
}

// depositState reads the lock state and status of deposit id inside q.
func depositState(ctx context.Context, q DBTX, id int64) (*lockState, model.DepositStatus, error) {
	var st lockState
	var locked int
	var status model.DepositStatus
	err := q.QueryRowContext(ctx, `SELECT locked, month, status FROM deposits WHERE id = ?`, id).Scan(&locked, &st.Month, &status)
	if err == sql.ErrNoRows {
		return nil, "", apperr.NotFound("deposit")
	}
	if err != nil {
		return nil, "", fmt.Errorf("get deposit state: %w", err)
	}
	st.Locked = locked != 0
	return &st, status, nil
}

func (s *DepositStore) query(ctx context.Context, q string, args ...any) ([]model.Deposit, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}
	return deposits, rows.Err()
}
