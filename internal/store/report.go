package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

// ReportStore persists closed-month settlements. Reports are insert-only;
// the schema rejects updates and deletes.
type ReportStore struct {
	db DBTX
}

func NewReportStore(db DBTX) *ReportStore {
	return &ReportStore{db: db}
}

const reportCols = `month, year, month_name, weighting, total_units, total_expenses, cost_per_unit, closed_at, closed_by`

func scanReport(scanner interface{ Scan(...any) error }) (*model.Report, error) {
	var r model.Report
	err := scanner.Scan(&r.Month, &r.Year, &r.MonthName, &r.Weighting, &r.TotalUnits,
		&r.TotalExpenses, &r.CostPerUnit, &r.ClosedAt, &r.ClosedBy)
	if err != nil {
		return nil, err
	}
	r.Locked = true
	return &r, nil
}

const lineCols = `user_id, user_name, breakfast_count, lunch_count, dinner_count, guest_units,
	total_units, amount_due, total_deposits, balance`

func scanLine(scanner interface{ Scan(...any) error }, extra ...any) (*model.ReportLine, error) {
	var l model.ReportLine
	dest := append(extra, &l.UserID, &l.UserName, &l.BreakfastCount, &l.LunchCount, &l.DinnerCount,
		&l.GuestUnits, &l.TotalUnits, &l.AmountDue, &l.TotalDeposits, &l.Balance)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateUnique writes the report with its breakdown and lines. A second
// report for the same month fails with apperr.ErrAlreadyClosed.
func (s *ReportStore) CreateUnique(ctx context.Context, r *model.Report) error {
	return inTx(ctx, s.db, func(q DBTX) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO monthly_reports (`+reportCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Month, r.Year, r.MonthName, r.Weighting, r.TotalUnits, r.TotalExpenses, r.CostPerUnit,
			r.ClosedAt.UTC(), r.ClosedBy,
		)
		if isUniqueViolation(err) {
			return apperr.Wrap(apperr.ErrAlreadyClosed, err)
		}
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		for _, c := range model.Categories {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO report_breakdown (month, category, amount) VALUES (?, ?, ?)`,
				r.Month, c, r.Breakdown[c],
			); err != nil {
				return fmt.Errorf("insert report breakdown: %w", err)
			}
		}

		for i, l := range r.Lines {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO report_lines (month, `+lineCols+`, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.Month, l.UserID, l.UserName, l.BreakfastCount, l.LunchCount, l.DinnerCount, l.GuestUnits,
				l.TotalUnits, l.AmountDue, l.TotalDeposits, l.Balance, i,
			); err != nil {
				return fmt.Errorf("insert report line: %w", err)
			}
		}
		return nil
	})
}

// FindByMonth returns the report for m, or nil when the month is open.
func (s *ReportStore) FindByMonth(ctx context.Context, m month.Key) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportCols+` FROM monthly_reports WHERE month = ?`, m)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if err := s.loadDetails(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns every report, most recent month first.
func (s *ReportStore) List(ctx context.Context) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportCols+` FROM monthly_reports ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	var reports []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range reports {
		if err := s.loadDetails(ctx, &reports[i]); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// Status reports whether m is closed and when.
func (s *ReportStore) Status(ctx context.Context, m month.Key) (*model.MonthStatus, error) {
	st := &model.MonthStatus{Month: m}
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT closed_at FROM monthly_reports WHERE month = ?`, m).Scan(&closedAt)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("month status: %w", err)
	}
	st.IsClosed = true
	if closedAt.Valid {
		st.ClosedAt = &closedAt.Time
	}
	return st, nil
}

// HistoryForUser returns userID's line from every closed month, newest first.
func (s *ReportStore) HistoryForUser(ctx context.Context, userID int64) ([]model.UserReportEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.month, r.month_name, r.cost_per_unit, r.closed_at,
		        l.user_id, l.user_name, l.breakfast_count, l.lunch_count, l.dinner_count, l.guest_units,
		        l.total_units, l.amount_due, l.total_deposits, l.balance
		 FROM report_lines l JOIN monthly_reports r ON r.month = l.month
		 WHERE l.user_id = ?
		 ORDER BY r.month DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("user report history: %w", err)
	}
	defer rows.Close()

	var entries []model.UserReportEntry
	for rows.Next() {
		var e model.UserReportEntry
		l, err := scanLine(rows, &e.Month, &e.MonthName, &e.CostPerUnit, &e.ClosedAt)
		if err != nil {
			return nil, fmt.Errorf("scan report history: %w", err)
		}
		e.Line = *l
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *ReportStore) loadDetails(ctx context.Context, r *model.Report) error {
	r.Breakdown = model.NewBreakdown()
	rows, err := s.db.QueryContext(ctx, `SELECT category, amount FROM report_breakdown WHERE month = ?`, r.Month)
	if err != nil {
		return fmt.Errorf("get report breakdown: %w", err)
	}
	for rows.Next() {
		var c model.ExpenseCategory
		var amount decimal.Decimal
		if err := rows.Scan(&c, &amount); err != nil {
			rows.Close()
			return fmt.Errorf("scan report breakdown: %w", err)
		}
		r.Breakdown[c] = amount
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT `+lineCols+` FROM report_lines WHERE month = ? ORDER BY position ASC`, r.Month)
	if err != nil {
		return fmt.Errorf("get report lines: %w", err)
	}
	defer rows.Close()

	r.Lines = []model.ReportLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return fmt.Errorf("scan report line: %w", err)
		}
		r.Lines = append(r.Lines, *l)
	}
	return rows.Err()
}
