// Package settlement closes a billing month: it allocates the month's shared
// expenses across members by meal consumption, freezes the result as a
// report and locks every record the report was computed from.
package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

type UserDirectory interface {
	ListActive(ctx context.Context) ([]model.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]model.User, error)
}

type MealStore interface {
	FindByMonth(ctx context.Context, m month.Key) ([]model.Meal, error)
	LockAll(ctx context.Context, m month.Key) (int64, error)
}

type DepositStore interface {
	FindByMonth(ctx context.Context, m month.Key) ([]model.Deposit, error)
	LockAll(ctx context.Context, m month.Key) (int64, error)
}

type ExpenseStore interface {
	FindByMonth(ctx context.Context, m month.Key) ([]model.Expense, error)
	LockAll(ctx context.Context, m month.Key) (int64, error)
}

type ReportStore interface {
	FindByMonth(ctx context.Context, m month.Key) (*model.Report, error)
	CreateUnique(ctx context.Context, r *model.Report) error
}

// Stores are the collaborators a settlement reads and writes.
type Stores struct {
	Users    UserDirectory
	Meals    MealStore
	Deposits DepositStore
	Expenses ExpenseStore
	Reports  ReportStore
}

// Runner hands out Stores. Everything done inside one Write call commits or
// rolls back together.
type Runner interface {
	Read(ctx context.Context, fn func(Stores) error) error
	Write(ctx context.Context, fn func(Stores) error) error
}

// Observer is told how every close attempt ended.
type Observer interface {
	ObserveClose(outcome string, elapsed time.Duration)
}

// Hook runs after a close has committed. It cannot undo the close.
type Hook func(ctx context.Context, r *model.Report)

type Engine struct {
	runner    Runner
	weighting model.Weighting
	now       func() time.Time
	observer  Observer
	hooks     []Hook
	logger    *slog.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithHooks registers functions run, in order, after each successful close.
func WithHooks(hooks ...Hook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, hooks...) }
}

func NewEngine(runner Runner, weighting model.Weighting, logger *slog.Logger, opts ...Option) *Engine {
	if weighting == "" {
		weighting = model.WeightingUnit
	}
	e := &Engine{
		runner:    runner,
		weighting: weighting,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Weighting() model.Weighting {
	return e.weighting
}

// Stats are the raw month totals shown by a validation.
type Stats struct {
	MealCount     int             `json:"meal_count"`
	TotalMeals    decimal.Decimal `json:"total_meals"`
	ExpenseCount  int             `json:"expense_count"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	DepositCount  int             `json:"deposit_count"`
	TotalDeposits decimal.Decimal `json:"total_deposits"`
}

// ValidationResult says whether a month can be closed. Errors block the
// close; warnings do not.
type ValidationResult struct {
	Month    month.Key `json:"month"`
	Valid    bool      `json:"valid"`
	Stats    Stats     `json:"stats"`
	Warnings []string  `json:"warnings"`
	Errors   []string  `json:"errors"`
}

// Validate previews a close of m without writing anything. It fails with
// apperr.ErrAlreadyClosed when m already has a report.
func (e *Engine) Validate(ctx context.Context, m month.Key) (*ValidationResult, error) {
	if m.IsZero() {
		return nil, apperr.ErrInvalidMonth
	}

	res := &ValidationResult{Month: m, Warnings: []string{}, Errors: []string{}}
	err := e.runner.Read(ctx, func(s Stores) error {
		existing, err := s.Reports.FindByMonth(ctx, m)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.ErrAlreadyClosed
		}

		meals, err := s.Meals.FindByMonth(ctx, m)
		if err != nil {
			return err
		}
		deposits, err := s.Deposits.FindByMonth(ctx, m)
		if err != nil {
			return err
		}
		expenses, err := s.Expenses.FindByMonth(ctx, m)
		if err != nil {
			return err
		}

		totals := Sum(e.weighting, meals, deposits, expenses)
		res.Stats = Stats{
			MealCount:     len(meals),
			TotalMeals:    totals.Units,
			ExpenseCount:  len(expenses),
			TotalExpenses: totals.Expenses.Round(2),
			DepositCount:  len(deposits),
			TotalDeposits: totals.Deposits.Round(2),
		}

		if len(meals) == 0 {
			res.Errors = append(res.Errors, "No meals recorded for this month")
		}
		if len(expenses) == 0 {
			res.Errors = append(res.Errors, "No expenses recorded for this month")
		}
		if !totals.Expenses.IsPositive() {
			res.Errors = append(res.Errors, "Total expenses is zero")
		}
		if len(meals) > 0 && !totals.Units.IsPositive() {
			res.Errors = append(res.Errors, "Total consumption units is zero")
		}
		if len(deposits) == 0 {
			res.Warnings = append(res.Warnings, "No deposits recorded for this month")
		}
		if m.IsCurrentOrFuture(e.now()) {
			res.Warnings = append(res.Warnings, "Month has not ended yet")
		}
		if pending := countPending(deposits); pending > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d deposit(s) pending approval will not be counted", pending))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Valid = len(res.Errors) == 0
	return res, nil
}

// Close settles m and locks its records. The report write and the three lock
// sweeps commit as one unit; a second close of the same month fails with
// apperr.ErrAlreadyClosed.
func (e *Engine) Close(ctx context.Context, m month.Key, closedBy int64) (*model.Report, error) {
	start := e.now()
	report, err := e.close(ctx, m, closedBy, start)
	if e.observer != nil {
		outcome := "closed"
		if err != nil {
			outcome = apperr.CodeOf(err)
		}
		e.observer.ObserveClose(outcome, e.now().Sub(start))
	}
	if err != nil {
		e.logger.Warn("close month refused", "month", m.String(), "code", apperr.CodeOf(err), "error", err)
		return nil, err
	}

	for _, hook := range e.hooks {
		hook(ctx, report)
	}
	return report, nil
}

func (e *Engine) close(ctx context.Context, m month.Key, closedBy int64, at time.Time) (*model.Report, error) {
	if m.IsZero() {
		return nil, apperr.ErrInvalidMonth
	}

	var report *model.Report
	err := e.runner.Write(ctx, func(s Stores) error {
		existing, err := s.Reports.FindByMonth(ctx, m)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.ErrAlreadyClosed
		}

		in, err := e.load(ctx, s, m)
		if err != nil {
			return err
		}
		r, err := Compute(in)
		if err != nil {
			return err
		}
		r.ClosedAt = at.UTC()
		r.ClosedBy = closedBy

		if err := s.Reports.CreateUnique(ctx, r); err != nil {
			return err
		}

		meals, err := s.Meals.LockAll(ctx, m)
		if err != nil {
			return err
		}
		deposits, err := s.Deposits.LockAll(ctx, m)
		if err != nil {
			return err
		}
		expenses, err := s.Expenses.LockAll(ctx, m)
		if err != nil {
			return err
		}

		e.logger.Info("month closed",
			"month", m.String(),
			"lines", len(r.Lines),
			"total_units", r.TotalUnits.String(),
			"cost_per_unit", r.CostPerUnit.String(),
			"locked_meals", meals,
			"locked_deposits", deposits,
			"locked_expenses", expenses,
		)
		report = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (e *Engine) load(ctx context.Context, s Stores, m month.Key) (Input, error) {
	in := Input{Month: m, Weighting: e.weighting, Members: make(map[int64]model.User)}

	active, err := s.Users.ListActive(ctx)
	if err != nil {
		return in, err
	}
	for _, u := range active {
		in.Members[u.ID] = u
	}

	if in.Meals, err = s.Meals.FindByMonth(ctx, m); err != nil {
		return in, err
	}
	if in.Deposits, err = s.Deposits.FindByMonth(ctx, m); err != nil {
		return in, err
	}
	if in.Expenses, err = s.Expenses.FindByMonth(ctx, m); err != nil {
		return in, err
	}

	var missing []int64
	for _, id := range Participants(in.Meals, in.Deposits) {
		if _, ok := in.Members[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		others, err := s.Users.GetByIDs(ctx, missing)
		if err != nil {
			return in, err
		}
		for id, u := range others {
			// Inactive members only take part through their records.
			u.Active = false
			in.Members[id] = u
		}
	}
	return in, nil
}

func countPending(deposits []model.Deposit) int {
	n := 0
	for _, d := range deposits {
		if d.Status == model.DepositPending {
			n++
		}
	}
	return n
}
