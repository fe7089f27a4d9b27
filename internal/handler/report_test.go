package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/settlement"
	"github.com/shopspring/decimal"
)

type reportEnv struct {
	*testEnv
	meals    *MealHandler
	deposits *DepositHandler
	expenses *ExpenseHandler
	reports  *ReportHandler
}

func newReportEnv(t *testing.T) *reportEnv {
	env := newEnv(t)
	engine := settlement.NewEngine(settlement.NewSQLRunner(env.db), model.WeightingUnit, env.common.Logger,
		settlement.WithClock(env.common.Now))
	return &reportEnv{
		testEnv:  env,
		meals:    NewMealHandler(env.ledger.Meals, env.ledger.Users, env.common),
		deposits: NewDepositHandler(env.ledger.Deposits, env.ledger.Users, env.common),
		expenses: NewExpenseHandler(env.ledger.Expenses, env.common),
		reports:  NewReportHandler(env.ledger.Reports, engine, env.common),
	}
}

// seed records March: Alice two meals, Bob one, expenses of 300 and deposits
// of 250 from Alice and 50 from Bob.
func (e *reportEnv) seed(t *testing.T) {
	t.Helper()
	for _, req := range []struct {
		user *model.User
		body map[string]any
	}{
		{e.alice, map[string]any{"date": "2024-03-01", "meal_type": "lunch"}},
		{e.alice, map[string]any{"date": "2024-03-01", "meal_type": "dinner"}},
		{e.bob, map[string]any{"date": "2024-03-02", "meal_type": "lunch"}},
	} {
		if rec := call(t, e.meals.Create, req.user, "POST", "/api/meals", req.body); rec.Code != http.StatusCreated {
			t.Fatalf("seed meal: %d %s", rec.Code, rec.Body)
		}
	}
	if rec := call(t, e.expenses.Create, e.admin, "POST", "/api/expenses", map[string]any{"description": "Rice", "amount": "300", "date": "2024-03-03"}); rec.Code != http.StatusCreated {
		t.Fatalf("seed expense: %d %s", rec.Code, rec.Body)
	}
	for _, d := range []map[string]any{
		{"user_id": e.alice.ID, "amount": "250", "date": "2024-03-04"},
		{"user_id": e.bob.ID, "amount": "50", "date": "2024-03-04"},
	} {
		if rec := call(t, e.deposits.Create, e.bob, "POST", "/api/deposits", d); rec.Code != http.StatusCreated {
			t.Fatalf("seed deposit: %d %s", rec.Code, rec.Body)
		}
	}
}

func TestReportValidateThenClose(t *testing.T) {
	env := newReportEnv(t)
	env.seed(t)
	body := map[string]string{"month": "2024-03"}

	rec := call(t, env.reports.Validate, env.admin, "POST", "/api/reports/validate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d: %s", rec.Code, rec.Body)
	}
	res := decodeBody[settlement.ValidationResult](t, rec)
	if !res.Valid || res.Stats.MealCount != 3 || !res.Stats.TotalExpenses.Equal(decimal.NewFromInt(300)) {
		t.Errorf("validation = %+v", res)
	}

	rec = call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("close status = %d: %s", rec.Code, rec.Body)
	}
	report := decodeBody[model.Report](t, rec)
	alice, ok := report.LineFor(env.alice.ID)
	if !ok || !alice.AmountDue.Equal(decimal.NewFromInt(200)) || !alice.Balance.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("alice line = %+v", alice)
	}
	bob, _ := report.LineFor(env.bob.ID)
	if !bob.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("bob balance = %s, want 50", bob.Balance)
	}

	rec = call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", body)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "already_closed" {
		t.Errorf("second close status = %d", rec.Code)
	}
	rec = call(t, env.reports.Validate, env.admin, "POST", "/api/reports/validate", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("validate closed status = %d, want 409", rec.Code)
	}
}

func TestReportMemberSeesOwnLine(t *testing.T) {
	env := newReportEnv(t)
	env.seed(t)
	call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", map[string]string{"month": "2024-03"})

	rec := call(t, env.reports.Get, env.alice, "GET", "/api/reports/2024-03", nil, "month", "2024-03")
	report := decodeBody[model.Report](t, rec)
	if len(report.Lines) != 1 || report.Lines[0].UserID != env.alice.ID {
		t.Errorf("member lines = %+v", report.Lines)
	}

	rec = call(t, env.reports.List, env.admin, "GET", "/api/reports", nil)
	reports := decodeBody[[]model.Report](t, rec)
	if len(reports) != 1 || len(reports[0].Lines) != 3 {
		t.Errorf("admin list = %d reports", len(reports))
	}

	rec = call(t, env.reports.Get, env.alice, "GET", "/api/reports/2024-04", nil, "month", "2024-04")
	if rec.Code != http.StatusNotFound {
		t.Errorf("open month report status = %d, want 404", rec.Code)
	}

	id := strconv.FormatInt(env.bob.ID, 10)
	rec = call(t, env.reports.UserHistory, env.alice, "GET", "/api/users/"+id+"/reports", nil, "id", id)
	if rec.Code != http.StatusForbidden {
		t.Errorf("other member history status = %d, want 403", rec.Code)
	}
	rec = call(t, env.reports.UserHistory, env.bob, "GET", "/api/users/"+id+"/reports", nil, "id", id)
	if entries := decodeBody[[]model.UserReportEntry](t, rec); len(entries) != 1 {
		t.Errorf("own history = %d entries, want 1", len(entries))
	}

	rec = call(t, env.reports.Status, env.alice, "GET", "/api/reports/status/2024-03", nil, "month", "2024-03")
	if st := decodeBody[model.MonthStatus](t, rec); !st.IsClosed || st.ClosedAt == nil {
		t.Errorf("status = %+v", st)
	}
}

func TestClosedMonthRefusesWrites(t *testing.T) {
	env := newReportEnv(t)
	env.seed(t)
	call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", map[string]string{"month": "2024-03"})

	rec := call(t, env.meals.Create, env.alice, "POST", "/api/meals", map[string]any{"date": "2024-03-20", "meal_type": "lunch"})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "month_locked" {
		t.Errorf("meal in closed month status = %d", rec.Code)
	}
	rec = call(t, env.expenses.Create, env.admin, "POST", "/api/expenses", map[string]any{"description": "Fish", "amount": "5", "date": "2024-03-20"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expense in closed month status = %d, want 409", rec.Code)
	}
	if env.locks.counts["meal"] != 1 || env.locks.counts["expense"] != 1 {
		t.Errorf("lock refusals = %v", env.locks.counts)
	}

	rec = call(t, env.meals.Create, env.alice, "POST", "/api/meals", map[string]any{"date": "2024-04-01", "meal_type": "lunch"})
	if rec.Code != http.StatusCreated {
		t.Errorf("meal in next month status = %d, want 201", rec.Code)
	}
}

func TestCloseRefusals(t *testing.T) {
	env := newReportEnv(t)

	rec := call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", map[string]string{"month": "2024-13"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "invalid_month" {
		t.Errorf("bad month status = %d", rec.Code)
	}

	call(t, env.meals.Create, env.alice, "POST", "/api/meals", map[string]any{"date": "2024-03-01", "meal_type": "lunch"})
	rec = call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", map[string]string{"month": "2024-03"})
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "zero_expenses" {
		t.Errorf("zero expenses status = %d", rec.Code)
	}

	rec = call(t, env.reports.Validate, env.admin, "POST", "/api/reports/validate", map[string]string{"month": "2024-03"})
	if res := decodeBody[settlement.ValidationResult](t, rec); res.Valid || len(res.Errors) == 0 {
		t.Errorf("validation = %+v, want blocking errors", res)
	}
}

func TestReportZeroExpenseMonth(t *testing.T) {
	env := newReportEnv(t)
	if rec := call(t, env.meals.Create, env.alice, "POST", "/api/meals", map[string]any{"date": "2024-03-01", "meal_type": "lunch"}); rec.Code != http.StatusCreated {
		t.Fatalf("create meal: %d %s", rec.Code, rec.Body)
	}
	rec := call(t, env.expenses.Create, env.admin, "POST", "/api/expenses", map[string]any{"description": "Donated rice", "amount": "0", "date": "2024-03-02"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("zero expense status = %d: %s", rec.Code, rec.Body)
	}
	body := map[string]string{"month": "2024-03"}

	rec = call(t, env.reports.Validate, env.admin, "POST", "/api/reports/validate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d: %s", rec.Code, rec.Body)
	}
	res := decodeBody[settlement.ValidationResult](t, rec)
	if res.Valid {
		t.Error("month with only a zero expense should not be valid")
	}
	if res.Stats.ExpenseCount != 1 {
		t.Errorf("expense count = %d, want 1", res.Stats.ExpenseCount)
	}
	found := false
	for _, e := range res.Errors {
		if e == "Total expenses is zero" {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want total-expenses-zero", res.Errors)
	}

	rec = call(t, env.reports.Close, env.admin, "POST", "/api/reports/close", body)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "zero_expenses" {
		t.Errorf("close status = %d, want 422 zero_expenses", rec.Code)
	}
}
