package settlement

import (
	"sort"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

// unknownName labels a member whose directory entry has vanished.
const unknownName = "Unknown"

// divisionPlaces bounds intermediate quotients. Rounding to cents happens
// only on the values written to the report.
const divisionPlaces = 16

var (
	halfUnit = decimal.New(5, -1)
	oneUnit  = decimal.NewFromInt(1)
)

// Units returns the consumption units one meal record contributes.
func Units(w model.Weighting, mealType model.MealType, guests int) decimal.Decimal {
	weight := oneUnit
	if w == model.WeightingSlot && mealType == model.MealBreakfast {
		weight = halfUnit
	}
	return weight.Mul(decimal.NewFromInt(int64(1 + guests)))
}

// Input is everything a month's settlement is computed from.
type Input struct {
	Month     month.Key
	Weighting model.Weighting
	// Members maps every participant's ID to its directory entry. Active
	// members are participants even without activity.
	Members  map[int64]model.User
	Meals    []model.Meal
	Deposits []model.Deposit
	Expenses []model.Expense
}

// Totals are the month-wide sums, unrounded.
type Totals struct {
	Expenses  decimal.Decimal
	Units     decimal.Decimal
	Deposits  decimal.Decimal
	Breakdown model.Breakdown
}

// Sum adds up expenses, consumption units and approved deposits.
func Sum(w model.Weighting, meals []model.Meal, deposits []model.Deposit, expenses []model.Expense) Totals {
	t := Totals{
		Expenses:  decimal.Zero,
		Units:     decimal.Zero,
		Deposits:  decimal.Zero,
		Breakdown: model.NewBreakdown(),
	}
	for _, e := range expenses {
		t.Expenses = t.Expenses.Add(e.Amount)
		t.Breakdown.Add(e.Category, e.Amount)
	}
	for _, m := range meals {
		t.Units = t.Units.Add(Units(w, m.MealType, m.GuestCount))
	}
	for _, d := range deposits {
		if d.Status == model.DepositApproved {
			t.Deposits = t.Deposits.Add(d.Amount)
		}
	}
	return t
}

// Participants returns the IDs of every member with a meal or deposit record
// in the month, whatever the deposit status, in ascending order.
func Participants(meals []model.Meal, deposits []model.Deposit) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, m := range meals {
		add(m.UserID)
	}
	for _, d := range deposits {
		add(d.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type tally struct {
	line     model.ReportLine
	units    decimal.Decimal
	deposits decimal.Decimal
}

// Compute allocates the month's expenses across participants in proportion
// to their consumption units. It fails with apperr.ErrZeroExpenses or
// apperr.ErrZeroMeals when there is nothing to allocate. The returned report
// carries no close time or closer.
func Compute(in Input) (*model.Report, error) {
	totals := Sum(in.Weighting, in.Meals, in.Deposits, in.Expenses)
	if !totals.Expenses.IsPositive() {
		return nil, apperr.ErrZeroExpenses
	}
	if !totals.Units.IsPositive() {
		return nil, apperr.ErrZeroMeals
	}

	tallies := make(map[int64]*tally)
	get := func(userID int64) *tally {
		t, ok := tallies[userID]
		if !ok {
			name := unknownName
			if u, found := in.Members[userID]; found {
				name = u.Name
			}
			t = &tally{
				line:     model.ReportLine{UserID: userID, UserName: name},
				units:    decimal.Zero,
				deposits: decimal.Zero,
			}
			tallies[userID] = t
		}
		return t
	}

	for _, u := range in.Members {
		if u.Active {
			get(u.ID)
		}
	}
	for _, m := range in.Meals {
		t := get(m.UserID)
		switch m.MealType {
		case model.MealBreakfast:
			t.line.BreakfastCount++
		case model.MealLunch:
			t.line.LunchCount++
		case model.MealDinner:
			t.line.DinnerCount++
		}
		t.line.GuestUnits += m.GuestCount
		t.units = t.units.Add(Units(in.Weighting, m.MealType, m.GuestCount))
	}
	for _, d := range in.Deposits {
		t := get(d.UserID)
		if d.Status == model.DepositApproved {
			t.deposits = t.deposits.Add(d.Amount)
		}
	}

	lines := make([]model.ReportLine, 0, len(tallies))
	for _, t := range tallies {
		due := totals.Expenses.Mul(t.units).DivRound(totals.Units, divisionPlaces)
		l := t.line
		l.TotalUnits = t.units
		l.AmountDue = due.Round(2)
		l.TotalDeposits = t.deposits.Round(2)
		// Balance is taken from the stored figures so the line always adds up.
		l.Balance = l.AmountDue.Sub(l.TotalDeposits)
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].UserName != lines[j].UserName {
			return lines[i].UserName < lines[j].UserName
		}
		return lines[i].UserID < lines[j].UserID
	})

	breakdown := model.NewBreakdown()
	for c, amount := range totals.Breakdown {
		breakdown[c] = amount.Round(2)
	}

	return &model.Report{
		Month:         in.Month,
		Year:          in.Month.Year,
		MonthName:     in.Month.Name(),
		Weighting:     in.Weighting,
		TotalUnits:    totals.Units,
		TotalExpenses: totals.Expenses.Round(2),
		CostPerUnit:   totals.Expenses.DivRound(totals.Units, divisionPlaces).Round(2),
		Breakdown:     breakdown,
		Lines:         lines,
		Locked:        true,
	}, nil
}
