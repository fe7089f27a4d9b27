package model

import (
	"time"

	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

// Weighting selects how meals convert to consumption units.
type Weighting string

const (
	// WeightingUnit counts every meal slot as one unit plus one per guest.
	WeightingUnit Weighting = "unit"
	// WeightingSlot weighs breakfast at half a unit and lunch/dinner at one,
	// with guests multiplied by the slot weight.
	WeightingSlot Weighting = "slot"
)

func (w Weighting) Valid() bool {
	return w == WeightingUnit || w == WeightingSlot
}

// Report is the immutable settlement of a closed month.
type Report struct {
	Month         month.Key       `json:"month"`
	Year          int             `json:"year"`
	MonthName     string          `json:"month_name"`
	Weighting     Weighting       `json:"weighting"`
	TotalUnits    decimal.Decimal `json:"total_consumption_units"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
	Breakdown     Breakdown       `json:"expense_breakdown"`
	Lines         []ReportLine    `json:"user_lines"`
	ClosedAt      time.Time       `json:"closed_at"`
	ClosedBy      int64           `json:"closed_by"`
	Locked        bool            `json:"locked"`
}

// ReportLine is one member's settlement. A positive balance means the member
// owes the mess.
type ReportLine struct {
	UserID         int64           `json:"user_id"`
	UserName       string          `json:"user_name"`
	BreakfastCount int             `json:"breakfast_count"`
	LunchCount     int             `json:"lunch_count"`
	DinnerCount    int             `json:"dinner_count"`
	GuestUnits     int             `json:"guest_units"`
	TotalUnits     decimal.Decimal `json:"total_units"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	TotalDeposits  decimal.Decimal `json:"total_deposits"`
	Balance        decimal.Decimal `json:"balance"`
}

// LineFor returns the line for userID, if the member took part in the month.
func (r *Report) LineFor(userID int64) (ReportLine, bool) {
	for _, l := range r.Lines {
		if l.UserID == userID {
			return l, true
		}
	}
	return ReportLine{}, false
}

// ForMember returns a copy of r that only carries userID's line.
func (r *Report) ForMember(userID int64) Report {
	out := *r
	out.Lines = []ReportLine{}
	if l, ok := r.LineFor(userID); ok {
		out.Lines = append(out.Lines, l)
	}
	return out
}

type MonthStatus struct {
	Month    month.Key  `json:"month"`
	IsClosed bool       `json:"is_closed"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// UserReportEntry is one closed month in a member's history.
type UserReportEntry struct {
	Month       month.Key       `json:"month"`
	MonthName   string          `json:"month_name"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	ClosedAt    time.Time       `json:"closed_at"`
	Line        ReportLine      `json:"line"`
}
