package model

import (
	"time"

	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

type ExpenseCategory string

const (
	CategoryGrocery     ExpenseCategory = "grocery"
	CategoryElectricity ExpenseCategory = "electricity"
	CategoryGas         ExpenseCategory = "gas"
	CategoryWater       ExpenseCategory = "water"
	CategoryCleaning    ExpenseCategory = "cleaning"
	CategoryOther       ExpenseCategory = "other"
)

// Categories lists every expense category in display order.
var Categories = []ExpenseCategory{
	CategoryGrocery,
	CategoryElectricity,
	CategoryGas,
	CategoryWater,
	CategoryCleaning,
	CategoryOther,
}

func (c ExpenseCategory) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Bucket returns c, or CategoryOther for anything unrecognised.
func (c ExpenseCategory) Bucket() ExpenseCategory {
	if c.Valid() {
		return c
	}
	return CategoryOther
}

type Expense struct {
	ID          int64           `json:"id"`
	Category    ExpenseCategory `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Month       month.Key       `json:"month"`
	Description string          `json:"description"`
	AddedBy     int64           `json:"added_by"`
	Locked      bool            `json:"locked"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ExpenseFilter struct {
	Month    *month.Key
	Category *ExpenseCategory
}

// Breakdown is a per-category total with every category present.
type Breakdown map[ExpenseCategory]decimal.Decimal

func NewBreakdown() Breakdown {
	b := make(Breakdown, len(Categories))
	for _, c := range Categories {
		b[c] = decimal.Zero
	}
	return b
}

// Add accumulates amount under category, folding unknown categories into other.
func (b Breakdown) Add(category ExpenseCategory, amount decimal.Decimal) {
	key := category.Bucket()
	b[key] = b[key].Add(amount)
}

type ExpenseSummary struct {
	Month     month.Key       `json:"month"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
	Breakdown Breakdown       `json:"category_breakdown"`
}
