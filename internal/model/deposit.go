package model

import (
	"time"

	"github.com/dukerupert/messledger/internal/month"
	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositApproved DepositStatus = "approved"
	DepositRejected DepositStatus = "rejected"
)

func (s DepositStatus) Valid() bool {
	switch s {
	case DepositPending, DepositApproved, DepositRejected:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentBkash PaymentMethod = "bkash"
	PaymentNagad PaymentMethod = "nagad"
	PaymentBank  PaymentMethod = "bank"
	PaymentOther PaymentMethod = "other"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentBkash, PaymentNagad, PaymentBank, PaymentOther:
		return true
	}
	return false
}

type Deposit struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	UserName      string          `json:"user_name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Month         month.Key       `json:"month"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Note          string          `json:"note"`
	Status        DepositStatus   `json:"status"`
	AddedBy       int64           `json:"added_by"`
	Locked        bool            `json:"locked"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type DepositFilter struct {
	UserID *int64
	Month  *month.Key
	Status *DepositStatus
}

// DepositSummary totals one member's approved deposits for a month.
type DepositSummary struct {
	Month  month.Key       `json:"month"`
	UserID int64           `json:"user_id"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}

type UserDeposits struct {
	UserID   int64           `json:"user_id"`
	UserName string          `json:"user_name"`
	Total    decimal.Decimal `json:"total"`
	Deposits []Deposit       `json:"deposits"`
}

// MonthDeposits groups a month's deposits per member. Every active member is
// listed, with a zero total when they have not paid.
type MonthDeposits struct {
	Month    month.Key       `json:"month"`
	Total    decimal.Decimal `json:"total"`
	Deposits []Deposit       `json:"deposits"`
	Users    []UserDeposits  `json:"user_deposits"`
}
