package model

import (
	"time"

	"github.com/dukerupert/messledger/internal/month"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
)

func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	}
	return false
}

// Meal is one meal slot taken by a member on a date. At most one exists per
// (user, date, meal type).
type Meal struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	UserName   string    `json:"user_name,omitempty"`
	Date       time.Time `json:"date"`
	MealType   MealType  `json:"meal_type"`
	GuestCount int       `json:"guest_count"`
	Month      month.Key `json:"month"`
	Locked     bool      `json:"locked"`
	CreatedBy  int64     `json:"created_by"`
	UpdatedBy  *int64    `json:"updated_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type MealFilter struct {
	UserID *int64
	Month  *month.Key
	From   *time.Time
	To     *time.Time
}

// MealStats counts one member's meals in a month. Total counts each guest as
// an extra meal.
type MealStats struct {
	Month      month.Key `json:"month"`
	UserID     int64     `json:"user_id"`
	Breakfast  int       `json:"breakfast"`
	Lunch      int       `json:"lunch"`
	Dinner     int       `json:"dinner"`
	GuestMeals int       `json:"guest_meals"`
	Total      int       `json:"total"`
}

type DailyMealSummary struct {
	Date      string `json:"date"`
	Breakfast int    `json:"breakfast"`
	Lunch     int    `json:"lunch"`
	Dinner    int    `json:"dinner"`
	Guests    int    `json:"guests"`
	Total     int    `json:"total"`
}
