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
)

type MealStore struct {
	db DBTX
}

func NewMealStore(db DBTX) *MealStore {
	return &MealStore{db: db}
}

type MealInput struct {
	UserID     int64
	Date       time.Time
	MealType   model.MealType
	GuestCount int
}

func scanMeal(scanner interface{ Scan(...any) error }) (*model.Meal, error) {
	var m model.Meal
	var date string
	var locked int
	var updatedBy sql.NullInt64

	err := scanner.Scan(&m.ID, &m.UserID, &m.UserName, &date, &m.MealType, &m.GuestCount,
		&m.Month, &locked, &m.CreatedBy, &updatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if m.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	m.Locked = locked != 0
	if updatedBy.Valid {
		m.UpdatedBy = &updatedBy.Int64
	}
	return &m, nil
}

const mealCols = `m.id, m.user_id, COALESCE(u.name, ''), m.date, m.meal_type, m.guest_count,
	m.month, m.locked, m.created_by, m.updated_by, m.created_at, m.updated_at`

const mealFrom = ` FROM meals m LEFT JOIN users u ON u.id = m.user_id`

// Create records a meal. It fails with a conflict when the month is closed
// or the member already has this meal type on that date.
func (s *MealStore) Create(ctx context.Context, in MealInput, createdBy int64) (*model.Meal, error) {
	target := month.Of(in.Date)
	var id int64

	err := inTx(ctx, s.db, func(q DBTX) error {
		if err := guardWrite(ctx, q, nil, target); err != nil {
			return err
		}
		now := time.Now().UTC()
		result, err := q.ExecContext(ctx,
			`INSERT INTO meals (user_id, date, meal_type, guest_count, month, created_by, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.UserID, formatDate(in.Date), in.MealType, in.GuestCount, target, createdBy, now, now,
		)
		if isUniqueViolation(err) {
			return apperr.ErrDuplicateMeal
		}
		if err != nil {
			return fmt.Errorf("insert meal: %w", err)
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

func (s *MealStore) GetByID(ctx context.Context, id int64) (*model.Meal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mealCols+mealFrom+` WHERE m.id = ?`, id)
	m, err := scanMeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return m, nil
}

// List returns meals matching the filter, newest first.
func (s *MealStore) List(ctx context.Context, f model.MealFilter) ([]model.Meal, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		where = append(where, "m.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Month != nil {
		where = append(where, "m.month = ?")
		args = append(args, *f.Month)
	}
	if f.From != nil {
		where = append(where, "m.date >= ?")
		args = append(args, formatDate(*f.From))
	}
	if f.To != nil {
		where = append(where, "m.date <= ?")
		args = append(args, formatDate(*f.To))
	}

	q := `SELECT ` + mealCols + mealFrom
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY m.date DESC, m.id DESC`
	return s.query(ctx, q, args...)
}

// FindByMonth returns every meal of the month in insertion order.
func (s *MealStore) FindByMonth(ctx context.Context, m month.Key) ([]model.Meal, error) {
	return s.query(ctx, `SELECT `+mealCols+mealFrom+` WHERE m.month = ? ORDER BY m.id ASC`, m)
}

func (s *MealStore) Update(ctx context.Context, id int64, in MealInput, updatedBy int64) (*model.Meal, error) {
	err := inTx(ctx, s.db, func(q DBTX) error {
		state, err := mealLockState(ctx, q, id)
		if err != nil {
			return err
		}
		target := month.Of(in.Date)
		if err := guardWrite(ctx, q, state, target); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx,
			`UPDATE meals SET date = ?, meal_type = ?, guest_count = ?, month = ?, updated_by = ?, updated_at = ?
			 WHERE id = ?`,
			formatDate(in.Date), in.MealType, in.GuestCount, target, updatedBy, time.Now().UTC(), id,
		)
		if isUniqueViolation(err) {
			return apperr.ErrDuplicateMeal
		}
		if err != nil {
			return fmt.Errorf("update meal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *MealStore) Delete(ctx context.Context, id int64) error {
	return inTx(ctx, s.db, func(q DBTX) error {
		state, err := mealLockState(ctx, q, id)
		if err != nil {
			return err
		}
		if err := guardWrite(ctx, q, state, state.Month); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete meal: %w", err)
		}
		return nil
	})
}

// LockAll marks every meal of the month read-only. Locking an already
// locked month is a no-op.
func (s *MealStore) LockAll(ctx context.Context, m month.Key) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE meals SET locked = 1 WHERE month = ? AND locked = 0`, m)
	if err != nil {
		return 0, fmt.Errorf("lock meals: %w", err)
	}
	return result.RowsAffected()
}

// Stats counts a member's meals for the month.
func (s *MealStore) Stats(ctx context.Context, userID int64, m month.Key) (*model.MealStats, error) {
	stats := &model.MealStats{Month: m, UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(meal_type = 'breakfast'), 0),
		        COALESCE(SUM(meal_type = 'lunch'), 0),
		        COALESCE(SUM(meal_type = 'dinner'), 0),
		        COALESCE(SUM(guest_count), 0)
		 FROM meals WHERE user_id = ? AND month = ?`,
		userID, m,
	).Scan(&stats.Breakfast, &stats.Lunch, &stats.Dinner, &stats.GuestMeals)
	if err != nil {
		return nil, fmt.Errorf("meal stats: %w", err)
	}
	stats.Total = stats.Breakfast + stats.Lunch + stats.Dinner + stats.GuestMeals
	return stats, nil
}

// DailySummary counts every member's meals on one date.
func (s *MealStore) DailySummary(ctx context.Context, date time.Time) (*model.DailyMealSummary, error) {
	sum := &model.DailyMealSummary{Date: formatDate(date)}
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(meal_type = 'breakfast'), 0),
		        COALESCE(SUM(meal_type = 'lunch'), 0),
		        COALESCE(SUM(meal_type = 'dinner'), 0),
		        COALESCE(SUM(guest_count), 0)
		 FROM meals WHERE date = ?`,
		formatDate(date),
	).Scan(&sum.Breakfast, &sum.Lunch, &sum.Dinner, &sum.Guests)
	if err != nil {
		return nil, fmt.Errorf("daily meal summary: %w", err)
	}
	sum.Total = sum.Breakfast + sum.Lunch + sum.Dinner + sum.Guests
	return sum, nil
}

func mealLockState(ctx context.Context, q DBTX, id int64) (*lockState, error) {
	var st lockState
	var locked int
	err := q.QueryRowContext(ctx, `SELECT locked, month FROM meals WHERE id = ?`, id).Scan(&locked, &st.Month)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("meal")
	}
	if err != nil {
		return nil, fmt.Errorf("get meal lock: %w", err)
	}
	st.Locked = locked != 0
	return &st, nil
}

func (s *MealStore) query(ctx context.Context, q string, args ...any) ([]model.Meal, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	defer rows.Close()

	var meals []model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, *m)
	}
	return meals, rows.Err()
}
