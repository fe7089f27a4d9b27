package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/month"
)

// lockState is the lock-relevant part of an existing record.
type lockState struct {
	Locked bool
	Month  month.Key
}

// guardWrite is the single gate for every meal, deposit and expense write.
// existing is nil for inserts. target is the month the record will carry
// after the write. It must run inside the write's transaction.
func guardWrite(ctx context.Context, q DBTX, existing *lockState, target month.Key) error {
	if existing != nil {
		if existing.Locked {
			return apperr.Locked(existing.Month.String())
		}
		if existing.Month != target {
			if err := checkMonthOpen(ctx, q, existing.Month); err != nil {
				return err
			}
		}
	}
	return checkMonthOpen(ctx, q, target)
}

// checkMonthOpen refuses a month that has a report or any locked record.
func checkMonthOpen(ctx context.Context, q DBTX, m month.Key) error {
	var closed bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM monthly_reports WHERE month = ?)
		     OR EXISTS (SELECT 1 FROM meals WHERE month = ? AND locked = 1)
		     OR EXISTS (SELECT 1 FROM deposits WHERE month = ? AND locked = 1)
		     OR EXISTS (SELECT 1 FROM expenses WHERE month = ? AND locked = 1)`,
		m, m, m, m,
	).Scan(&closed)
	if err != nil {
		return fmt.Errorf("check month lock: %w", err)
	}
	if closed {
		return apperr.Locked(m.String())
	}
	return nil
}

// MonthOpen reports whether records may still be written for m.
func MonthOpen(ctx context.Context, q DBTX, m month.Key) (bool, error) {
	err := checkMonthOpen(ctx, q, m)
	if err == nil {
		return true, nil
	}
	if apperr.KindOf(err) == apperr.KindConflict {
		return false, nil
	}
	return false, err
}
