package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
)

func TestExpenseCRUD(t *testing.T) {
	db := setupTestDB(t)
	es := NewExpenseStore(db)
	ctx := context.Background()
	admin := createUser(t, db, "Admin", model.RoleAdmin)

	e, err := es.Create(ctx, ExpenseInput{
		Category:    model.CategoryGrocery,
		Amount:      dec("3000"),
		Date:        day("2024-03-01"),
		Description: "Rice and lentils",
	}, admin.ID)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if e.Description != "Rice and lentils" {
		t.Errorf("description = %q", e.Description)
	}
	if e.AddedBy != admin.ID {
		t.Errorf("added_by = %d, want %d", e.AddedBy, admin.ID)
	}

	updated, err := es.Update(ctx, e.ID, ExpenseInput{
		Category:    model.CategoryGrocery,
		Amount:      dec("3100"),
		Date:        day("2024-03-02"),
		Description: "Rice, lentils, oil",
	})
	if err != nil {
		t.Fatalf("update expense: %v", err)
	}
	if !updated.Amount.Equal(dec("3100")) {
		t.Errorf("amount = %s, want 3100", updated.Amount)
	}

	cat := model.CategoryGrocery
	list, err := es.List(ctx, model.ExpenseFilter{Category: &cat})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("listed %d, want 1", len(list))
	}

	if err := es.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := es.GetByID(ctx, e.ID); got != nil {
		t.Error("expected nil after delete")
	}
}

func TestExpenseSummaryBucketsUnknownCategory(t *testing.T) {
	db := setupTestDB(t)
	es := NewExpenseStore(db)
	ctx := context.Background()
	admin := createUser(t, db, "Admin", model.RoleAdmin)

	for _, in := range []ExpenseInput{
		{Category: model.CategoryGrocery, Amount: dec("3000"), Date: day("2024-03-01"), Description: "bazar"},
		{Category: model.CategoryWater, Amount: dec("200"), Date: day("2024-03-03"), Description: "water bill"},
		{Category: "internet", Amount: dec("50"), Date: day("2024-03-04"), Description: "wifi"},
	} {
		if _, err := es.Create(ctx, in, admin.ID); err != nil {
			t.Fatalf("create expense: %v", err)
		}
	}

	sum, err := es.Summary(ctx, month.MustParse("2024-03"))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !sum.Total.Equal(dec("3250")) {
		t.Errorf("total = %s, want 3250", sum.Total)
	}
	if sum.Count != 3 {
		t.Errorf("count = %d, want 3", sum.Count)
	}
	if !sum.Breakdown[model.CategoryOther].Equal(dec("50")) {
		t.Errorf("other = %s, want 50", sum.Breakdown[model.CategoryOther])
	}
	if !sum.Breakdown[model.CategoryElectricity].IsZero() {
		t.Error("expected electricity present with zero")
	}
}

func TestExpenseLockEnforcement(t *testing.T) {
	db := setupTestDB(t)
	es := NewExpenseStore(db)
	ctx := context.Background()
	admin := createUser(t, db, "Admin", model.RoleAdmin)

	in := ExpenseInput{Category: model.CategoryGas, Amount: dec("900"), Date: day("2024-03-01"), Description: "gas cylinder"}
	e, err := es.Create(ctx, in, admin.ID)
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if _, err := es.LockAll(ctx, month.MustParse("2024-03")); err != nil {
		t.Fatalf("lock all: %v", err)
	}

	if _, err := es.Update(ctx, e.ID, in); !errors.Is(err, apperr.ErrMonthLocked) {
		t.Errorf("update locked: err = %v, want ErrMonthLocked", err)
	}
	if err := es.Delete(ctx, e.ID); !errors.Is(err, apperr.ErrMonthLocked) {
		t.Errorf("delete locked: err = %v, want ErrMonthLocked", err)
	}
	if _, err := es.Create(ctx, in, admin.ID); !errors.Is(err, apperr.ErrMonthLocked) {
		t.Errorf("create in locked month: err = %v, want ErrMonthLocked", err)
	}
}
