package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dukerupert/messledger/internal/model"
	"github.com/shopspring/decimal"
)

func TestDepositRequestApprove(t *testing.T) {
	env := newEnv(t)
	h := NewDepositHandler(env.ledger.Deposits, env.ledger.Users, env.common)

	rec := call(t, h.Request, env.alice, "POST", "/api/deposits/request", map[string]any{"amount": "500", "payment_method": "bkash"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("request status = %d: %s", rec.Code, rec.Body)
	}
	d := decodeBody[model.Deposit](t, rec)
	if d.Status != model.DepositPending || d.UserID != env.alice.ID {
		t.Errorf("requested = %+v", d)
	}
	id := strconv.FormatInt(d.ID, 10)

	rec = call(t, h.Approve, env.bob, "POST", "/api/deposits/"+id+"/approve", nil, "id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body)
	}
	if d := decodeBody[model.Deposit](t, rec); d.Status != model.DepositApproved {
		t.Errorf("status = %s, want approved", d.Status)
	}

	rec = call(t, h.Reject, env.bob, "POST", "/api/deposits/"+id+"/reject", nil, "id", id)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reject approved status = %d, want 400", rec.Code)
	}

	rec = call(t, h.Summary, env.alice, "GET", "/api/deposits/summary?month=2024-03", nil)
	sum := decodeBody[model.DepositSummary](t, rec)
	if !sum.Total.Equal(decimal.NewFromInt(500)) || sum.Count != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestDepositCreateValidation(t *testing.T) {
	env := newEnv(t)
	h := NewDepositHandler(env.ledger.Deposits, env.ledger.Users, env.common)

	rec := call(t, h.Create, env.bob, "POST", "/api/deposits", map[string]any{"user_id": env.alice.ID, "amount": 300})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	d := decodeBody[model.Deposit](t, rec)
	if d.Status != model.DepositApproved || d.PaymentMethod != model.PaymentCash {
		t.Errorf("created = %+v", d)
	}

	cases := []map[string]any{
		{"amount": 300},
		{"user_id": env.alice.ID, "amount": "10.005"},
		{"user_id": env.alice.ID, "amount": -5},
		{"user_id": env.alice.ID, "amount": 10, "payment_method": "cheque"},
		{"user_id": 999, "amount": 10},
	}
	for _, body := range cases {
		if rec := call(t, h.Create, env.bob, "POST", "/api/deposits", body); rec.Code != http.StatusBadRequest {
			t.Errorf("create %v status = %d, want 400", body, rec.Code)
		}
	}
}

func TestDepositMemberEditRules(t *testing.T) {
	env := newEnv(t)
	h := NewDepositHandler(env.ledger.Deposits, env.ledger.Users, env.common)

	rec := call(t, h.Request, env.alice, "POST", "/api/deposits/request", map[string]any{"amount": "100"})
	id := strconv.FormatInt(decodeBody[model.Deposit](t, rec).ID, 10)

	rec = call(t, h.Update, env.alice, "PUT", "/api/deposits/"+id, map[string]any{"amount": "150"}, "id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("member update own pending status = %d: %s", rec.Code, rec.Body)
	}
	if d := decodeBody[model.Deposit](t, rec); !d.Amount.Equal(decimal.NewFromInt(150)) || d.Status != model.DepositPending {
		t.Errorf("updated = %+v", d)
	}

	call(t, h.Approve, env.bob, "POST", "/api/deposits/"+id+"/approve", nil, "id", id)

	rec = call(t, h.Update, env.alice, "PUT", "/api/deposits/"+id, map[string]any{"amount": "1"}, "id", id)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member update approved status = %d, want 403", rec.Code)
	}
	rec = call(t, h.Delete, env.alice, "DELETE", "/api/deposits/"+id, nil, "id", id)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member delete approved status = %d, want 403", rec.Code)
	}
	rec = call(t, h.Delete, env.bob, "DELETE", "/api/deposits/"+id, nil, "id", id)
	if rec.Code != http.StatusNoContent {
		t.Errorf("manager delete status = %d, want 204", rec.Code)
	}
}

func TestDepositListAndByMonth(t *testing.T) {
	env := newEnv(t)
	h := NewDepositHandler(env.ledger.Deposits, env.ledger.Users, env.common)
	call(t, h.Create, env.bob, "POST", "/api/deposits", map[string]any{"user_id": env.alice.ID, "amount": 300})
	call(t, h.Request, env.bob, "POST", "/api/deposits/request", map[string]any{"amount": 200})

	rec := call(t, h.List, env.alice, "GET", "/api/deposits", nil)
	if ds := decodeBody[[]model.Deposit](t, rec); len(ds) != 1 || ds[0].UserID != env.alice.ID {
		t.Errorf("member list = %+v", ds)
	}

	rec = call(t, h.List, env.bob, "GET", "/api/deposits?status=pending", nil)
	if ds := decodeBody[[]model.Deposit](t, rec); len(ds) != 1 || ds[0].UserID != env.bob.ID {
		t.Errorf("pending list = %+v", ds)
	}

	rec = call(t, h.ByMonth, env.bob, "GET", "/api/deposits/month/2024-03", nil, "month", "2024-03")
	out := decodeBody[model.MonthDeposits](t, rec)
	if !out.Total.Equal(decimal.NewFromInt(300)) || len(out.Users) != 3 {
		t.Errorf("by month total = %s users = %d", out.Total, len(out.Users))
	}
}
