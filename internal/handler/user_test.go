package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/dukerupert/messledger/internal/model"
)

func TestUserCreateAndList(t *testing.T) {
	env := newEnv(t)
	h := NewUserHandler(env.ledger.Users, env.common)

	rec := call(t, h.Create, env.admin, "POST", "/api/users", map[string]string{"name": " Dipu ", "email": "dipu@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	u := decodeBody[model.User](t, rec)
	if u.Name != "Dipu" || u.Role != model.RoleMember || !u.Active {
		t.Errorf("created = %+v", u)
	}

	rec = call(t, h.Create, env.admin, "POST", "/api/users", map[string]string{"name": "X", "role": "owner"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid role status = %d, want 400", rec.Code)
	}

	rec = call(t, h.List, env.admin, "GET", "/api/users", nil)
	if users := decodeBody[[]model.User](t, rec); len(users) != 4 {
		t.Errorf("listed %d users, want 4", len(users))
	}
}

func TestUserDeactivate(t *testing.T) {
	env := newEnv(t)
	h := NewUserHandler(env.ledger.Users, env.common)
	id := strconv.FormatInt(env.alice.ID, 10)

	rec := call(t, h.Deactivate, env.admin, "DELETE", "/api/users/"+id, nil, "id", id)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate status = %d: %s", rec.Code, rec.Body)
	}

	rec = call(t, h.ListActive, env.admin, "GET", "/api/users/active", nil)
	for _, u := range decodeBody[[]model.User](t, rec) {
		if u.ID == env.alice.ID {
			t.Error("deactivated user listed as active")
		}
	}

	self := strconv.FormatInt(env.admin.ID, 10)
	rec = call(t, h.Deactivate, env.admin, "DELETE", "/api/users/"+self, nil, "id", self)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self deactivate status = %d, want 400", rec.Code)
	}
}

func TestUserUpdatePartial(t *testing.T) {
	env := newEnv(t)
	h := NewUserHandler(env.ledger.Users, env.common)
	id := strconv.FormatInt(env.alice.ID, 10)

	rec := call(t, h.Update, env.admin, "PUT", "/api/users/"+id, map[string]string{"role": "manager"}, "id", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body)
	}
	u := decodeBody[model.User](t, rec)
	if u.Name != "Alice" || u.Role != model.RoleManager {
		t.Errorf("updated = %+v", u)
	}

	rec = call(t, h.Get, env.admin, "GET", "/api/users/999", nil, "id", "999")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}
}
