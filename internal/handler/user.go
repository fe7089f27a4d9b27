package handler

import (
	"net/http"
	"strings"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/dukerupert/messledger/internal/store"
	"github.com/dukerupert/messledger/internal/websocket"
)

type UserHandler struct {
	Common
	users *store.UserStore
}

func NewUserHandler(us *store.UserStore, c Common) *UserHandler {
	return &UserHandler{Common: c, users: us}
}

type userRequest struct {
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Active *bool      `json:"is_active"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "user", err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.fail(w, r, "user", apperr.Validation("name is required"))
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if !req.Role.Valid() {
		h.fail(w, r, "user", apperr.Validation("invalid role"))
		return
	}

	u, err := h.users.Create(r.Context(), req.Name, strings.TrimSpace(req.Email), req.Role)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.broadcast(websocket.NewMessage("user", "created", u.ID, month.Key{}))
	writeJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if u == nil {
		h.fail(w, r, "user", apperr.NotFound("user"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Update changes any of name, email, role and active flag. Closed reports
// keep the name they were settled under.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	existing, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "user", apperr.NotFound("user"))
		return
	}

	var req userRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "user", err)
		return
	}

	name := existing.Name
	if n := strings.TrimSpace(req.Name); n != "" {
		name = n
	}
	email := existing.Email
	if req.Email != "" {
		email = strings.TrimSpace(req.Email)
	}
	role := existing.Role
	if req.Role != "" {
		if !req.Role.Valid() {
			h.fail(w, r, "user", apperr.Validation("invalid role"))
			return
		}
		role = req.Role
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}
	if id == auth.UserID(r.Context()) && (!active || role != model.RoleAdmin) {
		h.fail(w, r, "user", apperr.Validation("cannot demote or deactivate yourself"))
		return
	}

	u, err := h.users.Update(r.Context(), id, name, email, role, active)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.broadcast(websocket.NewMessage("user", "updated", u.ID, month.Key{}))
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if id == auth.UserID(r.Context()) {
		h.fail(w, r, "user", apperr.Validation("cannot deactivate yourself"))
		return
	}
	existing, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "user", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "user", apperr.NotFound("user"))
		return
	}
	if err := h.users.SetActive(r.Context(), id, false); err != nil {
		h.fail(w, r, "user", err)
		return
	}
	h.broadcast(websocket.NewMessage("user", "deactivated", id, month.Key{}))
	w.WriteHeader(http.StatusNoContent)
}
