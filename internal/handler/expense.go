package handler

import (
	"net/http"
	"strings"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/category"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/store"
	"github.com/dukerupert/messledger/internal/websocket"
	"github.com/shopspring/decimal"
)

type ExpenseHandler struct {
	Common
	expenses *store.ExpenseStore
}

func NewExpenseHandler(es *store.ExpenseStore, c Common) *ExpenseHandler {
	return &ExpenseHandler{Common: c, expenses: es}
}

type expenseRequest struct {
	Category    model.ExpenseCategory `json:"category"`
	Amount      decimal.Decimal       `json:"amount"`
	Date        string                `json:"date"`
	Description string                `json:"description"`
}

func (h *ExpenseHandler) input(req expenseRequest) (store.ExpenseInput, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return store.ExpenseInput{}, apperr.Validation("description is required")
	}
	if err := checkAmount(req.Amount); err != nil {
		return store.ExpenseInput{}, err
	}
	// Auto-categorize if no category provided
	if req.Category == "" {
		req.Category = category.Infer(req.Description)
	}
	if !req.Category.Valid() {
		return store.ExpenseInput{}, apperr.Validation("invalid category")
	}
	date, err := parseDate(req.Date, h.now())
	if err != nil {
		return store.ExpenseInput{}, err
	}
	return store.ExpenseInput{
		Category:    req.Category,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
	}, nil
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}

	e, err := h.expenses.Create(r.Context(), in, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	h.broadcast(websocket.NewMessage("expense", "created", e.ID, e.Month))
	writeJSON(w, http.StatusCreated, e)
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	e, err := h.expenses.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	if e == nil {
		h.fail(w, r, "expense", apperr.NotFound("expense"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	var f model.ExpenseFilter
	var err error
	if f.Month, err = queryMonth(r); err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	if c := model.ExpenseCategory(r.URL.Query().Get("category")); c != "" {
		if !c.Valid() {
			h.fail(w, r, "expense", apperr.Validation("invalid category"))
			return
		}
		f.Category = &c
	}

	expenses, err := h.expenses.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	existing, err := h.expenses.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "expense", apperr.NotFound("expense"))
		return
	}

	req := expenseRequest{
		Category:    existing.Category,
		Amount:      existing.Amount,
		Date:        existing.Date.Format(dateLayout),
		Description: existing.Description,
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}

	e, err := h.expenses.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	h.broadcast(websocket.NewMessage("expense", "updated", e.ID, e.Month))
	writeJSON(w, http.StatusOK, e)
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	existing, err := h.expenses.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "expense", apperr.NotFound("expense"))
		return
	}
	if err := h.expenses.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	h.broadcast(websocket.NewMessage("expense", "deleted", id, existing.Month))
	w.WriteHeader(http.StatusNoContent)
}

// Summary totals a month's expenses per category, defaulting to the
// current month.
func (h *ExpenseHandler) Summary(w http.ResponseWriter, r *http.Request) {
	m, err := queryMonthOr(r, h.now())
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	sum, err := h.expenses.Summary(r.Context(), m)
	if err != nil {
		h.fail(w, r, "expense", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
