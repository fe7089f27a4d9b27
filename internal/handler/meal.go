package handler

import (
	"net/http"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/store"
	"github.com/dukerupert/messledger/internal/websocket"
)

type MealHandler struct {
	Common
	meals *store.MealStore
	users *store.UserStore
}

func NewMealHandler(ms *store.MealStore, us *store.UserStore, c Common) *MealHandler {
	return &MealHandler{Common: c, meals: ms, users: us}
}

type mealRequest struct {
	UserID     int64          `json:"user_id"`
	Date       string         `json:"date"`
	MealType   model.MealType `json:"meal_type"`
	GuestCount int            `json:"guest_count"`
}

func (h *MealHandler) input(req mealRequest) (store.MealInput, error) {
	if !req.MealType.Valid() {
		return store.MealInput{}, apperr.Validation("meal_type must be breakfast, lunch or dinner")
	}
	if req.GuestCount < 0 {
		return store.MealInput{}, apperr.Validation("guest_count must not be negative")
	}
	date, err := parseDate(req.Date, h.now())
	if err != nil {
		return store.MealInput{}, err
	}
	return store.MealInput{UserID: req.UserID, Date: date, MealType: req.MealType, GuestCount: req.GuestCount}, nil
}

// Create records a meal for the caller. Admins may record for anyone.
func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mealRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "meal", err)
		return
	}

	caller := auth.UserID(r.Context())
	if req.UserID == 0 {
		req.UserID = caller
	}
	if req.UserID != caller && !auth.IsAdmin(r.Context()) {
		h.fail(w, r, "meal", apperr.Forbidden("only admins can add meals for other members"))
		return
	}

	in, err := h.input(req)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	u, err := h.users.GetByID(r.Context(), in.UserID)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if u == nil || !u.Active {
		h.fail(w, r, "meal", apperr.Validation("user not found or inactive"))
		return
	}

	meal, err := h.meals.Create(r.Context(), in, caller)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	h.broadcast(websocket.NewMessage("meal", "created", meal.ID, meal.Month))
	writeJSON(w, http.StatusCreated, meal)
}

// List filters by month and user_id. Members only see their own meals.
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
	var f model.MealFilter
	var err error
	if f.Month, err = queryMonth(r); err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if f.UserID, err = queryID(r, "user_id"); err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if !auth.IsAdmin(r.Context()) {
		self := auth.UserID(r.Context())
		f.UserID = &self
	}

	meals, err := h.meals.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if meals == nil {
		meals = []model.Meal{}
	}
	writeJSON(w, http.StatusOK, meals)
}

func (h *MealHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	meal, err := h.meals.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if meal == nil || !auth.IsSelfOrAdmin(r.Context(), meal.UserID) {
		h.fail(w, r, "meal", apperr.NotFound("meal"))
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	existing, err := h.meals.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "meal", apperr.NotFound("meal"))
		return
	}

	req := mealRequest{
		Date:       existing.Date.Format(dateLayout),
		MealType:   existing.MealType,
		GuestCount: existing.GuestCount,
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	in, err := h.input(req)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}

	meal, err := h.meals.Update(r.Context(), id, in, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	h.broadcast(websocket.NewMessage("meal", "updated", meal.ID, meal.Month))
	writeJSON(w, http.StatusOK, meal)
}

func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	existing, err := h.meals.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "meal", apperr.NotFound("meal"))
		return
	}
	if err := h.meals.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	h.broadcast(websocket.NewMessage("meal", "deleted", id, existing.Month))
	w.WriteHeader(http.StatusNoContent)
}

// Today lists today's meals: the caller's own, or everyone's for admins.
func (h *MealHandler) Today(w http.ResponseWriter, r *http.Request) {
	today, _ := parseDate("", h.now())
	f := model.MealFilter{From: &today, To: &today}
	if !auth.IsAdmin(r.Context()) {
		self := auth.UserID(r.Context())
		f.UserID = &self
	}
	meals, err := h.meals.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	if meals == nil {
		meals = []model.Meal{}
	}
	writeJSON(w, http.StatusOK, meals)
}

// Stats counts a member's meals for a month, defaulting to the caller and
// the current month.
func (h *MealHandler) Stats(w http.ResponseWriter, r *http.Request) {
	m, err := queryMonthOr(r, h.now())
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	userID := auth.UserID(r.Context())
	if id, err := queryID(r, "user_id"); err != nil {
		h.fail(w, r, "meal", err)
		return
	} else if id != nil {
		userID = *id
	}
	if !auth.IsSelfOrAdmin(r.Context(), userID) {
		h.fail(w, r, "meal", apperr.Forbidden("cannot view another member's meals"))
		return
	}

	stats, err := h.meals.Stats(r.Context(), userID, m)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// DailySummary counts everyone's meals on ?date=, defaulting to today.
func (h *MealHandler) DailySummary(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), h.now())
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	sum, err := h.meals.DailySummary(r.Context(), date)
	if err != nil {
		h.fail(w, r, "meal", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
