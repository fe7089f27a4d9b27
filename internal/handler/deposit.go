package handler

import (
	"net/http"
	"strings"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/store"
	"github.com/dukerupert/messledger/internal/websocket"
	"github.com/shopspring/decimal"
)

type DepositHandler struct {
	Common
	deposits *store.DepositStore
	users    *store.UserStore
}

func NewDepositHandler(ds *store.DepositStore, us *store.UserStore, c Common) *DepositHandler {
	return &DepositHandler{Common: c, deposits: ds, users: us}
}

type depositRequest struct {
	UserID        int64               `json:"user_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Date          string              `json:"date"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Note          string              `json:"note"`
}

func (h *DepositHandler) input(req depositRequest, status model.DepositStatus) (store.DepositInput, error) {
	if err := checkAmount(req.Amount); err != nil {
		return store.DepositInput{}, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentCash
	}
	if !req.PaymentMethod.Valid() {
		return store.DepositInput{}, apperr.Validation("invalid payment_method")
	}
	date, err := parseDate(req.Date, h.now())
	if err != nil {
		return store.DepositInput{}, err
	}
	return store.DepositInput{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Date:          date,
		PaymentMethod: req.PaymentMethod,
		Note:          strings.TrimSpace(req.Note),
		Status:        status,
	}, nil
}

func (h *DepositHandler) create(w http.ResponseWriter, r *http.Request, req depositRequest, status model.DepositStatus) {
	in, err := h.input(req, status)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	u, err := h.users.GetByID(r.Context(), in.UserID)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	if u == nil || !u.Active {
		h.fail(w, r, "deposit", apperr.Validation("user not found or inactive"))
		return
	}

	d, err := h.deposits.Create(r.Context(), in, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	h.broadcast(websocket.NewMessage("deposit", "created", d.ID, d.Month).With("status", string(d.Status)))
	writeJSON(w, http.StatusCreated, d)
}

// Create records an approved deposit on a member's behalf.
func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	if req.UserID == 0 {
		h.fail(w, r, "deposit", apperr.Validation("user_id is required"))
		return
	}
	h.create(w, r, req, model.DepositApproved)
}

// Request records a pending deposit for the caller, awaiting approval.
func (h *DepositHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	req.UserID = auth.UserID(r.Context())
	h.create(w, r, req, model.DepositPending)
}

func (h *DepositHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.DepositApproved)
}

func (h *DepositHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.DepositRejected)
}

func (h *DepositHandler) setStatus(w http.ResponseWriter, r *http.Request, status model.DepositStatus) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	existing, err := h.deposits.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	if existing == nil {
		h.fail(w, r, "deposit", apperr.NotFound("deposit"))
		return
	}
	if existing.Status != model.DepositPending {
		h.fail(w, r, "deposit", apperr.Validation("deposit is already %s", existing.Status))
		return
	}

	d, err := h.deposits.SetStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	h.broadcast(websocket.NewMessage("deposit", string(status), d.ID, d.Month))
	writeJSON(w, http.StatusOK, d)
}

// List filters by month, user_id and status. Members only see their own.
func (h *DepositHandler) List(w http.ResponseWriter, r *http.Request) {
	var f model.DepositFilter
	var err error
	if f.Month, err = queryMonth(r); err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	if f.UserID, err = queryID(r, "user_id"); err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	if s := model.DepositStatus(r.URL.Query().Get("status")); s != "" {
		if !s.Valid() {
			h.fail(w, r, "deposit", apperr.Validation("invalid status"))
			return
		}
		f.Status = &s
	}
	if !auth.CanManageDeposits(r.Context()) {
		self := auth.UserID(r.Context())
		f.UserID = &self
	}

	deposits, err := h.deposits.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	if deposits == nil {
		deposits = []model.Deposit{}
	}
	writeJSON(w, http.StatusOK, deposits)
}

// Summary totals a member's approved deposits for a month.
func (h *DepositHandler) Summary(w http.ResponseWriter, r *http.Request) {
	m, err := queryMonthOr(r, h.now())
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	userID := auth.UserID(r.Context())
	if id, err := queryID(r, "user_id"); err != nil {
		h.fail(w, r, "deposit", err)
		return
	} else if id != nil {
		userID = *id
	}
	if userID != auth.UserID(r.Context()) && !auth.CanManageDeposits(r.Context()) {
		h.fail(w, r, "deposit", apperr.Forbidden("cannot view another member's deposits"))
		return
	}

	sum, err := h.deposits.Summary(r.Context(), userID, m)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *DepositHandler) ByMonth(w http.ResponseWriter, r *http.Request) {
	m, err := pathMonth(r)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	out, err := h.deposits.ByMonth(r.Context(), m)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// editable loads deposit id and checks the caller may change it: managers
// any deposit, members only their own pending requests. The store checks
// the status again inside the write.
func (h *DepositHandler) editable(r *http.Request) (*model.Deposit, error) {
	id, err := parseIDParam(r)
	if err != nil {
		return nil, err
	}
	d, err := h.deposits.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.NotFound("deposit")
	}
	if auth.CanManageDeposits(r.Context()) {
		return d, nil
	}
	if d.UserID != auth.UserID(r.Context()) || d.Status != model.DepositPending {
		return nil, apperr.Forbidden("members can only change their own pending deposits")
	}
	return d, nil
}

func (h *DepositHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, err := h.editable(r)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}

	req := depositRequest{
		UserID:        existing.UserID,
		Amount:        existing.Amount,
		Date:          existing.Date.Format(dateLayout),
		PaymentMethod: existing.PaymentMethod,
		Note:          existing.Note,
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	in, err := h.input(req, existing.Status)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}

	update := h.deposits.Update
	if !auth.CanManageDeposits(r.Context()) {
		update = h.deposits.UpdatePending
	}
	d, err := update(r.Context(), existing.ID, in)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	h.broadcast(websocket.NewMessage("deposit", "updated", d.ID, d.Month))
	writeJSON(w, http.StatusOK, d)
}

func (h *DepositHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, err := h.editable(r)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	remove := h.deposits.Delete
	if !auth.CanManageDeposits(r.Context()) {
		remove = h.deposits.DeletePending
	}
	if err := remove(r.Context(), existing.ID); err != nil {
		h.fail(w, r, "deposit", err)
		return
	}
	h.broadcast(websocket.NewMessage("deposit", "deleted", existing.ID, existing.Month))
	w.WriteHeader(http.StatusNoContent)
}
