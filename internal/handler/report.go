package handler

import (
	"net/http"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/dukerupert/messledger/internal/settlement"
	"github.com/dukerupert/messledger/internal/store"
)

type ReportHandler struct {
	Common
	reports *store.ReportStore
	engine  *settlement.Engine
}

func NewReportHandler(rs *store.ReportStore, engine *settlement.Engine, c Common) *ReportHandler {
	return &ReportHandler{Common: c, reports: rs, engine: engine}
}

type monthRequest struct {
	Month string `json:"month"`
}

func (h *ReportHandler) requestMonth(r *http.Request) (month.Key, error) {
	var req monthRequest
	if err := decode(r, &req); err != nil {
		return month.Key{}, err
	}
	m, err := month.Parse(req.Month)
	if err != nil {
		return month.Key{}, apperr.ErrInvalidMonth
	}
	return m, nil
}

// visible trims r to the caller's own line unless the caller is an admin.
func visible(r *http.Request, report *model.Report) model.Report {
	if auth.IsAdmin(r.Context()) {
		return *report
	}
	return report.ForMember(auth.UserID(r.Context()))
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	out := make([]model.Report, 0, len(reports))
	for i := range reports {
		out = append(out, visible(r, &reports[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := pathMonth(r)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	report, err := h.reports.FindByMonth(r.Context(), m)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	if report == nil {
		h.fail(w, r, "report", apperr.NotFound("report"))
		return
	}
	writeJSON(w, http.StatusOK, visible(r, report))
}

func (h *ReportHandler) Status(w http.ResponseWriter, r *http.Request) {
	m, err := pathMonth(r)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	st, err := h.reports.Status(r.Context(), m)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UserHistory lists a member's line from every closed month.
func (h *ReportHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	if !auth.IsSelfOrAdmin(r.Context(), id) {
		h.fail(w, r, "report", apperr.Forbidden("cannot view another member's reports"))
		return
	}
	entries, err := h.reports.HistoryForUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	if entries == nil {
		entries = []model.UserReportEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Validate previews a close without changing anything.
func (h *ReportHandler) Validate(w http.ResponseWriter, r *http.Request) {
	m, err := h.requestMonth(r)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	res, err := h.engine.Validate(r.Context(), m)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReportHandler) Close(w http.ResponseWriter, r *http.Request) {
	m, err := h.requestMonth(r)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	report, err := h.engine.Close(r.Context(), m, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}
