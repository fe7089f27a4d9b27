package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/archive"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/dukerupert/messledger/internal/store"
)

const defaultArchiveLimit = 50

type ArchiveHandler struct {
	Common
	archives *store.ArchiveStore
	manager  *archive.Manager
}

func NewArchiveHandler(as *store.ArchiveStore, mgr *archive.Manager, c Common) *ArchiveHandler {
	return &ArchiveHandler{Common: c, archives: as, manager: mgr}
}

func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	m, err := queryMonth(r)
	if err != nil {
		h.fail(w, r, "archive", err)
		return
	}
	var filter month.Key
	if m != nil {
		filter = *m
	}
	limit := defaultArchiveLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.fail(w, r, "archive", apperr.Validation("invalid limit"))
			return
		}
		limit = n
	}

	archives, err := h.archives.List(r.Context(), filter, limit)
	if err != nil {
		h.fail(w, r, "archive", err)
		return
	}
	if archives == nil {
		archives = []model.ReportArchive{}
	}
	writeJSON(w, http.StatusOK, archives)
}

// Rerun uploads a closed month's report again.
func (h *ArchiveHandler) Rerun(w http.ResponseWriter, r *http.Request) {
	m, err := pathMonth(r)
	if err != nil {
		h.fail(w, r, "archive", err)
		return
	}
	a, err := h.manager.Rerun(r.Context(), m)
	if errors.Is(err, archive.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, "archive_disabled", "object storage is not configured")
		return
	}
	if err != nil {
		h.fail(w, r, "archive", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Report downloads and decrypts an archived report.
func (h *ArchiveHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.fail(w, r, "archive", err)
		return
	}
	report, err := h.manager.Fetch(r.Context(), id)
	if errors.Is(err, archive.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, "archive_disabled", "object storage is not configured")
		return
	}
	if err != nil {
		h.fail(w, r, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
