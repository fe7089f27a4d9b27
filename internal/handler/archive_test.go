package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/messledger/internal/archive"
	"github.com/dukerupert/messledger/internal/config"
	"github.com/dukerupert/messledger/internal/model"
	"github.com/dukerupert/messledger/internal/store"
)

func TestArchiveDisabled(t *testing.T) {
	env := newEnv(t)
	archives := store.NewArchiveStore(env.db)
	mgr := archive.NewManager(config.S3Config{}, "", archives, env.ledger.Reports, env.common.Logger)
	h := NewArchiveHandler(archives, mgr, env.common)

	rec := call(t, h.Rerun, env.admin, "POST", "/api/archives/2024-03", nil, "month", "2024-03")
	if rec.Code != http.StatusServiceUnavailable || errorCode(t, rec) != "archive_disabled" {
		t.Errorf("rerun status = %d", rec.Code)
	}

	rec = call(t, h.Report, env.admin, "GET", "/api/archives/1/report", nil, "id", "1")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("report status = %d, want 503", rec.Code)
	}

	rec = call(t, h.List, env.admin, "GET", "/api/archives?month=2024-03", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[[]model.ReportArchive](t, rec); len(got) != 0 {
		t.Errorf("archives = %+v, want none", got)
	}

	rec = call(t, h.List, env.admin, "GET", "/api/archives?limit=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}
