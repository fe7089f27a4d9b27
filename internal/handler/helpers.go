package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/messledger/internal/apperr"
	"github.com/dukerupert/messledger/internal/month"
	"github.com/dukerupert/messledger/internal/websocket"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LockObserver counts writes refused because their month is closed.
type LockObserver interface {
	LockRefused(entity string)
}

// Common carries the collaborators every handler shares. Hub, Locks and Now
// may be nil.
type Common struct {
	Logger *slog.Logger
	Hub    *websocket.Hub
	Locks  LockObserver
	Now    func() time.Time
}

func (c Common) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Common) broadcast(msg websocket.Message) {
	if c.Hub != nil {
		c.Hub.Broadcast(msg)
	}
}

// fail writes err as a JSON error. entity names the record kind for lock
// refusal metrics.
func (c Common) fail(w http.ResponseWriter, r *http.Request, entity string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		c.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal", "internal error")
		return
	}
	if errors.Is(err, apperr.ErrMonthLocked) && c.Locks != nil {
		c.Locks.LockRefused(entity)
	}
	var ae *apperr.Error
	msg := err.Error()
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	writeError(w, status, apperr.CodeOf(err), msg)
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid JSON")
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

// pathMonth reads the {month} path segment.
func pathMonth(r *http.Request) (month.Key, error) {
	m, err := month.Parse(r.PathValue("month"))
	if err != nil {
		return month.Key{}, apperr.ErrInvalidMonth
	}
	return m, nil
}

// queryMonth reads the optional month query parameter.
func queryMonth(r *http.Request) (*month.Key, error) {
	s := r.URL.Query().Get("month")
	if s == "" {
		return nil, nil
	}
	m, err := month.Parse(s)
	if err != nil {
		return nil, apperr.ErrInvalidMonth
	}
	return &m, nil
}

// queryMonthOr reads the month query parameter, defaulting to the month of now.
func queryMonthOr(r *http.Request, now time.Time) (month.Key, error) {
	m, err := queryMonth(r)
	if err != nil {
		return month.Key{}, err
	}
	if m == nil {
		return month.Of(now), nil
	}
	return *m, nil
}

func queryID(r *http.Request, name string) (*int64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Validation("invalid %s", name)
	}
	return &id, nil
}

// parseDate reads a YYYY-MM-DD date, defaulting to today when empty.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be in YYYY-MM-DD format")
	}
	return t, nil
}

// checkAmount accepts zero or more, in whole cents.
func checkAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return apperr.Validation("amount must not be negative")
	}
	if !d.Equal(d.Round(2)) {
		return apperr.Validation("amount must have at most 2 decimal places")
	}
	return nil
}
