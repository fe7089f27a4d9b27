package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/messledger/internal/archive"
	"github.com/dukerupert/messledger/internal/auth"
	"github.com/dukerupert/messledger/internal/config"
	"github.com/dukerupert/messledger/internal/email"
	"github.com/dukerupert/messledger/internal/handler"
	"github.com/dukerupert/messledger/internal/metrics"
	"github.com/dukerupert/messledger/internal/middleware"
	"github.com/dukerupert/messledger/internal/settlement"
	"github.com/dukerupert/messledger/internal/store"
	ws "github.com/dukerupert/messledger/internal/websocket"
)

type Server struct {
	db          *sql.DB
	cfg         config.Config
	hub         *ws.Hub
	tokens      *auth.TokenManager
	userStore   *store.UserStore
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	archives    *archive.Manager
	statements  *email.Statements
	userH       *handler.UserHandler
	mealH       *handler.MealHandler
	depositH    *handler.DepositHandler
	expenseH    *handler.ExpenseHandler
	reportH     *handler.ReportHandler
	archiveH    *handler.ArchiveHandler
	logger      *slog.Logger
}

func New(cfg config.Config, db *sql.DB, m *metrics.Metrics, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	ledger := store.NewLedger(db)
	archiveStore := store.NewArchiveStore(db)

	archives := archive.NewManager(cfg.S3, cfg.ArchivePassphrase, archiveStore, ledger.Reports,
		logger.With("component", "archive"), archive.WithObserver(m))
	mailer := email.NewClient(cfg.PostmarkToken, cfg.PostmarkFrom, email.WithCurrency(cfg.CurrencySymbol))
	statements := email.NewStatements(mailer, ledger.Users, m, logger.With("component", "email"))

	engine := settlement.NewEngine(settlement.NewSQLRunner(db), cfg.MealWeighting, logger.With("component", "settlement"),
		settlement.WithObserver(m),
		settlement.WithHooks(hub.ReportClosed(), archives.Hook(), statements.Hook()),
	)

	common := handler.Common{Logger: logger.With("component", "handler"), Hub: hub, Locks: m}

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		tokens:      auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
		userStore:   ledger.Users,
		metrics:     m,
		rateLimiter: middleware.NewRateLimiter(),
		archives:    archives,
		statements:  statements,
		userH:       handler.NewUserHandler(ledger.Users, common),
		mealH:       handler.NewMealHandler(ledger.Meals, ledger.Users, common),
		depositH:    handler.NewDepositHandler(ledger.Deposits, ledger.Users, common),
		expenseH:    handler.NewExpenseHandler(ledger.Expenses, common),
		reportH:     handler.NewReportHandler(ledger.Reports, engine, common),
		archiveH:    handler.NewArchiveHandler(archiveStore, archives, common),
		logger:      logger,
	}
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Tokens() *auth.TokenManager {
	return s.tokens
}

// Wait blocks until after-close uploads and mails have finished.
func (s *Server) Wait() {
	s.archives.Wait()
	s.statements.Wait()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.authenticateSocket, s.cfg.AllowedOrigins, s.logger.With("component", "websocket")))

	s.registerProtectedRoutes(mux)

	// Metrics sits directly on the mux so it sees the matched pattern.
	var h http.Handler = mux
	h = middleware.Metrics(s.metrics)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return middleware.RequestID(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// authenticateSocket accepts the token from ?token= or a bearer header.
func (s *Server) authenticateSocket(r *http.Request) (int64, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return 0, auth.ErrMissingToken
	}
	claimed, err := s.tokens.Validate(token)
	if err != nil {
		return 0, err
	}
	u, err := s.userStore.GetByID(r.Context(), claimed.UserID)
	if err != nil {
		return 0, err
	}
	if u == nil || !u.Active {
		return 0, errors.New("account is not active")
	}
	return u.ID, nil
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.tokens, s.userStore)(h)
}

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.authed(middleware.RequireAdmin(h).ServeHTTP)
}

func (s *Server) manager(h http.HandlerFunc) http.Handler {
	return s.authed(middleware.RequireDepositManager(h).ServeHTTP)
}

// closeLimited is admin-only and rate limited per admin.
func (s *Server) closeLimited(h http.HandlerFunc) http.Handler {
	rl := middleware.RateLimit(s.rateLimiter, middleware.UserOrIPKey, s.cfg.CloseRateLimit, time.Minute)
	return s.admin(rl(h).ServeHTTP)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Users
	mux.Handle("POST /api/users", s.admin(s.userH.Create))
	mux.Handle("GET /api/users", s.admin(s.userH.List))
	mux.Handle("GET /api/users/active", s.authed(s.userH.ListActive))
	mux.Handle("GET /api/users/{id}", s.authed(s.userH.Get))
	mux.Handle("PUT /api/users/{id}", s.admin(s.userH.Update))
	mux.Handle("DELETE /api/users/{id}", s.admin(s.userH.Deactivate))
	mux.Handle("GET /api/users/{id}/reports", s.authed(s.reportH.UserHistory))

	// Meals
	mux.Handle("POST /api/meals", s.authed(s.mealH.Create))
	mux.Handle("GET /api/meals", s.authed(s.mealH.List))
	mux.Handle("GET /api/meals/today", s.authed(s.mealH.Today))
	mux.Handle("GET /api/meals/stats", s.authed(s.mealH.Stats))
	mux.Handle("GET /api/meals/summary", s.authed(s.mealH.DailySummary))
	mux.Handle("GET /api/meals/{id}", s.authed(s.mealH.Get))
	mux.Handle("PUT /api/meals/{id}", s.admin(s.mealH.Update))
	mux.Handle("DELETE /api/meals/{id}", s.admin(s.mealH.Delete))

	// Deposits
	mux.Handle("POST /api/deposits", s.manager(s.depositH.Create))
	mux.Handle("POST /api/deposits/request", s.authed(s.depositH.Request))
	mux.Handle("GET /api/deposits", s.authed(s.depositH.List))
	mux.Handle("GET /api/deposits/summary", s.authed(s.depositH.Summary))
	mux.Handle("GET /api/deposits/month/{month}", s.manager(s.depositH.ByMonth))
	mux.Handle("POST /api/deposits/{id}/approve", s.manager(s.depositH.Approve))
	mux.Handle("POST /api/deposits/{id}/reject", s.manager(s.depositH.Reject))
	mux.Handle("PUT /api/deposits/{id}", s.authed(s.depositH.Update))
	mux.Handle("DELETE /api/deposits/{id}", s.authed(s.depositH.Delete))

	// Expenses
	mux.Handle("POST /api/expenses", s.admin(s.expenseH.Create))
	mux.Handle("GET /api/expenses", s.authed(s.expenseH.List))
	mux.Handle("GET /api/expenses/summary", s.authed(s.expenseH.Summary))
	mux.Handle("GET /api/expenses/{id}", s.authed(s.expenseH.Get))
	mux.Handle("PUT /api/expenses/{id}", s.admin(s.expenseH.Update))
	mux.Handle("DELETE /api/expenses/{id}", s.admin(s.expenseH.Delete))

	// Reports
	mux.Handle("GET /api/reports", s.authed(s.reportH.List))
	mux.Handle("GET /api/reports/{month}", s.authed(s.reportH.Get))
	mux.Handle("GET /api/reports/status/{month}", s.authed(s.reportH.Status))
	mux.Handle("POST /api/reports/validate", s.admin(s.reportH.Validate))
	mux.Handle("POST /api/reports/close", s.closeLimited(s.reportH.Close))

	// Archives
	mux.Handle("GET /api/archives", s.admin(s.archiveH.List))
	mux.Handle("POST /api/archives/{month}", s.admin(s.archiveH.Rerun))
	mux.Handle("GET /api/archives/{id}/report", s.admin(s.archiveH.Report))
}
