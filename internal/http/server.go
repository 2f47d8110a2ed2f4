// Package http exposes the ledger, reports and exports as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spese-api/internal/auth"
	"spese-api/internal/core"
	"spese-api/internal/log"
	"spese-api/internal/middleware/ratelimit"
	"spese-api/internal/middleware/security"
	"spese-api/internal/middleware/trace"
)

const apiVersion = "3.0.0"

// Authenticator registers users, issues tokens and resolves them.
type Authenticator interface {
	Register(ctx context.Context, creds core.Credentials) (core.User, error)
	Login(ctx context.Context, creds core.Credentials) (auth.Token, error)
	Authenticate(ctx context.Context, rawToken string) (core.User, error)
}

// Ledger is the owner-scoped CRUD surface for expenses and categories.
type Ledger interface {
	CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput) (core.Expense, error)
	GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, userID int64, page core.Page) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, userID, id int64, patch core.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id int64) error

	CreateCategory(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
	ListCategories(ctx context.Context, userID int64, page core.Page) ([]core.Category, error)
	UpdateCategory(ctx context.Context, userID, id int64, patch core.CategoryPatch) (core.Category, error)
	DeleteCategory(ctx context.Context, userID, id int64) error
}

// Reporter computes aggregate reports and export record sets.
type Reporter interface {
	Monthly(ctx context.Context, userID int64, year, month int) (core.MonthlyReport, error)
	Yearly(ctx context.Context, userID int64, year int) (core.YearlyReport, error)
	Summary(ctx context.Context, userID int64) (core.Summary, error)
	ExportRecords(ctx context.Context, userID int64, f core.ExportFilter) ([]core.Expense, error)
}

// Deps are the collaborators the API translates to. Limiter, ClientIP and
// Ready are optional.
type Deps struct {
	Auth    Authenticator
	Ledger  Ledger
	Reports Reporter

	// Ready backs /readyz, typically a database ping.
	Ready func(ctx context.Context) error

	Limiter     *ratelimit.Limiter
	ClientIP    *security.ClientIPResolver
	CORSOrigins []string
	Logger      *log.Logger
	Now         func() time.Time
}

type Server struct {
	http.Server

	auth    Authenticator
	ledger  Ledger
	reports Reporter
	ready   func(ctx context.Context) error
	logger  *log.Logger
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		auth:    deps.Auth,
		ledger:  deps.Ledger,
		reports: deps.Reports,
		ready:   deps.Ready,
		logger:  logger.WithComponent(log.ComponentHTTP),
		now:     now,
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(deps Deps) http.Handler {
	clientIP := func(r *http.Request) string { return r.RemoteAddr }
	if deps.ClientIP != nil {
		clientIP = deps.ClientIP.ClientIP
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	// Admission runs first so every request counts, CORS preflights included.
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware(clientIP, s.rateLimited(clientIP)))
	}
	r.Use(trace.NewMiddleware(clientIP, s.logger).Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(corsHandler(deps.CORSOrigins))
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Compress(5, "application/json", "text/csv"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorBody{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, errorBody{Detail: "Method Not Allowed"})
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/users", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.With(s.requireUser).Get("/me", s.handleMe)
	})
	r.Post("/register", s.handleSignup)
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleCreateExpense)
			r.Get("/", s.handleListExpenses)
			r.Get("/{id}", s.handleGetExpense)
			r.Put("/{id}", s.handleUpdateExpense)
			r.Patch("/{id}", s.handleUpdateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", s.handleCreateCategory)
			r.Get("/", s.handleListCategories)
			r.Get("/{id}", s.handleGetCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Patch("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", s.handleMonthlyReport)
			r.Get("/yearly", s.handleYearlyReport)
			r.Get("/summary", s.handleSummary)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/csv", s.handleExportCSV)
			r.Get("/excel", s.handleExportExcel)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", trace.HeaderRequestID},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}

// rateLimited answers rejected requests. It runs before tracing, so the log
// line carries the client IP rather than a request id.
func (s *Server) rateLimited(clientIP func(*http.Request) string) func(http.ResponseWriter, *http.Request, ratelimit.Decision) {
	return func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, clientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			"retry_after", d.RetryAfter)
		writeError(w, r, &core.RateLimitError{RetryAfter: d.RetryAfter})
	}
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"message": "Welcome to the Expense Management API",
		"version": apiVersion,
		"health":  "/health",
	})
}

type healthBody struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	writeJSON(w, r, http.StatusOK, healthBody{
		Status:    "healthy",
		Timestamp: float64(now.UnixMicro()) / 1e6,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
