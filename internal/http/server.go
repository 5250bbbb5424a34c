// Package http exposes the team back-office as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"teamapp/internal/auth"
	"teamapp/internal/log"
	"teamapp/internal/middleware/ratelimit"
	"teamapp/internal/middleware/security"
	"teamapp/internal/middleware/trace"
	"teamapp/internal/services"
	"teamapp/internal/storage"
)

// Deps are the services the API is built on. Store is only used for
// readiness checks and may be nil.
type Deps struct {
	Auth        *auth.Service
	Agents      *services.AgentService
	Commissions *services.CommissionService
	Expenses    *services.ExpenseService
	Summary     *services.SummaryService
	Store       storage.DocumentStore
	Logger      *log.Logger
}

// Options tune the HTTP layer.
type Options struct {
	RateLimitPerMinute int
	CookieSecure       bool
	TrustedProxies     []string
}

// Server is the API server.
type Server struct {
	http.Server

	deps      Deps
	opts      Options
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer builds the server and its routes. The rate limiter goroutine
// runs until Shutdown.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	s := &Server{
		deps:      deps,
		opts:      opts,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(),
		startedAt: time.Now(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps h in the standard chain, outermost first: tracing,
// security headers, probe detection, rate limiting and the request logger.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = log.Middleware(s.logger, trace.GetRequestID)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.tracer.Middleware(h)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := auth.RequireAuth(s.deps.Auth)
	admin := func(h http.HandlerFunc) http.Handler { return authed(auth.RequireAdmin(h)) }
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/verify", s.handleVerify)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/keys", admin(s.handleListKeys))
	mux.Handle("POST /api/auth/keys/generate", admin(s.handleGenerateKey))
	mux.Handle("PUT /api/auth/keys/{id}/toggle", admin(s.handleToggleKey))

	mux.Handle("GET /api/agents", protect(s.handleListAgents))
	mux.Handle("GET /api/agents/list", protect(s.handleAgentRefs))
	mux.Handle("POST /api/agents", protect(s.handleCreateAgent))
	mux.Handle("GET /api/agents/{id}", protect(s.handleGetAgent))
	mux.Handle("PUT /api/agents/{id}", protect(s.handleUpdateAgent))
	mux.Handle("DELETE /api/agents/{id}", protect(s.handleDeleteAgent))

	mux.Handle("GET /api/commissions", protect(s.handleListCommissions))
	mux.Handle("POST /api/commissions", protect(s.handleCreateCommission))
	mux.Handle("GET /api/commissions/{id}", protect(s.handleGetCommission))
	mux.Handle("PUT /api/commissions/{id}", protect(s.handleUpdateCommission))
	mux.Handle("DELETE /api/commissions/{id}", protect(s.handleDeleteCommission))
	mux.Handle("PUT /api/commissions/{id}/deposit", protect(s.handleUpdateDeposit))
	mux.Handle("POST /api/commissions/{id}/deposit/payments", protect(s.handleAddDepositPayment))
	mux.Handle("POST /api/commissions/{id}/settlements", protect(s.handleAddSettlement))
	mux.Handle("DELETE /api/commissions/{id}/settlements/{index}", protect(s.handleRemoveSettlement))
	mux.Handle("GET /api/commissions/{id}/finances", protect(s.handleFinances))
	mux.Handle("GET /api/commissions/{id}/suggestions", protect(s.handleSuggestions))
	mux.Handle("PUT /api/commissions/{id}/status", protect(s.handleApplyStatus))
	mux.Handle("POST /api/commissions/{id}/comments", protect(s.handleCommissionComment))

	mux.Handle("GET /api/expenses", protect(s.handleListExpenses))
	mux.Handle("POST /api/expenses", protect(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/{id}", protect(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", protect(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", protect(s.handleDeleteExpense))
	mux.Handle("POST /api/expenses/{id}/comments", protect(s.handleExpenseComment))

	mux.Handle("GET /api/templates", protect(s.handleListTemplates))
	mux.Handle("POST /api/templates", protect(s.handleCreateTemplate))
	mux.Handle("POST /api/templates/generate", protect(s.handleGenerate))
	mux.Handle("GET /api/templates/{id}", protect(s.handleGetTemplate))
	mux.Handle("PUT /api/templates/{id}", protect(s.handleUpdateTemplate))
	mux.Handle("DELETE /api/templates/{id}", protect(s.handleDeleteTemplate))
	mux.Handle("POST /api/templates/{id}/instantiate", protect(s.handleInstantiate))

	mux.Handle("GET /api/summary", protect(s.handleSummary))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("unknown endpoint").Write(w)
	})
	return mux
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the document store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients()}
	requests := s.tracer.GetMetrics()
	checks["requests"] = map[string]any{"total": requests.TotalRequests, "server_errors": requests.ServerErrors}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
