package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"financeiro/internal/auth"
	"financeiro/internal/cache"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/middleware/ratelimit"
	"financeiro/internal/middleware/security"
	"financeiro/internal/middleware/trace"
	"financeiro/internal/services"
)

// Budget is the set of user operations the API exposes.
type Budget interface {
	AddExpense(ctx context.Context, req core.InstallmentRequest) ([]core.Expense, error)
	AddIncome(ctx context.Context, value core.Money, description string, month core.Month) (core.Income, error)
	SetCardLimit(ctx context.Context, limit core.Money) error
	CardLimit(ctx context.Context) (core.Money, bool, error)
	ListExpenses(ctx context.Context, month core.Month) ([]core.Expense, error)
	ListIncome(ctx context.Context, month core.Month) ([]core.Income, error)
	MonthSummary(ctx context.Context, month core.Month) (services.Summary, error)
}

// Pinger reports whether the store behind Budget can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr        string
	JWTSecret   string
	JWTAudience string

	// SummaryCacheTTL of zero disables the summary cache.
	SummaryCacheTTL   time.Duration
	SummaryCacheSize  int
	RequestsPerMinute int

	Logger *log.Logger
	// Now defaults to time.Now; the default month of every query follows it.
	Now func() time.Time
}

type Server struct {
	http.Server
	budget Budget
	ready  Pinger

	summaries *cache.LRUCache[services.Summary]
	caches    *cache.Manager
	// generations counts invalidations per user. A summary computed across
	// an invalidation is not cached.
	genMu       sync.Mutex
	generations map[core.UserID]uint64

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	logger  *log.Logger
	metrics appMetrics
	now     func() time.Time
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. ready may be nil for stores that are always ready.
func NewServer(cfg Config, budget Budget, ready Pinger) (*Server, error) {
	if budget == nil {
		return nil, errors.New("http server requires a budget service")
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := ratelimit.DefaultConfig()
	if cfg.RequestsPerMinute > 0 {
		rl.RequestsPerMinute = cfg.RequestsPerMinute
	}

	s := &Server{
		budget:   budget,
		ready:    ready,
		caches:   cache.NewManager(),
		limiter:  ratelimit.NewLimiter(rl),
		detector: security.NewDetector(),
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      now,
		started:  now(),

		generations: make(map[core.UserID]uint64),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	if cfg.SummaryCacheTTL > 0 {
		size := cfg.SummaryCacheSize
		if size <= 0 {
			size = 100
		}
		s.summaries = cache.NewLRUCache[services.Summary](size, cfg.SummaryCacheTTL)
		s.caches.Register(s.summaries)
		s.caches.StartCleanup(10 * time.Minute)
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/months", s.handleMonths)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("POST /api/income", s.handleCreateIncome)
	api.HandleFunc("GET /api/income", s.handleListIncome)
	api.HandleFunc("GET /api/credit-card/limit", s.handleGetCardLimit)
	api.HandleFunc("PUT /api/credit-card/limit", s.handleSetCardLimit)
	api.HandleFunc("GET /api/summary", s.handleSummary)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", auth.Middleware(verifier)(api))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited, http.MethodPost, http.MethodPut)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background cleanup and then the HTTP server. Calls after
// the first return nil.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{
		Error:   "rate_limited",
		Message: "too many requests, try again later",
	})
}

func summaryKey(user core.UserID, month core.Month) string {
	return string(user) + "|" + month.String()
}

// invalidateUser drops every cached summary of user. Installment writes
// touch months ahead of the request month, so the whole user is dropped.
func (s *Server) invalidateUser(ctx context.Context) {
	if s.summaries == nil {
		return
	}
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return
	}
	s.genMu.Lock()
	s.generations[user]++
	n := s.summaries.DeletePrefix(string(user) + "|")
	s.genMu.Unlock()
	if n > 0 {
		log.FromContext(ctx).DebugContext(ctx, "Summary cache invalidated", "entries", n)
	}
}

func (s *Server) generation(user core.UserID) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[user]
}

// storeSummary caches sum unless user was invalidated since gen was read.
func (s *Server) storeSummary(ctx context.Context, user core.UserID, gen uint64, key string, sum services.Summary) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[user] != gen {
		log.FromContext(ctx).DebugContext(ctx, "Summary outdated by a concurrent write, not cached", log.FieldUserID, string(user))
		return
	}
	s.summaries.Set(key, sum)
}

func (s *Server) summary(ctx context.Context, month core.Month) (services.Summary, error) {
	if s.summaries == nil {
		return s.budget.MonthSummary(ctx, month)
	}
	user, err := auth.UserFromContext(ctx)
	if err != nil {
		return services.Summary{}, err
	}
	key := summaryKey(user, month)
	if sum, ok := s.summaries.Get(key); ok {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		log.FromContext(ctx).DebugContext(ctx, "Summary cache hit", log.FieldMonth, month.String())
		return sum, nil
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)
	gen := s.generation(user)

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	sum, err := s.budget.MonthSummary(cctx, month)
	if err != nil {
		return services.Summary{}, err
	}
	s.storeSummary(ctx, user, gen, key, sum)
	return sum, nil
}
