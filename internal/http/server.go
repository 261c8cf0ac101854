package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fluidspend/internal/cache"
	"fluidspend/internal/ledger"
	"fluidspend/internal/log"
	"fluidspend/internal/metrics"
	"fluidspend/internal/middleware/ratelimit"
	"fluidspend/internal/middleware/security"
	"fluidspend/internal/middleware/trace"
	"fluidspend/internal/services"
)

// combineTimeout bounds a shared aggregation run. Upstream calls carry their
// own per-request timeout; this caps a run that pages through many of them.
const combineTimeout = 3 * time.Minute

// LedgerCombiner builds the combined ledger.
type LedgerCombiner interface {
	Combine(ctx context.Context) (ledger.Ledger, error)
}

// Refresher clears cached source data on demand.
type Refresher interface {
	Refresh(ctx context.Context, sources ...string) (services.RefreshResult, error)
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Combiner  LedgerCombiner
	Refresher Refresher
	// Caches are reported by /readyz.
	Caches    []*cache.SourceCache
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	combiner  LedgerCombiner
	refresher Refresher
	caches    []*cache.SourceCache

	// Concurrent ledger requests share one aggregation run.
	group singleflight.Group

	detector     *security.Detector
	rateLimiter  *ratelimit.Limiter
	tracer       *trace.Middleware
	logger       *log.Logger
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. Rate limiting applies to POST
// requests only; reads are served from the source caches.
func NewServer(addr string, deps Deps) *Server {
	metrics.Init()

	s := &Server{
		combiner:    deps.Combiner,
		refresher:   deps.Refresher,
		caches:      deps.Caches,
		detector:    security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		logger:      log.ForComponent(log.ComponentHTTP),
		started:     time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/ledger/breakdown", s.handleBreakdown)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(r *http.Request) bool {
		return r.Method == http.MethodPost
	})
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = limited(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Addr = addr
	s.Handler = handler
	return s
}

// combine runs one aggregation for every caller waiting on it. The run is
// detached from the first caller's context so a client disconnect does not
// fail the others.
func (s *Server) combine(ctx context.Context) (ledger.Ledger, bool, error) {
	v, err, shared := s.group.Do("ledger", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), combineTimeout)
		defer cancel()
		return s.combiner.Combine(runCtx)
	})
	if err != nil {
		return ledger.Ledger{}, shared, err
	}
	return v.(ledger.Ledger), shared, nil
}

// Shutdown stops the rate limiter and then the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", log.FieldOperation, log.OpShutdown)
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
