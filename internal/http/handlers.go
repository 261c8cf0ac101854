package http

import (
	"errors"
	"net/http"
	"time"

	"fluidspend/internal/amqp"
	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
	"fluidspend/internal/log"
)

// NoDataNotice accompanies a successful but empty ledger.
const NoDataNotice = "No expense data found"

type ledgerResponse struct {
	ledger.Ledger
	Summary core.Summary `json:"summary"`
	Notice  string       `json:"notice,omitempty"`
}

type breakdownResponse struct {
	ByChain       []core.ChainTotal `json:"by_chain"`
	MonthlyTotals []core.MonthTotal `json:"monthly_totals"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// handleLedger serves the combined ledger. An aggregation failure is
// reported verbatim; an empty ledger is a success carrying a notice.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loadLedger(w, r)
	if !ok {
		return
	}
	if l.Records == nil {
		l.Records = []core.ExpenseRecord{}
	}

	resp := ledgerResponse{Ledger: l, Summary: ledger.Summarize(l.Records)}
	if l.Empty() {
		resp.Notice = NoDataNotice
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loadLedger(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, breakdownResponse{
		ByChain:       ledger.ByChain(l.Records),
		MonthlyTotals: ledger.MonthlyTotals(l.Records),
		GeneratedAt:   l.GeneratedAt,
	})
}

func (s *Server) loadLedger(w http.ResponseWriter, r *http.Request) (ledger.Ledger, bool) {
	logger := log.FromContext(r.Context())
	if s.combiner == nil {
		writeError(w, r, http.StatusServiceUnavailable, "ledger not configured")
		return ledger.Ledger{}, false
	}

	l, shared, err := s.combine(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Ledger aggregation failed",
			log.FieldOperation, log.OpCombine, log.FieldError, err)
		writeError(w, r, http.StatusBadGateway, err.Error())
		return ledger.Ledger{}, false
	}
	logger.DebugContext(r.Context(), "Ledger served",
		log.FieldRecords, len(l.Records), "shared", shared)
	return l, true
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	if s.refresher == nil {
		writeError(w, r, http.StatusServiceUnavailable, "refresh not configured")
		return
	}

	sources, err := parseRefreshRequest(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.refresher.Refresh(r.Context(), sources...)
	if err != nil {
		if errors.Is(err, amqp.ErrUnknownSource) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		logger.ErrorContext(r.Context(), "Refresh failed",
			log.FieldOperation, log.OpRefresh, log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Cleared == nil {
		res.Cleared = []string{}
	}
	writeJSON(w, http.StatusAccepted, res)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

type cacheCheck struct {
	Cached      bool       `json:"cached"`
	Fresh       bool       `json:"fresh"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	TTL         string     `json:"ttl"`
}

// handleReady reports whether the ledger can be served and how old each
// source cache is. A stale or empty cache is not a readiness failure: the
// next request refetches it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	if s.combiner == nil {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	caches := make(map[string]cacheCheck, len(s.caches))
	for _, c := range s.caches {
		check := cacheCheck{TTL: c.TTL().String()}
		if updated, ok := c.LastUpdated(r.Context()); ok {
			check.Cached = true
			check.Fresh = time.Since(updated) < c.TTL()
			check.LastUpdated = &updated
		}
		caches[c.Key()] = check
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": map[string]any{
			"caches": caches,
			"rate_limiter": map[string]any{
				"active_clients": s.rateLimiter.ActiveClients(),
				"rejected":       s.rateLimiter.Hits(),
			},
			"security": s.detector.GetMetrics(),
		},
	})
}
