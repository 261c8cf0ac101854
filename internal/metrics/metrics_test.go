package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHandlerExposesObservations(t *testing.T) {
	Init()
	ObserveUpstream("dune", nil, 10*time.Millisecond)
	ObserveUpstream("solscan", errors.New("boom"), time.Millisecond)
	IncCacheLookup("evm", CacheHit)
	ObservePrice("FLUID", "fallback", decimal.RequireFromString("0.30"))
	ObserveCombine(nil, time.Second)
	SetLedger(3, decimal.NewFromInt(300), decimal.NewFromInt(1500))

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`fluidspend_upstream_requests_total{result="success",upstream="dune"} 1`,
		`fluidspend_upstream_requests_total{result="error",upstream="solscan"} 1`,
		`fluidspend_cache_lookups_total{key="evm",outcome="hit"} 1`,
		`fluidspend_price_lookups_total{tier="fallback",token="FLUID"} 1`,
		`fluidspend_ledger_records 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
