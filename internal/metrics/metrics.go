package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const (
	metricPrefix = "fluidspend_"

	ResultSuccess = "success"
	ResultError   = "error"

	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheStale   = "stale"
	CacheCorrupt = "corrupt"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	priceTier  *prometheus.CounterVec
	priceValue *prometheus.GaugeVec

	combineTotal   *prometheus.CounterVec
	combineLatency prometheus.Histogram
	ledgerUSD      *prometheus.GaugeVec
	ledgerRecords  prometheus.Gauge
)

// Init registers the collectors on a dedicated registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Upstream API requests by upstream and result",
			},
			[]string{"upstream", "result"},
		)
		upstreamLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upstream_latency_seconds",
				Help:    "Upstream API latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"upstream"},
		)
		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_lookups_total",
				Help: "Source cache lookups by key and outcome",
			},
			[]string{"key", "outcome"},
		)
		priceTier = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "price_lookups_total",
				Help: "Price lookups by token and the fallback tier that served them",
			},
			[]string{"token", "tier"},
		)
		priceValue = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "price_usd",
				Help: "Last price served per token in USD",
			},
			[]string{"token"},
		)
		combineTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "combine_runs_total",
				Help: "Ledger aggregation runs by result",
			},
			[]string{"result"},
		)
		combineLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "combine_latency_seconds",
				Help:    "Ledger aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		ledgerUSD = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ledger_usd",
				Help: "USD totals of the last combined ledger by source",
			},
			[]string{"source"},
		)
		ledgerRecords = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "ledger_records",
				Help: "Records in the last combined ledger",
			},
		)

		registry.MustRegister(
			upstreamRequests,
			upstreamLatency,
			cacheLookups,
			priceTier,
			priceValue,
			combineTotal,
			combineLatency,
			ledgerUSD,
			ledgerRecords,
		)
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(upstream string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if upstreamRequests != nil {
		upstreamRequests.WithLabelValues(upstream, result).Inc()
	}
	if upstreamLatency != nil {
		upstreamLatency.WithLabelValues(upstream).Observe(duration.Seconds())
	}
}

// IncCacheLookup counts a cache lookup outcome.
func IncCacheLookup(key, outcome string) {
	if cacheLookups != nil {
		cacheLookups.WithLabelValues(key, outcome).Inc()
	}
}

// ObservePrice records which tier served a price and the value served.
func ObservePrice(token, tier string, value decimal.Decimal) {
	if priceTier != nil {
		priceTier.WithLabelValues(token, tier).Inc()
	}
	if priceValue != nil {
		priceValue.WithLabelValues(token).Set(value.InexactFloat64())
	}
}

// ObserveCombine records an aggregation run.
func ObserveCombine(err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if combineTotal != nil {
		combineTotal.WithLabelValues(result).Inc()
	}
	if combineLatency != nil {
		combineLatency.Observe(duration.Seconds())
	}
}

// SetLedger publishes the totals of the last successful aggregation.
func SetLedger(records int, evmUSD, solanaUSD decimal.Decimal) {
	if ledgerRecords != nil {
		ledgerRecords.Set(float64(records))
	}
	if ledgerUSD != nil {
		ledgerUSD.WithLabelValues("EVM").Set(evmUSD.InexactFloat64())
		ledgerUSD.WithLabelValues("Solana").Set(solanaUSD.InexactFloat64())
	}
}
