package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fluidspend/internal/cache"
	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
	"fluidspend/internal/sheets/memory"
	"fluidspend/internal/storage"
)

type fakePublisher struct {
	mu      sync.Mutex
	sources [][]string
	err     error
}

func (f *fakePublisher) PublishRefresh(_ context.Context, sources ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, sources)
	return f.err
}

type fakePrice struct{ resets int }

func (f *fakePrice) Reset() { f.resets++ }

func seededCaches(t *testing.T) (*cache.SourceCache, *cache.SourceCache) {
	t.Helper()
	store := cache.NewMemoryStore()
	evm := cache.NewSourceCache(store, "dune", time.Hour)
	sol := cache.NewSourceCache(store, "solana", time.Hour)
	for _, c := range []*cache.SourceCache{evm, sol} {
		if err := c.Put(context.Background(), []int{1}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return evm, sol
}

func TestRefreshServiceInvalidatesNamedSources(t *testing.T) {
	ctx := context.Background()
	evm, sol := seededCaches(t)
	price := &fakePrice{}
	pub := &fakePublisher{}
	svc := NewRefreshService(pub).RegisterCache("evm", evm).RegisterCache("solana", sol).RegisterPrice(price)

	res, err := svc.Refresh(ctx, "solana")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(res.Cleared) != 1 || res.Cleared[0] != "solana" || !res.Published {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := sol.Get(ctx); ok {
		t.Fatalf("solana cache should be cleared")
	}
	if _, ok := evm.Get(ctx); !ok {
		t.Fatalf("evm cache must be left alone")
	}
	if price.resets != 0 {
		t.Fatalf("price must not reset when not named")
	}
	if len(pub.sources) != 1 || pub.sources[0][0] != "solana" {
		t.Fatalf("unexpected publish %v", pub.sources)
	}

	res, err = svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh all: %v", err)
	}
	if strings.Join(res.Cleared, ",") != "evm,solana,price" || price.resets != 1 {
		t.Fatalf("expected every source cleared, got %v (resets=%d)", res.Cleared, price.resets)
	}
}

func TestRefreshServiceWithoutPublisher(t *testing.T) {
	evm, _ := seededCaches(t)
	svc := NewRefreshService(nil).RegisterCache("evm", evm)
	res, err := svc.Refresh(context.Background(), "evm")
	if err != nil || res.Published {
		t.Fatalf("local refresh expected, got %+v err=%v", res, err)
	}
}

func TestRefreshServicePublishFailureIsNotFatal(t *testing.T) {
	evm, _ := seededCaches(t)
	svc := NewRefreshService(&fakePublisher{err: errors.New("circuit breaker is open")}).RegisterCache("evm", evm)
	res, err := svc.Refresh(context.Background())
	if err != nil || res.Published || len(res.Cleared) != 1 {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
}

func TestRefreshServiceRejectsUnknownSource(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRefreshService(pub)
	if _, err := svc.Refresh(context.Background(), "bitcoin"); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	if len(pub.sources) != 0 {
		t.Fatalf("nothing should be published for an invalid request")
	}
}

type stubCombiner struct {
	mu    sync.Mutex
	l     ledger.Ledger
	err   error
	calls int
}

func (s *stubCombiner) Combine(context.Context) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.l, s.err
}

func (s *stubCombiner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleLedger() ledger.Ledger {
	return ledger.Ledger{
		Records: []core.ExpenseRecord{{
			Month: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Chain: "ethereum", Source: core.SourceEVM, Token: "FLUID",
			TokenAmount: decimal.NewFromInt(1000), USDValue: decimal.NewFromInt(300), NumTransactions: 10,
		}},
		FluidPrice: decimal.RequireFromString("0.3"),
	}
}

func newExportLog(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fluidspend.db"))
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestExportProcessorRunOnceRecordsAttempts(t *testing.T) {
	ctx := context.Background()
	repo := newExportLog(t)
	writer := memory.New()
	combiner := &stubCombiner{l: sampleLedger()}
	p := NewExportProcessor(combiner, writer, repo, ExportProcessorConfig{})

	if _, ok, _ := p.LastSuccessfulExport(ctx); ok {
		t.Fatalf("no export expected yet")
	}
	if _, err := p.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	exported, summary, ok := writer.Last()
	if !ok || len(exported.Records) != 1 || !summary.TotalUSD.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected export %+v %+v", exported, summary)
	}
	run, ok, err := p.LastSuccessfulExport(ctx)
	if err != nil || !ok || run.Records != 1 || run.TotalUSD != "300.00" || run.Status != storage.ExportOK {
		t.Fatalf("unexpected export log %+v ok=%v err=%v", run, ok, err)
	}

	// A failed combine is logged as an error run and leaves the last success intact.
	combiner.err = core.NewSourceError(core.SourceEVM, errors.New("DUNE_API_KEY not found"))
	_, err = p.RunOnce(ctx)
	if err == nil || !strings.Contains(err.Error(), "EVM fetch failed") {
		t.Fatalf("expected combine failure, got %v", err)
	}
	again, _, _ := p.LastSuccessfulExport(ctx)
	if again.ID != run.ID {
		t.Fatalf("a failed run must not replace the last success")
	}
	if writer.Writes() != 1 {
		t.Fatalf("nothing should be written on failure")
	}
}

func TestExportProcessorWriteFailure(t *testing.T) {
	writer := memory.New()
	writer.FailWith(errors.New("quota exceeded"))
	p := NewExportProcessor(&stubCombiner{l: sampleLedger()}, writer, nil, ExportProcessorConfig{})
	_, err := p.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "write ledger: quota exceeded") {
		t.Fatalf("expected write failure, got %v", err)
	}
}

func TestExportProcessorLifecycle(t *testing.T) {
	combiner := &stubCombiner{l: sampleLedger()}
	p := NewExportProcessor(combiner, memory.New(), nil, ExportProcessorConfig{Interval: 10 * time.Millisecond})

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop when not running should not error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("expected error when starting an already running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for combiner.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if combiner.Calls() < 2 {
		t.Fatalf("expected the startup run plus at least one tick, got %d", combiner.Calls())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Fatal("processor should not be running after Stop")
	}
}

func TestDefaultExportProcessorConfig(t *testing.T) {
	config := DefaultExportProcessorConfig()
	if config.Interval != time.Hour || config.Timeout != 2*time.Minute {
		t.Fatalf("unexpected defaults %+v", config)
	}
	p := NewExportProcessor(nil, nil, nil, ExportProcessorConfig{Interval: 5 * time.Minute})
	if p.config.Interval != 5*time.Minute || p.config.Timeout != 2*time.Minute {
		t.Fatalf("custom interval must be kept and timeout defaulted: %+v", p.config)
	}
}
