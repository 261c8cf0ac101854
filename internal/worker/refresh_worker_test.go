package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fluidspend/internal/amqp"
	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
	"fluidspend/internal/storage"
)

type fakeInvalidator struct {
	calls [][]string
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, sources ...string) ([]string, error) {
	f.calls = append(f.calls, sources)
	return sources, f.err
}

type fakeExporter struct {
	runs    int
	err     error
	last    storage.ExportRun
	hasLast bool
	logErr  error
}

func (f *fakeExporter) RunOnce(context.Context) (ledger.Ledger, error) {
	f.runs++
	return ledger.Ledger{}, f.err
}

func (f *fakeExporter) LastSuccessfulExport(context.Context) (storage.ExportRun, bool, error) {
	return f.last, f.hasLast, f.logErr
}

func TestHandleRefreshMessage(t *testing.T) {
	requested := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		inv         *fakeInvalidator
		exp         *fakeExporter
		wantErr     bool
		wantInvalid int
		wantRuns    int
	}{
		{
			name:        "no previous export",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{},
			wantInvalid: 1,
			wantRuns:    1,
		},
		{
			name:        "older export does not cover the request",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{hasLast: true, last: storage.ExportRun{ExportedAt: requested.Add(-time.Minute)}},
			wantInvalid: 1,
			wantRuns:    1,
		},
		{
			name: "newer export covers the request",
			inv:  &fakeInvalidator{},
			exp:  &fakeExporter{hasLast: true, last: storage.ExportRun{ExportedAt: requested.Add(time.Minute)}},
		},
		{
			name:        "unreadable export log still refreshes",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{logErr: errors.New("database is locked")},
			wantInvalid: 1,
			wantRuns:    1,
		},
		{
			name:        "invalidate failure is requeued",
			inv:         &fakeInvalidator{err: errors.New("disk full")},
			exp:         &fakeExporter{},
			wantErr:     true,
			wantInvalid: 1,
		},
		{
			name:        "sheets write failure is requeued",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{err: errors.New("write ledger: quota exceeded")},
			wantErr:     true,
			wantInvalid: 1,
			wantRuns:    1,
		},
		{
			name:        "missing api key is acknowledged",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{err: core.NewSourceError(core.SourceEVM, fmt.Errorf("%w: DUNE_API_KEY not set", core.ErrConfig))},
			wantInvalid: 1,
			wantRuns:    1,
		},
		{
			name:        "upstream outage is acknowledged",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{err: core.NewSourceError(core.SourceSolana, fmt.Errorf("%w: status 503", core.ErrUpstreamUnavailable))},
			wantInvalid: 1,
			wantRuns:    1,
		},
		{
			name:        "malformed upstream data is acknowledged",
			inv:         &fakeInvalidator{},
			exp:         &fakeExporter{err: core.NewSourceError(core.SourceEVM, fmt.Errorf("%w: no data returned from Dune", core.ErrUpstreamData))},
			wantInvalid: 1,
			wantRuns:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRefreshWorker(tt.inv, tt.exp)
			msg := &amqp.LedgerRefreshMessage{Sources: []string{amqp.SourceSolana}, RequestedAt: requested}
			err := w.HandleRefreshMessage(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(tt.inv.calls) != tt.wantInvalid {
				t.Fatalf("invalidate calls = %d, want %d", len(tt.inv.calls), tt.wantInvalid)
			}
			if tt.exp.runs != tt.wantRuns {
				t.Fatalf("export runs = %d, want %d", tt.exp.runs, tt.wantRuns)
			}
			if tt.wantInvalid > 0 && tt.inv.calls[0][0] != amqp.SourceSolana {
				t.Fatalf("unexpected sources %v", tt.inv.calls[0])
			}
		})
	}
}

func TestTerminalFailureIsNotRedelivered(t *testing.T) {
	exp := &fakeExporter{err: core.NewSourceError(core.SourceEVM, fmt.Errorf("%w: DUNE_API_KEY not set", core.ErrConfig))}
	w := NewRefreshWorker(&fakeInvalidator{}, exp)
	msg := amqp.NewLedgerRefreshMessage()

	// Each handled delivery is acked, so the broker has nothing to redeliver.
	for i := 0; i < 3; i++ {
		if err := w.HandleRefreshMessage(context.Background(), msg); err != nil {
			t.Fatalf("delivery %d: expected ack, got %v", i, err)
		}
	}
	if exp.runs != 3 {
		t.Fatalf("export runs = %d, want one per delivery", exp.runs)
	}
}
