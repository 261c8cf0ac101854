package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMonthStart(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2024, 5, 17, 13, 45, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 23, 59, 59, 999, time.UTC), time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)},
		// 2024-06-01 01:00 in UTC+2 is still May in UTC
		{time.Date(2024, 6, 1, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i, tc := range cases {
		if got := MonthStart(tc.in); !got.Equal(tc.want) {
			t.Fatalf("case %d: MonthStart(%v) = %v, want %v", i, tc.in, got, tc.want)
		}
	}
}

func TestExpenseRecordValidate(t *testing.T) {
	good := ExpenseRecord{
		Month:           time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Chain:           "ethereum",
		Source:          SourceEVM,
		Token:           TokenFLUID,
		TokenAmount:     decimal.NewFromInt(1000),
		USDValue:        decimal.NewFromInt(300),
		NumTransactions: 10,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(r *ExpenseRecord)
		want   error
	}{
		{func(r *ExpenseRecord) { r.USDValue = decimal.NewFromInt(-1) }, ErrNegativeUSD},
		{func(r *ExpenseRecord) { r.NumTransactions = -1 }, ErrNegativeTransactions},
		{func(r *ExpenseRecord) { r.Month = r.Month.AddDate(0, 0, 3) }, ErrMonthNotTruncated},
		{func(r *ExpenseRecord) { r.Month = time.Time{} }, ErrMonthNotTruncated},
		{func(r *ExpenseRecord) { r.Chain = " " }, ErrEmptyChain},
		{func(r *ExpenseRecord) { r.Token = "" }, ErrEmptyToken},
	}
	for i, tc := range bads {
		r := good
		tc.mutate(&r)
		if err := r.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}

	r := good
	r.Source = "Bitcoin"
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestSourceErrorMessageAndUnwrap(t *testing.T) {
	err := NewSourceError(SourceSolana, ErrUpstreamUnavailable)
	if err.Error() != "Solana fetch failed: upstream unavailable" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected errors.Is to see the cause")
	}
	var se *SourceError
	if !errors.As(err, &se) || se.Source != SourceSolana {
		t.Fatalf("expected SourceError for Solana, got %#v", err)
	}
	if NewSourceError(SourceEVM, nil) != nil {
		t.Fatalf("nil cause must stay nil")
	}
}

func TestParseTimeFlexibleAndWallMonth(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01 00:00:00.000 UTC", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-17T10:11:12Z", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-31T23:30:00-05:00", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-03", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-03 08:00:00", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimeFlexible(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if m := WallMonth(got); !m.Equal(tc.want) {
			t.Fatalf("%q: month %v, want %v", tc.in, m, tc.want)
		}
	}
	if _, err := ParseTimeFlexible("May 2024"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}
