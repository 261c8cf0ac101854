package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
)

const noDataNotice = "No expense data found"

// writeReport prints the ledger as an aligned table followed by the summary.
func writeReport(w io.Writer, l ledger.Ledger, s core.Summary) error {
	for _, note := range l.Notes {
		if _, err := fmt.Fprintf(w, "Note: %s\n", note); err != nil {
			return err
		}
	}
	if l.Empty() {
		_, err := fmt.Fprintln(w, noDataNotice)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Month\tChain\tSource\tToken\tAmount\tUSD\tTxs\t")
	for _, r := range l.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			r.Month.Format("2006-01"), r.Chain, r.Source, r.Token,
			r.TokenAmount.StringFixed(2), core.FormatUSD(r.USDValue), r.NumTransactions)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	currentMonth := "-"
	if !s.CurrentMonth.IsZero() {
		currentMonth = s.CurrentMonth.Format("January 2006")
	}
	_, err := fmt.Fprintf(w, "\nTotal: %s  %s: %s  EVM: %s  Solana: %s  Transactions: %d  FLUID: $%s\n",
		core.FormatUSD(s.TotalUSD),
		currentMonth, core.FormatUSD(s.CurrentMonthUSD),
		core.FormatUSD(s.EVMTotalUSD), core.FormatUSD(s.SolanaTotalUSD),
		s.TotalTransactions, l.FluidPrice.StringFixed(4))
	return err
}
