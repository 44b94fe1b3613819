package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderSummary writes a console summary of the report: portfolio totals,
// the per-strategy table, and risk concentration.
func RenderSummary(w io.Writer, r *ReportData) {
	fmt.Fprintf(w, "Portfolio report %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Active trades: %d  Completed: %d\n", r.ActiveTradeCount, r.CompletedTradeCount)
	fmt.Fprintf(w, "Unrealized P&L: %.2f  Realized P&L: %.2f  Win rate: %.1f%%\n\n",
		r.TotalUnrealizedPnL, r.TotalRealizedPnL, r.Performance.WinRate)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Strategy", "Active", "Completed", "Unrealized", "Realized", "Win Rate", "Profit Factor"})
	strategies := make([]StrategyData, 0, len(r.Strategies))
	for _, s := range r.Strategies {
		strategies = append(strategies, s)
	}
	sort.Slice(strategies, func(i, j int) bool { return strategies[i].Strategy < strategies[j].Strategy })
	for _, s := range strategies {
		t.AppendRow(table.Row{
			string(s.Strategy),
			s.ActiveCount,
			s.CompletedCount,
			fmt.Sprintf("%.2f", s.UnrealizedPnL),
			fmt.Sprintf("%.2f", s.RealizedPnL),
			fmt.Sprintf("%.1f%%", s.Performance.WinRate),
			formatRatio(s.Performance.ProfitFactor),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()

	if len(r.RiskConcentration) > 0 {
		fmt.Fprintln(w)
		ct := table.NewWriter()
		ct.SetOutputMirror(w)
		ct.AppendHeader(table.Row{"Symbol", "Risk Share"})
		symbols := make([]string, 0, len(r.RiskConcentration))
		for sym := range r.RiskConcentration {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			ct.AppendRow(table.Row{sym, fmt.Sprintf("%.1f%%", r.RiskConcentration[sym])})
		}
		ct.Render()
	}
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
