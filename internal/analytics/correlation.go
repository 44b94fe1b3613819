package analytics

import (
	"math"
	"sort"

	"spreadtrack/internal/util"
)

// CorrelationMatrix computes pairwise Pearson correlation of per-symbol
// P&L-percent series over the active valuations. The matrix is symmetric
// with a diagonal of 1; pairs where either side has fewer than two
// observations correlate 0 by convention.
func CorrelationMatrix(active []TradeValuation) map[string]map[string]float64 {
	series := make(map[string][]float64)
	for _, v := range active {
		series[v.Symbol] = append(series[v.Symbol], v.PnLPercent)
	}

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	matrix := make(map[string]map[string]float64, len(symbols))
	for _, sym := range symbols {
		matrix[sym] = make(map[string]float64, len(symbols))
		matrix[sym][sym] = 1
	}
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := symbols[i], symbols[j]
			corr := pearson(series[a], series[b])
			matrix[a][b] = corr
			matrix[b][a] = corr
		}
	}
	return matrix
}

// pearson correlates the two series over their shared length, clipped to
// [-1, 1]. Degenerate inputs (short series, zero variance) yield 0.
func pearson(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < 2 {
		return 0
	}
	xs, ys = xs[:n], ys[:n]

	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return util.Clamp(cov/(math.Sqrt(vx)*math.Sqrt(vy)), -1, 1)
}
