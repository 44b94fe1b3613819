package analytics

import (
	"encoding/json"
	"fmt"
	"math"

	"spreadtrack/internal/models"
)

// RiskMetrics aggregates portfolio-level exposure over active trades.
type RiskMetrics struct {
	TotalDelta           float64 `json:"total_delta"`
	TotalTheta           float64 `json:"total_theta"`
	TotalGamma           float64 `json:"total_gamma"`
	TotalVega            float64 `json:"total_vega"`
	TotalAbsCurrentValue float64 `json:"total_abs_current_value"`
	PositionSizePct      float64 `json:"position_size_pct"`
	// MaxLoss is the worst P&L across active and completed trades, 0 with
	// no trades.
	MaxLoss float64 `json:"max_loss"`
}

// PerformanceMetrics aggregates outcomes across active and completed
// trades. Win rate spans both sets; the realized statistics come from
// completed trades only.
type PerformanceMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	WinRate       float64 `json:"win_rate"`
	// ProfitFactor is gross profit over gross loss from completed trades,
	// +Inf when nothing was lost.
	ProfitFactor float64 `json:"-"`

	AvgWinner     float64 `json:"avg_winner"`
	AvgLoser      float64 `json:"avg_loser"`
	LargestWinner float64 `json:"largest_winner"`
	LargestLoser  float64 `json:"largest_loser"`
	AvgHoldDays   float64 `json:"avg_hold_days"`
	SharpeRatio   float64 `json:"sharpe_ratio"`

	MonthlyPnL map[string]float64 `json:"monthly_pnl"`
	WeeklyPnL  map[string]float64 `json:"weekly_pnl"`
}

// MarshalJSON renders ProfitFactor as null when it is not a finite number,
// since JSON has no representation for infinity.
func (p PerformanceMetrics) MarshalJSON() ([]byte, error) {
	type alias PerformanceMetrics
	out := struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: alias(p)}
	if !math.IsInf(p.ProfitFactor, 0) && !math.IsNaN(p.ProfitFactor) {
		pf := p.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// ComputeRiskMetrics folds active valuations and the realized history into
// portfolio exposure numbers.
func (e *Engine) ComputeRiskMetrics(active []TradeValuation, completed []models.CompletedTrade) RiskMetrics {
	m := RiskMetrics{}
	haveTrade := false
	minPnL := math.Inf(1)

	for _, v := range active {
		m.TotalDelta += v.Delta
		m.TotalTheta += v.Theta
		m.TotalGamma += v.Gamma
		m.TotalVega += v.Vega
		m.TotalAbsCurrentValue += absFloat(v.CurrentValue)
		haveTrade = true
		if v.TotalPnL < minPnL {
			minPnL = v.TotalPnL
		}
	}
	for _, c := range completed {
		haveTrade = true
		if c.ActualProfitLoss < minPnL {
			minPnL = c.ActualProfitLoss
		}
	}
	if haveTrade {
		m.MaxLoss = minPnL
	}
	if e.accountSize > 0 {
		m.PositionSizePct = m.TotalAbsCurrentValue / e.accountSize * 100
	}
	return m
}

// ComputePerformanceMetrics combines unrealized and realized outcomes.
// Active trades count toward the win rate at their mark-to-market P&L;
// everything else is computed over completed trades.
func (e *Engine) ComputePerformanceMetrics(active []TradeValuation, completed []models.CompletedTrade) PerformanceMetrics {
	m := PerformanceMetrics{
		TotalTrades: len(active) + len(completed),
		MonthlyPnL:  make(map[string]float64),
		WeeklyPnL:   make(map[string]float64),
	}

	for _, v := range active {
		if v.TotalPnL > 0 {
			m.WinningTrades++
		}
	}

	var grossProfit, grossLoss float64
	var winSum, lossSum float64
	var winCount, lossCount int
	var holdSum float64
	returns := make([]float64, 0, len(completed))

	for _, c := range completed {
		pnl := c.ActualProfitLoss
		if pnl > 0 {
			m.WinningTrades++
			grossProfit += pnl
			winSum += pnl
			winCount++
			if pnl > m.LargestWinner {
				m.LargestWinner = pnl
			}
		} else if pnl < 0 {
			grossLoss += -pnl
			lossSum += pnl
			lossCount++
			if pnl < m.LargestLoser {
				m.LargestLoser = pnl
			}
		}
		holdSum += holdDays(c.EntryDate, c.CloseDate)
		returns = append(returns, c.ProfitLossPercent())

		month := c.CloseDate.Format("2006-01")
		m.MonthlyPnL[month] += pnl
		year, week := c.CloseDate.ISOWeek()
		m.WeeklyPnL[fmt.Sprintf("%d-W%02d", year, week)] += pnl
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else {
		m.ProfitFactor = math.Inf(1)
	}
	if winCount > 0 {
		m.AvgWinner = winSum / float64(winCount)
	}
	if lossCount > 0 {
		m.AvgLoser = lossSum / float64(lossCount)
	}
	if len(completed) > 0 {
		m.AvgHoldDays = holdSum / float64(len(completed))
	}
	if sd := stdDev(returns); sd > 0 {
		m.SharpeRatio = mean(returns) / sd
	}
	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
