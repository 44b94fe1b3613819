// Package report composes analytics output into one immutable report
// structure and renders it for the console.
package report

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"spreadtrack/internal/analytics"
	"spreadtrack/internal/models"
	"spreadtrack/internal/storage"
)

// StrategyData is the per-strategy slice of the report.
type StrategyData struct {
	Strategy       models.Strategy              `json:"strategy"`
	ActiveCount    int                          `json:"active_count"`
	CompletedCount int                          `json:"completed_count"`
	UnrealizedPnL  float64                      `json:"unrealized_pnl"`
	RealizedPnL    float64                      `json:"realized_pnl"`
	Risk           analytics.RiskMetrics        `json:"risk"`
	Performance    analytics.PerformanceMetrics `json:"performance"`
}

// ReportData is one collected portfolio report. It is a value snapshot:
// every map and slice is freshly allocated per collection and never
// mutated afterwards.
type ReportData struct {
	GeneratedAt time.Time `json:"generated_at"`

	ActiveTradeCount    int     `json:"active_trade_count"`
	CompletedTradeCount int     `json:"completed_trade_count"`
	TotalUnrealizedPnL  float64 `json:"total_unrealized_pnl"`
	TotalRealizedPnL    float64 `json:"total_realized_pnl"`

	Valuations []analytics.TradeValuation `json:"valuations"`

	Strategies  map[models.Strategy]StrategyData `json:"strategies"`
	Risk        analytics.RiskMetrics            `json:"risk"`
	Performance analytics.PerformanceMetrics     `json:"performance"`
	Correlation map[string]map[string]float64    `json:"correlation"`

	// RiskConcentration is each symbol's share of total absolute current
	// value, in percent.
	RiskConcentration map[string]float64 `json:"risk_concentration"`
	// VolatilityExposure counts trades per implied-volatility bucket.
	// Trades with no observed leg IV are not bucketed.
	VolatilityExposure map[string]int `json:"volatility_exposure"`
}

// Volatility bucket names, keyed on average leg IV in percent.
const (
	VolBucketLow    = "low"    // < 20
	VolBucketMedium = "medium" // < 40
	VolBucketHigh   = "high"
)

// Collector assembles reports from storage and the analytics engine.
type Collector struct {
	store  storage.Interface
	engine *analytics.Engine
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewCollector creates a report collector.
func NewCollector(store storage.Interface, engine *analytics.Engine, logger logrus.FieldLogger) *Collector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{store: store, engine: engine, logger: logger, now: time.Now}
}

// Collect builds one report over the current portfolio. A repository read
// failure yields a zeroed but well-formed report a renderer can consume.
func (c *Collector) Collect(ctx context.Context) *ReportData {
	active, err := c.store.GetActiveTrades(ctx, "")
	if err != nil {
		c.logger.WithError(err).Error("failed to load active trades, producing empty report")
		return c.emptyReport()
	}
	completed, err := c.store.GetTradeHistory(ctx, "", 0)
	if err != nil {
		c.logger.WithError(err).Error("failed to load trade history, producing empty report")
		return c.emptyReport()
	}

	vals := c.engine.ValueTrades(ctx, active)

	r := c.emptyReport()
	r.ActiveTradeCount = len(active)
	r.CompletedTradeCount = len(completed)
	r.Valuations = vals
	r.Risk = c.engine.ComputeRiskMetrics(vals, completed)
	r.Performance = c.engine.ComputePerformanceMetrics(vals, completed)
	r.Correlation = analytics.CorrelationMatrix(vals)

	for _, v := range vals {
		r.TotalUnrealizedPnL += v.TotalPnL
	}
	for _, ct := range completed {
		r.TotalRealizedPnL += ct.ActualProfitLoss
	}

	c.fillStrategies(r, vals, completed)
	c.fillConcentration(r, vals)
	c.fillVolatility(r, vals)
	return r
}

func (c *Collector) emptyReport() *ReportData {
	return &ReportData{
		GeneratedAt:        c.now().UTC(),
		Valuations:         []analytics.TradeValuation{},
		Strategies:         make(map[models.Strategy]StrategyData),
		Correlation:        make(map[string]map[string]float64),
		RiskConcentration:  make(map[string]float64),
		VolatilityExposure: make(map[string]int),
		Performance: analytics.PerformanceMetrics{
			MonthlyPnL: make(map[string]float64),
			WeeklyPnL:  make(map[string]float64),
		},
	}
}

func (c *Collector) fillStrategies(r *ReportData, vals []analytics.TradeValuation, completed []models.CompletedTrade) {
	valsByStrategy := make(map[models.Strategy][]analytics.TradeValuation)
	for _, v := range vals {
		valsByStrategy[v.Strategy] = append(valsByStrategy[v.Strategy], v)
	}
	doneByStrategy := make(map[models.Strategy][]models.CompletedTrade)
	for _, ct := range completed {
		doneByStrategy[ct.Strategy] = append(doneByStrategy[ct.Strategy], ct)
	}

	seen := make(map[models.Strategy]bool)
	for s := range valsByStrategy {
		seen[s] = true
	}
	for s := range doneByStrategy {
		seen[s] = true
	}
	for s := range seen {
		sv, sc := valsByStrategy[s], doneByStrategy[s]
		data := StrategyData{
			Strategy:       s,
			ActiveCount:    len(sv),
			CompletedCount: len(sc),
			Risk:           c.engine.ComputeRiskMetrics(sv, sc),
			Performance:    c.engine.ComputePerformanceMetrics(sv, sc),
		}
		for _, v := range sv {
			data.UnrealizedPnL += v.TotalPnL
		}
		for _, ct := range sc {
			data.RealizedPnL += ct.ActualProfitLoss
		}
		r.Strategies[s] = data
	}
}

func (c *Collector) fillConcentration(r *ReportData, vals []analytics.TradeValuation) {
	var total float64
	bySymbol := make(map[string]float64)
	for _, v := range vals {
		abs := v.CurrentValue
		if abs < 0 {
			abs = -abs
		}
		bySymbol[v.Symbol] += abs
		total += abs
	}
	if total == 0 {
		return
	}
	for sym, abs := range bySymbol {
		r.RiskConcentration[sym] = abs / total * 100
	}
}

func (c *Collector) fillVolatility(r *ReportData, vals []analytics.TradeValuation) {
	for _, v := range vals {
		if v.AvgLegIV == nil {
			continue
		}
		switch iv := *v.AvgLegIV; {
		case iv < 20:
			r.VolatilityExposure[VolBucketLow]++
		case iv < 40:
			r.VolatilityExposure[VolBucketMedium]++
		default:
			r.VolatilityExposure[VolBucketHigh]++
		}
	}
}
