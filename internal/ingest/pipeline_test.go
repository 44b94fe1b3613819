package ingest

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadtrack/internal/models"
	"spreadtrack/internal/provider"
	"spreadtrack/internal/storage"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func scanItem(underlying string, strikes ...float64) provider.ScanItem {
	return provider.ScanItem{
		Underlying:      underlying,
		Name:            underlying + " spread",
		StockLast:       445.12,
		ExpirationDates: []string{"2026-10-16"},
		Strikes:         strikes,
		MaxProfit:       1.25,
	}
}

func TestInferStrategy(t *testing.T) {
	tests := []struct {
		name    string
		strikes []float64
		want    models.Strategy
		wantErr bool
	}{
		{name: "four strikes is an iron condor", strikes: []float64{410, 405, 470, 475}, want: models.StrategyIronCondor},
		{name: "ascending pair is a bull put", strikes: []float64{410, 415}, want: models.StrategyBullPut},
		{name: "descending pair is a bear call", strikes: []float64{470, 465}, want: models.StrategyBearCall},
		{name: "no strikes", strikes: nil, wantErr: true},
		{name: "three strikes", strikes: []float64{410, 415, 420}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inferStrategy(tt.strikes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessScanResultsStoresTrades(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewPipeline(store, testLogger())

	result := &provider.ScanResultSet{Items: []provider.ScanItem{
		scanItem("SPY", 410, 415),
		scanItem("QQQ", 470, 465),
	}}
	ids := p.ProcessScanResults(context.Background(), result, "weekly scan")
	require.Len(t, ids, 2)

	spy, err := store.GetTradeByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.StrategyBullPut, spy.Strategy)
	assert.Equal(t, models.StatusOpen, spy.Status)
	assert.Equal(t, 1, spy.Contracts)
	assert.Equal(t, 1.25, spy.NetCredit)
	assert.Equal(t, 445.12, spy.UnderlyingPrice)
	require.NotNil(t, spy.ShortPutStrike)
	assert.Equal(t, 410.0, *spy.ShortPutStrike)
	assert.Equal(t, "SPY261016P00410000", spy.ShortPutSymbol)
	assert.Equal(t, "SPY261016P00415000", spy.LongPutSymbol)

	qqq, err := store.GetTradeByID(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, models.StrategyBearCall, qqq.Strategy)
	assert.Equal(t, "QQQ261016C00470000", qqq.ShortCallSymbol)
}

func TestProcessScanResultsIronCondor(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewPipeline(store, testLogger())

	result := &provider.ScanResultSet{Items: []provider.ScanItem{
		scanItem("SPY", 410, 405, 470, 475),
	}}
	ids := p.ProcessScanResults(context.Background(), result, "condor scan")
	require.Len(t, ids, 1)

	trade, err := store.GetTradeByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.StrategyIronCondor, trade.Strategy)
	assert.Len(t, trade.ResolveLegs(), 4)
}

func TestProcessScanResultsSuppressesDuplicates(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewPipeline(store, testLogger())

	first := p.ProcessScanResults(context.Background(), &provider.ScanResultSet{Items: []provider.ScanItem{
		scanItem("SPY", 410, 415),
	}}, "scan")
	require.Len(t, first, 1)

	// Same symbol and strategy again: suppressed. A different strategy on
	// the same symbol is allowed.
	second := p.ProcessScanResults(context.Background(), &provider.ScanResultSet{Items: []provider.ScanItem{
		scanItem("SPY", 405, 412),
		scanItem("SPY", 410, 405, 470, 475),
	}}, "scan")
	require.Len(t, second, 1)

	trade, err := store.GetTradeByID(context.Background(), second[0])
	require.NoError(t, err)
	assert.Equal(t, models.StrategyIronCondor, trade.Strategy)
}

func TestProcessScanResultsDuplicateWithinBatch(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewPipeline(store, testLogger())

	ids := p.ProcessScanResults(context.Background(), &provider.ScanResultSet{Items: []provider.ScanItem{
		scanItem("SPY", 410, 415),
		scanItem("SPY", 400, 405),
	}}, "scan")
	assert.Len(t, ids, 1)
}

func TestProcessScanResultsSkipsBadItems(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewPipeline(store, testLogger())

	noPrice := scanItem("IWM", 210, 215)
	noPrice.StockLast = 0
	noExpiration := scanItem("DIA", 390, 395)
	noExpiration.ExpirationDates = nil
	badStrikes := scanItem("GLD", 180, 185, 190)

	ids := p.ProcessScanResults(context.Background(), &provider.ScanResultSet{Items: []provider.ScanItem{
		noPrice,
		noExpiration,
		badStrikes,
		scanItem("SPY", 410, 415),
	}}, "scan")
	require.Len(t, ids, 1, "one valid item among the broken ones")

	trade, err := store.GetTradeByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "SPY", trade.Symbol)
}

func TestProcessScanResultsEmpty(t *testing.T) {
	store := storage.NewMemoryStorage()
	p := NewPipeline(store, testLogger())
	assert.Nil(t, p.ProcessScanResults(context.Background(), nil, "scan"))
	assert.Nil(t, p.ProcessScanResults(context.Background(), &provider.ScanResultSet{}, "scan"))
}
