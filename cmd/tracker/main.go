package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"spreadtrack/internal/analytics"
	"spreadtrack/internal/config"
	"spreadtrack/internal/dashboard"
	"spreadtrack/internal/ingest"
	"spreadtrack/internal/lifecycle"
	"spreadtrack/internal/logging"
	"spreadtrack/internal/pricesync"
	"spreadtrack/internal/provider"
	"spreadtrack/internal/report"
	"spreadtrack/internal/retry"
	"spreadtrack/internal/storage"
)

// Tracker wires the collection, lifecycle, and reporting components
// around one storage backend.
type Tracker struct {
	config    *config.Config
	store     storage.Interface
	sync      *pricesync.Engine
	lifecycle *lifecycle.Manager
	collector *report.Collector
	ingest    *ingest.Pipeline
	scans     provider.ScanProvider
	dashboard *dashboard.Server
	logger    *logrus.Logger
	printOut  bool
	stop      chan struct{}
}

func main() {
	var configPath string
	var printReport bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&printReport, "print", false, "Print a report summary table after each cycle")
	flag.Parse()

	// Best effort: tokens may come from a local .env instead of the shell.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.Environment.LogLevel, cfg.Environment.LogFile)
	logger.WithField("mode", cfg.Environment.Mode).Info("starting spread tracker")

	store, err := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	quotes := provider.NewCircuitBreakerProvider(
		retry.NewClient(
			provider.NewTradierClient(cfg.Provider.APIKey, cfg.IsSandbox(), cfg.ProviderTimeout(), logger),
			logger,
		),
		logger,
	)

	engine := analytics.NewEngine(store, logger, cfg.Account.Size)
	tracker := &Tracker{
		config: cfg,
		store:  store,
		sync: pricesync.NewEngine(store, quotes, logger, pricesync.Config{
			TradeWorkers: cfg.Sync.TradeWorkers,
		}),
		lifecycle: lifecycle.NewManager(store, logger),
		collector: report.NewCollector(store, engine, logger),
		logger:    logger,
		printOut:  printReport,
		stop:      make(chan struct{}),
	}

	if cfg.ScanEnabled() {
		tracker.scans = provider.NewScanClient(cfg.Scan.Token, cfg.Scan.BaseURL, cfg.ProviderTimeout(), logger)
		tracker.ingest = ingest.NewPipeline(store, logger)
	}

	if cfg.Dashboard.Enabled {
		tracker.dashboard = dashboard.NewServer(dashboard.Config{Addr: cfg.Dashboard.Addr}, logger)
		go func() {
			if err := tracker.dashboard.Start(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("dashboard server stopped")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, stopping tracker")
		close(tracker.stop)
		cancel()
	}()

	if err := tracker.Run(ctx); err != nil {
		logger.Fatalf("Tracker error: %v", err)
	}

	if tracker.dashboard != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracker.dashboard.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("dashboard shutdown failed")
		}
	}
	logger.Info("tracker stopped")
}

// Run drives the cycle loop until the stop signal. The stop signal is
// checked between cycles only; a cycle in flight finishes first.
func (t *Tracker) Run(ctx context.Context) error {
	syncTicker := time.NewTicker(t.config.SyncInterval())
	defer syncTicker.Stop()

	var scanC <-chan time.Time
	if t.scans != nil {
		scanTicker := time.NewTicker(t.config.ScanInterval())
		defer scanTicker.Stop()
		scanC = scanTicker.C
		t.runScanCycle(ctx)
	}

	t.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stop:
			return nil
		case <-syncTicker.C:
			t.runCycle(ctx)
		case <-scanC:
			t.runScanCycle(ctx)
		}
	}
}

// runCycle performs one sync + lifecycle + report pass.
func (t *Tracker) runCycle(ctx context.Context) {
	trades, err := t.store.GetActiveTrades(ctx, "")
	if err != nil {
		t.logger.WithError(err).Error("cannot load active trades, skipping cycle")
		return
	}

	stats, err := t.sync.Synchronize(ctx, trades)
	if err != nil {
		t.logger.WithError(err).Warn("sync cycle interrupted")
		return
	}
	if stats.Errors > 0 {
		t.logger.WithField("errors", stats.Errors).Warn("sync cycle completed with errors")
	}

	if _, err := t.lifecycle.ProcessActiveTrades(ctx); err != nil {
		t.logger.WithError(err).Error("lifecycle pass failed")
	}

	r := t.collector.Collect(ctx)
	if t.dashboard != nil {
		t.dashboard.Publish(r)
	}
	if t.printOut {
		report.RenderSummary(os.Stdout, r)
	}
}

// runScanCycle pulls every saved scan and ingests its results.
func (t *Tracker) runScanCycle(ctx context.Context) {
	scans, err := t.scans.ListScans(ctx)
	if err != nil {
		t.logger.WithError(err).Error("failed to list scans")
		return
	}
	for _, scan := range scans {
		result, err := t.scans.RunScan(ctx, scan.ID)
		if err != nil {
			t.logger.WithError(err).WithField("scan", scan.Label).Error("scan run failed")
			continue
		}
		t.ingest.ProcessScanResults(ctx, result, scan.Label)
	}
}
