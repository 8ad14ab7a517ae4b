// Command watcher scans the raw WRF output tree once, reports which chunks
// are complete and runs post-processing and plotting for the ready ones.
// It is meant to be started by cron; overlapping runs are serialized with
// RUN_LOCK_FILE.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	wrffs "github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	kafkaadapter "github.com/couchcryptid/wrf-postprocess/internal/adapter/kafka"
	"github.com/couchcryptid/wrf-postprocess/internal/adapter/script"
	"github.com/couchcryptid/wrf-postprocess/internal/adapter/settings"
	"github.com/couchcryptid/wrf-postprocess/internal/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/lock"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
	"github.com/couchcryptid/wrf-postprocess/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	exitFailure = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitConfig
	}

	runID := observability.NewRunID()
	logger := observability.WithRun(observability.NewLogger(cfg.LogLevel, cfg.LogFormat), runID)
	metrics := observability.NewMetrics()

	if cfg.RunLockFile != "" {
		fl := lock.NewFileLock(cfg.RunLockFile)
		if err := fl.TryLock(); err != nil {
			logger.Error("cannot take run lock", "path", fl.Path(), "error", err)
			return exitConfig
		}
		defer func() {
			if err := fl.Unlock(); err != nil {
				logger.Error("release run lock", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lister := wrffs.NewCachedLister(wrffs.OSLister{}, cfg.ListingCacheSize)

	p, closeSink, err := build(cfg, lister, logger, metrics)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitCode(err)
	}
	defer closeSink()

	_, err = p.Run(ctx, runID)
	recordListingStats(lister, metrics)

	exporter := observability.Exporter{
		Gatherer: prometheus.DefaultGatherer,
		Job:      "wrf_watcher",
		PushURL:  cfg.MetricsPushgatewayURL,
		Textfile: cfg.MetricsTextfile,
	}
	if exporter.Enabled() {
		exportCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if xerr := exporter.Export(exportCtx); xerr != nil {
			logger.Error("metrics export failed", "error", xerr)
		}
		cancel()
	}

	if err != nil {
		logger.Error("run failed", "error", err)
		return exitCode(err)
	}
	logger.Info("run complete")
	return 0
}

// build wires the pipeline. The returned func closes the status sink.
func build(cfg *config.Config, lister *wrffs.CachedLister, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, func(), error) {
	matcher, err := domain.NewMatcher(cfg.WRFDomain)
	if err != nil {
		return nil, nil, &domain.ConfigError{Path: "WRF_DOMAIN", Err: err}
	}

	start := cfg.StartYear
	if start == 0 {
		if start, err = pipeline.DetectStartYear(lister, cfg.BaseDir); err != nil {
			return nil, nil, err
		}
		logger.Info("start year detected", "start_year", start)
	}
	span := cfg.Span(start)
	if err := span.Validate(); err != nil {
		return nil, nil, &domain.ConfigError{Reason: "invalid simulation span", Err: err}
	}

	evaluator := pipeline.NewEvaluator(lister, matcher, span, metrics)
	scanner := pipeline.NewScanner(cfg.BaseDir, span, evaluator, logger, metrics)

	var store pipeline.SettingsWriter
	if cfg.PlottingEnabled() {
		store = settings.NewStore(cfg.PlotConfig)
	} else {
		logger.Info("plotting disabled, PLOT_SCRIPT is empty")
	}
	runner := script.NewRunner(cfg.ShutdownTimeout, logger)
	dispatcher := pipeline.NewDispatcher(cfg.Dispatch, span, lister, runner, store, os.Stdout, logger, metrics)

	var sink pipeline.StatusSink
	closeSink := func() {}
	if cfg.KafkaEnabled {
		pub := kafkaadapter.NewPublisher(cfg, logger)
		sink = pub
		closeSink = func() {
			if err := pub.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}
		logger.Info("readiness events enabled", "topic", cfg.KafkaReadinessTopic)
	}

	return pipeline.New(scanner, dispatcher, sink, matcher, os.Stdout, logger, metrics), closeSink, nil
}

func recordListingStats(l *wrffs.CachedLister, m *observability.Metrics) {
	hits, misses := l.Stats()
	m.ListingLookups.WithLabelValues("hit").Add(float64(hits))
	m.ListingLookups.WithLabelValues("miss").Add(float64(misses))
}

// exitCode maps configuration problems to 2 and everything else to 1.
func exitCode(err error) int {
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) || errors.Is(err, lock.ErrHeld) {
		return exitConfig
	}
	return exitFailure
}
