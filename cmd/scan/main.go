// Command scan prints the readiness of every chunk under BASEDIR without
// running any collaborator. It reads the same environment as the watcher.
//
// Usage:
//
//	BASEDIR=/glade/scratch/wrf/ERA5 go run ./cmd/scan -v
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	wrffs "github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	"github.com/couchcryptid/wrf-postprocess/internal/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
	"github.com/couchcryptid/wrf-postprocess/internal/pipeline"
)

func main() {
	verbose := flag.Bool("v", false, "list the absent daily files of every incomplete chunk")
	flag.Parse()
	os.Exit(run(*verbose))
}

func run(verbose bool) int {
	cfg, err := config.LoadScan()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 2
	}

	runID := observability.NewRunID()
	logger := observability.WithRun(observability.NewLogger(cfg.LogLevel, cfg.LogFormat), runID)
	metrics := observability.NewMetrics()

	matcher, err := domain.NewMatcher(cfg.WRFDomain)
	if err != nil {
		logger.Error("invalid WRF_DOMAIN", "error", err)
		return 2
	}
	lister := wrffs.NewCachedLister(wrffs.OSLister{}, cfg.ListingCacheSize)

	start := cfg.StartYear
	if start == 0 {
		if start, err = pipeline.DetectStartYear(lister, cfg.BaseDir); err != nil {
			logger.Error("cannot detect start year", "error", err)
			return 2
		}
	}
	span := cfg.Span(start)
	if err := span.Validate(); err != nil {
		logger.Error("invalid simulation span", "error", err)
		return 2
	}

	scanner := pipeline.NewScanner(cfg.BaseDir, span, pipeline.NewEvaluator(lister, matcher, span, metrics), logger, metrics)
	p := pipeline.New(scanner, nil, nil, matcher, os.Stdout, logger, metrics)
	p.Verbose = verbose

	res, err := p.Run(context.Background(), runID)
	if err != nil {
		logger.Error("scan failed", "error", err)
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			return 2
		}
		return 1
	}
	logger.Info("scan complete", "ready", len(res.Report), "incomplete", len(res.Incomplete()))
	return 0
}
