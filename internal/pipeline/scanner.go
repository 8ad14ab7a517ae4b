package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
)

// ScanResult is the outcome of one fleet scan.
type ScanResult struct {
	Span domain.SimulationSpan
	// Report holds ready chunks only.
	Report domain.ReadinessReport
	// Statuses has one entry per expected chunk, in chunk order.
	Statuses []domain.ChunkStatus
	// Verdicts holds the evaluated chunks keyed by path. Missing chunks have
	// no verdict.
	Verdicts map[string]*domain.CompletenessVerdict
}

// Incomplete returns the verdicts of chunks that exist but miss years, in
// chunk order.
func (r *ScanResult) Incomplete() []*domain.CompletenessVerdict {
	var out []*domain.CompletenessVerdict
	for _, s := range r.Statuses {
		if s.State == domain.ChunkIncomplete {
			out = append(out, r.Verdicts[s.Path])
		}
	}
	return out
}

// Scanner walks every chunk the span expects under one root directory.
type Scanner struct {
	root      string
	span      domain.SimulationSpan
	evaluator *Evaluator
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewScanner creates a Scanner.
func NewScanner(root string, span domain.SimulationSpan, evaluator *Evaluator, logger *slog.Logger, metrics *observability.Metrics) *Scanner {
	return &Scanner{root: root, span: span, evaluator: evaluator, logger: logger, metrics: metrics}
}

// Scan evaluates each expected chunk. Missing directories and incomplete
// chunks are results, not errors; any other listing failure stops the scan.
func (s *Scanner) Scan(runID string) (*ScanResult, error) {
	start := time.Now()
	defer func() { s.metrics.ScanDuration.Observe(time.Since(start).Seconds()) }()

	res := &ScanResult{
		Span:     s.span,
		Report:   make(domain.ReadinessReport),
		Verdicts: make(map[string]*domain.CompletenessVerdict),
	}

	totalMissing := 0
	for _, year := range s.span.ChunkStartYears() {
		chunk := domain.ChunkDirectory{Root: s.root, StartYear: year}

		v, err := s.evaluator.Evaluate(chunk)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("chunk directory missing", "chunk", chunk.Name(), "path", chunk.Path())
			v = nil
		case err != nil:
			return nil, err
		case !v.Complete():
			s.logger.Info("chunk incomplete",
				"chunk", chunk.Name(),
				"missing_years", v.MissingYears,
				"gaps", len(v.Gaps),
			)
			totalMissing += len(v.MissingYears)
		default:
			s.logger.Info("chunk ready", "chunk", chunk.Name(), "years", v.CompleteYears())
			res.Report[chunk.Path()] = v.CompleteYears()
		}

		status := domain.NewChunkStatus(runID, chunk, v)
		if v != nil {
			res.Verdicts[chunk.Path()] = v
		}
		res.Statuses = append(res.Statuses, status)
		s.metrics.ChunksScanned.WithLabelValues(string(status.State)).Inc()
	}
	s.metrics.MissingYears.Set(float64(totalMissing))

	s.logger.Info("scan complete",
		"chunks", len(res.Statuses),
		"ready", len(res.Report),
		"duration", time.Since(start),
	)
	return res, nil
}

// DetectStartYear returns the earliest chunk directory year under root.
func DetectStartYear(l domain.Lister, root string) (int, error) {
	names, err := l.ListNames(root)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, &domain.ConfigError{Path: root, Reason: "base directory does not exist", Err: err}
	}
	if err != nil {
		return 0, fmt.Errorf("detect start year: %w", err)
	}
	first := 0
	for _, name := range names {
		y, ok := domain.ParseChunkDirName(name)
		if !ok {
			continue
		}
		if first == 0 || y < first {
			first = y
		}
	}
	if first == 0 {
		return 0, domain.NewConfigError(root, "no YYYY_chunk directories found")
	}
	return first, nil
}
