// Package pipeline scans the raw WRF output tree for complete chunks and
// dispatches the post-processing and plotting work they still need.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
)

// StatusSink receives the per-chunk statuses of a scan.
type StatusSink interface {
	Publish(ctx context.Context, statuses []domain.ChunkStatus) error
}

// Pipeline runs one scan-evaluate-dispatch cycle.
type Pipeline struct {
	scanner    *Scanner
	dispatcher *Dispatcher
	sink       StatusSink
	out        io.Writer
	matcher    *domain.Matcher
	logger     *slog.Logger
	metrics    *observability.Metrics

	// Verbose itemizes the missing files of every incomplete chunk.
	Verbose bool
}

// New creates a Pipeline. A nil dispatcher makes it a read-only scan; a
// nil sink disables status publishing.
func New(s *Scanner, d *Dispatcher, sink StatusSink, m *domain.Matcher, out io.Writer, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		scanner:    s,
		dispatcher: d,
		sink:       sink,
		matcher:    m,
		out:        out,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run checks the collaborators, scans every chunk, reports the verdicts and
// dispatches work for ready chunks. Incomplete and missing chunks are not
// errors. The scan result is returned even when dispatch fails.
func (p *Pipeline) Run(ctx context.Context, runID string) (*ScanResult, error) {
	if p.dispatcher != nil {
		if err := p.dispatcher.CheckCollaborators(); err != nil {
			return nil, err
		}
	}

	res, err := p.scanner.Scan(runID)
	if err != nil {
		return nil, err
	}
	WriteVerdicts(p.out, res, p.matcher, p.Verbose)
	p.publish(ctx, res.Statuses)

	if p.dispatcher != nil {
		if err := p.dispatcher.Dispatch(ctx, res.Report); err != nil {
			return res, err
		}
	}
	p.metrics.LastSuccess.SetToCurrentTime()
	return res, nil
}

// publish hands statuses to the sink. Failures are logged; the scan stands.
func (p *Pipeline) publish(ctx context.Context, statuses []domain.ChunkStatus) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, statuses); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Error("publish chunk statuses failed", "error", err)
		return
	}
	p.metrics.EventsPublished.Add(float64(len(statuses)))
}

// WriteVerdicts prints one line per chunk for the operator. With verbose
// set and a matcher given, every absent daily file is listed under its
// chunk.
func WriteVerdicts(w io.Writer, res *ScanResult, m *domain.Matcher, verbose bool) {
	for _, s := range res.Statuses {
		switch s.State {
		case domain.ChunkMissing:
			fmt.Fprintf(w, "%s: missing chunk directory %s\n", s.Chunk, s.Path)
		case domain.ChunkIncomplete:
			fmt.Fprintf(w, "%s: incomplete, missing years: %s\n", s.Chunk, joinYears(s.MissingYears))
			if verbose && m != nil {
				writeGaps(w, res.Verdicts[s.Path], m)
			}
		case domain.ChunkReady:
			fmt.Fprintf(w, "%s: ready, years: %s\n", s.Chunk, joinYears(s.CompleteYears))
		}
	}
}

func writeGaps(w io.Writer, v *domain.CompletenessVerdict, m *domain.Matcher) {
	if v == nil {
		return
	}
	for _, g := range v.Gaps {
		fmt.Fprintf(w, "  %s %d: %d of %d files\n", g.Kind, g.Year, g.Observed, g.Expected)
		for _, d := range g.MissingDates {
			fmt.Fprintf(w, "    %s\n", m.Filename(g.Kind, d))
		}
	}
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprint(y)
	}
	return strings.Join(parts, " ")
}
