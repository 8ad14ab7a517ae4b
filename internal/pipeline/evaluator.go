package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
)

// Evaluator decides whether one chunk directory holds a full year of files
// for every counted year and every eligible pattern kind.
type Evaluator struct {
	lister  domain.Lister
	matcher *domain.Matcher
	span    domain.SimulationSpan
	metrics *observability.Metrics
}

// NewEvaluator creates an Evaluator for chunks of span.
func NewEvaluator(l domain.Lister, m *domain.Matcher, span domain.SimulationSpan, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{lister: l, matcher: m, span: span, metrics: metrics}
}

// Evaluate lists the chunk directory once and checks every counted year.
// A listing error is returned as is; callers treat fs.ErrNotExist as a
// missing chunk and anything else as fatal.
func (e *Evaluator) Evaluate(chunk domain.ChunkDirectory) (*domain.CompletenessVerdict, error) {
	names, err := e.lister.ListNames(chunk.Path())
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", chunk.Name(), err)
	}

	obligations := domain.ChunkObligations(e.span, chunk.StartYear)
	nominal := e.span.ChunkYears(chunk.StartYear)

	v := &domain.CompletenessVerdict{
		Chunk:       chunk,
		Obligations: obligations,
		Counts:      make(map[domain.PatternKind]map[int]int),
	}

	missing := make(map[int]bool)
	for _, kind := range domain.EligiblePatternKinds() {
		stamps := e.matcher.Match(names, kind)
		e.metrics.FilesMatched.WithLabelValues(kind.String()).Add(float64(len(stamps)))

		byYear := groupByYear(stamps, nominal)
		counts := make(map[int]int, len(byYear))
		for y, s := range byYear {
			counts[y] = daysCovered(s)
		}
		v.Counts[kind] = counts

		for _, o := range obligations {
			if !o.Counted() || counts[o.Year] >= o.ExpectedFiles {
				continue
			}
			missing[o.Year] = true
			v.Gaps = append(v.Gaps, domain.Gap{
				Kind:         kind,
				Year:         o.Year,
				Observed:     counts[o.Year],
				Expected:     o.ExpectedFiles,
				MissingDates: missingDates(o.Year, byYear[o.Year]),
			})
		}
	}

	for _, o := range obligations {
		if missing[o.Year] {
			v.MissingYears = append(v.MissingYears, o.Year)
		}
	}
	return v, nil
}

// groupByYear buckets stamps by calendar year, dropping years outside r.
func groupByYear(stamps []domain.Stamp, r domain.YearRange) map[int][]domain.Stamp {
	out := make(map[int][]domain.Stamp)
	for _, s := range stamps {
		y := s.Time.Year()
		if !r.Contains(y) {
			continue
		}
		out[y] = append(out[y], s)
	}
	return out
}

// daysCovered counts the distinct calendar days among stamps. Extra files
// on one day never stand in for an absent day.
func daysCovered(stamps []domain.Stamp) int {
	days := make(map[int]bool, len(stamps))
	for _, s := range stamps {
		days[s.Time.YearDay()] = true
	}
	return len(days)
}

// missingDates lists the days of year with no stamp at all.
func missingDates(year int, stamps []domain.Stamp) []time.Time {
	present := make(map[int]bool, len(stamps))
	for _, s := range stamps {
		present[s.Time.YearDay()] = true
	}
	var out []time.Time
	day := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := 1; d <= domain.DaysInYear(year); d++ {
		if !present[d] {
			out = append(out, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}
