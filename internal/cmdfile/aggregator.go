package cmdfile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
)

// ExistingPolicy decides what an already present output means.
type ExistingPolicy string

const (
	// SkipExisting leaves the output alone and counts it as skipped.
	SkipExisting ExistingPolicy = "skip"
	// FailExisting stops generation with domain.ErrOutputExists.
	FailExisting ExistingPolicy = "fail"
)

// ParseExistingPolicy accepts "skip" and "fail".
func ParseExistingPolicy(s string) (ExistingPolicy, error) {
	switch p := ExistingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SkipExisting, FailExisting:
		return p, nil
	}
	return "", fmt.Errorf("unknown existing-output policy %q (want skip or fail)", s)
}

// Tool is the executable every aggregation command runs.
const Tool = "cdo"

// Catalog supplies the CMOR view of a variable at a frequency. ok is false
// when the variable is not published at that frequency; an empty statistic
// with ok set means the table names no time method.
type Catalog interface {
	Statistic(ctx context.Context, variable string, frequency domain.Frequency) (domain.TimeStatistic, bool, error)
}

// Options configure one generation run.
type Options struct {
	OutputDir string
	// Label is the CORDEX filename middle part, e.g.
	// "NAM-12_ERA5_evaluation_r1i1p1f1_NCAR_WRF461_v1-r1".
	Label           string
	SourceFrequency domain.Frequency
	OnExisting      ExistingPolicy
	// Force regenerates outputs that already exist, whatever OnExisting says.
	Force bool
}

// Group is one merge-and-reduce command over a year range.
type Group struct {
	Variable  string
	Frequency domain.Frequency
	Range     domain.YearRange
	Inputs    []string
	Output    string
	Operators []string
}

// Command renders the group as "cdo -O <operator-chain> <inputs> <output>".
func (g Group) Command() string {
	parts := []string{Tool, "-O"}
	switch len(g.Operators) {
	case 0:
		parts = append(parts, "mergetime")
	default:
		parts = append(parts, g.Operators[0])
		for _, op := range g.Operators[1:] {
			parts = append(parts, "-"+op)
		}
		parts = append(parts, "-mergetime")
	}
	parts = append(parts, g.Inputs...)
	parts = append(parts, g.Output)
	return strings.Join(parts, " ")
}

// Summary counts the outcome of one run.
type Summary struct {
	Emitted int
	Skipped int
	// Dropped counts request entries the catalog does not publish.
	Dropped int
}

// Aggregator turns data requests and discovered inputs into command groups.
// One Aggregator is one run: an output path is emitted at most once.
type Aggregator struct {
	lister  domain.Lister
	catalog Catalog
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	emitted map[string]bool
}

// NewAggregator creates an Aggregator. catalog may be nil.
func NewAggregator(l domain.Lister, catalog Catalog, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	if opts.OnExisting == "" {
		opts.OnExisting = SkipExisting
	}
	if opts.SourceFrequency == "" {
		opts.SourceFrequency = domain.Freq1Hour
	}
	return &Aggregator{
		lister:  l,
		catalog: catalog,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		emitted: make(map[string]bool),
	}
}

// Plan builds one command file per requested (variable, frequency) pair.
// A pair whose outputs all exist yields an empty file so a stale one is
// overwritten; variables without inputs and dropped pairs yield none.
func (a *Aggregator) Plan(ctx context.Context, requests []Request, inputs Inputs) ([]File, Summary, error) {
	var (
		files []File
		sum   Summary
	)
	for _, req := range requests {
		span, ok := inputs.Years(req.Variable)
		if !ok {
			a.logger.Warn("no inputs for requested variable", "variable", req.Variable)
			continue
		}
		for _, freq := range req.Frequencies {
			if err := a.checkFrequency(freq); err != nil {
				return nil, sum, err
			}
			stat, ok, err := a.statistic(ctx, req, freq)
			if err != nil {
				return nil, sum, err
			}
			if !ok {
				a.logger.Info("variable not in CMOR table, dropped", "variable", req.Variable, "frequency", freq)
				sum.Dropped++
				continue
			}

			file := File{Name: FileName(req.Variable, string(freq))}
			for _, r := range domain.AggregationRanges(freq, span.Start, span.End) {
				g, err := a.group(req.Variable, freq, stat, r, inputs)
				if err != nil {
					return nil, sum, err
				}
				if g == nil {
					continue
				}
				emit, err := a.admit(g.Output, string(freq))
				if err != nil {
					return nil, sum, err
				}
				if !emit {
					sum.Skipped++
					continue
				}
				file.Lines = append(file.Lines, g.Command())
				sum.Emitted++
				a.metrics.CommandsEmitted.WithLabelValues(string(freq)).Inc()
			}
			files = append(files, file)
		}
	}
	if sum.Skipped > 0 {
		a.logger.Info("existing outputs skipped", "count", sum.Skipped)
	}
	return files, sum, nil
}

// checkFrequency rejects targets finer than the source data.
func (a *Aggregator) checkFrequency(target domain.Frequency) error {
	if frequencyRank(target) < frequencyRank(a.opts.SourceFrequency) {
		return fmt.Errorf("cannot derive %s output from %s input", target, a.opts.SourceFrequency)
	}
	return nil
}

func frequencyRank(f domain.Frequency) int {
	switch f {
	case domain.Freq1Hour:
		return 1
	case domain.Freq3Hour:
		return 3
	case domain.Freq6Hour:
		return 6
	case domain.FreqDay:
		return 24
	case domain.FreqMonth:
		return 24 * 31
	}
	return 0
}

func (a *Aggregator) statistic(ctx context.Context, req Request, freq domain.Frequency) (domain.TimeStatistic, bool, error) {
	var stat domain.TimeStatistic
	if a.catalog != nil {
		st, ok, err := a.catalog.Statistic(ctx, req.Variable, freq)
		if err != nil {
			return "", false, fmt.Errorf("cmor lookup %s %s: %w", req.Variable, freq, err)
		}
		if !ok {
			return "", false, nil
		}
		stat = st
	}
	if req.Statistic != "" {
		stat = req.Statistic
	}
	if stat == "" {
		stat = domain.StatMean
	}
	return stat, true, nil
}

// group builds the command for one range, or nil when no input falls in it.
func (a *Aggregator) group(variable string, freq domain.Frequency, stat domain.TimeStatistic, r domain.YearRange, inputs Inputs) (*Group, error) {
	in := inputs.Within(variable, r)
	if len(in) == 0 {
		return nil, nil
	}
	ops, err := Operators(a.opts.SourceFrequency, freq, stat)
	if err != nil {
		return nil, err
	}
	return &Group{
		Variable:  variable,
		Frequency: freq,
		Range:     r,
		Inputs:    in,
		Output:    filepath.Join(a.opts.OutputDir, OutputName(variable, a.opts.Label, freq, r)),
		Operators: ops,
	}, nil
}

// admit applies the dedupe and existing-output rules to output.
func (a *Aggregator) admit(output, freq string) (bool, error) {
	if a.emitted[output] {
		return false, nil
	}
	exists, err := domain.FileExists(a.lister, output)
	if err != nil {
		return false, fmt.Errorf("check output %s: %w", output, err)
	}
	if exists && !a.opts.Force {
		if a.opts.OnExisting == FailExisting {
			return false, fmt.Errorf("%s: %w (use --force to overwrite)", output, domain.ErrOutputExists)
		}
		a.metrics.CommandsSkipped.WithLabelValues(freq).Inc()
		return false, nil
	}
	a.emitted[output] = true
	return true, nil
}

// OutputName is the CORDEX-style name of an aggregated file:
// <variable>_<label>_<frequency>_<time range>.nc.
func OutputName(variable, label string, freq domain.Frequency, r domain.YearRange) string {
	parts := []string{variable}
	if label != "" {
		parts = append(parts, label)
	}
	parts = append(parts, string(freq), domain.TimeRangeSuffix(freq, r))
	return strings.Join(parts, "_") + ".nc"
}

// Operators returns the cdo reduction chain, outermost first, that turns
// source data into target data. An empty chain means a plain merge.
func Operators(source, target domain.Frequency, stat domain.TimeStatistic) ([]string, error) {
	if source == target {
		return nil, nil
	}
	reduce := string(stat)
	if stat == domain.StatPoint {
		// Daily and monthly point values are not published; reduce by mean.
		reduce = string(domain.StatMean)
	}
	switch {
	case target == domain.FreqMonth:
		return []string{"mon" + reduce}, nil
	case target == domain.FreqDay:
		return []string{"day" + reduce}, nil
	case target.SubDaily():
		steps := frequencyRank(target) / frequencyRank(source)
		if stat == domain.StatPoint {
			return []string{"selhour," + hours(frequencyRank(target))}, nil
		}
		return []string{"timsel" + string(stat) + "," + strconv.Itoa(steps)}, nil
	}
	return nil, fmt.Errorf("no operator for %s", target)
}

// hours lists the hours of day on a step grid, "0,3,6,...,21".
func hours(step int) string {
	var out []string
	for h := 0; h < 24; h += step {
		out = append(out, strconv.Itoa(h))
	}
	return strings.Join(out, ",")
}
