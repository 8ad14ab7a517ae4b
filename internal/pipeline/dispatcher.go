package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
)

// Runner executes one collaborator invocation to completion.
type Runner interface {
	Run(ctx context.Context, inv domain.Invocation) error
}

// SettingsWriter renders per-chunk plot settings from the static plot
// configuration.
type SettingsWriter interface {
	Check() error
	WriteSettings(path string, o domain.PlotOverrides) error
}

// invalidator is implemented by caching listers.
type invalidator interface {
	Invalidate(dir string)
}

// settingsDir holds the generated plot settings under PLOT_OUTPUT_DIR.
const settingsDir = ".settings"

// plotSuffix is the extension of rendered plots.
const plotSuffix = ".png"

// Dispatcher turns a readiness report into collaborator invocations, each
// output path at most once per run.
type Dispatcher struct {
	cfg      config.Dispatch
	span     domain.SimulationSpan
	lister   domain.Lister
	runner   Runner
	settings SettingsWriter
	out      io.Writer
	logger   *slog.Logger
	metrics  *observability.Metrics

	// issued holds the outputs of invocations run or planned this run.
	issued map[string]bool
}

// NewDispatcher creates a Dispatcher for chunks of span. settings may be nil
// when plotting is disabled. Planned invocations and inconsistencies are
// written to out.
func NewDispatcher(cfg config.Dispatch, span domain.SimulationSpan, l domain.Lister, r Runner, s SettingsWriter, out io.Writer, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		span:     span,
		lister:   l,
		runner:   r,
		settings: s,
		out:      out,
		logger:   logger,
		metrics:  metrics,
		issued:   make(map[string]bool),
	}
}

func (d *Dispatcher) planning() bool { return d.cfg.Mode == config.ModePlan }

// CheckCollaborators verifies the post-processing script and its CMORize
// helper exist side by side, and that the plot collaborator and its
// configuration are present when plotting is enabled. Every failure is a
// *domain.ConfigError.
func (d *Dispatcher) CheckCollaborators() error {
	for _, p := range []string{d.cfg.PostprocessScript, d.cfg.CmorizeScript} {
		if err := d.requireFile(p, "collaborator script not found"); err != nil {
			return err
		}
	}
	if filepath.Dir(filepath.Clean(d.cfg.PostprocessScript)) != filepath.Dir(filepath.Clean(d.cfg.CmorizeScript)) {
		return domain.NewConfigError(d.cfg.CmorizeScript,
			"CMORize helper must reside in the same directory as "+d.cfg.PostprocessScript)
	}

	if !d.cfg.PlottingEnabled() {
		return nil
	}
	if err := d.requireFile(d.cfg.PlotScript, "plot script not found"); err != nil {
		return err
	}
	if d.settings == nil {
		return domain.NewConfigError(d.cfg.PlotConfig, "no plot settings writer configured")
	}
	return d.settings.Check()
}

func (d *Dispatcher) requireFile(path, reason string) error {
	ok, err := domain.FileExists(d.lister, path)
	if err != nil {
		return &domain.ConfigError{Path: path, Reason: reason, Err: err}
	}
	if !ok {
		return domain.NewConfigError(path, reason)
	}
	return nil
}

// Dispatch issues the post-processing and plotting work the report still
// needs. A year counted by two chunks is handled only by the chunk
// SimulationSpan.ChunkFor names. Invocation failures are logged and
// collected; the remaining work still runs. An inconsistency aborts
// plotting for its chunk only.
func (d *Dispatcher) Dispatch(ctx context.Context, report domain.ReadinessReport) error {
	var errs []error
	for _, path := range report.Paths() {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		chunk := filepath.Base(path)
		years := d.ownedYears(chunk, report[path])

		perr, err := d.postprocess(ctx, path, years)
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
		errs = append(errs, perr...)

		if !d.cfg.PlottingEnabled() {
			continue
		}
		if err := d.plot(ctx, chunk, years); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ownedYears drops the years another chunk is responsible for. Those years
// wait for their owner to become ready.
func (d *Dispatcher) ownedYears(chunk string, years []int) []int {
	start, ok := domain.ParseChunkDirName(chunk)
	if !ok {
		return years
	}
	var out, deferred []int
	for _, y := range years {
		if owner, ok := d.span.ChunkFor(y); ok && owner != start {
			deferred = append(deferred, y)
			continue
		}
		out = append(out, y)
	}
	if len(deferred) > 0 {
		d.logger.Debug("years left to their owning chunk", "chunk", chunk, "years", deferred)
	}
	return out
}

// postprocess runs the collaborator for every (year, month, variable) of a
// ready chunk whose output is absent. It returns collaborator failures
// separately from listing failures, which are fatal.
func (d *Dispatcher) postprocess(ctx context.Context, chunkPath string, years []int) ([]error, error) {
	var failures []error
	for _, year := range years {
		for month := 1; month <= 12; month++ {
			for _, variable := range d.cfg.Variables() {
				output := d.postprocessOutput(variable, year, month)
				if d.issued[output] {
					continue
				}
				exists, err := domain.FileExists(d.lister, output)
				if err != nil {
					return failures, fmt.Errorf("check output %s: %w", output, err)
				}
				if exists {
					d.metrics.ObligationsSkipped.WithLabelValues(string(domain.CollaboratorPostprocess)).Inc()
					continue
				}

				inv := domain.Invocation{
					Collaborator: domain.CollaboratorPostprocess,
					Program:      d.cfg.Python,
					Args: []string{
						d.cfg.PostprocessScript,
						chunkPath,
						strconv.Itoa(year),
						domain.MonthString(month),
						variable,
						output,
					},
					Dir:    filepath.Dir(d.cfg.PostprocessScript),
					Output: output,
				}
				if err := d.issue(ctx, inv); err != nil {
					failures = append(failures, err)
				}
			}
		}
	}
	if l, ok := d.lister.(invalidator); ok && !d.planning() {
		l.Invalidate(d.cfg.PostprocessOutputDir)
	}
	return failures, nil
}

func (d *Dispatcher) postprocessOutput(variable string, year, month int) string {
	name := domain.Substitute(d.cfg.InputFnameTemplate, map[string]string{
		domain.PlaceholderYear:     strconv.Itoa(year),
		domain.PlaceholderMonth:    domain.MonthString(month),
		domain.PlaceholderVariable: variable,
	})
	return filepath.Join(d.cfg.PostprocessOutputDir, name+d.cfg.InputFnameExtension)
}

// plot renders the chunk's years unless every plot already exists. All
// plot inputs must be present first.
func (d *Dispatcher) plot(ctx context.Context, chunk string, years []int) error {
	if len(years) == 0 {
		return nil
	}
	done, err := d.plotsExist(years)
	if err != nil {
		return err
	}
	if done {
		d.logger.Info("plots already exist, skipping", "chunk", chunk, "years", years)
		d.metrics.ObligationsSkipped.WithLabelValues(string(domain.CollaboratorPlot)).Inc()
		return nil
	}

	variable := d.cfg.PlotVariable()
	missing, err := d.missingPlotInputs(variable, years)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		incErr := &domain.InconsistencyError{Chunk: chunk, Missing: missing}
		d.metrics.Inconsistencies.Inc()
		d.logger.Error("plot inputs missing for ready chunk", "chunk", chunk, "missing", len(missing))
		fmt.Fprintf(d.out, "%s: %d missing plot input files:\n", chunk, len(missing))
		for _, m := range missing {
			fmt.Fprintf(d.out, "  %s\n", m)
		}
		return incErr
	}

	overrides := domain.PlotOverrides{
		InputDir: d.cfg.PlotInputDir,
		InputFilenameTemplate: domain.Substitute(d.cfg.InputFnameTemplate, map[string]string{
			domain.PlaceholderVariable: variable,
		}),
		OutputFilenameTemplate: d.cfg.PlotFnameTemplate,
		OutputDir:              d.cfg.PlotOutputDir,
		DataVar:                variable,
		YearsByList:            true,
		MonthsByList:           true,
		Years:                  domain.YearStrings(years),
		MonthsList:             domain.AllMonths(),
	}
	settingsPath := filepath.Join(d.cfg.PlotOutputDir, settingsDir, chunk+".yaml")
	if !d.planning() {
		if err := d.settings.WriteSettings(settingsPath, overrides); err != nil {
			return fmt.Errorf("write plot settings for %s: %w", chunk, err)
		}
	}

	inv := domain.Invocation{
		Collaborator: domain.CollaboratorPlot,
		Program:      d.cfg.Python,
		Args:         []string{d.cfg.PlotScript, settingsPath},
		Dir:          filepath.Dir(d.cfg.PlotScript),
		Output:       settingsPath,
	}
	err = d.issue(ctx, inv)
	if l, ok := d.lister.(invalidator); ok && !d.planning() {
		l.Invalidate(d.cfg.PlotOutputDir)
	}
	return err
}

func (d *Dispatcher) plotPath(year int) string {
	name := domain.Substitute(d.cfg.PlotFnameTemplate, map[string]string{
		domain.PlaceholderYear: strconv.Itoa(year),
	})
	return filepath.Join(d.cfg.PlotOutputDir, name+plotSuffix)
}

func (d *Dispatcher) plotsExist(years []int) (bool, error) {
	for _, y := range years {
		ok, err := domain.FileExists(d.lister, d.plotPath(y))
		if err != nil {
			return false, fmt.Errorf("check plot: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// missingPlotInputs lists every absent input of the chunk. In plan mode an
// input the run would have produced counts as present.
func (d *Dispatcher) missingPlotInputs(variable string, years []int) ([]string, error) {
	var missing []string
	for _, y := range years {
		for m := 1; m <= 12; m++ {
			name := domain.Substitute(d.cfg.InputFnameTemplate, map[string]string{
				domain.PlaceholderYear:     strconv.Itoa(y),
				domain.PlaceholderMonth:    domain.MonthString(m),
				domain.PlaceholderVariable: variable,
			})
			path := filepath.Join(d.cfg.PlotInputDir, name+d.cfg.InputFnameExtension)
			if d.planning() && d.issued[path] {
				continue
			}
			ok, err := domain.FileExists(d.lister, path)
			if err != nil {
				return nil, fmt.Errorf("check plot input: %w", err)
			}
			if !ok {
				missing = append(missing, path)
			}
		}
	}
	return missing, nil
}

// issue runs or plans inv and records its output.
func (d *Dispatcher) issue(ctx context.Context, inv domain.Invocation) error {
	d.issued[inv.Output] = true
	collaborator := string(inv.Collaborator)

	if d.planning() {
		fmt.Fprintln(d.out, inv.String())
		d.metrics.Invocations.WithLabelValues(collaborator, "planned").Inc()
		return nil
	}

	d.logger.Info("invoking collaborator", "collaborator", collaborator, "output", inv.Output)
	start := time.Now()
	err := d.runner.Run(ctx, inv)
	d.metrics.InvocationDuration.WithLabelValues(collaborator).Observe(time.Since(start).Seconds())
	if err != nil {
		d.metrics.Invocations.WithLabelValues(collaborator, "error").Inc()
		return err
	}
	d.metrics.Invocations.WithLabelValues(collaborator, "success").Inc()
	return nil
}
