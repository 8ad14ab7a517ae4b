package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	wrffs "github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	"github.com/couchcryptid/wrf-postprocess/internal/cmdfile"
	"github.com/couchcryptid/wrf-postprocess/internal/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/pipeline"
	"github.com/spf13/cobra"
)

func newPostprocessCmd(a *app) *cobra.Command {
	var (
		python    string
		script    string
		years     string
		variables []string
		cmdDir    string
	)
	cmd := &cobra.Command{
		Use:   "postprocess",
		Short: "Post-process raw chunks one year per command",
		Long: `Writes <cmd-dir>/cmdfile with one post-processing command per variable
and year, each run against the chunk that counts the year. The simulation
span is read from the watcher environment (BASEDIR, YEARS_PER_CHUNK, ...).
A log directory per variable is created under <cmd-dir>.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadScan()
			if err != nil {
				return &domain.ConfigError{Reason: "invalid environment", Err: err}
			}
			start := cfg.StartYear
			if start == 0 {
				if start, err = pipeline.DetectStartYear(wrffs.OSLister{}, cfg.BaseDir); err != nil {
					return err
				}
			}
			span := cfg.Span(start)
			if err := span.Validate(); err != nil {
				return &domain.ConfigError{Reason: "invalid simulation span", Err: err}
			}

			r := domain.YearRange{Start: span.StartYear, End: span.FinalYear() - 1}
			if years != "" {
				if r, err = parseYears(years); err != nil {
					return &domain.ConfigError{Path: "--years", Err: err}
				}
			}
			if script == "" {
				script = cfg.PostprocessScript
			}
			if script == "" {
				return domain.NewConfigError("--script", "post-processing script is required")
			}
			if ok, _ := domain.FileExists(wrffs.OSLister{}, script); !ok {
				return domain.NewConfigError(script, "post-processing script not found")
			}
			abs, err := filepath.Abs(script)
			if err != nil {
				return err
			}

			f, skipped, err := cmdfile.PostprocessFile(cmdfile.PostprocessOptions{
				Python:    python,
				Script:    abs,
				Root:      cfg.BaseDir,
				Span:      span,
				Years:     r,
				Variables: variables,
			})
			if err != nil {
				return &domain.ConfigError{Reason: "cannot build post-processing commands", Err: err}
			}
			if len(skipped) > 0 {
				a.logger.Warn("years outside every chunk", "years", skipped)
			}

			for _, d := range cmdfile.LogDirs(variables) {
				if err := os.MkdirAll(filepath.Join(cmdDir, d), 0o755); err != nil {
					return fmt.Errorf("create log dir: %w", err)
				}
			}
			paths, err := cmdfile.WriteFiles(cmdDir, []cmdfile.File{f})
			if err != nil {
				return err
			}
			a.metrics.CommandsEmitted.WithLabelValues("yr").Add(float64(len(f.Lines)))
			a.report(paths, len(f.Lines), len(skipped)*len(variables), 0)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&python, "python", "python", "interpreter that runs the script")
	fl.StringVar(&script, "script", "", "post-processing script (default POSTPROCESS_SCRIPT)")
	fl.StringVar(&years, "years", "", "inclusive year range, e.g. 1980-1990 (default the whole span)")
	fl.StringSliceVar(&variables, "variables", nil, "variables to post-process")
	fl.StringVar(&cmdDir, "cmd-dir", ".", "directory that receives cmdfile and the log directories")
	return cmd
}

// parseYears accepts "YYYY" or "YYYY-YYYY".
func parseYears(s string) (domain.YearRange, error) {
	from, to, ranged := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return domain.YearRange{}, fmt.Errorf("bad year %q", from)
	}
	end := start
	if ranged {
		if end, err = strconv.Atoi(strings.TrimSpace(to)); err != nil {
			return domain.YearRange{}, fmt.Errorf("bad year %q", to)
		}
	}
	if end < start {
		return domain.YearRange{}, fmt.Errorf("range %s ends before it starts", s)
	}
	return domain.YearRange{Start: start, End: end}, nil
}
