// Command cmdfile writes command files for an external batch launcher:
// aggregation of post-processed files to CORDEX frequencies, yearly
// climate indices and per-year post-processing of raw chunks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/couchcryptid/wrf-postprocess/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// app carries what every subcommand shares.
type app struct {
	out       io.Writer
	logLevel  string
	logFormat string
	textfile  string

	logger   *slog.Logger
	metrics  *observability.Metrics
	registry *prometheus.Registry
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "cmdfile",
		Short:         "Write command files for the batch launcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = observability.NewLogger(a.logLevel, a.logFormat)
			a.metrics, a.registry = observability.NewMetricsRegistry()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.textfile == "" {
				return nil
			}
			e := observability.Exporter{Gatherer: a.registry, Job: "wrf_cmdfile", Textfile: a.textfile}
			return e.Export(cmd.Context())
		},
	}
	root.SetOut(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &domain.ConfigError{Reason: "invalid flags", Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "text", "json or text")
	pf.StringVar(&a.textfile, "metrics-textfile", "", "write run metrics to this node_exporter textfile")

	root.AddCommand(newAggregateCmd(a), newIndexCmd(a), newPostprocessCmd(a))
	return root
}

// report prints the paths written and the run summary.
func (a *app) report(paths []string, emitted, skipped, dropped int) {
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	fmt.Fprintf(a.out, "%d commands, %d skipped, %d dropped\n", emitted, skipped, dropped)
}
