package main

import (
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/adapter/cmor"
	wrffs "github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	"github.com/couchcryptid/wrf-postprocess/internal/cmdfile"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/spf13/cobra"
)

// generation holds the flags aggregate and index share.
type generation struct {
	inputDir      string
	inputTemplate string
	outputDir     string
	cmdDir        string
	label         string
	onExisting    string
	force         bool
}

func (g *generation) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&g.inputDir, "input-dir", "", "directory of post-processed files")
	f.StringVar(&g.inputTemplate, "input-template", cmdfile.DefaultInputTemplate, "filename template of the input files")
	f.StringVar(&g.outputDir, "output-dir", "", "directory the commands write into")
	f.StringVar(&g.cmdDir, "cmd-dir", ".", "directory that receives the command files")
	f.StringVar(&g.label, "label", "", "CORDEX filename label, e.g. NAM-12_ERA5_evaluation_r1i1p1f1_NCAR_WRF461_v1-r1")
	f.StringVar(&g.onExisting, "on-existing", string(cmdfile.SkipExisting), "skip or fail when an output already exists")
	f.BoolVar(&g.force, "force", false, "regenerate outputs that already exist")
}

func (g *generation) options(source domain.Frequency) (cmdfile.Options, error) {
	if g.outputDir == "" {
		return cmdfile.Options{}, domain.NewConfigError("--output-dir", "output directory is required")
	}
	policy, err := cmdfile.ParseExistingPolicy(g.onExisting)
	if err != nil {
		return cmdfile.Options{}, &domain.ConfigError{Path: "--on-existing", Err: err}
	}
	return cmdfile.Options{
		OutputDir:       g.outputDir,
		Label:           g.label,
		SourceFrequency: source,
		OnExisting:      policy,
		Force:           g.force,
	}, nil
}

func (g *generation) discover(variables []string) (cmdfile.Inputs, error) {
	tmpl, err := domain.CompileTemplate(g.inputTemplate)
	if err != nil {
		return nil, &domain.ConfigError{Path: "--input-template", Err: err}
	}
	return cmdfile.DiscoverInputs(wrffs.OSLister{}, g.inputDir, tmpl, variables)
}

func newAggregateCmd(a *app) *cobra.Command {
	var (
		g            generation
		request      string
		source       string
		cmorTables   string
		cmorTimeout  time.Duration
		withoutTable bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Merge post-processed files into CORDEX frequencies and ranges",
		Long: `Reads a data-request table of variable,frequencies[,statistic] rows and
writes one command file per variable and frequency. Monthly output covers
ten-year ranges, daily output five-year ranges and sub-daily output one
year. Ranges whose output already exists are skipped unless --force.

Frequencies a variable lacks in the CMOR tables are dropped. The tables are
fetched from GitHub by default, so offline runs need --cmor-tables pointing
at a local copy or --no-cmor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reqs, err := cmdfile.LoadRequests(request)
			if err != nil {
				return err
			}
			freq, err := domain.ParseFrequency(source)
			if err != nil {
				return &domain.ConfigError{Path: "--source-frequency", Err: err}
			}
			opts, err := g.options(freq)
			if err != nil {
				return err
			}

			variables := make([]string, len(reqs))
			for i, r := range reqs {
				variables[i] = r.Variable
			}
			inputs, err := g.discover(variables)
			if err != nil {
				return err
			}

			var catalog cmdfile.Catalog
			if !withoutTable {
				catalog = cmor.NewCatalog(cmor.NewClient(cmorTables, cmorTimeout, a.logger))
			}
			agg := cmdfile.NewAggregator(wrffs.OSLister{}, catalog, opts, a.logger, a.metrics)
			files, sum, err := agg.Plan(cmd.Context(), reqs, inputs)
			if err != nil {
				return err
			}
			paths, err := cmdfile.WriteFiles(g.cmdDir, files)
			if err != nil {
				return err
			}
			a.report(paths, sum.Emitted, sum.Skipped, sum.Dropped)
			return nil
		},
	}
	g.bind(cmd)
	f := cmd.Flags()
	f.StringVar(&request, "request", "", "data-request CSV")
	f.StringVar(&source, "source-frequency", string(domain.Freq1Hour), "frequency of the input files")
	f.StringVar(&cmorTables, "cmor-tables", cmor.DefaultTablesURL, "base URL or directory of the CORDEX-CMIP6 CMOR tables")
	f.DurationVar(&cmorTimeout, "cmor-timeout", 30*time.Second, "timeout for fetching one CMOR table")
	f.BoolVar(&withoutTable, "no-cmor", false, "keep every requested pair and default to mean")
	return cmd
}
