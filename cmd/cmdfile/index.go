package main

import (
	wrffs "github.com/couchcryptid/wrf-postprocess/internal/adapter/fs"
	"github.com/couchcryptid/wrf-postprocess/internal/cmdfile"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	"github.com/spf13/cobra"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		g     generation
		table string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Compute yearly climate indices from daily files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			indices, err := cmdfile.LoadIndexTable(table)
			if err != nil {
				return err
			}
			opts, err := g.options(domain.FreqDay)
			if err != nil {
				return err
			}
			variables := make([]string, len(indices))
			for i, idx := range indices {
				variables[i] = idx.Variable
			}
			inputs, err := g.discover(variables)
			if err != nil {
				return err
			}

			agg := cmdfile.NewAggregator(wrffs.OSLister{}, nil, opts, a.logger, a.metrics)
			files, sum, err := agg.PlanIndices(indices, inputs)
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
	cmd.Flags().StringVar(&table, "index-table", "", "CSV of index,variable,operator rows")
	return cmd
}
