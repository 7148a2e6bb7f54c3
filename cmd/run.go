package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/pipeline"
	"github.com/trinacria-data/vendorscan/internal/store"
)

var (
	runParallel bool
	runSkipGeo  bool
	runSkipLoad bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: fetch, enrich, compare, load",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fetchers, err := buildAllFetchers(cfg)
		if err != nil {
			return err
		}

		p := &pipeline.Pipeline{
			Fetchers:  fetchers,
			OutputDir: cfg.Output.Dir,
			Parallel:  runParallel,
		}

		if !runSkipGeo {
			enricher, err := newEnricher(cfg)
			if err != nil {
				return err
			}
			p.Enricher = enricher
		}

		if !runSkipLoad {
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			p.Loader = &store.Loader{Store: st}
		}

		result, err := p.Run(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("run finished",
			zap.String("run_id", result.RunID),
			zap.Int("records", result.Records),
			zap.Int("groups", result.Coverage.TotalGroups),
			zap.Int("stored", result.Load.Stored),
			zap.Duration("duration", result.Duration),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "fetch sources concurrently")
	runCmd.Flags().BoolVar(&runSkipGeo, "skip-enrich", false, "skip OpenCage enrichment")
	runCmd.Flags().BoolVar(&runSkipLoad, "skip-load", false, "skip the database load")
	rootCmd.AddCommand(runCmd)
}
