package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/internal/store"
)

var loadCmd = &cobra.Command{
	Use:   "load <records.json>...",
	Short: "Load records into the vendor database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var records []model.VendorRecord
		for _, path := range args {
			recs, err := model.ReadRecords(path)
			if err != nil {
				return err
			}
			records = append(records, recs...)
		}

		loader := store.Loader{Store: st}
		result, err := loader.Load(ctx, records)
		if err != nil {
			return err
		}
		zap.L().Info("load finished",
			zap.Int("stored", result.Stored),
			zap.Int("batch_dupes", result.BatchDupes),
			zap.Int("store_dupes", result.StoreDupes),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
