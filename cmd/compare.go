package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/internal/resolve"
)

var compareOut string

var compareCmd = &cobra.Command{
	Use:   "compare <records.json>...",
	Short: "Group records across sources and report coverage",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var records []model.VendorRecord
		for _, path := range args {
			recs, err := model.ReadRecords(path)
			if err != nil {
				return err
			}
			records = append(records, recs...)
		}

		groups, stats := resolve.Coverage(records)
		stats.Log()

		out := compareOut
		if out == "" {
			out = filepath.Join(cfg.Output.Dir, "presence.csv")
		}
		if err := resolve.WritePresenceCSV(out, resolve.PresenceMatrix(groups)); err != nil {
			return err
		}
		zap.L().Info("presence matrix written",
			zap.String("path", out),
			zap.Int("groups", stats.TotalGroups),
		)
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVarP(&compareOut, "out", "o", "", "presence CSV path (default outputs/presence.csv)")
	rootCmd.AddCommand(compareCmd)
}
