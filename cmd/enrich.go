package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
)

var (
	enrichIn  string
	enrichOut string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Geocode fetched records via OpenCage",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := model.ReadRecords(enrichIn)
		if err != nil {
			return err
		}

		enricher, err := newEnricher(cfg)
		if err != nil {
			return err
		}

		stats, err := enricher.Enrich(cmd.Context(), records)
		if err != nil {
			return err
		}

		if err := model.WriteRecords(enrichOut, records); err != nil {
			return err
		}
		zap.L().Info("enriched records written",
			zap.String("path", enrichOut),
			zap.Int("records", len(records)),
			zap.Int("forward_ok", stats.ForwardOK),
			zap.Int("reverse_ok", stats.ReverseOK),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichIn, "in", "i", "", "input records JSON")
	enrichCmd.Flags().StringVarP(&enrichOut, "out", "o", "", "output records JSON")
	_ = enrichCmd.MarkFlagRequired("in")
	_ = enrichCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(enrichCmd)
}
