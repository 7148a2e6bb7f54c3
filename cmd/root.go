package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vendorscan",
	Short: "Wedding vendor discovery pipeline for Sicily",
	Long:  "Scans OpenStreetMap, Yelp and Foursquare over a tiled lattice, geocodes results via OpenCage, compares source coverage, and loads vendors into a database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
