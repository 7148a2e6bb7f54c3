package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/config"
	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/internal/pipeline"
)

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch [osm|yelp|foursquare]",
	Short: "Fetch raw vendor records from one source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]

		f, err := buildFetcher(cfg, source)
		if err != nil {
			return err
		}

		records, err := f.Fetch(cmd.Context())
		if err != nil && len(records) == 0 {
			return err
		}
		if err != nil {
			zap.L().Warn("fetch ended early, keeping partial results",
				zap.String("source", source), zap.Error(err))
		}

		out := fetchOut
		if out == "" {
			out = filepath.Join(cfg.Output.Dir, fmt.Sprintf("raw_%s.json", source))
		}
		if err := model.WriteRecords(out, records); err != nil {
			return err
		}
		zap.L().Info("records written",
			zap.String("source", source),
			zap.Int("records", len(records)),
			zap.String("path", out),
		)
		return nil
	},
}

func buildFetcher(c *config.Config, source string) (pipeline.Fetcher, error) {
	switch source {
	case "osm":
		return newOSMFetcher(c)
	case "yelp":
		return newYelpFetcher(c)
	case "foursquare":
		return newFoursquareFetcher(c)
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

func buildAllFetchers(c *config.Config) (map[model.Source]pipeline.Fetcher, error) {
	osm, err := newOSMFetcher(c)
	if err != nil {
		return nil, err
	}
	yf, err := newYelpFetcher(c)
	if err != nil {
		return nil, err
	}
	ff, err := newFoursquareFetcher(c)
	if err != nil {
		return nil, err
	}
	return map[model.Source]pipeline.Fetcher{
		model.SourceOSM:        osm,
		model.SourceYelp:       yf,
		model.SourceFoursquare: ff,
	}, nil
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output file (default outputs/raw_<source>.json)")
	rootCmd.AddCommand(fetchCmd)
}
