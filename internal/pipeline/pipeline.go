package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trinacria-data/vendorscan/internal/model"
	"github.com/trinacria-data/vendorscan/internal/resolve"
	"github.com/trinacria-data/vendorscan/internal/store"
)

// Fetcher is one source-specific fetch stage.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.VendorRecord, error)
}

// Pipeline wires the full run: per-source fetching, geocoding enrichment,
// coverage comparison, and the database load. Any nil stage is skipped.
type Pipeline struct {
	// Fetchers maps a source to its fetch stage.
	Fetchers map[model.Source]Fetcher
	// Enricher fills address fields on the combined record set.
	Enricher *Enricher
	// Loader persists the combined record set.
	Loader *store.Loader

	// OutputDir receives per-run intermediate JSON and CSV files.
	OutputDir string
	// Parallel runs the fetch stages concurrently.
	Parallel bool
}

// SourceResult is the outcome of one fetch stage. A failed source carries
// its error alongside whatever records were collected before the failure.
type SourceResult struct {
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	RunID    string                        `json:"run_id"`
	Started  time.Time                     `json:"started"`
	Duration time.Duration                 `json:"duration"`
	Sources  map[model.Source]SourceResult `json:"sources"`
	Records  int                           `json:"records"`
	Coverage resolve.CoverageStats         `json:"coverage"`
	Enrich   EnrichStats                   `json:"-"`
	Load     store.LoadResult              `json:"-"`
}

// Run executes the pipeline. Sources fail independently: a fetch error is
// recorded and the run continues with the remaining sources. Only an empty
// combined record set or a storage failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	start := time.Now()

	result := &RunResult{
		RunID:   runID,
		Started: start,
		Sources: make(map[model.Source]SourceResult),
	}

	runDir := filepath.Join(p.OutputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}
	log.Info("pipeline starting",
		zap.Int("sources", len(p.Fetchers)),
		zap.Bool("parallel", p.Parallel),
		zap.String("output_dir", runDir),
	)

	records := p.fetchAll(ctx, runDir, result)
	result.Records = len(records)
	if len(records) == 0 {
		return result, fmt.Errorf("pipeline: no records fetched")
	}

	if p.Enricher != nil {
		stats, err := p.Enricher.Enrich(ctx, records)
		result.Enrich = stats
		if err != nil {
			return result, err
		}
		if err := writeEnriched(runDir, records); err != nil {
			return result, err
		}
	}

	groups, coverage := resolve.Coverage(records)
	result.Coverage = coverage
	coverage.Log()
	if err := resolve.WritePresenceCSV(filepath.Join(runDir, "presence.csv"), resolve.PresenceMatrix(groups)); err != nil {
		return result, err
	}

	if p.Loader != nil {
		loaded, err := p.Loader.Load(ctx, records)
		result.Load = loaded
		if err != nil {
			return result, err
		}
	}

	result.Duration = time.Since(start)
	log.Info("pipeline complete",
		zap.Int("records", result.Records),
		zap.Int("groups", coverage.TotalGroups),
		zap.Int("stored", result.Load.Stored),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// writeEnriched splits the enriched set back out by source, one file per
// source, mirroring the raw per-source files.
func writeEnriched(runDir string, records []model.VendorRecord) error {
	bySource := make(map[model.Source][]model.VendorRecord)
	for i := range records {
		bySource[records[i].Source] = append(bySource[records[i].Source], records[i])
	}
	for source, recs := range bySource {
		path := filepath.Join(runDir, fmt.Sprintf("enriched_%s.json", source))
		if err := model.WriteRecords(path, recs); err != nil {
			return err
		}
	}
	return nil
}

// fetchAll runs every fetch stage, sequentially or concurrently, writing
// each source's raw records to its own file as it completes.
func (p *Pipeline) fetchAll(ctx context.Context, runDir string, result *RunResult) []model.VendorRecord {
	log := zap.L().With(zap.String("run_id", result.RunID))

	var mu sync.Mutex
	var combined []model.VendorRecord

	fetchOne := func(source model.Source, f Fetcher) {
		records, err := f.Fetch(ctx)

		sr := SourceResult{Records: len(records)}
		if err != nil {
			sr.Error = err.Error()
			log.Warn("source failed",
				zap.String("source", string(source)),
				zap.Int("partial_records", len(records)),
				zap.Error(err),
			)
		}
		if len(records) > 0 {
			path := filepath.Join(runDir, fmt.Sprintf("raw_%s.json", source))
			if werr := model.WriteRecords(path, records); werr != nil {
				log.Warn("writing raw records failed", zap.String("source", string(source)), zap.Error(werr))
			}
		}

		mu.Lock()
		result.Sources[source] = sr
		combined = append(combined, records...)
		mu.Unlock()
	}

	if p.Parallel {
		var g errgroup.Group
		for source, f := range p.Fetchers {
			g.Go(func() error {
				fetchOne(source, f)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for source, f := range p.Fetchers {
			fetchOne(source, f)
		}
	}
	return combined
}
