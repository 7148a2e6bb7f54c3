package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/trinacria-data/vendorscan/internal/model"
)

// LoadResult summarizes one batch load.
type LoadResult struct {
	// Stored is the number of rows inserted.
	Stored int
	// BatchDupes counts records collapsed by the in-batch exact key.
	BatchDupes int
	// StoreDupes counts inserts skipped because the row already existed.
	StoreDupes int
}

// Loader writes record batches into a Store.
type Loader struct {
	Store Store
}

// Load deduplicates the batch by exact (lowercased name, lowercased address)
// key, first-seen record wins, then inserts the survivors one by one.
// Existing rows are skipped and counted. Any other insert failure aborts the
// load; rows already inserted stay durable.
func (l *Loader) Load(ctx context.Context, records []model.VendorRecord) (LoadResult, error) {
	log := zap.L().With(zap.String("stage", "load"))

	var result LoadResult
	seen := make(map[string]struct{})

	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row := FromRecord(&records[i])
		key := row.DedupKey()
		if _, dup := seen[key]; dup {
			result.BatchDupes++
			continue
		}
		seen[key] = struct{}{}

		err := l.Store.InsertVendor(ctx, &row)
		switch {
		case errors.Is(err, ErrDuplicate):
			result.StoreDupes++
		case err != nil:
			return result, err
		default:
			result.Stored++
		}
	}

	log.Info("load complete",
		zap.Int("records", len(records)),
		zap.Int("stored", result.Stored),
		zap.Int("batch_dupes", result.BatchDupes),
		zap.Int("store_dupes", result.StoreDupes),
	)
	return result, nil
}
