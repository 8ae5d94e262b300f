// Package pipeline runs a processing stage over the collection in
// checkpointed batches with a bounded worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/meme-metadata/harvester/internal/meme"
	"github.com/meme-metadata/harvester/internal/store"
)

const (
	// DefaultBatchSize is the number of records persisted per checkpoint.
	DefaultBatchSize = 50
	// DefaultMaxWorkers bounds simultaneously in-flight external calls.
	DefaultMaxWorkers = 50
)

// Processor performs one stage's work on a single record. Process receives a
// private copy of the record and returns the updated copy; it must not touch
// shared state. Pending reports whether the stage still has to run for a
// record.
type Processor interface {
	Stage() string
	Pending(rec *meme.Record) bool
	Process(ctx context.Context, key string, rec *meme.Record) (*meme.Record, error)
}

// Config tunes a run.
type Config struct {
	BatchSize  int
	MaxWorkers int

	// Backup writes a one-time pristine snapshot before the first batch.
	// Used by the enrichment stage to guard against destructive runs.
	Backup bool
}

// Summary reports a completed run.
type Summary struct {
	Total      int
	Processed  int
	Failed     int
	FailedKeys []string
}

// Dispatcher owns the canonical in-memory collection for the duration of a
// run. Workers never write to it; their outcomes are merged on the dispatch
// goroutine after each batch completes, then the whole collection is saved.
type Dispatcher struct {
	store *store.Store
	proc  Processor
	cfg   Config
}

// New creates a dispatcher for one stage.
func New(st *store.Store, proc Processor, cfg Config) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	return &Dispatcher{store: st, proc: proc, cfg: cfg}
}

type outcome struct {
	key string
	rec *meme.Record
	err error
}

// Run executes the stage over every pending record. Item failures are
// accumulated and reported; only storage errors abort the run.
func (d *Dispatcher) Run(ctx context.Context) (*Summary, error) {
	records, err := d.store.Load()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		slog.Info("No records found to process", "path", d.store.Path())
		return &Summary{}, nil
	}

	pending := d.pendingKeys(records)
	summary := &Summary{Total: len(pending)}
	if len(pending) == 0 {
		slog.Info("All records already processed", "stage", d.proc.Stage())
		return summary, nil
	}

	slog.Info("Starting run",
		"stage", d.proc.Stage(),
		"pending", len(pending),
		"batch_size", d.cfg.BatchSize,
		"workers", d.cfg.MaxWorkers)

	if d.cfg.Backup {
		if _, err := d.store.BackupOnce(records); err != nil {
			return nil, err
		}
	}

	for start := 0; start < len(pending); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		d.dispatchBatch(ctx, records, batch, summary)

		// Checkpoint: batch N+1 never starts before this save returns.
		if err := d.store.Save(records); err != nil {
			return nil, err
		}
		slog.Info("Checkpointed batch",
			"stage", d.proc.Stage(),
			"batch", start/d.cfg.BatchSize+1,
			"batch_items", len(batch),
			"progress", fmt.Sprintf("%d/%d", summary.Processed+summary.Failed, summary.Total))
	}

	slog.Info("Run complete",
		"stage", d.proc.Stage(),
		"processed", summary.Processed,
		"failed", summary.Failed)
	return summary, nil
}

func (d *Dispatcher) pendingKeys(records meme.Collection) []string {
	keys := make([]string, 0, len(records))
	for key, rec := range records {
		if d.proc.Pending(rec) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// dispatchBatch fans the batch out to at most MaxWorkers goroutines, waits
// for all of them, then merges successful outcomes into records.
func (d *Dispatcher) dispatchBatch(ctx context.Context, records meme.Collection, batch []string, summary *Summary) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, d.cfg.MaxWorkers)
	outcomes := make(chan outcome, len(batch))

	for _, key := range batch {
		wg.Add(1)
		go func(key string, rec *meme.Record) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			updated, err := d.proc.Process(ctx, key, rec)
			outcomes <- outcome{key: key, rec: updated, err: err}
		}(key, records[key].Clone())
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		if out.err != nil {
			slog.Error("Failed to process record", "stage", d.proc.Stage(), "key", out.key, "error", out.err)
			summary.Failed++
			summary.FailedKeys = append(summary.FailedKeys, out.key)
			continue
		}
		if out.rec == nil || (out.rec.Name != "" && out.rec.Name != out.key) {
			// A mismatched key here means worker bookkeeping went wrong, not
			// that the item legitimately failed. Keep the prior record.
			slog.Warn("Dropping outcome with mismatched record key",
				"stage", d.proc.Stage(), "key", out.key)
			summary.Failed++
			summary.FailedKeys = append(summary.FailedKeys, out.key)
			continue
		}
		records[out.key] = out.rec
		summary.Processed++
	}
}
