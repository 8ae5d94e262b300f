package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/meme-metadata/harvester/internal/pipeline"
	"github.com/meme-metadata/harvester/internal/report"
	"github.com/meme-metadata/harvester/internal/store"
	"github.com/spf13/cobra"
)

// pipelineFlags are the knobs shared by the positions and annotate stages.
type pipelineFlags struct {
	dataPath   string
	batchSize  int
	maxWorkers int
	maxRetries int
	backoff    time.Duration
	reportsDir string
}

func addPipelineFlags(cmd *cobra.Command, f *pipelineFlags) {
	cmd.Flags().StringVar(&f.dataPath, "data", "memes.json", "Path to the collection JSON file")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", pipeline.DefaultBatchSize, "Records per checkpoint batch")
	cmd.Flags().IntVar(&f.maxWorkers, "workers", pipeline.DefaultMaxWorkers, "Maximum concurrent workers per batch")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 3, "Attempts per external call")
	cmd.Flags().DurationVar(&f.backoff, "backoff", 2*time.Second, "Base delay for exponential retry backoff")
	cmd.Flags().StringVar(&f.reportsDir, "reports", "reports", "Directory for run summary reports")
}

// runStage executes one pipeline stage and writes the YAML run report.
// Item failures are reported, not fatal: the command only errors on storage
// or configuration problems.
func runStage(cmd *cobra.Command, f *pipelineFlags, proc pipeline.Processor, backup bool) error {
	cfg := pipeline.Config{
		BatchSize:  f.batchSize,
		MaxWorkers: f.maxWorkers,
		Backup:     backup,
	}
	dispatcher := pipeline.New(store.New(f.dataPath), proc, cfg)

	summary, err := dispatcher.Run(cmd.Context())
	if err != nil {
		return err
	}

	if summary.Total > 0 {
		if path, err := report.Save(f.reportsDir, proc.Stage(), cfg, summary); err != nil {
			slog.Warn("Failed to write run report", "error", err)
		} else {
			fmt.Printf("Run report saved to: %s\n", path)
		}
	}

	fmt.Printf("\nDone. Pending: %d, processed: %d, failed: %d\n",
		summary.Total, summary.Processed, summary.Failed)
	return nil
}
