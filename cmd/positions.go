package cmd

import (
	"time"

	"github.com/meme-metadata/harvester/internal/images"
	"github.com/meme-metadata/harvester/internal/positions"
	"github.com/meme-metadata/harvester/internal/render"
	"github.com/meme-metadata/harvester/internal/retry"
	"github.com/spf13/cobra"
)

func newPositionsCmd() *cobra.Command {
	var flags pipelineFlags
	var renderTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Re-derive caption box positions in original-image pixel space",
		Long: `Re-render each template's generator page, measure the caption boxes in
preview space, and rewrite every region's updated_position using the ratio
between the original image width and the preview width.

Only records without updated positions are processed; the collection is
checkpointed after every batch, so an interrupted run resumes where it
stopped.`,
		Example: `  # Update positions with the default batch size and worker count
  harvester positions

  # Slow and careful: small batches, few concurrent renders
  harvester positions --batch-size 10 --workers 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			proc := &positions.Processor{
				Renderer:      render.NewStaticRenderer(),
				Fetcher:       images.NewFetcher(),
				RenderTimeout: renderTimeout,
				Retry: retry.Policy{
					MaxAttempts: flags.maxRetries,
					BaseDelay:   flags.backoff,
				},
			}
			return runStage(cmd, &flags, proc, false)
		},
	}

	addPipelineFlags(cmd, &flags)
	cmd.Flags().DurationVar(&renderTimeout, "render-timeout", 15*time.Second, "Per-page rendering timeout")

	return cmd
}
