package cmd

import (
	"fmt"
	"os"

	"github.com/meme-metadata/harvester/internal/annotate"
	"github.com/meme-metadata/harvester/internal/gemini"
	"github.com/meme-metadata/harvester/internal/retry"
	"github.com/spf13/cobra"
)

func newAnnotateCmd() *cobra.Command {
	var flags pipelineFlags
	var imagesDir string
	var model string

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Enrich records with Gemini-generated descriptions",
		Long: `Send each template image to Gemini and store the returned template
description plus one description per caption region.

Requires GEMINI_API_KEY (or GOOGLE_API_KEY). Before the first batch a
one-time backup of the collection is written next to it. Only records
without an image description are processed.`,
		Example: `  # Annotate all pending records
  harvester annotate

  # Use a different model with conservative concurrency
  harvester annotate --model gemini-2.5-flash --workers 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(flags.dataPath); os.IsNotExist(err) {
				return fmt.Errorf("collection not found: %s (run `harvester scrape` first)", flags.dataPath)
			}

			analyzer := gemini.New()
			if model != "" {
				analyzer.Model = model
			}

			proc := &annotate.Processor{
				Analyzer:  analyzer,
				ImagesDir: imagesDir,
				Retry: retry.Policy{
					MaxAttempts: flags.maxRetries,
					BaseDelay:   flags.backoff,
				},
			}
			return runStage(cmd, &flags, proc, true)
		},
	}

	addPipelineFlags(cmd, &flags)
	cmd.Flags().StringVar(&imagesDir, "images", "memes_images", "Directory holding the saved template images")
	cmd.Flags().StringVar(&model, "model", "", "Gemini model name (defaults to gemini-2.5-pro)")

	return cmd
}
