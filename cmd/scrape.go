package cmd

import (
	"time"

	"github.com/meme-metadata/harvester/internal/images"
	"github.com/meme-metadata/harvester/internal/render"
	"github.com/meme-metadata/harvester/internal/scrape"
	"github.com/meme-metadata/harvester/internal/store"
	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var dataPath string
	var imagesDir string
	var startURL string
	var maxPages int
	var renderTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Discover meme templates and create their initial records",
		Long: `Walk the template listing, extract caption geometry and the original
image from each generator page, and append new records to the collection.

Templates already present in the collection are skipped, and the collection
is saved after every new record, so the command is safe to re-run.`,
		Example: `  # Scrape the first listing page
  harvester scrape --max-pages 1

  # Scrape everything into a custom location
  harvester scrape --max-pages -1 --data ./data/memes.json --images ./data/images`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scraper := &scrape.Scraper{
				Renderer:      render.NewStaticRenderer(),
				Fetcher:       images.NewFetcher(),
				Store:         store.New(dataPath),
				StartURL:      startURL,
				ImagesDir:     imagesDir,
				RenderTimeout: renderTimeout,
			}
			return scraper.Run(cmd.Context(), maxPages)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "memes.json", "Path to the collection JSON file")
	cmd.Flags().StringVar(&imagesDir, "images", "memes_images", "Directory for downloaded template images")
	cmd.Flags().StringVar(&startURL, "start-url", scrape.DefaultStartURL, "Template listing URL")
	cmd.Flags().IntVar(&maxPages, "max-pages", 1, "Listing pages to walk (-1 for all)")
	cmd.Flags().DurationVar(&renderTimeout, "render-timeout", 15*time.Second, "Per-page rendering timeout")

	return cmd
}
