package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Meme template metadata harvester with LLM-powered enrichment",
		Long: `Harvester collects structured metadata about meme templates: caption box
geometry scaled into original-image pixel space, and natural-language
descriptions produced by a content-understanding model.

The positions and annotate stages run as resumable, checkpointed batch
pipelines: progress is persisted after every batch and already-completed
records are skipped on restart.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newPositionsCmd())
	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newInspectCmd())

	return cmd
}
