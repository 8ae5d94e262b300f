package cmd

import (
	"fmt"

	"github.com/meme-metadata/harvester/internal/export"
	"github.com/meme-metadata/harvester/internal/store"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var dataPath string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the collection as Parquet for downstream tools",
		Example: `  harvester export --output memes.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := store.New(dataPath).Load()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("collection is empty: %s", dataPath)
			}

			rows, err := export.Write(outputPath, records)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d records (%d rows) to %s\n", len(records), rows, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "memes.json", "Path to the collection JSON file")
	cmd.Flags().StringVar(&outputPath, "output", "memes.parquet", "Output parquet path")

	return cmd
}
