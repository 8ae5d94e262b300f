package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/meme-metadata/harvester/internal/store"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "inspect [key]",
		Short: "Print one record, or collection stats when no key is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := store.New(dataPath).Load()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				rec, ok := records[args[0]]
				if !ok {
					return fmt.Errorf("no record with key %q", args[0])
				}
				data, err := json.MarshalIndent(rec, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			annotated := 0
			positioned := 0
			regions := 0
			for _, rec := range records {
				if rec.Annotated() {
					annotated++
				}
				if rec.HasUpdatedPositions {
					positioned++
				}
				regions += len(rec.TextOptions)
			}

			fmt.Printf("Records:            %d\n", len(records))
			fmt.Printf("Text regions:       %d\n", regions)
			fmt.Printf("Annotated:          %d\n", annotated)
			fmt.Printf("Updated positions:  %d\n", positioned)

			if len(records) > 0 && len(records) <= 20 {
				keys := make([]string, 0, len(records))
				for key := range records {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				fmt.Println("\nKeys:")
				for _, key := range keys {
					fmt.Printf("  %s\n", key)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "memes.json", "Path to the collection JSON file")

	return cmd
}
