package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reference collection statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}

	stats, err := ingestionService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	cmd.Printf("Collection:      %s\n", stats.CollectionName)
	cmd.Printf("Total documents: %d\n", stats.TotalRecords)
	cmd.Printf("Dimension:       %d\n", stats.Dimension)
	if stats.PersistPath != "" {
		cmd.Printf("Stored at:       %s\n", stats.PersistPath)
	}
	return nil
}
