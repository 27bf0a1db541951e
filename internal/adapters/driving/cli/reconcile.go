package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileRebuild bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair checkpoints against the vector collection",
	Long: `Compare the checkpoint log with the vector collection.

Chunks checkpointed as pending or failed whose vectors are already stored
are promoted to embedded, and stored vectors without a checkpoint are
adopted. Use --rebuild when the checkpoint database is unreadable: it is
recreated empty and rebuilt from the vector collection.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileRebuild, "rebuild", false, "recreate the checkpoint database before reconciling")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	service := ingestionService
	if reconcileRebuild {
		if checkpointRecovery == nil {
			return errors.New("checkpoint recovery not configured")
		}
		recovered, err := checkpointRecovery(ctx)
		if err != nil {
			return fmt.Errorf("recreating checkpoints: %w", err)
		}
		service = recovered
		cmd.Println("Checkpoint database recreated.")
	}
	if service == nil {
		return errIngestionNotConfigured
	}

	result, err := service.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	cmd.Printf("Promoted %d chunk(s) to embedded, adopted %d stored vector(s).\n", result.Promoted, result.Adopted)
	return nil
}
