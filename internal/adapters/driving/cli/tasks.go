package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var errSchedulerNotConfigured = errors.New("scheduler not configured: the checkpoint database is unavailable")

var tasksHistory int

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "Show background task schedule and recent runs",
	Long: `Shows the failed-chunk retry and session sweep tasks with their next run
and last outcome. With a task id, also lists its recent runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().IntVarP(&tasksHistory, "history", "n", 10, "number of recent runs to show for a task")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errSchedulerNotConfigured
	}
	ctx := commandContext(cmd)

	tasks, err := scheduler.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	if len(args) == 0 {
		if len(tasks) == 0 {
			cmd.Println("No tasks have been scheduled yet. They are created the first time a long-running command starts.")
			return nil
		}
		if !schedulerConfig.Enabled {
			cmd.Println("Scheduler is disabled; tasks will not run.")
		}
		for _, t := range tasks {
			state := "enabled"
			if !t.Enabled {
				state = "disabled"
			}
			cmd.Printf("%-14s  %-8s  every %-6s  next %s\n", t.ID, state, t.Interval, formatWhen(t.NextRun))
			if !t.Healthy() {
				cmd.Printf("%-14s  last error: %s\n", "", t.LastError)
			}
		}
		return nil
	}

	id := args[0]
	found := false
	for _, t := range tasks {
		if t.ID != id {
			continue
		}
		found = true
		cmd.Printf("Task:         %s (%s)\n", t.Name, t.ID)
		cmd.Printf("Interval:     %s\n", t.Interval)
		cmd.Printf("Last run:     %s\n", formatWhen(t.LastRun))
		cmd.Printf("Last success: %s\n", formatWhen(t.LastSuccess))
		cmd.Printf("Next run:     %s\n", formatWhen(t.NextRun))
	}
	if !found {
		return fmt.Errorf("task %q not found", id)
	}

	history, err := scheduler.History(ctx, id, tasksHistory)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(history) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}
	cmd.Println("Recent runs:")
	for _, r := range history {
		outcome := fmt.Sprintf("ok, %d item(s)", r.ItemsProcessed)
		if !r.Success {
			outcome = "failed: " + r.Error
		}
		cmd.Printf("  %s  %6s  %s\n", r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond), outcome)
	}
	return nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
