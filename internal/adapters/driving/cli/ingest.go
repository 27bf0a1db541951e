package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carebot/internal/adapters/driving/watcher"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// progressInterval is how often a running job's progress is printed.
var progressInterval = 2 * time.Second

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a document into the reference collection",
	Long: `Extract, chunk, embed and store a PDF or text document.

Every chunk is checkpointed, so an interrupted job can be continued with
'carebot ingest resume <job-id>' without re-embedding finished chunks.
Re-ingesting the same document is idempotent.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Continue an interrupted ingestion job",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestResume,
}

var ingestStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show checkpoint progress for one job or all jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngestStatus,
}

var ingestRetryCmd = &cobra.Command{
	Use:   "retry-failed <job-id>",
	Short: "Re-queue a job's failed chunks and resume it",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestRetry,
}

var ingestResetCmd = &cobra.Command{
	Use:   "reset <job-id>",
	Short: "Discard a job's checkpoints",
	Long: `Discard a job's checkpoints so the next ingest starts from scratch.
Stored vectors are kept; re-ingesting overwrites them.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestReset,
}

var ingestCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Stop a running ingestion job",
	Long: `Stop a job once its in-flight sub-batch is stored. Finished chunks stay
checkpointed and 'carebot ingest resume <job-id>' embeds the rest.

Only jobs owned by this process can be cancelled. A job started by another
carebot process stops the same way when that process is interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestCancel,
}

var ingestWatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest documents dropped into an inbox directory",
	Long: `Watch a directory and ingest every file created or modified in it.
Files already present are ingested on start. Defaults to the configured
inbox directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestWatch,
}

var ingestSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Ingest the built-in clinical reference documents",
	Args:  cobra.NoArgs,
	RunE:  runIngestSeed,
}

func init() {
	ingestCmd.AddCommand(ingestResumeCmd)
	ingestCmd.AddCommand(ingestStatusCmd)
	ingestCmd.AddCommand(ingestRetryCmd)
	ingestCmd.AddCommand(ingestResetCmd)
	ingestCmd.AddCommand(ingestCancelCmd)
	ingestCmd.AddCommand(ingestWatchCmd)
	ingestCmd.AddCommand(ingestSeedCmd)
	rootCmd.AddCommand(ingestCmd)
}

var errIngestionNotConfigured = errors.New("ingestion service not configured (check embedding provider settings)")

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	if documentLoader == nil {
		return errors.New("document loader not configured")
	}
	ctx := commandContext(cmd)

	doc, err := documentLoader(ctx, args[0])
	if err != nil {
		return err
	}

	jobID, err := ingestionService.Ingest(ctx, doc)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Started job %s for %s\n", jobID, doc.Source)

	result, err := waitWithProgress(ctx, cmd, jobID)
	if ctx.Err() != nil {
		cmd.Printf("Interrupted; stopping job %s after its current sub-batch\n", jobID)
		result, err = stopJob(context.WithoutCancel(ctx), jobID)
	}
	return reportJob(cmd, jobID, result, err)
}

// stopJob cancels a job and waits for its recorded outcome. A job that
// already finished reports that outcome.
func stopJob(ctx context.Context, jobID string) (*domain.IngestionResult, error) {
	if err := ingestionService.Cancel(ctx, jobID); err != nil && !errors.Is(err, domain.ErrJobNotRunning) {
		return nil, err
	}
	return ingestionService.Wait(ctx, jobID)
}

func reportJob(cmd *cobra.Command, jobID string, result *domain.IngestionResult, err error) error {
	if result != nil {
		printResult(cmd, result)
	}
	if errors.Is(err, domain.ErrJobCancelled) {
		cmd.Printf("Run 'carebot ingest resume %s' to continue.\n", jobID)
	}
	if err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}
	return nil
}

func runIngestCancel(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	ctx := commandContext(cmd)
	if err := ingestionService.Cancel(ctx, args[0]); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	result, err := ingestionService.Wait(ctx, args[0])
	if err := reportJob(cmd, args[0], result, err); !errors.Is(err, domain.ErrJobCancelled) {
		return err
	}
	return nil
}

// waitWithProgress waits for a background job, printing checkpoint counts
// while it runs.
func waitWithProgress(ctx context.Context, cmd *cobra.Command, jobID string) (*domain.IngestionResult, error) {
	type outcome struct {
		result *domain.IngestionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := ingestionService.Wait(ctx, jobID)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-ticker.C:
			status, err := ingestionService.Status(ctx, jobID)
			if err != nil {
				continue
			}
			s := status.Summary
			cmd.Printf("  %s: %d/%d embedded, %d failed\n", status.Job.State, s.Embedded, s.Total, s.Failed)
		}
	}
}

func runIngestResume(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	result, err := ingestionService.Resume(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	printResult(cmd, result)
	return nil
}

func runIngestRetry(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	result, err := ingestionService.RetryFailed(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	printResult(cmd, result)
	return nil
}

func runIngestReset(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	if err := ingestionService.Reset(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Printf("Checkpoints for job %s discarded.\n", args[0])
	return nil
}

func runIngestStatus(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	ctx := commandContext(cmd)

	if len(args) == 1 {
		status, err := ingestionService.Status(ctx, args[0])
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		printStatus(cmd, *status)
		return nil
	}

	jobs, err := ingestionService.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("listing jobs failed: %w", err)
	}
	if len(jobs) == 0 {
		cmd.Println("No ingestion jobs.")
		return nil
	}
	for i := range jobs {
		printStatus(cmd, jobs[i])
	}
	return nil
}

func runIngestWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	if documentLoader == nil {
		return errors.New("document loader not configured")
	}
	dir := inboxDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no inbox directory given or configured")
	}

	ctx := commandContext(cmd)
	stop := startScheduler(ctx)
	defer stop()

	w := watcher.New(dir, ingestionService, watcher.Loader(documentLoader))
	w.OnJob = func(path, jobID string) {
		cmd.Printf("Queued %s as job %s\n", path, jobID)
	}

	cmd.Printf("Watching %s for new documents (ctrl+c to stop)\n", dir)
	err := w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runIngestSeed(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errIngestionNotConfigured
	}
	if referenceDocuments == nil {
		return errors.New("reference corpus not configured")
	}

	docs, err := referenceDocuments()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	for _, doc := range docs {
		result, err := ingestionService.IngestSync(ctx, doc)
		if err != nil {
			return fmt.Errorf("seeding %s: %w", doc.Source, err)
		}
		cmd.Printf("%-40s %s (%d new, %d already stored, %d failed)\n",
			doc.Title, result.State, result.ChunksProcessed, result.ChunksSkipped, result.ChunksFailed)
	}
	return nil
}

func printResult(cmd *cobra.Command, result *domain.IngestionResult) {
	cmd.Printf("Job %s %s\n", result.JobID, result.State)
	cmd.Printf("  Chunks processed: %d\n", result.ChunksProcessed)
	if result.ChunksSkipped > 0 {
		cmd.Printf("  Chunks skipped:   %d\n", result.ChunksSkipped)
	}
	cmd.Printf("  Chunks failed:    %d\n", result.ChunksFailed)
	cmd.Printf("  Total documents:  %d\n", result.TotalDocuments)
	for _, f := range result.FailedChunks {
		cmd.Printf("    %s: %s\n", f.ChunkID, f.Reason)
	}
	if result.ChunksFailed > 0 {
		cmd.Printf("Run 'carebot ingest retry-failed %s' to try the failed chunks again.\n", result.JobID)
	}
}

func printStatus(cmd *cobra.Command, status driving.JobStatus) {
	job, s := status.Job, status.Summary
	running := ""
	if status.Running {
		running = " (running)"
	}
	cmd.Printf("%s  %s%s\n", job.JobID, job.State, running)
	cmd.Printf("  Source:    %s\n", job.Source)
	cmd.Printf("  Progress:  %d/%d embedded, %d pending, %d failed\n", s.Embedded, s.Total, s.Pending, s.Failed)
	if !s.LastUpdated.IsZero() {
		cmd.Printf("  Updated:   %s\n", s.LastUpdated.Local().Format(time.DateTime))
	}
	if job.LastError != "" {
		cmd.Printf("  Error:     %s\n", job.LastError)
	}
}
