package driving

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// IngestionService turns documents into stored vectors.
type IngestionService interface {
	// Ingest starts a background job for the document and returns its id.
	Ingest(ctx context.Context, doc domain.Document) (string, error)

	// IngestSync runs a job to completion and returns its summary.
	// A partial success returns the summary and a nil error.
	IngestSync(ctx context.Context, doc domain.Document) (*domain.IngestionResult, error)

	// Resume continues a job from its checkpoints.
	Resume(ctx context.Context, jobID string) (*domain.IngestionResult, error)

	// RetryFailed re-queues a job's failed chunks and resumes it.
	RetryFailed(ctx context.Context, jobID string) (*domain.IngestionResult, error)

	// Status returns live progress for a job.
	Status(ctx context.Context, jobID string) (*JobStatus, error)

	// Jobs lists known jobs with their checkpoint summaries.
	Jobs(ctx context.Context) ([]JobStatus, error)

	// Wait blocks until a background job finishes and returns its summary.
	Wait(ctx context.Context, jobID string) (*domain.IngestionResult, error)

	// Cancel stops a running job before its next sub-batch. The job ends
	// FAILED with domain.ErrJobCancelled and can be resumed.
	Cancel(ctx context.Context, jobID string) error

	// Reconcile repairs checkpoints against the vector store.
	Reconcile(ctx context.Context) (domain.ReconcileResult, error)

	// Reset discards a job's checkpoints.
	Reset(ctx context.Context, jobID string) error

	// Stats describes the vector collection.
	Stats(ctx context.Context) (domain.CollectionStats, error)
}

// JobStatus pairs a job with its checkpoint counts.
type JobStatus struct {
	Job     domain.IngestionJob
	Summary domain.CheckpointSummary

	// Running is true while a background goroutine owns the job.
	Running bool
}
