package driven

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// CheckpointStore durably records which chunks of a job have been embedded.
// Every mutating call is committed before it returns.
type CheckpointStore interface {
	// MarkPending records chunks as pending for a job.
	// Entries already embedded are left untouched.
	MarkPending(ctx context.Context, jobID string, chunkIDs []string) error

	// MarkEmbedded records that a chunk's vector is durably stored.
	MarkEmbedded(ctx context.Context, jobID string, chunkIDs []string) error

	// MarkFailed records that chunks exhausted their retries.
	MarkFailed(ctx context.Context, jobID string, chunkIDs []string, reason string) error

	// PendingChunks returns the ids of a job's pending chunks.
	PendingChunks(ctx context.Context, jobID string) ([]string, error)

	// FailedChunks returns a job's failed entries.
	FailedChunks(ctx context.Context, jobID string) ([]domain.CheckpointEntry, error)

	// RequeueFailed moves a job's failed entries back to pending and
	// returns how many moved.
	RequeueFailed(ctx context.Context, jobID string) (int, error)

	// IsEmbedded returns true if any job has embedded the chunk.
	IsEmbedded(ctx context.Context, chunkID string) (bool, error)

	// Reconcile marks entries embedded for every id the lister returns.
	Reconcile(ctx context.Context, lister VectorIDLister) (domain.ReconcileResult, error)

	// Summary aggregates a job's entries.
	Summary(ctx context.Context, jobID string) (domain.CheckpointSummary, error)

	// SaveJob creates or updates job bookkeeping.
	SaveJob(ctx context.Context, job *domain.IngestionJob) error

	// GetJob returns a job or domain.ErrNotFound.
	GetJob(ctx context.Context, jobID string) (*domain.IngestionJob, error)

	// ListJobs returns all jobs, most recently updated first.
	ListJobs(ctx context.Context) ([]domain.IngestionJob, error)

	// ResetJob deletes a job and its entries.
	ResetJob(ctx context.Context, jobID string) error

	// Close releases resources.
	Close() error
}
