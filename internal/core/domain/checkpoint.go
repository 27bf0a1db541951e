package domain

import "time"

// CheckpointStatus is the progress state of one chunk within a job.
type CheckpointStatus string

// Checkpoint statuses.
const (
	// CheckpointPending means the chunk has been recorded but has no stored vector.
	CheckpointPending CheckpointStatus = "pending"

	// CheckpointEmbedded means the chunk's vector is durably written to the vector store.
	CheckpointEmbedded CheckpointStatus = "embedded"

	// CheckpointFailed means the chunk exhausted its retries.
	CheckpointFailed CheckpointStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s CheckpointStatus) IsValid() bool {
	switch s {
	case CheckpointPending, CheckpointEmbedded, CheckpointFailed:
		return true
	default:
		return false
	}
}

// ReconciledJobID is the job that owns checkpoint entries created by
// reconciliation for vectors that had no checkpoint.
const ReconciledJobID = "reconciled"

// CheckpointEntry records the progress of one chunk within a job.
type CheckpointEntry struct {
	JobID        string
	ChunkID      string
	Status       CheckpointStatus
	AttemptCount int
	LastError    string
	UpdatedAt    time.Time
}

// CheckpointSummary aggregates checkpoint counts for one job.
type CheckpointSummary struct {
	JobID       string
	Total       int
	Pending     int
	Embedded    int
	Failed      int
	LastUpdated time.Time
}

// Done returns true when no chunk of the job is still pending.
func (s CheckpointSummary) Done() bool {
	return s.Pending == 0
}

// ReconcileResult reports what a reconciliation pass changed.
type ReconcileResult struct {
	// Promoted counts pending or failed entries marked embedded because their vector exists.
	Promoted int

	// Adopted counts vectors that had no checkpoint entry at all.
	Adopted int
}
