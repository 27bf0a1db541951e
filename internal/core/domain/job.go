package domain

import "time"

// JobState is a state of the ingestion job state machine.
//
//	STARTED -> CHUNKING -> EMBEDDING -> PERSISTING -> COMPLETED
//	EMBEDDING | PERSISTING -> FAILED
//	RESUMED -> EMBEDDING
type JobState string

// Ingestion job states.
const (
	JobStarted    JobState = "STARTED"
	JobChunking   JobState = "CHUNKING"
	JobEmbedding  JobState = "EMBEDDING"
	JobPersisting JobState = "PERSISTING"
	JobCompleted  JobState = "COMPLETED"
	JobFailed     JobState = "FAILED"
	JobResumed    JobState = "RESUMED"
)

// jobTransitions lists the legal successors of each state.
var jobTransitions = map[JobState][]JobState{
	JobStarted:    {JobChunking, JobFailed},
	JobChunking:   {JobEmbedding, JobCompleted, JobFailed},
	JobEmbedding:  {JobPersisting, JobCompleted, JobFailed},
	JobPersisting: {JobEmbedding, JobCompleted, JobFailed},
	JobResumed:    {JobEmbedding, JobCompleted, JobFailed},
	JobFailed:     {JobResumed},
	JobCompleted:  {JobResumed},
}

// CanTransition returns true if the state machine allows moving from s to next.
func (s JobState) CanTransition(next JobState) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states a job rests in.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IngestionJob tracks one document ingestion run.
type IngestionJob struct {
	JobID       string
	DocumentID  string
	Source      string
	State       JobState
	TotalChunks int
	StartedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// FailedChunk lists a chunk that did not reach the vector store.
type FailedChunk struct {
	ChunkID string
	Reason  string
}

// IngestionResult summarises a finished (or partially finished) job.
type IngestionResult struct {
	JobID string
	State JobState

	// ChunksProcessed counts chunks embedded and stored during this run.
	ChunksProcessed int

	// ChunksSkipped counts chunks already embedded by an earlier run.
	ChunksSkipped int

	// ChunksFailed counts chunks marked failed during this run.
	ChunksFailed int

	// TotalDocuments is the vector collection size after the run.
	TotalDocuments int

	// FailedChunks is the failure manifest.
	FailedChunks []FailedChunk
}
