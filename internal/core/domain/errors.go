package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates settings that violate a configuration constraint,
	// such as an overlap that is not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrJobInProgress indicates an ingestion job for the same document is already running.
	ErrJobInProgress = errors.New("ingestion job in progress")

	// ErrJobCancelled indicates an ingestion job stopped because its context was cancelled.
	// Checkpoints written before the cancellation remain valid.
	ErrJobCancelled = errors.New("ingestion job cancelled")

	// ErrJobNotRunning indicates a job is not owned by a goroutine of this
	// process, so it cannot be cancelled.
	ErrJobNotRunning = errors.New("ingestion job not running")

	// ErrBatchTooLarge indicates a vector store write exceeded the store's batch ceiling.
	ErrBatchTooLarge = errors.New("batch exceeds write ceiling")

	// ErrRateLimited indicates the provider rejected a call because of its rate limit.
	ErrRateLimited = errors.New("rate limited")

	// ErrRetrievalDegraded indicates retrieval returned partial results because
	// one of its sources failed. Callers see it as RetrievalResponse.Degraded.
	ErrRetrievalDegraded = errors.New("retrieval degraded")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Administrative answers fall back to templates.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion and local retrieval are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrWebSearchUnavailable indicates web search is not configured.
	ErrWebSearchUnavailable = errors.New("web search unavailable")

	// Conversation Errors.

	// ErrSessionNotFound indicates the session id is unknown or already closed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPatientNotFound indicates no patient record matches the supplied name.
	ErrPatientNotFound = errors.New("patient not found")
)

// ExtractionError reports that a document's text could not be extracted.
// The job fails before any chunk is checkpointed.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingProviderError reports that the provider failed after all retries.
// FailedIndex is the position of the first input text that has no vector;
// every text before it was embedded successfully.
type EmbeddingProviderError struct {
	FailedIndex int
	Attempts    int
	Err         error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed at index %d after %d attempts: %v",
		e.FailedIndex, e.Attempts, e.Err)
}

func (e *EmbeddingProviderError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a vector whose length differs from the
// collection's fixed dimension.
type DimensionMismatchError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch for %s: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

// CheckpointCorruptionError reports an unreadable checkpoint database.
// Recovery is to recreate the store and reconcile it against the vector store.
type CheckpointCorruptionError struct {
	Path string
	Err  error
}

func (e *CheckpointCorruptionError) Error() string {
	return fmt.Sprintf("checkpoint store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CheckpointCorruptionError) Unwrap() error { return e.Err }

// ProviderError is an HTTP-level failure from a remote AI or search provider.
// 429 and 5xx responses are temporary; 429 also matches ErrRateLimited.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string

	// RetryAfter is the provider's requested wait, or zero.
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether retrying the call may succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Is matches ErrRateLimited for 429 responses.
func (e *ProviderError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == 429
}
