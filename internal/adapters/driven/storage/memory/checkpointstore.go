package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

type entryKey struct {
	jobID   string
	chunkID string
}

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
type CheckpointStore struct {
	mu      sync.RWMutex
	entries map[entryKey]*domain.CheckpointEntry
	order   []entryKey
	jobs    map[string]domain.IngestionJob
	now     func() time.Time
}

// NewCheckpointStore creates an empty checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		entries: make(map[entryKey]*domain.CheckpointEntry),
		jobs:    make(map[string]domain.IngestionJob),
		now:     time.Now,
	}
}

// MarkPending records new chunks as pending. Existing entries are left untouched.
func (s *CheckpointStore) MarkPending(_ context.Context, jobID string, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range chunkIDs {
		key := entryKey{jobID, id}
		if _, ok := s.entries[key]; ok {
			continue
		}
		s.entries[key] = &domain.CheckpointEntry{
			JobID:     jobID,
			ChunkID:   id,
			Status:    domain.CheckpointPending,
			UpdatedAt: s.now(),
		}
		s.order = append(s.order, key)
	}
	return nil
}

// MarkEmbedded records chunks as durably stored.
func (s *CheckpointStore) MarkEmbedded(_ context.Context, jobID string, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		s.set(jobID, id, domain.CheckpointEmbedded, "")
	}
	return nil
}

// MarkFailed records chunks as failed.
func (s *CheckpointStore) MarkFailed(_ context.Context, jobID string, chunkIDs []string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		s.set(jobID, id, domain.CheckpointFailed, reason)
	}
	return nil
}

// set must be called with the lock held.
func (s *CheckpointStore) set(jobID, chunkID string, status domain.CheckpointStatus, reason string) {
	key := entryKey{jobID, chunkID}
	e, ok := s.entries[key]
	if !ok {
		e = &domain.CheckpointEntry{JobID: jobID, ChunkID: chunkID}
		s.entries[key] = e
		s.order = append(s.order, key)
	}
	e.Status = status
	e.AttemptCount++
	e.LastError = reason
	e.UpdatedAt = s.now()
}

// PendingChunks returns a job's pending chunk ids in insertion order.
func (s *CheckpointStore) PendingChunks(_ context.Context, jobID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, key := range s.order {
		if key.jobID == jobID && s.entries[key].Status == domain.CheckpointPending {
			ids = append(ids, key.chunkID)
		}
	}
	return ids, nil
}

// FailedChunks returns a job's failed entries.
func (s *CheckpointStore) FailedChunks(_ context.Context, jobID string) ([]domain.CheckpointEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CheckpointEntry
	for _, key := range s.order {
		if key.jobID == jobID && s.entries[key].Status == domain.CheckpointFailed {
			out = append(out, *s.entries[key])
		}
	}
	return out, nil
}

// RequeueFailed moves failed entries back to pending.
func (s *CheckpointStore) RequeueFailed(_ context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, key := range s.order {
		e := s.entries[key]
		if key.jobID == jobID && e.Status == domain.CheckpointFailed {
			e.Status = domain.CheckpointPending
			e.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

// IsEmbedded reports whether any job embedded the chunk.
func (s *CheckpointStore) IsEmbedded(_ context.Context, chunkID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, e := range s.entries {
		if key.chunkID == chunkID && e.Status == domain.CheckpointEmbedded {
			return true, nil
		}
	}
	return false, nil
}

// Reconcile marks every stored vector id as embedded.
func (s *CheckpointStore) Reconcile(ctx context.Context, lister driven.VectorIDLister) (domain.ReconcileResult, error) {
	ids, err := lister.IDs(ctx)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result domain.ReconcileResult
	for _, id := range ids {
		found := false
		for _, key := range s.order {
			if key.chunkID != id {
				continue
			}
			found = true
			if e := s.entries[key]; e.Status != domain.CheckpointEmbedded {
				e.Status = domain.CheckpointEmbedded
				e.UpdatedAt = s.now()
				result.Promoted++
			}
		}
		if !found {
			key := entryKey{domain.ReconciledJobID, id}
			s.entries[key] = &domain.CheckpointEntry{
				JobID:     domain.ReconciledJobID,
				ChunkID:   id,
				Status:    domain.CheckpointEmbedded,
				UpdatedAt: s.now(),
			}
			s.order = append(s.order, key)
			result.Adopted++
		}
	}
	return result, nil
}

// Summary aggregates a job's entries.
func (s *CheckpointStore) Summary(_ context.Context, jobID string) (domain.CheckpointSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := domain.CheckpointSummary{JobID: jobID}
	for _, key := range s.order {
		if key.jobID != jobID {
			continue
		}
		e := s.entries[key]
		sum.Total++
		switch e.Status {
		case domain.CheckpointPending:
			sum.Pending++
		case domain.CheckpointEmbedded:
			sum.Embedded++
		case domain.CheckpointFailed:
			sum.Failed++
		}
		if e.UpdatedAt.After(sum.LastUpdated) {
			sum.LastUpdated = e.UpdatedAt
		}
	}
	return sum, nil
}

// SaveJob creates or updates a job.
func (s *CheckpointStore) SaveJob(_ context.Context, job *domain.IngestionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = *job
	return nil
}

// GetJob returns a job or domain.ErrNotFound.
func (s *CheckpointStore) GetJob(_ context.Context, jobID string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// ListJobs returns all jobs, most recently updated first.
func (s *CheckpointStore) ListJobs(_ context.Context) ([]domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]domain.IngestionJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt)
	})
	return jobs, nil
}

// ResetJob deletes a job and its entries.
func (s *CheckpointStore) ResetJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, jobID)
	kept := s.order[:0]
	for _, key := range s.order {
		if key.jobID == jobID {
			delete(s.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return nil
}

// Close is a no-op.
func (s *CheckpointStore) Close() error {
	return nil
}
