package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// MarkPending records chunks as pending. Existing entries, embedded or not,
// are left untouched.
func (s *checkpointStore) MarkPending(ctx context.Context, jobID string, chunkIDs []string) error {
	now := formatTime(s.store.now())
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO checkpoints (job_id, chunk_id, status, attempt_count, updated_at)
			VALUES (?, ?, 'pending', 0, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing pending insert: %w", err)
		}
		defer stmt.Close()

		for _, id := range chunkIDs {
			if _, err := stmt.ExecContext(ctx, jobID, id, now); err != nil {
				return fmt.Errorf("marking %s pending: %w", id, err)
			}
		}
		return nil
	})
}

// MarkEmbedded records chunks as durably stored.
func (s *checkpointStore) MarkEmbedded(ctx context.Context, jobID string, chunkIDs []string) error {
	return s.setStatus(ctx, jobID, chunkIDs, domain.CheckpointEmbedded, "")
}

// MarkFailed records chunks as failed with reason.
func (s *checkpointStore) MarkFailed(ctx context.Context, jobID string, chunkIDs []string, reason string) error {
	return s.setStatus(ctx, jobID, chunkIDs, domain.CheckpointFailed, reason)
}

func (s *checkpointStore) setStatus(
	ctx context.Context, jobID string, chunkIDs []string, status domain.CheckpointStatus, reason string,
) error {
	now := formatTime(s.store.now())
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO checkpoints (job_id, chunk_id, status, attempt_count, last_error, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(job_id, chunk_id) DO UPDATE SET
				status = excluded.status,
				attempt_count = checkpoints.attempt_count + 1,
				last_error = excluded.last_error,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("preparing status update: %w", err)
		}
		defer stmt.Close()

		for _, id := range chunkIDs {
			if _, err := stmt.ExecContext(ctx, jobID, id, string(status), nullString(reason), now); err != nil {
				return fmt.Errorf("marking %s %s: %w", id, status, err)
			}
		}
		return nil
	})
}

// PendingChunks returns a job's pending chunk ids in insertion order.
func (s *checkpointStore) PendingChunks(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id FROM checkpoints
		WHERE job_id = ? AND status = 'pending'
		ORDER BY rowid
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying pending chunks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning pending chunk: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FailedChunks returns a job's failed entries in insertion order.
func (s *checkpointStore) FailedChunks(ctx context.Context, jobID string) ([]domain.CheckpointEntry, error) {
	entries, err := queryAll(ctx, s.store.db, scanCheckpointEntry, `
		SELECT job_id, chunk_id, status, attempt_count, last_error, updated_at
		FROM checkpoints
		WHERE job_id = ? AND status = 'failed'
		ORDER BY rowid
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("querying failed chunks: %w", err)
	}
	return entries, nil
}

// RequeueFailed moves a job's failed entries back to pending.
func (s *checkpointStore) RequeueFailed(ctx context.Context, jobID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE checkpoints SET status = 'pending', updated_at = ?
		WHERE job_id = ? AND status = 'failed'
	`, formatTime(s.store.now()), jobID)
	if err != nil {
		return 0, fmt.Errorf("requeueing failed chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting requeued chunks: %w", err)
	}
	return int(n), nil
}

// IsEmbedded reports whether any job embedded the chunk.
func (s *checkpointStore) IsEmbedded(ctx context.Context, chunkID string) (bool, error) {
	var one int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT 1 FROM checkpoints WHERE chunk_id = ? AND status = 'embedded' LIMIT 1
	`, chunkID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking chunk %s: %w", chunkID, err)
	}
	return true, nil
}

// Reconcile marks every id the vector store holds as embedded. Ids with no
// entry at all are adopted under domain.ReconciledJobID.
func (s *checkpointStore) Reconcile(ctx context.Context, lister driven.VectorIDLister) (domain.ReconcileResult, error) {
	ids, err := lister.IDs(ctx)
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("listing vector ids: %w", err)
	}

	var result domain.ReconcileResult
	now := formatTime(s.store.now())
	err = s.store.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx, `
				UPDATE checkpoints SET status = 'embedded', last_error = NULL, updated_at = ?
				WHERE chunk_id = ? AND status != 'embedded'
			`, now, id)
			if err != nil {
				return fmt.Errorf("promoting %s: %w", id, err)
			}
			promoted, err := res.RowsAffected()
			if err != nil {
				return err
			}
			result.Promoted += int(promoted)

			var count int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM checkpoints WHERE chunk_id = ?", id).Scan(&count); err != nil {
				return fmt.Errorf("counting %s: %w", id, err)
			}
			if count > 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO checkpoints (job_id, chunk_id, status, attempt_count, updated_at)
				VALUES (?, ?, 'embedded', 0, ?)
			`, domain.ReconciledJobID, id, now); err != nil {
				return fmt.Errorf("adopting %s: %w", id, err)
			}
			result.Adopted++
		}
		return nil
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	return result, nil
}

// Summary aggregates a job's entries.
func (s *checkpointStore) Summary(ctx context.Context, jobID string) (domain.CheckpointSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT status, COUNT(*), MAX(updated_at)
		FROM checkpoints WHERE job_id = ?
		GROUP BY status
	`, jobID)
	if err != nil {
		return domain.CheckpointSummary{}, fmt.Errorf("summarising job: %w", err)
	}
	defer rows.Close()

	sum := domain.CheckpointSummary{JobID: jobID}
	for rows.Next() {
		var status, updated string
		var count int
		if err := rows.Scan(&status, &count, &updated); err != nil {
			return domain.CheckpointSummary{}, fmt.Errorf("scanning summary: %w", err)
		}
		sum.Total += count
		switch domain.CheckpointStatus(status) {
		case domain.CheckpointPending:
			sum.Pending = count
		case domain.CheckpointEmbedded:
			sum.Embedded = count
		case domain.CheckpointFailed:
			sum.Failed = count
		}
		if t := parseTime(updated); t.After(sum.LastUpdated) {
			sum.LastUpdated = t
		}
	}
	return sum, rows.Err()
}

// SaveJob creates or updates a job.
func (s *checkpointStore) SaveJob(ctx context.Context, job *domain.IngestionJob) error {
	if job == nil || job.JobID == "" {
		return domain.ErrInvalidInput
	}
	now := s.store.now()
	if job.StartedAt.IsZero() {
		job.StartedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, document_id, source, state, total_chunks, started_at, updated_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			document_id = excluded.document_id,
			source = excluded.source,
			state = excluded.state,
			total_chunks = excluded.total_chunks,
			updated_at = excluded.updated_at,
			last_error = excluded.last_error
	`, job.JobID, nullString(job.DocumentID), job.Source, string(job.State), job.TotalChunks,
		formatTime(job.StartedAt), formatTime(job.UpdatedAt), nullString(job.LastError))
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob returns a job or domain.ErrNotFound.
func (s *checkpointStore) GetJob(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT job_id, document_id, source, state, total_chunks, started_at, updated_at, last_error
		FROM jobs WHERE job_id = ?
	`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

// ListJobs returns all jobs, most recently updated first.
func (s *checkpointStore) ListJobs(ctx context.Context) ([]domain.IngestionJob, error) {
	jobs, err := queryAll(ctx, s.store.db, scanJob, `
		SELECT job_id, document_id, source, state, total_chunks, started_at, updated_at, last_error
		FROM jobs ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	return jobs, nil
}

// ResetJob deletes a job and its checkpoint entries.
func (s *checkpointStore) ResetJob(ctx context.Context, jobID string) error {
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoints WHERE job_id = ?", jobID); err != nil {
			return fmt.Errorf("deleting checkpoints: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE job_id = ?", jobID); err != nil {
			return fmt.Errorf("deleting job: %w", err)
		}
		return nil
	})
}

// Close closes the underlying Store.
func (s *checkpointStore) Close() error {
	return s.store.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func scanCheckpointEntry(row rowScanner) (*domain.CheckpointEntry, error) {
	var e domain.CheckpointEntry
	var status, updated string
	var lastError sql.NullString
	if err := row.Scan(&e.JobID, &e.ChunkID, &status, &e.AttemptCount, &lastError, &updated); err != nil {
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}
	e.Status = domain.CheckpointStatus(status)
	e.LastError = lastError.String
	e.UpdatedAt = parseTime(updated)
	return &e, nil
}

func scanJob(row rowScanner) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	var docID, lastError sql.NullString
	var state, started, updated string
	err := row.Scan(&job.JobID, &docID, &job.Source, &state, &job.TotalChunks, &started, &updated, &lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	job.DocumentID = docID.String
	job.State = domain.JobState(state)
	job.StartedAt = parseTime(started)
	job.UpdatedAt = parseTime(updated)
	job.LastError = lastError.String
	return &job, nil
}
