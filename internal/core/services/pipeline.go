package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/carebot/internal/chunker"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// Ensure IngestionPipeline implements the interface.
var _ driving.IngestionService = (*IngestionPipeline)(nil)

// DocumentLoader reloads a document from its source when a job resumes.
type DocumentLoader func(ctx context.Context, source string) (domain.Document, error)

// IngestionPipeline turns documents into stored vectors with per-chunk
// checkpoints, so an interrupted job resumes without re-embedding.
type IngestionPipeline struct {
	checkpoints driven.CheckpointStore
	vectors     driven.VectorStore
	embedder    *EmbeddingClient
	chunker     *chunker.Chunker
	extractors  map[string]driven.TextExtractor
	settings    domain.PipelineSettings
	metrics     driven.Metrics
	loader      DocumentLoader
	now         func() time.Time

	// Background job tracking
	mu      sync.RWMutex
	runs    map[string]*jobRun
	byDoc   map[string]string
	retired []retiredRun
	keep    int
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// defaultRetainedRuns bounds how many finished runs stay in memory for Wait.
const defaultRetainedRuns = 64

// jobRun is a job owned by a goroutine of this process.
type jobRun struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	result *domain.IngestionResult
	err    error
}

type retiredRun struct {
	jobID string
	run   *jobRun
}

// tally counts one run's chunk outcomes across workers.
type tally struct {
	mu        sync.Mutex
	processed int
	skipped   int
	failed    int
	rootErr   error
}

func (t *tally) add(processed, failed int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed += processed
	t.failed += failed
	if t.rootErr == nil && err != nil {
		t.rootErr = err
	}
}

// NewIngestionPipeline creates a pipeline. Metrics may be nil.
func NewIngestionPipeline(
	checkpoints driven.CheckpointStore,
	vectors driven.VectorStore,
	embedder *EmbeddingClient,
	textChunker *chunker.Chunker,
	extractors []driven.TextExtractor,
	settings domain.PipelineSettings,
	metrics driven.Metrics,
) (*IngestionPipeline, error) {
	if checkpoints == nil || vectors == nil || textChunker == nil {
		return nil, fmt.Errorf("%w: pipeline requires checkpoint store, vector store and chunker", domain.ErrInvalidInput)
	}
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if err := settings.Validate(embedder.MaxBatchSize()); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}

	byMIME := make(map[string]driven.TextExtractor)
	for _, e := range extractors {
		for _, mime := range e.SupportedMIMETypes() {
			byMIME[mime] = e
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &IngestionPipeline{
		checkpoints: checkpoints,
		vectors:     vectors,
		embedder:    embedder,
		chunker:     textChunker,
		extractors:  byMIME,
		settings:    settings,
		metrics:     metrics,
		loader:      LoadDocument,
		now:         func() time.Time { return time.Now().UTC() },
		runs:        make(map[string]*jobRun),
		byDoc:       make(map[string]string),
		keep:        defaultRetainedRuns,
		baseCtx:     ctx,
		cancel:      cancel,
	}, nil
}

// SetDocumentLoader replaces the loader Resume uses to re-read documents.
func (p *IngestionPipeline) SetDocumentLoader(loader DocumentLoader) {
	p.loader = loader
}

// Ingest starts a background job and returns its id immediately.
func (p *IngestionPipeline) Ingest(ctx context.Context, doc domain.Document) (string, error) {
	job, run, err := p.start(ctx, p.baseCtx, &doc)
	if err != nil {
		return "", err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release(job.JobID, doc.ID, run)
		run.result, run.err = p.run(run.ctx, job, doc)
	}()

	return job.JobID, nil
}

// IngestSync runs a job to completion on the caller's goroutine.
func (p *IngestionPipeline) IngestSync(ctx context.Context, doc domain.Document) (*domain.IngestionResult, error) {
	job, run, err := p.start(ctx, ctx, &doc)
	if err != nil {
		return nil, err
	}
	defer p.release(job.JobID, doc.ID, run)

	run.result, run.err = p.run(run.ctx, job, doc)
	return run.result, run.err
}

// Resume continues a job from its checkpoints. Chunks already embedded are
// not sent to the provider again.
func (p *IngestionPipeline) Resume(ctx context.Context, jobID string) (*domain.IngestionResult, error) {
	if p.settings.FailedRetry == domain.RetryOnResume {
		if _, err := p.requeue(ctx, jobID); err != nil {
			return nil, err
		}
	}
	return p.resume(ctx, jobID)
}

// RetryFailed re-queues a job's failed chunks and resumes it.
func (p *IngestionPipeline) RetryFailed(ctx context.Context, jobID string) (*domain.IngestionResult, error) {
	n, err := p.requeue(ctx, jobID)
	if err != nil {
		return nil, err
	}
	logger.Info("Re-queued %d failed chunks for job %s", n, jobID)
	return p.resume(ctx, jobID)
}

// RetryAllFailed retries every idle job that has failed chunks and returns
// how many chunks were re-queued.
func (p *IngestionPipeline) RetryAllFailed(ctx context.Context) (int, error) {
	statuses, err := p.Jobs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, st := range statuses {
		if st.Running || st.Summary.Failed == 0 {
			continue
		}
		total += st.Summary.Failed
		if _, err := p.RetryFailed(ctx, st.Job.JobID); err != nil {
			errs = append(errs, fmt.Errorf("retry %s: %w", st.Job.JobID, err))
		}
	}
	return total, errors.Join(errs...)
}

// SeedReferenceCorpus ingests the built-in reference documents. Chunks
// already stored are skipped, so seeding twice is a no-op.
func (p *IngestionPipeline) SeedReferenceCorpus(ctx context.Context) ([]*domain.IngestionResult, error) {
	docs, err := ReferenceDocuments()
	if err != nil {
		return nil, err
	}

	results := make([]*domain.IngestionResult, 0, len(docs))
	for _, doc := range docs {
		res, err := p.IngestSync(ctx, doc)
		if err != nil {
			return results, fmt.Errorf("seed %s: %w", doc.Title, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Status returns live progress for a job.
func (p *IngestionPipeline) Status(ctx context.Context, jobID string) (*driving.JobStatus, error) {
	job, err := p.checkpoints.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	sum, err := p.checkpoints.Summary(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("summarise job %s: %w", jobID, err)
	}
	return &driving.JobStatus{Job: *job, Summary: sum, Running: p.isRunning(jobID)}, nil
}

// Jobs lists known jobs, most recent first.
func (p *IngestionPipeline) Jobs(ctx context.Context) ([]driving.JobStatus, error) {
	jobs, err := p.checkpoints.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	out := make([]driving.JobStatus, 0, len(jobs))
	for _, job := range jobs {
		sum, err := p.checkpoints.Summary(ctx, job.JobID)
		if err != nil {
			return nil, fmt.Errorf("summarise job %s: %w", job.JobID, err)
		}
		out = append(out, driving.JobStatus{Job: job, Summary: sum, Running: p.isRunning(job.JobID)})
	}
	return out, nil
}

// Wait blocks until a background job finishes. The first Wait after a run
// ends collects its in-memory result; later calls, and calls for jobs this
// process never ran, return the job's recorded outcome.
func (p *IngestionPipeline) Wait(ctx context.Context, jobID string) (*domain.IngestionResult, error) {
	p.mu.RLock()
	run, ok := p.runs[jobID]
	p.mu.RUnlock()

	if ok {
		select {
		case <-run.done:
			p.forget(jobID, run)
			return run.result, run.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	job, err := p.checkpoints.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return p.result(ctx, job, &tally{}), nil
}

// Cancel stops a running job before its next sub-batch; sub-batches already
// sent finish and are checkpointed. The job ends FAILED with
// domain.ErrJobCancelled and can be resumed.
func (p *IngestionPipeline) Cancel(_ context.Context, jobID string) error {
	p.mu.RLock()
	run, ok := p.runs[jobID]
	p.mu.RUnlock()
	if !ok || isClosed(run.done) {
		return fmt.Errorf("cancel %s: %w", jobID, domain.ErrJobNotRunning)
	}
	run.cancel()
	logger.Info("Cancelling ingestion job %s", jobID)
	return nil
}

// Reconcile marks every vector already in the store as embedded.
func (p *IngestionPipeline) Reconcile(ctx context.Context) (domain.ReconcileResult, error) {
	res, err := p.checkpoints.Reconcile(ctx, p.vectors)
	if err != nil {
		return res, fmt.Errorf("reconcile: %w", err)
	}
	logger.Info("Reconciled checkpoints: %d promoted, %d adopted", res.Promoted, res.Adopted)
	return res, nil
}

// Reset discards a job and its checkpoints. Stored vectors are kept.
func (p *IngestionPipeline) Reset(ctx context.Context, jobID string) error {
	if p.isRunning(jobID) {
		return fmt.Errorf("reset %s: %w", jobID, domain.ErrJobInProgress)
	}
	return p.checkpoints.ResetJob(ctx, jobID)
}

// Stats describes the vector collection.
func (p *IngestionPipeline) Stats(ctx context.Context) (domain.CollectionStats, error) {
	return p.vectors.Stats(ctx)
}

// Close cancels background jobs and waits for them to stop. Checkpoints
// already written stay valid.
func (p *IngestionPipeline) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}

// ==================== Job lifecycle ====================

// start registers a new job for doc. Only one job per document runs at a
// time. The run's context derives from parent.
func (p *IngestionPipeline) start(
	ctx, parent context.Context, doc *domain.Document,
) (*domain.IngestionJob, *jobRun, error) {
	if doc.Source == "" {
		return nil, nil, fmt.Errorf("%w: document source required", domain.ErrInvalidInput)
	}
	p.normalize(doc)

	now := p.now()
	job := &domain.IngestionJob{
		JobID:      uuid.NewString(),
		DocumentID: doc.ID,
		Source:     doc.Source,
		State:      domain.JobStarted,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	run, err := p.claim(parent, job.JobID, doc.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := p.checkpoints.SaveJob(ctx, job); err != nil {
		p.release(job.JobID, doc.ID, run)
		return nil, nil, fmt.Errorf("save job: %w", err)
	}

	logger.Info("Started ingestion job %s for %s", job.JobID, doc.Source)
	return job, run, nil
}

func (p *IngestionPipeline) normalize(doc *domain.Document) {
	if doc.ID == "" {
		doc.ID = domain.DocumentID(doc.Content)
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = p.now()
	}
}

func (p *IngestionPipeline) resume(ctx context.Context, jobID string) (*domain.IngestionResult, error) {
	job, err := p.checkpoints.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	doc, err := p.loader(ctx, job.Source)
	if err != nil {
		return nil, &domain.ExtractionError{Source: job.Source, Err: err}
	}
	p.normalize(&doc)
	if doc.ID != job.DocumentID {
		return nil, fmt.Errorf("%w: %s changed since job %s started", domain.ErrInvalidInput, job.Source, jobID)
	}

	run, err := p.claim(ctx, jobID, doc.ID)
	if err != nil {
		return nil, err
	}
	defer p.release(jobID, doc.ID, run)
	ctx = run.ctx

	// A job left mid-flight by a crashed process is treated as failed.
	if !job.State.IsTerminal() {
		job.State = domain.JobFailed
	}
	if err := p.transition(ctx, job, domain.JobResumed); err != nil {
		return nil, err
	}

	run.result, run.err = p.run(ctx, job, doc)
	return run.result, run.err
}

// run drives a job from its current state to COMPLETED or FAILED.
func (p *IngestionPipeline) run(
	ctx context.Context, job *domain.IngestionJob, doc domain.Document,
) (*domain.IngestionResult, error) {
	if job.State == domain.JobStarted {
		if err := p.transition(ctx, job, domain.JobChunking); err != nil {
			return p.fail(ctx, job, &tally{}, err)
		}
	}

	pages, err := p.extract(ctx, doc)
	if err != nil {
		return p.fail(ctx, job, &tally{}, err)
	}

	chunks := p.chunker.ChunkPages(doc.ID, pages)
	job.TotalChunks = len(chunks)
	logger.Debug("Job %s: %d chunks from %d pages", job.JobID, len(chunks), len(pages))

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := p.checkpoints.MarkPending(ctx, job.JobID, ids); err != nil {
		return p.fail(ctx, job, &tally{}, fmt.Errorf("record pending chunks: %w", err))
	}

	t := &tally{}
	if len(chunks) == 0 {
		return p.complete(ctx, job, t)
	}

	if err := p.transition(ctx, job, domain.JobEmbedding); err != nil {
		return p.fail(ctx, job, t, err)
	}

	cancelled, err := p.embedPending(ctx, job, doc, chunks, t)
	if err != nil {
		return p.fail(ctx, job, t, err)
	}
	if cancelled {
		return p.fail(ctx, job, t, domain.ErrJobCancelled)
	}

	if err := p.transition(ctx, job, domain.JobPersisting); err != nil {
		return p.fail(ctx, job, t, err)
	}

	sum, err := p.checkpoints.Summary(ctx, job.JobID)
	if err != nil {
		return p.fail(ctx, job, t, fmt.Errorf("summarise job: %w", err))
	}
	if sum.Pending > 0 {
		return p.fail(ctx, job, t, fmt.Errorf("%d chunks still pending", sum.Pending))
	}
	if sum.Embedded == 0 && sum.Failed > 0 {
		cause := t.rootErr
		if cause == nil {
			cause = errors.New("every chunk failed")
		}
		return p.fail(ctx, job, t, fmt.Errorf("no chunks stored: %w", cause))
	}

	return p.complete(ctx, job, t)
}

// embedPending embeds the job's pending chunks in sub-batches on a bounded
// worker pool. Each chunk belongs to exactly one sub-batch, so checkpoint
// writes for a chunk only come from one worker. It returns true when ctx was
// cancelled before every sub-batch started.
func (p *IngestionPipeline) embedPending(
	ctx context.Context, job *domain.IngestionJob, doc domain.Document, chunks []domain.Chunk, t *tally,
) (bool, error) {
	pending, err := p.checkpoints.PendingChunks(ctx, job.JobID)
	if err != nil {
		return false, fmt.Errorf("list pending chunks: %w", err)
	}
	isPending := make(map[string]bool, len(pending))
	for _, id := range pending {
		isPending[id] = true
	}

	var todo []domain.Chunk
	var skipped []string
	for _, c := range chunks {
		if !isPending[c.ID] {
			continue
		}
		embedded, err := p.checkpoints.IsEmbedded(ctx, c.ID)
		if err != nil {
			return false, fmt.Errorf("check chunk %s: %w", c.ID, err)
		}
		if embedded {
			skipped = append(skipped, c.ID)
			continue
		}
		todo = append(todo, c)
	}

	if len(skipped) > 0 {
		if err := p.checkpoints.MarkEmbedded(ctx, job.JobID, skipped); err != nil {
			return false, fmt.Errorf("mark skipped chunks: %w", err)
		}
		t.skipped = len(skipped)
		p.metrics.ChunksProcessed("skipped", len(skipped))
	}

	size := p.subBatchSize()
	logger.Debug("Job %s: embedding %d chunks in sub-batches of %d (%d skipped)",
		job.JobID, len(todo), size, len(skipped))

	// In-flight provider calls finish even if the caller cancels.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(p.settings.Workers)

	cancelled := false
	for start := 0; start < len(todo); start += size {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		end := min(start+size, len(todo))
		batch := todo[start:end]
		g.Go(func() error {
			return p.embedBatch(gctx, job, doc, batch, t)
		})
	}

	if err := g.Wait(); err != nil {
		return cancelled, err
	}
	return cancelled, nil
}

// embedBatch embeds and stores one sub-batch, then records each chunk's
// outcome. Only checkpoint write failures are returned.
func (p *IngestionPipeline) embedBatch(
	ctx context.Context, job *domain.IngestionJob, doc domain.Document, batch []domain.Chunk, t *tally,
) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vecs, embedErr := p.embedder.EmbedBatch(ctx, texts, domain.TaskTypeDocument)
	if embedErr != nil && ctx.Err() != nil {
		// Another worker aborted the job; leave these chunks pending.
		return nil
	}

	records := make([]domain.VectorRecord, len(vecs))
	for i, v := range vecs {
		c := batch[i]
		records[i] = domain.VectorRecord{
			ID:     c.ID,
			Vector: v,
			Text:   c.Text,
			Metadata: domain.VectorMetadata{
				Source:     doc.DisplayName(),
				Page:       c.Page,
				DocID:      doc.ID,
				IngestedAt: doc.IngestedAt,
			},
		}
	}

	var written []string
	failed := make(map[string]string)
	var storeErr error

	if len(records) > 0 {
		res, err := p.vectors.Upsert(ctx, records)
		if err != nil {
			storeErr = fmt.Errorf("vector store write: %w", err)
			for _, r := range records {
				failed[r.ID] = storeErr.Error()
			}
		} else {
			rejected := make(map[string]error, len(res.Rejected))
			for _, r := range res.Rejected {
				rejected[r.ID] = r.Err
			}
			for _, r := range records {
				if err, ok := rejected[r.ID]; ok {
					failed[r.ID] = err.Error()
					if storeErr == nil {
						storeErr = err
					}
					continue
				}
				written = append(written, r.ID)
			}
		}
	}

	if embedErr != nil {
		for _, c := range batch[len(vecs):] {
			failed[c.ID] = embedErr.Error()
		}
		logger.Warn("Job %s: %d chunks failed to embed: %v", job.JobID, len(batch)-len(vecs), embedErr)
	}

	if len(written) > 0 {
		if err := p.checkpoints.MarkEmbedded(ctx, job.JobID, written); err != nil {
			return fmt.Errorf("mark embedded: %w", err)
		}
	}
	for id, reason := range failed {
		if err := p.checkpoints.MarkFailed(ctx, job.JobID, []string{id}, reason); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
	}

	p.metrics.ChunksProcessed(string(domain.CheckpointEmbedded), len(written))
	p.metrics.ChunksProcessed(string(domain.CheckpointFailed), len(failed))

	rootErr := embedErr
	if rootErr == nil {
		rootErr = storeErr
	}
	t.add(len(written), len(failed), rootErr)
	return nil
}

func (p *IngestionPipeline) extract(ctx context.Context, doc domain.Document) ([]string, error) {
	extractor, ok := p.extractors[doc.MIMEType]
	if !ok {
		return nil, &domain.ExtractionError{
			Source: doc.Source,
			Err:    fmt.Errorf("no extractor for %q", doc.MIMEType),
		}
	}
	pages, err := extractor.Extract(ctx, doc.Content)
	if err != nil {
		var extErr *domain.ExtractionError
		if errors.As(err, &extErr) {
			return nil, err
		}
		return nil, &domain.ExtractionError{Source: doc.Source, Err: err}
	}
	return pages, nil
}

// subBatchSize bounds the configured size by the provider and store ceilings.
func (p *IngestionPipeline) subBatchSize() int {
	return min(p.settings.EffectiveSubBatch(p.embedder.MaxBatchSize()), p.vectors.MaxWriteBatch())
}

func (p *IngestionPipeline) requeue(ctx context.Context, jobID string) (int, error) {
	if p.isRunning(jobID) {
		return 0, fmt.Errorf("retry %s: %w", jobID, domain.ErrJobInProgress)
	}
	n, err := p.checkpoints.RequeueFailed(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("requeue failed chunks: %w", err)
	}
	return n, nil
}

// transition moves the job to next and persists it.
func (p *IngestionPipeline) transition(ctx context.Context, job *domain.IngestionJob, next domain.JobState) error {
	if !job.State.CanTransition(next) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", job.JobID, job.State, next)
	}
	logger.Debug("Job %s: %s -> %s", job.JobID, job.State, next)
	job.State = next
	job.UpdatedAt = p.now()
	if err := p.checkpoints.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (p *IngestionPipeline) complete(
	ctx context.Context, job *domain.IngestionJob, t *tally,
) (*domain.IngestionResult, error) {
	job.LastError = ""
	if err := p.transition(ctx, job, domain.JobCompleted); err != nil {
		return p.fail(ctx, job, t, err)
	}
	res := p.result(ctx, job, t)
	p.finished(job, res)
	logger.Info("Job %s completed: %d processed, %d skipped, %d failed",
		job.JobID, res.ChunksProcessed, res.ChunksSkipped, res.ChunksFailed)
	return res, nil
}

func (p *IngestionPipeline) fail(
	ctx context.Context, job *domain.IngestionJob, t *tally, cause error,
) (*domain.IngestionResult, error) {
	if ctx.Err() != nil && !errors.Is(cause, domain.ErrJobCancelled) {
		cause = fmt.Errorf("%w: %w", domain.ErrJobCancelled, cause)
	}
	job.LastError = cause.Error()
	if job.State.CanTransition(domain.JobFailed) {
		if err := p.transition(ctx, job, domain.JobFailed); err != nil {
			logger.Warn("Job %s: %v", job.JobID, err)
		}
	}
	res := p.result(ctx, job, t)
	p.finished(job, res)
	logger.Warn("Job %s failed: %v", job.JobID, cause)
	return res, cause
}

func (p *IngestionPipeline) finished(job *domain.IngestionJob, res *domain.IngestionResult) {
	p.metrics.JobFinished(string(job.State))
	logger.Audit(logger.EventIngestion, map[string]any{
		"job_id":           job.JobID,
		"source":           job.Source,
		"state":            string(job.State),
		"total_chunks":     job.TotalChunks,
		"chunks_processed": res.ChunksProcessed,
		"chunks_skipped":   res.ChunksSkipped,
		"chunks_failed":    res.ChunksFailed,
		"error":            job.LastError,
	})
}

// result assembles the summary and failure manifest for a job.
func (p *IngestionPipeline) result(ctx context.Context, job *domain.IngestionJob, t *tally) *domain.IngestionResult {
	ctx = context.WithoutCancel(ctx)
	res := &domain.IngestionResult{
		JobID:           job.JobID,
		State:           job.State,
		ChunksProcessed: t.processed,
		ChunksSkipped:   t.skipped,
		ChunksFailed:    t.failed,
	}

	if failed, err := p.checkpoints.FailedChunks(ctx, job.JobID); err == nil {
		for _, e := range failed {
			res.FailedChunks = append(res.FailedChunks, domain.FailedChunk{ChunkID: e.ChunkID, Reason: e.LastError})
		}
	} else {
		logger.Warn("Job %s: listing failed chunks: %v", job.JobID, err)
	}

	if stats, err := p.vectors.Stats(ctx); err == nil {
		res.TotalDocuments = stats.TotalRecords
	} else {
		logger.Warn("Job %s: reading collection stats: %v", job.JobID, err)
	}
	return res
}

// ==================== Run tracking ====================

func (p *IngestionPipeline) claim(parent context.Context, jobID, docID string) (*jobRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if other, ok := p.byDoc[docID]; ok {
		return nil, fmt.Errorf("document %s (job %s): %w", docID, other, domain.ErrJobInProgress)
	}
	if run, ok := p.runs[jobID]; ok && !isClosed(run.done) {
		return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrJobInProgress)
	}

	run := &jobRun{done: make(chan struct{})}
	run.ctx, run.cancel = context.WithCancel(parent)
	p.runs[jobID] = run
	p.byDoc[docID] = jobID
	return run, nil
}

// release ends a run. Finished runs are kept for Wait, oldest dropped
// first once more than p.keep are retained.
func (p *IngestionPipeline) release(jobID, docID string, run *jobRun) {
	run.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.byDoc[docID] == jobID {
		delete(p.byDoc, docID)
	}
	close(run.done)

	p.retired = append(p.retired, retiredRun{jobID: jobID, run: run})
	for len(p.retired) > p.keep {
		old := p.retired[0]
		p.retired = p.retired[1:]
		if p.runs[old.jobID] == old.run {
			delete(p.runs, old.jobID)
		}
	}
}

// forget drops a finished run once Wait has collected it.
func (p *IngestionPipeline) forget(jobID string, run *jobRun) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runs[jobID] == run {
		delete(p.runs, jobID)
	}
}

func (p *IngestionPipeline) isRunning(jobID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	run, ok := p.runs[jobID]
	return ok && !isClosed(run.done)
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
