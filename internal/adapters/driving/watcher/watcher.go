// Package watcher ingests documents dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Loader reads a document from a path.
type Loader func(ctx context.Context, path string) (domain.Document, error)

// Watcher starts an ingestion job for every new or rewritten file in dir.
type Watcher struct {
	dir      string
	ingest   driving.IngestionService
	load     Loader
	debounce time.Duration

	// OnJob is called with each started job id. Optional.
	OnJob func(path, jobID string)

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher for dir.
func New(dir string, ingest driving.IngestionService, load Loader) *Watcher {
	return &Watcher{
		dir:      dir,
		ingest:   ingest,
		load:     load,
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
	}
}

// SetDebounce overrides DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run ingests the files already in the directory, then watches it until
// ctx is cancelled. Jobs are idempotent so existing files that were
// ingested before are skipped by the pipeline.
func (w *Watcher) Run(ctx context.Context) error {
	if w.ingest == nil {
		return errors.New("ingestion service not configured")
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && !isHidden(e.Name()) {
			w.schedule(ctx, filepath.Join(w.dir, e.Name()))
		}
	}

	defer w.wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path := w.handleEvent(event); path != "" {
				w.schedule(ctx, path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox watcher: %v", err)
		}
	}
}

// handleEvent returns the path to ingest for create and write events on
// visible regular files, or "".
func (w *Watcher) handleEvent(event fsnotify.Event) string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return ""
	}
	if isHidden(filepath.Base(event.Name)) {
		return ""
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return event.Name
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ingestFile(ctx, path)
	})
	w.pending[path] = timer
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	doc, err := w.load(ctx, path)
	if err != nil {
		logger.Warn("inbox: %v", err)
		return
	}

	jobID, err := w.ingest.Ingest(ctx, doc)
	if err != nil {
		logger.Warn("inbox: ingest %s: %v", path, err)
		return
	}
	logger.Info("inbox: %s queued as job %s", filepath.Base(path), jobID)
	logger.Audit("inbox_ingest", map[string]any{"path": path, "job_id": jobID})
	if w.OnJob != nil {
		w.OnJob(path, jobID)
	}
}

// wait cancels pending timers and waits for running ingests to hand off.
func (w *Watcher) wait() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
