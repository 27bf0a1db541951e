package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is how many results are kept per task.
const historyRetention = 100

// FailedChunkRetrier re-queues and re-embeds failed chunks across all jobs.
type FailedChunkRetrier interface {
	RetryAllFailed(ctx context.Context) (int, error)
}

// SessionSweeper closes idle conversation sessions.
type SessionSweeper interface {
	Sweep() int
}

// taskFunc runs one task and returns how many items it handled.
type taskFunc func(ctx context.Context) (int, error)

type taskDef struct {
	id   string
	name string
	run  taskFunc // nil when the task's dependency is missing
}

// Scheduler runs the built-in maintenance tasks on their intervals and
// persists their state so a restart resumes the schedule.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	tasks  []taskDef
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// inFlight prevents a slow task from being started twice.
	inFlight map[string]bool
}

// NewScheduler creates a scheduler. A nil retrier or sweeper leaves its
// task stored but disabled.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	retrier FailedChunkRetrier,
	sweeper SessionSweeper,
) *Scheduler {
	s := &Scheduler{
		config:   config,
		store:    store,
		tick:     time.Minute,
		now:      time.Now,
		inFlight: make(map[string]bool),
	}

	retry := taskDef{id: domain.TaskIDRetryFailed, name: "Retry Failed Chunks"}
	if retrier != nil {
		retry.run = retrier.RetryAllFailed
	}
	sweep := taskDef{id: domain.TaskIDSessionSweep, name: "Session Sweep"}
	if sweeper != nil {
		sweep.run = func(context.Context) (int, error) { return sweeper.Sweep(), nil }
	}
	s.tasks = []taskDef{retry, sweep}
	return s
}

// Start runs due tasks every tick until ctx is cancelled or Stop is called.
// A second concurrent Start returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Debug("scheduler: disabled")
	} else if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: initialising tasks: %v", err)
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		if s.config.Enabled {
			s.checkAndRunDueTasks(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends Start and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Tasks returns the stored state of every task.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns recent runs of taskID, newest first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.GetTaskHistory(ctx, taskID, limit)
}

// initialiseTasks brings the store in line with the configuration. Tasks
// with no interval are deleted.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, def := range s.tasks {
		cfg := s.config.GetTaskConfig(def.id)
		if cfg.Interval <= 0 {
			if err := s.store.DeleteTask(ctx, def.id); err != nil {
				return err
			}
			continue
		}
		cfg.Enabled = cfg.Enabled && def.run != nil
		if err := s.ensureTask(ctx, def.id, def.name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates a task or applies a changed configuration to it. A new
// interval restarts the countdown from now.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		task = &domain.ScheduledTask{ID: id, Name: name}
	}
	if task.Interval != cfg.Interval {
		task.Interval = cfg.Interval
		task.NextRun = s.now().Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled
	return s.store.SaveTask(ctx, task)
}

// checkAndRunDueTasks starts every due task that is not already running.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: listing tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		if tasks[i].Due(now) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

func (s *Scheduler) lookup(id string) taskFunc {
	for _, def := range s.tasks {
		if def.id == id {
			return def.run
		}
	}
	return nil
}

// runTask executes task in the background and records the outcome.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	run := s.lookup(task.ID)
	if run == nil {
		logger.Warn("scheduler: no runner for task %s", task.ID)
		return
	}

	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
		}()

		started := s.now()
		items, err := run(ctx)
		ended := s.now()

		task.Complete(started, ended, err)
		result := &domain.TaskResult{
			TaskID:         task.ID,
			StartedAt:      started,
			EndedAt:        ended,
			Success:        err == nil,
			ItemsProcessed: items,
		}
		if err != nil {
			result.Error = err.Error()
			logger.Warn("scheduler: %s failed: %v", task.ID, err)
		} else if items > 0 {
			logger.Info("scheduler: %s handled %d item(s)", task.ID, items)
		}

		if err := s.store.SaveTask(ctx, task); err != nil {
			logger.Warn("scheduler: saving task %s: %v", task.ID, err)
		}
		if err := s.store.RecordResult(ctx, result); err != nil {
			logger.Warn("scheduler: recording result for %s: %v", task.ID, err)
		}
		if err := s.store.PruneHistory(ctx, historyRetention); err != nil {
			logger.Warn("scheduler: pruning history: %v", err)
		}
	}()
}
