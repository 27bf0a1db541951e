package domain

import "time"

// Built-in background tasks.
const (
	// TaskIDRetryFailed re-embeds failed chunks when the retry policy is
	// RetryScheduled.
	TaskIDRetryFailed = "retry-failed"

	// TaskIDSessionSweep closes conversation sessions past their idle timeout.
	TaskIDSessionSweep = "session-sweep"
)

// ScheduledTask is the persisted state of one background task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is empty after a successful run.
	LastError string
}

// Due reports whether an enabled task should run at now. A task that has
// never been scheduled is due immediately.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// Complete records a run that started at started and ended at ended, and
// schedules the next one an interval after it ended.
func (t *ScheduledTask) Complete(started, ended time.Time, err error) {
	t.LastRun = started
	t.NextRun = ended.Add(t.Interval)
	if err != nil {
		t.LastError = err.Error()
		return
	}
	t.LastError = ""
	t.LastSuccess = ended
}

// Healthy reports whether the last run succeeded or the task has not run.
func (t *ScheduledTask) Healthy() bool {
	return t.LastError == ""
}

// TaskResult is one execution of a task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed counts chunks re-queued or sessions closed.
	ItemsProcessed int
}

// Duration is how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch.
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig configures one task. An Interval of zero removes the task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the configuration for taskID, or the zero value.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig retries failed chunks every 15 minutes and sweeps
// idle sessions every 5.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDRetryFailed:  {Enabled: true, Interval: 15 * time.Minute},
			TaskIDSessionSweep: {Enabled: true, Interval: 5 * time.Minute},
		},
	}
}
