package driven

import "time"

// Metrics receives instrumentation events from core services.
// This is an optional service - services substitute NopMetrics when nil.
type Metrics interface {
	// EmbedCall records one provider call and whether it failed.
	EmbedCall(duration time.Duration, texts int, err error)

	// EmbedRetry records a retried provider call.
	EmbedRetry()

	// ChunksProcessed adds to the per-status chunk counters.
	ChunksProcessed(status string, n int)

	// JobFinished records a job's terminal state.
	JobFinished(state string)

	// Retrieval records a retrieval and whether it escalated or degraded.
	Retrieval(duration time.Duration, escalated, degraded bool)

	// RoutingDecision counts classified turns by intent.
	RoutingDecision(intent string)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) EmbedCall(time.Duration, int, error) {}
func (NopMetrics) EmbedRetry() {}
func (NopMetrics) ChunksProcessed(string, int) {}
func (NopMetrics) JobFinished(string) {}
func (NopMetrics) Retrieval(time.Duration, bool, bool) {}
func (NopMetrics) RoutingDecision(string) {}
