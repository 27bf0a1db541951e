// Package prom implements driven.Metrics with Prometheus collectors.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

// Ensure Metrics implements the interface.
var _ driven.Metrics = (*Metrics)(nil)

const namespace = "carebot"

// Metrics holds the carebot collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	EmbedCalls     *prometheus.CounterVec
	EmbedDuration  prometheus.Histogram
	EmbedTexts     prometheus.Counter
	EmbedRetries   prometheus.Counter
	Chunks         *prometheus.CounterVec
	Jobs           *prometheus.CounterVec
	Retrievals     *prometheus.CounterVec
	RetrievalTime  prometheus.Histogram
	RoutingIntents *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EmbedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_calls_total",
			Help:      "Embedding provider calls by outcome",
		}, []string{"outcome"}),
		EmbedDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_call_duration_seconds",
			Help:      "Duration of embedding provider calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		EmbedTexts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_texts_total",
			Help:      "Texts sent to the embedding provider",
		}),
		EmbedRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_retries_total",
			Help:      "Retried embedding provider calls",
		}),
		Chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Chunks reaching a checkpoint status",
		}, []string{"status"}),
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_jobs_total",
			Help:      "Ingestion jobs by terminal state",
		}, []string{"state"}),
		Retrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrievals by source",
		}, []string{"source"}),
		RetrievalTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of retrievals including web escalation",
			Buckets:   prometheus.DefBuckets,
		}),
		RoutingIntents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Conversation turns by classified intent",
		}, []string{"intent"}),
	}
}

// EmbedCall records one provider call.
func (m *Metrics) EmbedCall(duration time.Duration, texts int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EmbedCalls.WithLabelValues(outcome).Inc()
	m.EmbedDuration.Observe(duration.Seconds())
	m.EmbedTexts.Add(float64(texts))
}

// EmbedRetry records a retried provider call.
func (m *Metrics) EmbedRetry() {
	m.EmbedRetries.Inc()
}

// ChunksProcessed adds n to the counter for status.
func (m *Metrics) ChunksProcessed(status string, n int) {
	if n <= 0 {
		return
	}
	m.Chunks.WithLabelValues(status).Add(float64(n))
}

// JobFinished records a job's terminal state.
func (m *Metrics) JobFinished(state string) {
	m.Jobs.WithLabelValues(state).Inc()
}

// Retrieval records a retrieval.
func (m *Metrics) Retrieval(duration time.Duration, escalated, degraded bool) {
	source := "local"
	switch {
	case degraded:
		source = "degraded"
	case escalated:
		source = "web"
	}
	m.Retrievals.WithLabelValues(source).Inc()
	m.RetrievalTime.Observe(duration.Seconds())
}

// RoutingDecision counts a classified turn.
func (m *Metrics) RoutingDecision(intent string) {
	m.RoutingIntents.WithLabelValues(intent).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
