// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for ingestion and retrieval to function:
//
//   - EmbeddingProvider: Turns text into vectors (Gemini, OpenAI, Ollama)
//   - VectorStore: Persistent vector collection with nearest-neighbour query
//   - CheckpointStore: Durable per-chunk ingestion progress
//   - TextExtractor: Turns document bytes into ordered pages
//   - PatientStore: Discharge record lookup by name
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer composition. Without it, answers are assembled from templates.
//   - WebSearcher: Web escalation. Without it, retrieval is local only.
//   - Metrics: Pipeline and retrieval instrumentation.
//   - SchedulerStore: Scheduler state persistence.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
