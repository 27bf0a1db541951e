// Package domain defines the core business entities for carebot.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded, overlapping passage of an ingested document
//   - VectorRecord: A chunk's embedding plus its text and metadata
//   - CheckpointEntry: Durable progress marker for one chunk of a job
//   - IngestionJob: A document ingestion run and its state
//   - RoutingDecision: How a conversation turn was classified and dispatched
//   - Session: A patient conversation and its turns
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
