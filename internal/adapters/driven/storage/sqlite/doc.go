// Package sqlite provides SQLite-backed implementations of the checkpoint
// store, the vector store and the scheduler store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. Each database file is opened through a Store:
//
//   - checkpoints.db: CheckpointStore (chunk progress and job records) and SchedulerStore
//   - vectors.db: VectorStore (one or more named collections)
//
// # Schema
//
// The schema is managed through versioned migrations stored in the
// migrations/ directory, applied in order, one transaction each.
//
// # Data Location
//
// By default, the databases are stored under ~/.carebot/data.
//
// # Durability
//
// Databases run in WAL mode and every write is a committed transaction, so a
// process restarted after a crash sees exactly the committed set. A
// checkpoint database that cannot be read is reported as
// *domain.CheckpointCorruptionError; RecreateCheckpoints followed by
// Reconcile rebuilds it from the vector store.
package sqlite
