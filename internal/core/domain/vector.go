package domain

import "time"

// VectorMetadata is stored alongside each vector.
type VectorMetadata struct {
	Source     string    `json:"source"`
	Page       int       `json:"page,omitempty"`
	DocID      string    `json:"doc_id"`
	IngestedAt time.Time `json:"ingested_at"`
}

// VectorRecord is one entry of the vector collection. ID equals the chunk id.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata VectorMetadata
}

// QueryHit is a nearest-neighbour result.
type QueryHit struct {
	Record VectorRecord

	// Distance is the cosine distance to the query (0 = identical direction).
	Distance float64
}

// RejectedRecord is a record the vector store refused to write.
type RejectedRecord struct {
	ID  string
	Err error
}

// UpsertResult reports the outcome of a batch write.
type UpsertResult struct {
	Written  int
	Rejected []RejectedRecord
}

// CollectionStats describes the vector collection.
type CollectionStats struct {
	TotalRecords   int
	CollectionName string
	Dimension      int
	PersistPath    string
}
