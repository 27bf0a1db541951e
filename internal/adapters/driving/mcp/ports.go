package mcp

import (
	"context"
	"net/http"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// Ports aggregates the services the MCP server exposes.
type Ports struct {
	// Retrieval answers reference queries (required).
	Retrieval driving.RetrievalService

	// Ingestion runs ingestion jobs. Optional; without it the ingest and
	// stats tools report an error.
	Ingestion driving.IngestionService

	// Conversation holds patient chats. Optional.
	Conversation driving.ConversationService

	// Patients backs the patients resource. Optional.
	Patients driven.PatientStore

	// Load reads a document from a path for ingest_document.
	Load func(ctx context.Context, path string) (domain.Document, error)

	// Metrics is mounted at /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
