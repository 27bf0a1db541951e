// Package mcp provides an MCP (Model Context Protocol) server adapter for carebot.
// It lets AI assistants query the reference collection, ingest documents and
// hold patient conversations.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// errIngestionUnavailable is returned by ingestion tools when no pipeline is wired.
var errIngestionUnavailable = errors.New("ingestion service not configured")
