package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

const instructions = `carebot answers questions from discharged patients. Use "retrieve" for
clinical reference lookups; escalated results mean the local library had no
relevant passage and the web was searched instead. Use "chat" to talk to a
patient by name. "ingest_document" starts a background job; "cancel_ingestion"
stops one before its next sub-batch so it can be resumed later. Retrieved text
is reference material, not a diagnosis.`

// Server is the MCP server for carebot.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "carebot", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves MCP over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Health reports which capabilities are wired.
type Health struct {
	Version      string `json:"version"`
	Retrieval    bool   `json:"retrieval"`
	Ingestion    bool   `json:"ingestion"`
	Conversation bool   `json:"conversation"`
	Patients     bool   `json:"patients"`
}

// Health returns the current capability report.
func (s *Server) Health() Health {
	return Health{
		Version:      Version,
		Retrieval:    s.ports.Retrieval != nil,
		Ingestion:    s.ports.Ingestion != nil,
		Conversation: s.ports.Conversation != nil,
		Patients:     s.ports.Patients != nil,
	}
}

// Handler returns the HTTP mux. The streamable MCP endpoint is mounted at
// /, the capability report at /healthz and, when configured, Prometheus
// metrics at /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Health())
	})
	if s.ports.Metrics != nil {
		mux.Handle("/metrics", s.ports.Metrics)
	}
	mux.Handle("/", mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil))
	return mux
}

// RunHTTP serves MCP over HTTP on addr until ctx is cancelled. In-flight
// requests get a short grace period on shutdown.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down mcp http server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
