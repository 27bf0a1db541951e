package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

const defaultTopK = 3

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the clinical question to look up"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of local passages (default 3)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results          []RetrievalResultOutput `json:"results"`
	Count            int                     `json:"count"`
	Escalated        bool                    `json:"escalated"`
	EscalationReason string                  `json:"escalation_reason,omitempty"`
	Degraded         bool                    `json:"degraded"`
	Notes            []string                `json:"notes,omitempty"`
}

// RetrievalResultOutput represents a single passage.
type RetrievalResultOutput struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Page       int     `json:"page,omitempty"`
	Provenance string  `json:"provenance"`
	Distance   float64 `json:"distance"`
	Relevance  float64 `json:"relevance"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
}

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Path string `json:"path" jsonschema:"path of the PDF or text file to ingest"`
	Wait bool   `json:"wait,omitempty" jsonschema:"block until the job finishes and return its summary"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	JobID           string `json:"job_id"`
	State           string `json:"state,omitempty"`
	ChunksProcessed int    `json:"chunks_processed"`
	ChunksSkipped   int    `json:"chunks_skipped"`
	ChunksFailed    int    `json:"chunks_failed"`
	TotalDocuments  int    `json:"total_documents"`
}

// CancelIngestInput is the input schema for the cancel_ingestion tool.
type CancelIngestInput struct {
	JobID string `json:"job_id" jsonschema:"id of a running ingestion job"`
}

// CancelIngestOutput is the output schema for the cancel_ingestion tool.
type CancelIngestOutput struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// StatsInput is the (empty) input schema for the vector_stats tool.
type StatsInput struct{}

// StatsOutput is the output schema for the vector_stats tool.
type StatsOutput struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
	Dimension      int    `json:"dimension"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	SessionID   string `json:"session_id,omitempty" jsonschema:"existing session; omit to start one"`
	PatientName string `json:"patient_name,omitempty" jsonschema:"patient full name, used to start a session"`
	Message     string `json:"message,omitempty" jsonschema:"the patient's message"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	SessionID  string   `json:"session_id"`
	Message    string   `json:"message"`
	Intent     string   `json:"intent,omitempty"`
	Urgent     bool     `json:"urgent,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Disclaimer string   `json:"disclaimer,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve reference passages for a clinical question, escalating to web search when local coverage is weak",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Ingest a PDF, text, Markdown or HTML document into the reference collection",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_ingestion",
		Description: "Stop a running ingestion job after its in-flight sub-batch; resume it later from its checkpoints",
	}, s.handleCancelIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vector_stats",
		Description: "Report the size of the reference collection",
	}, s.handleStats)

	if s.ports.Conversation != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chat",
			Description: "Talk to the post-discharge care assistant as a patient",
		}, s.handleChat)
	}
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RetrieveOutput{}, errors.New("query is required")
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	resp, err := s.ports.Retrieval.Retrieve(ctx, input.Query, topK)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Results:          make([]RetrievalResultOutput, len(resp.Results)),
		Count:            len(resp.Results),
		Escalated:        resp.Escalated,
		EscalationReason: resp.EscalationReason,
		Degraded:         resp.Degraded,
		Notes:            resp.Notes,
	}
	for i, r := range resp.Results {
		output.Results[i] = RetrievalResultOutput{
			Text:       r.Text,
			Source:     r.Source,
			Page:       r.Page,
			Provenance: string(r.Provenance),
			Distance:   r.Distance,
			Relevance:  r.Relevance(),
			Title:      r.Title,
			URL:        r.URL,
		}
	}
	return nil, output, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingestion == nil || s.ports.Load == nil {
		return nil, IngestOutput{}, errIngestionUnavailable
	}
	if strings.TrimSpace(input.Path) == "" {
		return nil, IngestOutput{}, errors.New("path is required")
	}

	doc, err := s.ports.Load(ctx, input.Path)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	if !input.Wait {
		jobID, err := s.ports.Ingestion.Ingest(ctx, doc)
		if err != nil {
			return nil, IngestOutput{}, err
		}
		return nil, IngestOutput{JobID: jobID, State: string(domain.JobStarted)}, nil
	}

	result, err := s.ports.Ingestion.IngestSync(ctx, doc)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{
		JobID:           result.JobID,
		State:           string(result.State),
		ChunksProcessed: result.ChunksProcessed,
		ChunksSkipped:   result.ChunksSkipped,
		ChunksFailed:    result.ChunksFailed,
		TotalDocuments:  result.TotalDocuments,
	}, nil
}

// handleCancelIngest waits for the cancelled job to stop so the reported
// state is the recorded one.
func (s *Server) handleCancelIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CancelIngestInput,
) (*mcp.CallToolResult, CancelIngestOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, CancelIngestOutput{}, errIngestionUnavailable
	}
	if strings.TrimSpace(input.JobID) == "" {
		return nil, CancelIngestOutput{}, errors.New("job_id is required")
	}
	if err := s.ports.Ingestion.Cancel(ctx, input.JobID); err != nil {
		return nil, CancelIngestOutput{}, err
	}
	result, err := s.ports.Ingestion.Wait(ctx, input.JobID)
	if result == nil {
		return nil, CancelIngestOutput{}, err
	}
	return nil, CancelIngestOutput{JobID: input.JobID, State: string(result.State)}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, StatsOutput{}, errIngestionUnavailable
	}
	stats, err := s.ports.Ingestion.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		TotalDocuments: stats.TotalRecords,
		CollectionName: stats.CollectionName,
		Dimension:      stats.Dimension,
	}, nil
}

func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	conv := s.ports.Conversation

	if input.SessionID == "" {
		session, greeting, err := conv.Greet(ctx, input.PatientName)
		if err != nil {
			if errors.Is(err, domain.ErrPatientNotFound) || errors.Is(err, domain.ErrInvalidInput) {
				return nil, ChatOutput{Message: greeting}, nil
			}
			return nil, ChatOutput{}, err
		}
		return nil, ChatOutput{SessionID: session.SessionID, Message: greeting}, nil
	}

	if strings.TrimSpace(input.Message) == "" {
		return nil, ChatOutput{}, errors.New("message is required")
	}

	reply, err := conv.Chat(ctx, input.SessionID, input.Message)
	if err != nil {
		return nil, ChatOutput{}, fmt.Errorf("chat: %w", err)
	}

	output := ChatOutput{
		SessionID:  reply.SessionID,
		Message:    reply.Message,
		Intent:     string(reply.Decision.Intent),
		Urgent:     reply.Decision.Urgency == domain.UrgencyUrgent,
		Disclaimer: reply.Disclaimer,
	}
	for _, src := range reply.Sources {
		if src.URL != "" {
			output.Sources = append(output.Sources, src.URL)
		} else {
			output.Sources = append(output.Sources, src.Source)
		}
	}
	return nil, output, nil
}
