package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

const uriScheme = "carebot://"

// registerResources registers the resources whose backing port is wired.
func (s *Server) registerResources() {
	if s.ports.Patients != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "patients",
			Name:        "patients",
			Description: "Discharged patients known to the assistant",
			MIMEType:    "application/json",
		}, s.handlePatientsResource)
	}

	if s.ports.Ingestion != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "jobs",
			Name:        "jobs",
			Description: "Ingestion jobs with checkpoint progress",
			MIMEType:    "application/json",
		}, s.handleJobsResource)

		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "jobs/{jobId}",
			Name:        "job-status",
			Description: "Checkpoint progress of one ingestion job",
			MIMEType:    "application/json",
		}, s.handleJobResource)
	}
}

type patientInfo struct {
	PatientID        string `json:"patient_id"`
	Name             string `json:"patient_name"`
	DischargeDate    string `json:"discharge_date"`
	PrimaryDiagnosis string `json:"primary_diagnosis"`
}

type jobInfo struct {
	JobID       string `json:"job_id"`
	Source      string `json:"source"`
	State       string `json:"state"`
	Running     bool   `json:"running"`
	TotalChunks int    `json:"total_chunks"`
	Embedded    int    `json:"embedded"`
	Pending     int    `json:"pending"`
	Failed      int    `json:"failed"`
	LastError   string `json:"last_error,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
}

func (s *Server) handlePatientsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	patients, err := s.ports.Patients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}

	infos := make([]patientInfo, len(patients))
	for i, p := range patients {
		infos[i] = patientInfo{
			PatientID:        p.PatientID,
			Name:             p.Name,
			DischargeDate:    p.DischargeDate,
			PrimaryDiagnosis: p.PrimaryDiagnosis,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) handleJobsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobs, err := s.ports.Ingestion.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	infos := make([]jobInfo, len(jobs))
	for i := range jobs {
		infos[i] = toJobInfo(jobs[i].Job, jobs[i].Summary, jobs[i].Running)
	}
	return jsonResource(req.Params.URI, infos)
}

func (s *Server) handleJobResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobID := extractJobID(req.Params.URI)
	if jobID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	status, err := s.ports.Ingestion.Status(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	return jsonResource(req.Params.URI, toJobInfo(status.Job, status.Summary, status.Running))
}

func toJobInfo(job domain.IngestionJob, summary domain.CheckpointSummary, running bool) jobInfo {
	info := jobInfo{
		JobID:       job.JobID,
		Source:      job.Source,
		State:       string(job.State),
		Running:     running,
		TotalChunks: job.TotalChunks,
		Embedded:    summary.Embedded,
		Pending:     summary.Pending,
		Failed:      summary.Failed,
		LastError:   job.LastError,
	}
	if !summary.LastUpdated.IsZero() {
		info.LastUpdated = summary.LastUpdated.Format("2006-01-02T15:04:05Z07:00")
	}
	return info
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractJobID extracts the job ID from a URI like carebot://jobs/{jobId}.
func extractJobID(uri string) string {
	id, ok := strings.CutPrefix(uri, uriScheme+"jobs/")
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
