package mcp

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	resp  *domain.RetrievalResponse
	err   error
	query string
	topK  int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, topK int) (*domain.RetrievalResponse, error) {
	m.query = query
	m.topK = topK
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &domain.RetrievalResponse{Query: query}, nil
	}
	return m.resp, nil
}

// mockIngestionService is a mock implementation of driving.IngestionService.
// Methods not overridden panic through the embedded nil interface.
type mockIngestionService struct {
	driving.IngestionService

	jobID    string
	result   *domain.IngestionResult
	stats    domain.CollectionStats
	jobs     []driving.JobStatus
	status   *driving.JobStatus
	err      error
	ingested []domain.Document

	cancelled []string
	cancelErr error
}

func (m *mockIngestionService) Cancel(_ context.Context, jobID string) error {
	m.cancelled = append(m.cancelled, jobID)
	return m.cancelErr
}

func (m *mockIngestionService) Wait(_ context.Context, _ string) (*domain.IngestionResult, error) {
	return m.result, m.err
}

func (m *mockIngestionService) Ingest(_ context.Context, doc domain.Document) (string, error) {
	m.ingested = append(m.ingested, doc)
	return m.jobID, m.err
}

func (m *mockIngestionService) IngestSync(_ context.Context, doc domain.Document) (*domain.IngestionResult, error) {
	m.ingested = append(m.ingested, doc)
	return m.result, m.err
}

func (m *mockIngestionService) Stats(_ context.Context) (domain.CollectionStats, error) {
	return m.stats, m.err
}

func (m *mockIngestionService) Jobs(_ context.Context) ([]driving.JobStatus, error) {
	return m.jobs, m.err
}

func (m *mockIngestionService) Status(_ context.Context, _ string) (*driving.JobStatus, error) {
	if m.status == nil {
		return nil, domain.ErrNotFound
	}
	return m.status, m.err
}

// mockConversationService is a mock implementation of driving.ConversationService.
type mockConversationService struct {
	driving.ConversationService

	greetErr error
	reply    *domain.Reply
}

func (m *mockConversationService) Greet(_ context.Context, name string) (*domain.Session, string, error) {
	if m.greetErr != nil {
		return nil, "I couldn't find a discharge report for " + name + ".", m.greetErr
	}
	return &domain.Session{SessionID: "sess-1", PatientName: name}, "Hello " + name, nil
}

func (m *mockConversationService) Chat(_ context.Context, sessionID, _ string) (*domain.Reply, error) {
	if m.reply == nil {
		return nil, domain.ErrSessionNotFound
	}
	r := *m.reply
	r.SessionID = sessionID
	return &r, nil
}

// mockPatientStore is a mock implementation of driven.PatientStore.
type mockPatientStore struct {
	patients []domain.Patient
}

func (m *mockPatientStore) FindByName(_ context.Context, _ string) (*domain.Patient, error) {
	return nil, domain.ErrPatientNotFound
}

func (m *mockPatientStore) List(_ context.Context) ([]domain.Patient, error) {
	return m.patients, nil
}

func loadStub(_ context.Context, path string) (domain.Document, error) {
	return domain.Document{Source: path, MIMEType: "text/plain", Content: []byte("content")}, nil
}
