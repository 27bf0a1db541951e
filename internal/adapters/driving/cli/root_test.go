package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// mockIngestion implements driving.IngestionService for CLI tests.
type mockIngestion struct {
	ingested  []domain.Document
	result    *domain.IngestionResult
	jobs      []driving.JobStatus
	reset     []string
	cancelled []string
	cancelErr error
	reconcile domain.ReconcileResult
	err       error
}

func (m *mockIngestion) Ingest(_ context.Context, doc domain.Document) (string, error) {
	m.ingested = append(m.ingested, doc)
	return "job-1", m.err
}

func (m *mockIngestion) IngestSync(_ context.Context, doc domain.Document) (*domain.IngestionResult, error) {
	m.ingested = append(m.ingested, doc)
	if m.err != nil {
		return nil, m.err
	}
	return m.resultFor("job-" + doc.Source), nil
}

func (m *mockIngestion) Resume(_ context.Context, jobID string) (*domain.IngestionResult, error) {
	return m.resultFor(jobID), m.err
}

func (m *mockIngestion) RetryFailed(_ context.Context, jobID string) (*domain.IngestionResult, error) {
	return m.resultFor(jobID), m.err
}

func (m *mockIngestion) Status(_ context.Context, jobID string) (*driving.JobStatus, error) {
	for i := range m.jobs {
		if m.jobs[i].Job.JobID == jobID {
			return &m.jobs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockIngestion) Jobs(_ context.Context) ([]driving.JobStatus, error) {
	return m.jobs, m.err
}

func (m *mockIngestion) Wait(_ context.Context, jobID string) (*domain.IngestionResult, error) {
	return m.resultFor(jobID), m.err
}

func (m *mockIngestion) Reconcile(_ context.Context) (domain.ReconcileResult, error) {
	return m.reconcile, m.err
}

func (m *mockIngestion) Reset(_ context.Context, jobID string) error {
	m.reset = append(m.reset, jobID)
	return m.err
}

func (m *mockIngestion) Cancel(_ context.Context, jobID string) error {
	m.cancelled = append(m.cancelled, jobID)
	return m.cancelErr
}

func (m *mockIngestion) Stats(_ context.Context) (domain.CollectionStats, error) {
	return domain.CollectionStats{TotalRecords: 12, CollectionName: "medical_documents", Dimension: 768}, m.err
}

func (m *mockIngestion) resultFor(jobID string) *domain.IngestionResult {
	if m.result != nil {
		r := *m.result
		r.JobID = jobID
		return &r
	}
	return &domain.IngestionResult{JobID: jobID, State: domain.JobCompleted, ChunksProcessed: 3, TotalDocuments: 3}
}

// mockRetrieval implements driving.RetrievalService for CLI tests.
type mockRetrieval struct {
	resp *domain.RetrievalResponse
	topK int
}

func (m *mockRetrieval) Retrieve(_ context.Context, query string, topK int) (*domain.RetrievalResponse, error) {
	m.topK = topK
	if m.resp != nil {
		return m.resp, nil
	}
	return &domain.RetrievalResponse{Query: query}, nil
}

// mockConversation implements driving.ConversationService for CLI tests.
type mockConversation struct {
	driving.ConversationService

	inputs []string
	ended  []string
}

func (m *mockConversation) Greet(_ context.Context, name string) (*domain.Session, string, error) {
	if !strings.EqualFold(name, "john smith") {
		return nil, "I couldn't find a discharge report for " + name + ".", domain.ErrPatientNotFound
	}
	return &domain.Session{SessionID: "s1", PatientName: "John Smith"}, "Hi John Smith!", nil
}

func (m *mockConversation) Chat(_ context.Context, sessionID, input string) (*domain.Reply, error) {
	m.inputs = append(m.inputs, input)
	return &domain.Reply{
		SessionID: sessionID,
		Message:   "Answer to " + input,
		Sources:   []domain.RetrievalResult{{Source: "ckd.txt"}, {Source: "ckd.txt"}},
	}, nil
}

func (m *mockConversation) End(_ context.Context, sessionID string) error {
	m.ended = append(m.ended, sessionID)
	return nil
}

// mockPatients implements driven.PatientStore for CLI tests.
type mockPatients struct{}

func (mockPatients) FindByName(_ context.Context, name string) (*domain.Patient, error) {
	if !strings.EqualFold(name, "john smith") {
		return nil, domain.ErrPatientNotFound
	}
	return &domain.Patient{PatientID: "P001", Name: "John Smith", PrimaryDiagnosis: "CKD stage 3"}, nil
}

func (mockPatients) List(_ context.Context) ([]domain.Patient, error) {
	return []domain.Patient{{PatientID: "P001", Name: "John Smith", DischargeDate: "2024-03-01", PrimaryDiagnosis: "CKD stage 3"}}, nil
}

type testServices struct {
	ingestion    *mockIngestion
	retrieval    *mockRetrieval
	conversation *mockConversation
}

// setupTestServices installs mock services and returns them with a cleanup
// function that restores the previous state.
func setupTestServices() (*testServices, func()) {
	prev := Services{
		Settings:           settingsService,
		Ingestion:          ingestionService,
		Retrieval:          retrievalService,
		Conversation:       conversationService,
		Patients:           patientStore,
		Scheduler:          scheduler,
		SchedulerConfig:    schedulerConfig,
		Metrics:            metricsHandler,
		Loader:             documentLoader,
		References:         referenceDocuments,
		RecoverCheckpoints: checkpointRecovery,
		InboxDir:           inboxDir,
	}
	prevInterval := progressInterval
	prevIsTerminal := isTerminal

	ts := &testServices{
		ingestion:    &mockIngestion{},
		retrieval:    &mockRetrieval{},
		conversation: &mockConversation{},
	}
	SetServices(&Services{
		Ingestion:    ts.ingestion,
		Retrieval:    ts.retrieval,
		Conversation: ts.conversation,
		Patients:     mockPatients{},
		Loader: func(_ context.Context, source string) (domain.Document, error) {
			return domain.Document{Source: source, MIMEType: "text/plain", Content: []byte("text")}, nil
		},
		References: func() ([]domain.Document, error) {
			return []domain.Document{
				{Source: "reference://ckd_management", Title: "CKD Management"},
				{Source: "reference://dialysis", Title: "Dialysis"},
			}, nil
		},
	})
	progressInterval = time.Hour
	isTerminal = func() bool { return false }

	return ts, func() {
		SetServices(&prev)
		progressInterval = prevInterval
		isTerminal = prevIsTerminal
		searchJSON = false
		searchLimit = 3
		chatName = ""
		chatPlain = false
		reconcileRebuild = false
		tasksHistory = 10
	}
}

// execute runs the root command with args and returns its output.
func execute(args []string, stdin string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func findCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := rootCmd.Find(args)
	if err != nil {
		t.Fatalf("command %v not found: %v", args, err)
	}
	return cmd
}
