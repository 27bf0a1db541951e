package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// fakePatientStore matches names case-insensitively.
type fakePatientStore struct {
	patients []domain.Patient
	err      error
}

var _ driven.PatientStore = (*fakePatientStore)(nil)

func (f *fakePatientStore) FindByName(_ context.Context, name string) (*domain.Patient, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.patients {
		if strings.EqualFold(f.patients[i].Name, name) {
			p := f.patients[i]
			return &p, nil
		}
	}
	return nil, domain.ErrPatientNotFound
}

func (f *fakePatientStore) List(_ context.Context) ([]domain.Patient, error) {
	return f.patients, f.err
}

// fakeRetrieval returns a canned response and records queries.
type fakeRetrieval struct {
	resp    *domain.RetrievalResponse
	err     error
	queries []string
}

var _ driving.RetrievalService = (*fakeRetrieval)(nil)

func (f *fakeRetrieval) Retrieve(_ context.Context, query string, _ int) (*domain.RetrievalResponse, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp == nil {
		return &domain.RetrievalResponse{Query: query}, nil
	}
	return f.resp, nil
}

// fakeLLM returns fixed text or an error and records what it was sent.
type fakeLLM struct {
	text     string
	err      error
	prompts  []string
	messages [][]driven.ChatMessage
}

var _ driven.LLMService = (*fakeLLM)(nil)

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	f.messages = append(f.messages, messages)
	return f.text, f.err
}

func (f *fakeLLM) ModelName() string            { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

type conversationFixture struct {
	service   *ConversationService
	retrieval *fakeRetrieval
	sessions  *SessionRegistry
	metrics   *countingMetrics
}

func newConversationFixture(t *testing.T, llm driven.LLMService) *conversationFixture {
	t.Helper()

	f := &conversationFixture{
		retrieval: &fakeRetrieval{resp: &domain.RetrievalResponse{
			Results: []domain.RetrievalResult{{
				Text:       "Fluid restriction is usually 1.5 litres per day in stage 3 CKD.",
				Source:     "ckd_management",
				Page:       4,
				Provenance: domain.ProvenanceLocal,
			}},
		}},
		sessions: NewSessionRegistry(domain.SessionSettings{IdleTimeout: time.Hour}),
		metrics:  &countingMetrics{},
	}
	patients := &fakePatientStore{patients: []domain.Patient{*testPatient()}}
	f.service = NewConversationService(patients, f.retrieval, llm, f.sessions, domain.DefaultRoutingRules(), f.metrics)
	return f
}

func (f *conversationFixture) greet(t *testing.T) *domain.Session {
	t.Helper()
	session, _, err := f.service.Greet(context.Background(), "john smith")
	require.NoError(t, err)
	return session
}

func TestConversationService_GreetKnownPatient(t *testing.T) {
	f := newConversationFixture(t, nil)

	session, msg, err := f.service.Greet(context.Background(), "  JOHN SMITH ")
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, domain.SessionActive, session.State)
	assert.Equal(t, "P001", session.Patient.PatientID)
	assert.Contains(t, msg, "John Smith")
	assert.Contains(t, msg, "Chronic Kidney Disease")
	assert.Equal(t, 1, f.sessions.Len())
}

func TestConversationService_GreetUnknownPatient(t *testing.T) {
	f := newConversationFixture(t, nil)

	session, msg, err := f.service.Greet(context.Background(), "Jane Doe")
	assert.ErrorIs(t, err, domain.ErrPatientNotFound)
	assert.Nil(t, session)
	assert.Contains(t, msg, "couldn't find a discharge report for Jane Doe")
	assert.Zero(t, f.sessions.Len())
}

func TestConversationService_GreetEmptyName(t *testing.T) {
	f := newConversationFixture(t, nil)
	_, msg, err := f.service.Greet(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotEmpty(t, msg)
}

func TestConversationService_GreetStoreFailure(t *testing.T) {
	f := newConversationFixture(t, nil)
	f.service.patients = &fakePatientStore{err: errors.New("disk error")}

	_, _, err := f.service.Greet(context.Background(), "John Smith")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPatientNotFound)
}

func TestConversationService_GreetWithLLM(t *testing.T) {
	llm := &fakeLLM{text: "Welcome back, John!"}
	f := newConversationFixture(t, llm)

	_, msg, err := f.service.Greet(context.Background(), "John Smith")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back, John!", msg)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Chronic Kidney Disease Stage 3")
}

func TestConversationService_AdministrativeTurn(t *testing.T) {
	f := newConversationFixture(t, nil)
	session := f.greet(t)

	reply, err := f.service.Chat(context.Background(), session.SessionID, "When is my next appointment?")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentAdministrative, reply.Decision.Intent)
	assert.Contains(t, reply.Message, "Nephrology clinic in 2 weeks")
	assert.Empty(t, reply.Disclaimer)
	assert.NotContains(t, reply.Message, domain.ClinicalDisclaimer)
	assert.Empty(t, f.retrieval.queries)
	assert.Equal(t, []string{"administrative"}, f.metrics.intents)
}

func TestConversationService_AdministrativeWithLLMHistory(t *testing.T) {
	llm := &fakeLLM{text: "Your appointment is in two weeks."}
	f := newConversationFixture(t, llm)
	session := f.greet(t)

	_, err := f.service.Chat(context.Background(), session.SessionID, "When is my appointment?")
	require.NoError(t, err)
	reply, err := f.service.Chat(context.Background(), session.SessionID, "And where?")
	require.NoError(t, err)

	assert.Equal(t, "Your appointment is in two weeks.", reply.Message)
	require.Len(t, llm.messages, 2)
	last := llm.messages[1]
	assert.Equal(t, "system", last[0].Role)
	assert.Equal(t, "When is my appointment?", last[1].Content)
	assert.Equal(t, "assistant", last[2].Role)
	assert.Equal(t, "And where?", last[len(last)-1].Content)
}

func TestConversationService_LLMFailureFallsBackToTemplate(t *testing.T) {
	llm := &fakeLLM{err: &domain.ProviderError{Provider: "fake", StatusCode: 503, Message: "down"}}
	f := newConversationFixture(t, llm)
	session := f.greet(t)

	reply, err := f.service.Chat(context.Background(), session.SessionID, "When is my follow-up?")
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "Nephrology clinic in 2 weeks")
}

func TestConversationService_ClinicalTurn(t *testing.T) {
	f := newConversationFixture(t, nil)
	session := f.greet(t)

	reply, err := f.service.Chat(context.Background(), session.SessionID, "How much fluid should I drink with my kidney disease?")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentClinical, reply.Decision.Intent)
	assert.Equal(t, []string{"How much fluid should I drink with my kidney disease?"}, f.retrieval.queries)
	assert.Contains(t, reply.Message, "1.5 litres")
	assert.Contains(t, reply.Message, "ckd_management, p. 4")
	assert.True(t, strings.HasSuffix(reply.Message, domain.ClinicalDisclaimer))
	assert.Equal(t, domain.ClinicalDisclaimer, reply.Disclaimer)
	assert.False(t, strings.HasPrefix(reply.Message, domain.EscalationNotice))
	require.Len(t, reply.Sources, 1)
}

func TestConversationService_ClinicalWithLLM(t *testing.T) {
	llm := &fakeLLM{text: "Keep to about 1.5 litres a day [ckd_management]."}
	f := newConversationFixture(t, llm)
	session := f.greet(t)

	reply, err := f.service.Chat(context.Background(), session.SessionID, "What about potassium in my diet?")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(reply.Message, "Keep to about 1.5 litres"))
	assert.True(t, strings.HasSuffix(reply.Message, domain.ClinicalDisclaimer))
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "Fluid restriction is usually")
	assert.Contains(t, llm.prompts[1], "Lisinopril 10mg daily")
}

func TestConversationService_UrgentTurn(t *testing.T) {
	llm := &fakeLLM{text: "Wait for your follow-up appointment."}
	f := newConversationFixture(t, llm)
	session := f.greet(t)

	reply, err := f.service.Chat(context.Background(), session.SessionID, "I have severe chest pain since my dialysis")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentUrgent, reply.Decision.Intent)
	assert.True(t, strings.HasPrefix(reply.Message, domain.EscalationNotice))
	assert.True(t, strings.HasSuffix(reply.Message, domain.ClinicalDisclaimer))
	assert.NotContains(t, reply.Message, "Wait for your follow-up")
	assert.NotContains(t, reply.Message, session.Patient.FollowUp)
	assert.Contains(t, reply.Message, "shortness of breath")
	assert.Len(t, llm.prompts, 1, "urgent answers are not generated by the LLM")
}

func TestConversationService_DegradedRetrievalNoted(t *testing.T) {
	f := newConversationFixture(t, nil)
	f.retrieval.resp = &domain.RetrievalResponse{
		Degraded: true,
		Notes:    []string{"Web search is unavailable; showing reference material only."},
	}
	session := f.greet(t)

	reply, err := f.service.Chat(context.Background(), session.SessionID, "Is this a side effect of my medication?")
	require.NoError(t, err)

	assert.True(t, reply.Degraded)
	assert.Contains(t, reply.Message, "Web search is unavailable")
	assert.Contains(t, reply.Message, "couldn't find reference material")
}

func TestConversationService_RetrievalErrorFailsTurn(t *testing.T) {
	f := newConversationFixture(t, nil)
	f.retrieval.err = domain.ErrInvalidInput
	session := f.greet(t)

	_, err := f.service.Chat(context.Background(), session.SessionID, "my urine is dark")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := f.service.Session(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, got.Turns)
}

func TestConversationService_TurnsRecorded(t *testing.T) {
	f := newConversationFixture(t, nil)
	session := f.greet(t)

	_, err := f.service.Chat(context.Background(), session.SessionID, "When is my appointment?")
	require.NoError(t, err)
	_, err = f.service.Chat(context.Background(), session.SessionID, "I feel dizzy")
	require.NoError(t, err)

	got, err := f.service.Session(context.Background(), session.SessionID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, domain.RouteDirect, got.Turns[0].AgentUsed)
	assert.Equal(t, domain.RouteClinical, got.Turns[1].AgentUsed)
}

func TestConversationService_ChatErrors(t *testing.T) {
	f := newConversationFixture(t, nil)
	session := f.greet(t)

	_, err := f.service.Chat(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = f.service.Chat(context.Background(), session.SessionID, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConversationService_SessionsAndEnd(t *testing.T) {
	f := newConversationFixture(t, nil)
	session := f.greet(t)
	f.greet(t)

	list, err := f.service.Sessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, f.service.End(context.Background(), session.SessionID))
	_, err = f.service.Chat(context.Background(), session.SessionID, "hello")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	list, err = f.service.Sessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConversationService_AuditTrail(t *testing.T) {
	var buf bytes.Buffer
	logger.SetAuditOutput(&buf)
	t.Cleanup(func() { logger.SetAuditOutput(nil) })

	f := newConversationFixture(t, nil)
	session := f.greet(t)
	_, err := f.service.Chat(context.Background(), session.SessionID, "I have a fever")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"event":"routing_decision"`)
	assert.Contains(t, out, `"event":"agent_handoff"`)
	assert.Contains(t, out, `"event":"interaction"`)
	assert.Contains(t, out, `"intent":"clinical"`)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b", excerpt("  a \n b "))

	long := strings.Repeat("é", 200)
	got := excerpt(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), excerptLimit+3)
	assert.True(t, strings.HasPrefix(long, strings.TrimSuffix(got, "...")))
}
