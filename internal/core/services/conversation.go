package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
	"github.com/custodia-labs/carebot/internal/logger"
)

// Ensure ConversationService implements the interface.
var _ driving.ConversationService = (*ConversationService)(nil)

// Agent names recorded in the audit log.
const (
	agentReceptionist = "receptionist"
	agentClinical     = "clinical"
)

// excerptLimit bounds a reference passage quoted in a templated answer.
const excerptLimit = 300

// ConversationService greets patients, classifies each turn and assembles
// answers from patient context or retrieved reference material.
type ConversationService struct {
	patients  driven.PatientStore
	retrieval driving.RetrievalService
	llm       driven.LLMService
	sessions  *SessionRegistry
	rules     domain.RoutingRules
	metrics   driven.Metrics
	prompts   driven.PromptStore
}

// NewConversationService creates a conversation service.
// The LLM and metrics are optional (can be nil); without an LLM answers are
// assembled from templates.
func NewConversationService(
	patients driven.PatientStore,
	retrieval driving.RetrievalService,
	llm driven.LLMService,
	sessions *SessionRegistry,
	rules domain.RoutingRules,
	metrics driven.Metrics,
) *ConversationService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &ConversationService{
		patients:  patients,
		retrieval: retrieval,
		llm:       llm,
		sessions:  sessions,
		rules:     rules,
		metrics:   metrics,
	}
}

// Greet looks the patient up and opens a session. An unknown name returns a
// user-facing message with domain.ErrPatientNotFound and no session.
func (s *ConversationService) Greet(ctx context.Context, patientName string) (*domain.Session, string, error) {
	name := strings.TrimSpace(patientName)
	if name == "" {
		return nil, "Please tell me your full name so I can find your discharge report.",
			fmt.Errorf("%w: patient name required", domain.ErrInvalidInput)
	}

	patient, err := s.patients.FindByName(ctx, name)
	if errors.Is(err, domain.ErrPatientNotFound) {
		msg := fmt.Sprintf("I'm sorry, I couldn't find a discharge report for %s in our system. "+
			"Could you please verify the name or try again?", name)
		logger.Audit(logger.EventInteraction, map[string]any{
			"patient": name,
			"agent":   agentReceptionist,
			"kind":    "greeting_failed",
		})
		return nil, msg, err
	}
	if err != nil {
		return nil, "", fmt.Errorf("looking up patient: %w", err)
	}

	session, err := s.sessions.Open(*patient)
	if err != nil {
		return nil, "", err
	}

	msg := s.greeting(ctx, patient)
	logger.Audit(logger.EventInteraction, map[string]any{
		"session_id": session.SessionID,
		"patient":    patient.Name,
		"agent":      agentReceptionist,
		"kind":       "greeting",
	})
	return session, msg, nil
}

// Chat classifies one turn of an open session and answers it.
func (s *ConversationService) Chat(ctx context.Context, sessionID, input string) (*domain.Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	decision := Classify(input, &session.Patient, s.rules)
	s.metrics.RoutingDecision(string(decision.Intent))
	logger.Info("Routing %s turn to %s: %s", decision.Intent, decision.Target, decision.Reason)
	logger.Audit(logger.EventRoutingDecision, map[string]any{
		"session_id": sessionID,
		"patient":    session.PatientName,
		"intent":     decision.Intent,
		"target":     decision.Target,
		"urgency":    decision.Urgency,
		"reason":     decision.Reason,
		"matched":    decision.MatchedTerms,
	})

	reply := &domain.Reply{SessionID: sessionID, Decision: decision}
	agent := agentReceptionist

	switch decision.Target {
	case domain.RouteClinical:
		agent = agentClinical
		logger.Audit(logger.EventHandoff, map[string]any{
			"session_id": sessionID,
			"from":       agentReceptionist,
			"to":         agentClinical,
			"reason":     decision.Reason,
		})
		if err := s.answerClinical(ctx, session, input, reply); err != nil {
			return nil, err
		}
	default:
		reply.Message = s.answerAdministrative(ctx, session, input)
	}

	if err := s.sessions.AppendTurn(sessionID, domain.Turn{
		Query:     input,
		Response:  reply.Message,
		AgentUsed: decision.Target,
		Decision:  decision,
	}); err != nil {
		return nil, err
	}

	logger.Audit(logger.EventInteraction, map[string]any{
		"session_id": sessionID,
		"patient":    session.PatientName,
		"agent":      agent,
		"query":      input,
		"response":   reply.Message,
		"escalated":  reply.Escalated,
		"degraded":   reply.Degraded,
	})
	return reply, nil
}

// Session returns a snapshot of a session.
func (s *ConversationService) Session(_ context.Context, sessionID string) (*domain.Session, error) {
	return s.sessions.Get(sessionID)
}

// Sessions lists open sessions.
func (s *ConversationService) Sessions(_ context.Context) ([]domain.Session, error) {
	return s.sessions.List(), nil
}

// End closes a session.
func (s *ConversationService) End(_ context.Context, sessionID string) error {
	return s.sessions.End(sessionID)
}

func (s *ConversationService) greeting(ctx context.Context, p *domain.Patient) string {
	if s.llm != nil {
		text, err := s.generate(ctx, domain.PromptGreeting, promptData(*p, "", ""), 0.3)
		if err == nil {
			return text
		}
		logger.Info("LLM greeting failed, using template: %v", err)
	}

	return fmt.Sprintf("Hello %s, welcome back. I have your discharge report from %s for %s. "+
		"How are you feeling today? Let me know if you have any questions or concerns.",
		p.Name, p.DischargeDate, p.PrimaryDiagnosis)
}

func (s *ConversationService) answerAdministrative(ctx context.Context, session *domain.Session, input string) string {
	p := session.Patient
	if s.llm != nil {
		system, err := s.renderPrompt(domain.PromptReceptionist, promptData(p, input, ""))
		if err != nil {
			logger.Info("receptionist prompt failed, using template: %v", err)
			return administrativeTemplate(p, input)
		}
		messages := []driven.ChatMessage{{Role: "system", Content: system}}
		for _, t := range session.Turns {
			messages = append(messages,
				driven.ChatMessage{Role: "user", Content: t.Query},
				driven.ChatMessage{Role: "assistant", Content: t.Response})
		}
		messages = append(messages, driven.ChatMessage{Role: "user", Content: input})

		text, err := s.llm.Chat(ctx, messages, driven.ChatOptions{Temperature: 0.3})
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		logger.Info("LLM answer failed, using template: %v", err)
	}
	return administrativeTemplate(p, input)
}

// administrativeTemplate answers logistics questions from the discharge record.
func administrativeTemplate(p domain.Patient, input string) string {
	q := strings.ToLower(input)
	switch {
	case containsAny(q, "appointment", "follow-up", "follow up", "visit", "schedule", "clinic"):
		return fmt.Sprintf("Your follow-up plan: %s", p.FollowUp)
	case containsAny(q, "eat", "food", "drink", "restriction"):
		return fmt.Sprintf("Your dietary restrictions: %s", p.DietaryRestrictions)
	case containsAny(q, "instruction", "activity", "exercise", "discharge"):
		return fmt.Sprintf("Your discharge instructions: %s", p.DischargeInstructions)
	case containsAny(q, "report", "record", "summary"):
		return p.Report()
	case containsAny(q, "thank", "bye", "goodbye"):
		return fmt.Sprintf("You're welcome, %s. Take care, and reach out any time.", p.Name)
	default:
		return "I can help with your follow-up appointments, diet, discharge instructions and " +
			"discharge report. If you have symptoms or questions about your medication, just describe them."
	}
}

func (s *ConversationService) answerClinical(ctx context.Context, session *domain.Session, input string, reply *domain.Reply) error {
	resp, err := s.retrieval.Retrieve(ctx, input, 0)
	if err != nil {
		return fmt.Errorf("retrieving reference material: %w", err)
	}
	reply.Sources = resp.Results
	reply.Escalated = resp.Escalated
	reply.Degraded = resp.Degraded
	reply.Disclaimer = domain.ClinicalDisclaimer

	urgent := reply.Decision.Urgency == domain.UrgencyUrgent

	var body string
	if !urgent && s.llm != nil {
		body = s.clinicalFromLLM(ctx, session.Patient, input, resp)
	}
	if body == "" {
		body = clinicalTemplate(session.Patient, resp, urgent)
	}

	var b strings.Builder
	if urgent {
		b.WriteString(domain.EscalationNotice)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	for _, note := range resp.Notes {
		b.WriteString("\n\nNote: ")
		b.WriteString(note)
	}
	b.WriteString("\n\n")
	b.WriteString(domain.ClinicalDisclaimer)

	reply.Message = b.String()
	return nil
}

func (s *ConversationService) clinicalFromLLM(ctx context.Context, p domain.Patient, input string, resp *domain.RetrievalResponse) string {
	var refs strings.Builder
	for _, r := range resp.Results {
		fmt.Fprintf(&refs, "\nSource: %s\n%s\n", citation(r), excerpt(r.Text))
	}

	text, err := s.generate(ctx, domain.PromptClinical, promptData(p, input, refs.String()), 0.5)
	if err != nil {
		logger.Info("LLM clinical answer failed, using template: %v", err)
		return ""
	}
	return text
}

// generate renders a prompt and sends it to the LLM. An empty completion
// is an error.
func (s *ConversationService) generate(ctx context.Context, name string, data domain.PromptData, temperature float64) (string, error) {
	prompt, err := s.renderPrompt(name, data)
	if err != nil {
		return "", err
	}
	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: temperature})
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

// clinicalTemplate lists the retrieved passages with their citations.
// Urgent answers never point the patient at the scheduled follow-up.
func clinicalTemplate(p domain.Patient, resp *domain.RetrievalResponse, urgent bool) string {
	var b strings.Builder
	if urgent {
		if signs := p.WarningSignList(); len(signs) > 0 {
			fmt.Fprintf(&b, "Your discharge report lists these warning signs: %s.\n\n", strings.Join(signs, ", "))
		}
	}

	if len(resp.Results) == 0 {
		b.WriteString("I couldn't find reference material on that question.")
		if !urgent {
			b.WriteString(" Please raise it with your care team.")
		}
		return b.String()
	}

	b.WriteString("Here is what the reference material says:\n")
	for _, r := range resp.Results {
		fmt.Fprintf(&b, "\n- %s [%s]", excerpt(r.Text), citation(r))
	}
	return b.String()
}

func citation(r domain.RetrievalResult) string {
	switch {
	case r.Provenance == domain.ProvenanceWeb && r.Title != "":
		return fmt.Sprintf("%s, %s", r.Title, r.URL)
	case r.Page > 0:
		return fmt.Sprintf("%s, p. %d", r.Source, r.Page)
	default:
		return r.Source
	}
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= excerptLimit {
		return text
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
