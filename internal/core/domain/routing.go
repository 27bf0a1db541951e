package domain

import "strings"

// Intent is the classified purpose of a conversation turn.
type Intent string

// Turn intents.
const (
	// IntentAdministrative covers scheduling, logistics and small talk.
	IntentAdministrative Intent = "administrative"

	// IntentClinical covers medical questions answered from reference material.
	IntentClinical Intent = "clinical"

	// IntentUrgent covers distress signals tied to a monitored condition.
	IntentUrgent Intent = "urgent"
)

// Urgency marks whether a turn needs the escalation notice.
type Urgency string

// Urgency levels.
const (
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// RouteTarget is the handler a turn is dispatched to.
type RouteTarget string

// Route targets.
const (
	// RouteDirect answers from session and patient context.
	RouteDirect RouteTarget = "direct"

	// RouteClinical answers through retrieval.
	RouteClinical RouteTarget = "clinical"
)

// RoutingDecision is the tagged result of classifying a turn.
type RoutingDecision struct {
	Intent       Intent
	Target       RouteTarget
	Urgency      Urgency
	Reason       string
	MatchedTerms []string
}

// RoutingRules is the keyword configuration the classifier runs on.
// All matching is case-insensitive substring matching.
type RoutingRules struct {
	// ClinicalKeywords route a turn to retrieval.
	ClinicalKeywords []string

	// DistressKeywords signal a possibly acute problem.
	DistressKeywords []string

	// MonitoredContext lists terms that, combined with a distress keyword,
	// make a turn urgent: post-procedure and discharge-diagnosis vocabulary.
	MonitoredContext []string
}

// DefaultRoutingRules returns the built-in keyword sets.
func DefaultRoutingRules() RoutingRules {
	return RoutingRules{
		ClinicalKeywords: []string{
			"symptom", "pain", "swelling", "breathing", "shortness of breath",
			"medication", "side effect", "should i", "worried", "concern",
			"warning", "blood", "urine", "fever", "dizzy", "chest",
			"dose", "diet", "potassium", "dialysis", "kidney",
		},
		DistressKeywords: []string{
			"chest pain", "can't breathe", "cannot breathe", "shortness of breath",
			"severe", "bleeding", "fainted", "passed out", "confused",
			"no urine", "not urinating", "swelling getting worse", "emergency",
		},
		MonitoredContext: []string{
			"surgery", "incision", "wound", "stitches", "catheter", "fistula",
			"transplant", "dialysis", "discharge", "since i got home", "post-op",
		},
	}
}

// Normalized returns the rules with every term lower-cased and trimmed.
func (r RoutingRules) Normalized() RoutingRules {
	return RoutingRules{
		ClinicalKeywords: normalizeTerms(r.ClinicalKeywords),
		DistressKeywords: normalizeTerms(r.DistressKeywords),
		MonitoredContext: normalizeTerms(r.MonitoredContext),
	}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ClinicalDisclaimer is appended to every clinical or urgent answer.
const ClinicalDisclaimer = "This is an AI assistant for educational purposes only. " +
	"Always consult healthcare professionals for medical advice."

// EscalationNotice opens every urgent answer.
const EscalationNotice = "URGENT: Your message describes symptoms that may need immediate attention. " +
	"Please contact your care team now or call emergency services. Do not wait for your scheduled follow-up."
