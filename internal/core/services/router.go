package services

import (
	"strings"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// Classify decides how a conversation turn is handled. It is a pure function
// of the input, the patient's record and the rule set.
//
// A distress keyword together with a monitored-condition term (a rule's
// context term, the patient's diagnosis or one of their warning signs) makes
// the turn urgent. A distress keyword alone, or a clinical keyword, makes it
// clinical. Anything else is administrative.
func Classify(input string, patient *domain.Patient, rules domain.RoutingRules) domain.RoutingDecision {
	text := strings.ToLower(input)
	rules = rules.Normalized()

	distress := matchTerms(text, rules.DistressKeywords)

	monitored := rules.MonitoredContext
	if patient != nil {
		monitored = append(append([]string(nil), monitored...), patient.MonitoredTerms()...)
	}
	inContext := matchTerms(text, monitored)
	clinical := matchTerms(text, rules.ClinicalKeywords)

	switch {
	case len(distress) > 0 && len(inContext) > 0:
		return domain.RoutingDecision{
			Intent:       domain.IntentUrgent,
			Target:       domain.RouteClinical,
			Urgency:      domain.UrgencyUrgent,
			Reason:       "distress signal (" + strings.Join(distress, ", ") + ") in monitored context (" + strings.Join(inContext, ", ") + ")",
			MatchedTerms: append(distress, inContext...),
		}
	case len(distress) > 0:
		return domain.RoutingDecision{
			Intent:       domain.IntentClinical,
			Target:       domain.RouteClinical,
			Urgency:      domain.UrgencyNormal,
			Reason:       "distress signal (" + strings.Join(distress, ", ") + ") without monitored context",
			MatchedTerms: append(distress, clinical...),
		}
	case len(clinical) > 0:
		return domain.RoutingDecision{
			Intent:       domain.IntentClinical,
			Target:       domain.RouteClinical,
			Urgency:      domain.UrgencyNormal,
			Reason:       "clinical keywords (" + strings.Join(clinical, ", ") + ")",
			MatchedTerms: clinical,
		}
	default:
		return domain.RoutingDecision{
			Intent:  domain.IntentAdministrative,
			Target:  domain.RouteDirect,
			Urgency: domain.UrgencyNormal,
			Reason:  "no clinical keywords",
		}
	}
}

// matchTerms returns the terms contained in text, without duplicates.
func matchTerms(text string, terms []string) []string {
	var matched []string
	seen := make(map[string]bool)
	for _, t := range terms {
		if t == "" || seen[t] {
			continue
		}
		if strings.Contains(text, t) {
			seen[t] = true
			matched = append(matched, t)
		}
	}
	return matched
}
