package domain

// Provenance records where a retrieval result came from.
type Provenance string

// Result provenances.
const (
	ProvenanceLocal Provenance = "local"
	ProvenanceWeb   Provenance = "web"
)

// RetrievalResult is one passage returned to the router.
type RetrievalResult struct {
	Text       string
	Source     string
	Page       int
	Distance   float64
	Provenance Provenance

	// Title and URL are set for web results.
	Title string
	URL   string
}

// Relevance converts distance to a similarity-style score.
func (r RetrievalResult) Relevance() float64 {
	return 1 - r.Distance
}

// RetrievalResponse is the merged output of local and web retrieval.
type RetrievalResponse struct {
	Query   string
	Results []RetrievalResult

	// Escalated is true when web search was attempted.
	Escalated bool

	// EscalationReason explains why web search was attempted.
	EscalationReason string

	// Degraded is true when a source failed and results are partial.
	Degraded bool

	// Notes carries user-visible remarks about degraded sources.
	Notes []string
}

// WebResult is one hit from a web search provider.
type WebResult struct {
	Title   string
	URL     string
	Snippet string
}
