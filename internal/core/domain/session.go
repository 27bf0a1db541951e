package domain

import "time"

// SessionState is the lifecycle state of a conversation.
type SessionState string

// Session states.
const (
	SessionAwaitingGreeting SessionState = "AWAITING_GREETING"
	SessionActive           SessionState = "SESSION_ACTIVE"
	SessionClosed           SessionState = "CLOSED"
)

// Turn is one exchange within a session.
type Turn struct {
	Query     string
	Response  string
	AgentUsed RouteTarget
	Decision  RoutingDecision
	Timestamp time.Time
}

// Session is a patient conversation.
type Session struct {
	SessionID    string
	PatientName  string
	Patient      Patient
	State        SessionState
	CreatedAt    time.Time
	LastActivity time.Time
	Turns        []Turn
}

// Reply is what the conversation service returns for one turn.
type Reply struct {
	SessionID string
	Message   string
	Decision  RoutingDecision

	// Sources lists the retrieval results the answer was grounded on.
	Sources []RetrievalResult

	Escalated  bool
	Degraded   bool
	Disclaimer string
}
