package driving

import (
	"context"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// ConversationService runs patient conversations.
type ConversationService interface {
	// Greet looks the patient up and opens a session.
	// Returns domain.ErrPatientNotFound without creating a session when the
	// name is unknown.
	Greet(ctx context.Context, patientName string) (*domain.Session, string, error)

	// Chat routes one turn of an open session and returns the answer.
	Chat(ctx context.Context, sessionID, input string) (*domain.Reply, error)

	// Session returns a snapshot of a session.
	Session(ctx context.Context, sessionID string) (*domain.Session, error)

	// Sessions lists open sessions.
	Sessions(ctx context.Context) ([]domain.Session, error)

	// End closes a session.
	End(ctx context.Context, sessionID string) error
}
