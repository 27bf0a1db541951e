// Package tui provides an interactive terminal chat for carebot patients.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
type Ports struct {
	// Conversation runs patient sessions.
	Conversation driving.ConversationService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(conversation driving.ConversationService) *Ports {
	return &Ports{Conversation: conversation}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Conversation == nil {
		return ErrMissingConversationService
	}
	return nil
}
