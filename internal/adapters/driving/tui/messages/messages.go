// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/carebot/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewLogin asks the patient for their name.
	ViewLogin ViewType = iota
	// ViewChat is the conversation transcript and input.
	ViewChat
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewChat:
		return "chat"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Greeted carries the outcome of opening a session.
// Greeting is set even when Err is, so the patient sees why.
type Greeted struct {
	Session  *domain.Session
	Greeting string
	Err      error
}

// ReplyReceived carries the answer to one chat turn.
type ReplyReceived struct {
	Reply *domain.Reply
	Err   error
}

// SessionEnded signals the current session was closed.
type SessionEnded struct {
	SessionID string
	Err       error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
