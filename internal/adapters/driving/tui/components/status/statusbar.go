// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/styles"
)

// State represents the current conversation state for display.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateError    State = "error"
	StateUrgent   State = "urgent"
)

// Bar displays the patient, conversation state and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	patient string
	intent  string
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	padding := b.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return b.styles.StatusBar.Width(b.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (b *Bar) renderLeft() string {
	var prefix string
	if b.patient != "" {
		prefix = b.styles.Normal.Render(b.patient) + " · "
	}

	switch b.state {
	case StateThinking:
		return prefix + b.styles.Muted.Render("Thinking...")
	case StateError:
		if b.message != "" {
			return prefix + b.styles.Error.Render(fmt.Sprintf("Error: %s", b.message))
		}
		return prefix + b.styles.Error.Render("Error")
	case StateUrgent:
		return prefix + b.styles.Urgent.Render("URGENT")
	case StateReady:
		if b.intent != "" {
			return prefix + b.styles.Muted.Render(b.intent)
		}
	}
	return prefix + b.styles.Muted.Render("Ready")
}

func (b *Bar) renderRight() string {
	var bindings []key.Binding
	if b.patient != "" {
		bindings = b.keymap.ChatHelp()
	} else {
		bindings = b.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets the error message.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetPatient sets the patient shown on the left.
func (b *Bar) SetPatient(name string) {
	b.patient = name
}

// SetIntent records the last routing intent.
func (b *Bar) SetIntent(intent string) {
	b.intent = intent
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Clear resets the status bar to default state.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.patient = ""
	b.intent = ""
}
