// Package login provides the patient identification view.
package login

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// View asks for the patient's name and opens a session.
type View struct {
	styles       *styles.Styles
	input        *input.MessageInput
	conversation driving.ConversationService
	ctx          context.Context

	notice  string
	pending bool
	width   int
	height  int
}

// NewView creates a new login view.
func NewView(s *styles.Styles, conversation driving.ConversationService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:       s,
		input:        input.NewMessageInput(s, "Name:", "Your full name"),
		conversation: conversation,
		ctx:          context.Background(),
		width:        80,
		height:       24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the login view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return v.submit()
		}

	case messages.Greeted:
		v.pending = false
		if msg.Err != nil || msg.Session == nil {
			v.notice = msg.Greeting
			if v.notice == "" && msg.Err != nil {
				v.notice = msg.Err.Error()
			}
			v.input.Reset()
			return v, nil
		}
		v.notice = ""
		v.input.Reset()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) submit() (*View, tea.Cmd) {
	name := strings.TrimSpace(v.input.Value())
	if name == "" || v.pending {
		return v, nil
	}
	v.pending = true
	conversation := v.conversation
	ctx := v.ctx
	return v, func() tea.Msg {
		session, greeting, err := conversation.Greet(ctx, name)
		return messages.Greeted{Session: session, Greeting: greeting, Err: err}
	}
}

// View renders the login view.
func (v *View) View() string {
	lines := []string{
		v.styles.Title.Render("carebot"),
		v.styles.Muted.Render("Post-discharge care assistant"),
		"",
		"Hello! Please tell me your full name so I can find your discharge report.",
		"",
		v.input.View(),
	}
	if v.pending {
		lines = append(lines, "", v.styles.Muted.Render("Looking up your record..."))
	}
	if v.notice != "" {
		lines = append(lines, "", v.styles.Warning.Render(v.notice))
	}
	lines = append(lines, "", v.styles.Help.Render("enter: continue | f1: help | ctrl+c: quit"))

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width - 4)
}

// Notice returns the last lookup message shown to the patient.
func (v *View) Notice() string {
	return v.notice
}

// Pending reports whether a lookup is in flight.
func (v *View) Pending() bool {
	return v.pending
}

// Reset clears the input and any notice.
func (v *View) Reset() {
	v.input.Reset()
	v.notice = ""
	v.pending = false
}
