// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// View shows the transcript with an input line and status bar.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.MessageInput
	transcript *transcript.Transcript
	statusbar  *status.Bar

	conversation driving.ConversationService
	ctx          context.Context

	session *domain.Session
	waiting bool
	width   int
	height  int
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, conversation driving.ConversationService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:       s,
		keymap:       km,
		input:        input.NewMessageInput(s, ">", "Ask about your medications, diet or symptoms"),
		transcript:   transcript.New(s),
		statusbar:    status.NewBar(s, km),
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

// Start binds the view to a freshly greeted session.
func (v *View) Start(session *domain.Session, greeting string) tea.Cmd {
	v.session = session
	v.waiting = false
	v.transcript.Clear()
	v.transcript.SetPatient(session.PatientName)
	v.statusbar.Clear()
	v.statusbar.SetPatient(session.PatientName)
	v.transcript.Append(transcript.Entry{Role: transcript.RoleAssistant, Text: greeting})
	v.input.Reset()
	return v.input.Focus()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ReplyReceived:
		v.handleReply(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.EndSession):
		return v, v.endSession()

	case keymap.Matches(keyStr, v.keymap.ScrollUp), keymap.Matches(keyStr, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd

	case keymap.Matches(keyStr, v.keymap.Send):
		return v, v.send()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) send() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.waiting || v.session == nil {
		return nil
	}

	v.input.Reset()
	v.waiting = true
	v.statusbar.SetState(status.StateThinking)
	v.transcript.Append(transcript.Entry{Role: transcript.RolePatient, Text: text})

	conversation := v.conversation
	ctx := v.ctx
	sessionID := v.session.SessionID
	return func() tea.Msg {
		reply, err := conversation.Chat(ctx, sessionID, text)
		return messages.ReplyReceived{Reply: reply, Err: err}
	}
}

func (v *View) handleReply(msg messages.ReplyReceived) {
	v.waiting = false
	if msg.Err != nil {
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		v.transcript.Append(transcript.Entry{Role: transcript.RoleNotice, Text: "Something went wrong: " + msg.Err.Error()})
		return
	}

	reply := msg.Reply
	urgent := reply.Decision.Urgency == domain.UrgencyUrgent
	text := reply.Message
	if reply.Disclaimer != "" && !strings.Contains(text, reply.Disclaimer) {
		text += "\n\n" + reply.Disclaimer
	}

	v.transcript.Append(transcript.Entry{
		Role:    transcript.RoleAssistant,
		Text:    text,
		Urgent:  urgent,
		Sources: sourceLabels(reply.Sources),
	})

	v.statusbar.SetIntent(string(reply.Decision.Intent))
	if urgent {
		v.statusbar.SetState(status.StateUrgent)
	} else {
		v.statusbar.SetState(status.StateReady)
	}
	if reply.Degraded {
		v.transcript.Append(transcript.Entry{Role: transcript.RoleNotice, Text: "Some reference sources were unavailable for this answer."})
	}
}

func (v *View) endSession() tea.Cmd {
	if v.session == nil {
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewLogin} }
	}
	conversation := v.conversation
	ctx := v.ctx
	sessionID := v.session.SessionID
	v.session = nil
	return func() tea.Msg {
		return messages.SessionEnded{SessionID: sessionID, Err: conversation.End(ctx, sessionID)}
	}
}

// sourceLabels names each source once, preferring URLs for web results.
func sourceLabels(results []domain.RetrievalResult) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, r := range results {
		label := r.Source
		if r.URL != "" {
			label = r.URL
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}

// View renders the chat view.
func (v *View) View() string {
	header := v.styles.Title.Render("carebot")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		v.transcript.View(),
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	// header, bordered input and status bar
	v.transcript.SetSize(width, height-5)
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
}

// Session returns the active session, nil when none is open.
func (v *View) Session() *domain.Session {
	return v.session
}

// Waiting reports whether a reply is outstanding.
func (v *View) Waiting() bool {
	return v.waiting
}

// Entries returns the transcript entries.
func (v *View) Entries() []transcript.Entry {
	return v.transcript.Entries()
}

// Status returns the status bar state.
func (v *View) Status() status.State {
	return v.statusbar.State()
}
