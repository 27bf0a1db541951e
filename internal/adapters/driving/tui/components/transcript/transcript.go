// Package transcript renders a scrollable conversation history.
package transcript

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/styles"
)

// Role identifies who wrote an entry.
type Role int

const (
	RolePatient Role = iota
	RoleAssistant
	RoleNotice
)

// Entry is one message in the transcript.
type Entry struct {
	Role    Role
	Text    string
	Urgent  bool
	Sources []string
}

// Transcript wraps a bubbles viewport holding the conversation.
type Transcript struct {
	viewport viewport.Model
	styles   *styles.Styles
	entries  []Entry
	patient  string
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Transcript{
		viewport: viewport.New(80, 20),
		styles:   s,
	}
}

// Update forwards scroll keys to the viewport.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	return t.viewport.View()
}

// SetPatient sets the label used for patient entries.
func (t *Transcript) SetPatient(name string) {
	t.patient = name
}

// Append adds an entry and scrolls to it.
func (t *Transcript) Append(e Entry) {
	t.entries = append(t.entries, e)
	t.refresh()
}

// Entries returns the transcript entries.
func (t *Transcript) Entries() []Entry {
	return t.entries
}

// Clear removes every entry.
func (t *Transcript) Clear() {
	t.entries = nil
	t.patient = ""
	t.refresh()
}

// SetSize resizes the viewport and rewraps the content.
func (t *Transcript) SetSize(width, height int) {
	t.viewport.Width = max(20, width)
	t.viewport.Height = max(3, height)
	t.refresh()
}

func (t *Transcript) refresh() {
	t.viewport.SetContent(t.render())
	t.viewport.GotoBottom()
}

func (t *Transcript) render() string {
	wrap := lipgloss.NewStyle().Width(t.viewport.Width)
	blocks := make([]string, 0, len(t.entries))

	for _, e := range t.entries {
		var b strings.Builder
		switch e.Role {
		case RolePatient:
			label := t.patient
			if label == "" {
				label = "You"
			}
			b.WriteString(t.styles.PatientLabel.Render(label + ":"))
			b.WriteString(" ")
			b.WriteString(e.Text)
		case RoleAssistant:
			b.WriteString(t.styles.AssistantLabel.Render("Carebot:"))
			b.WriteString(" ")
			if e.Urgent {
				b.WriteString(t.styles.Urgent.Render(e.Text))
			} else {
				b.WriteString(e.Text)
			}
			for _, src := range e.Sources {
				b.WriteString("\n")
				b.WriteString(t.styles.Source.Render("  source: " + src))
			}
		case RoleNotice:
			b.WriteString(t.styles.Muted.Render(e.Text))
		}
		blocks = append(blocks, wrap.Render(b.String()))
	}
	return strings.Join(blocks, "\n\n")
}
