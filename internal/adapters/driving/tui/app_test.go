package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

// mockConversation implements driving.ConversationService for testing.
type mockConversation struct {
	driving.ConversationService

	ended []string
}

func (m *mockConversation) Greet(_ context.Context, name string) (*domain.Session, string, error) {
	if name != "John Smith" {
		return nil, "I couldn't find a discharge report for " + name + ".", domain.ErrPatientNotFound
	}
	return &domain.Session{SessionID: "s1", PatientName: name, State: domain.SessionActive}, "Hi John!", nil
}

func (m *mockConversation) Chat(_ context.Context, sessionID, input string) (*domain.Reply, error) {
	return &domain.Reply{SessionID: sessionID, Message: "You said " + input}, nil
}

func (m *mockConversation) End(_ context.Context, sessionID string) error {
	m.ended = append(m.ended, sessionID)
	return nil
}

func newTestApp(t *testing.T) (*App, *mockConversation) {
	t.Helper()
	conv := &mockConversation{}
	app, err := NewApp(NewPorts(conv))
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app, conv
}

func typeText(app *App, text string) {
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// press sends a key and runs the resulting command once, feeding its message back.
func press(app *App, keyType tea.KeyType) {
	_, cmd := app.Update(tea.KeyMsg{Type: keyType})
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		app.Update(msg)
	}
}

func TestNewApp_RequiresConversation(t *testing.T) {
	app, err := NewApp(&Ports{})
	assert.Nil(t, app)
	assert.ErrorIs(t, err, ErrMissingConversationService)
}

func TestApp_ViewBeforeReady(t *testing.T) {
	app, err := NewApp(NewPorts(&mockConversation{}))
	require.NoError(t, err)
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_LoginToChat(t *testing.T) {
	app, _ := newTestApp(t)
	assert.Equal(t, messages.ViewLogin, app.CurrentView())

	typeText(app, "John Smith")
	press(app, tea.KeyEnter)

	assert.Equal(t, messages.ViewChat, app.CurrentView())
	assert.Contains(t, app.View(), "Hi John!")
}

func TestApp_UnknownPatientStaysOnLogin(t *testing.T) {
	app, _ := newTestApp(t)

	typeText(app, "Nobody")
	press(app, tea.KeyEnter)

	assert.Equal(t, messages.ViewLogin, app.CurrentView())
	assert.Contains(t, app.View(), "couldn't find a discharge report for Nobody")
}

func TestApp_ChatAndEndSession(t *testing.T) {
	app, conv := newTestApp(t)
	typeText(app, "John Smith")
	press(app, tea.KeyEnter)

	typeText(app, "what can I eat")
	press(app, tea.KeyEnter)
	assert.Contains(t, app.View(), "You said what can I eat")

	press(app, tea.KeyCtrlE)
	assert.Equal(t, []string{"s1"}, conv.ended)
	assert.Equal(t, messages.ViewLogin, app.CurrentView())
}

func TestApp_HelpToggle(t *testing.T) {
	app, _ := newTestApp(t)

	app.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())
	assert.Contains(t, app.View(), "End session")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewLogin, app.CurrentView())
}

func TestApp_Quit(t *testing.T) {
	app, _ := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = app.Update(messages.Quit{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app, _ := newTestApp(t)
	boom := errors.New("boom")

	app.Update(messages.ErrorOccurred{Err: boom})
	assert.Equal(t, boom, app.Err())
}
