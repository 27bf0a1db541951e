package login

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driving"
)

type mockConversation struct {
	driving.ConversationService
	names []string
}

func (m *mockConversation) Greet(_ context.Context, name string) (*domain.Session, string, error) {
	m.names = append(m.names, name)
	return nil, "I couldn't find a discharge report for " + name + ".", domain.ErrPatientNotFound
}

func TestView_SubmitTrimsName(t *testing.T) {
	conv := &mockConversation{}
	v := NewView(nil, conv)

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("  Jane Doe  ")})
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, v.Pending())

	msg, ok := cmd().(messages.Greeted)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, domain.ErrPatientNotFound)
	assert.Equal(t, []string{"Jane Doe"}, conv.names)

	v.Update(msg)
	assert.False(t, v.Pending())
	assert.Equal(t, "I couldn't find a discharge report for Jane Doe.", v.Notice())
	assert.Contains(t, v.View(), "Jane Doe")
}

func TestView_BlankNameIgnored(t *testing.T) {
	v := NewView(nil, &mockConversation{})

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("   ")})
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestView_Reset(t *testing.T) {
	v := NewView(nil, &mockConversation{})
	v.Update(messages.Greeted{Greeting: "not found", Err: domain.ErrPatientNotFound})
	require.NotEmpty(t, v.Notice())

	v.Reset()
	assert.Empty(t, v.Notice())
}
