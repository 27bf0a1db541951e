package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// mapPromptStore serves prompts from a map.
type mapPromptStore map[string]string

func (m mapPromptStore) Load(name string) (string, error) {
	p, ok := m[name]
	if !ok {
		return "", errors.New("no such prompt")
	}
	return p, nil
}

func TestRenderPrompt_Defaults(t *testing.T) {
	f := newConversationFixture(t, nil)
	data := promptData(*testPatient(), "can I drink coffee?", "Source: ckd_management")

	for name := range domain.DefaultPrompts() {
		t.Run(name, func(t *testing.T) {
			out, err := f.service.renderPrompt(name, data)
			require.NoError(t, err)
			assert.Contains(t, out, "John Smith")
		})
	}

	out, err := f.service.renderPrompt(domain.PromptClinical, data)
	require.NoError(t, err)
	assert.Contains(t, out, "can I drink coffee?")
	assert.Contains(t, out, "Source: ckd_management")
	assert.Contains(t, out, "Lisinopril")
}

func TestRenderPrompt_CustomStore(t *testing.T) {
	f := newConversationFixture(t, nil)
	f.service.SetPromptStore(mapPromptStore{
		domain.PromptGreeting: "Hi {{.Patient.Name}}, age {{.Patient.Age}}.",
	})

	out, err := f.service.renderPrompt(domain.PromptGreeting, promptData(*testPatient(), "", ""))
	require.NoError(t, err)
	assert.Equal(t, "Hi John Smith, age 65.", out)

	// Missing from the store: built-in prompt.
	out, err = f.service.renderPrompt(domain.PromptReceptionist, promptData(*testPatient(), "", ""))
	require.NoError(t, err)
	assert.Contains(t, out, "helpful medical receptionist")
}

func TestRenderPrompt_InvalidCustomFallsBack(t *testing.T) {
	tests := map[string]string{
		"parse error":   "Hi {{.Patient.Name",
		"unknown field": "Hi {{.Patient.Nickname}}",
		"blank":         "   ",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			f := newConversationFixture(t, nil)
			f.service.SetPromptStore(mapPromptStore{domain.PromptGreeting: src})

			out, err := f.service.renderPrompt(domain.PromptGreeting, promptData(*testPatient(), "", ""))
			require.NoError(t, err)
			assert.Contains(t, out, "friendly medical receptionist")
		})
	}
}

func TestGreet_UsesCustomPrompt(t *testing.T) {
	llm := &fakeLLM{text: "Welcome back!"}
	f := newConversationFixture(t, llm)
	f.service.SetPromptStore(mapPromptStore{
		domain.PromptGreeting: "Greet {{.Patient.Name}} briefly.",
	})

	_, msg, err := f.service.Greet(context.Background(), "John Smith")
	require.NoError(t, err)
	assert.Equal(t, "Welcome back!", msg)
	require.Len(t, llm.prompts, 1)
	assert.Equal(t, "Greet John Smith briefly.", llm.prompts[0])
}

func TestGreet_EmptyCompletionUsesTemplate(t *testing.T) {
	llm := &fakeLLM{text: "  "}
	f := newConversationFixture(t, llm)

	_, msg, err := f.service.Greet(context.Background(), "John Smith")
	require.NoError(t, err)
	assert.Contains(t, msg, "Hello John Smith, welcome back.")
}
