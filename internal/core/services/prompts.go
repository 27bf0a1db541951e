package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
	"github.com/custodia-labs/carebot/internal/logger"
)

// SetPromptStore sets the store for customisable prompts.
// If not set, the service uses the built-in prompts.
func (s *ConversationService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// renderPrompt renders the named prompt. A custom template that fails to
// parse or execute is logged and replaced by the built-in one.
func (s *ConversationService) renderPrompt(name string, data domain.PromptData) (string, error) {
	fallback := domain.DefaultPrompts()[name]

	if src := s.loadPrompt(name, fallback); src != fallback {
		out, err := executePrompt(name, src, data)
		if err == nil {
			return out, nil
		}
		logger.Warn("custom prompt %q is invalid, using built-in: %v", name, err)
	}
	return executePrompt(name, fallback, data)
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (s *ConversationService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	prompt, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

func executePrompt(name, src string, data domain.PromptData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse prompt %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

func promptData(p domain.Patient, query, references string) domain.PromptData {
	return domain.PromptData{
		Patient:     p,
		Medications: strings.Join(p.Medications, ", "),
		Query:       query,
		References:  references,
	}
}
