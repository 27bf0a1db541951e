package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/carebot/internal/core/domain"
	"github.com/custodia-labs/carebot/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

const promptReadme = "# carebot prompts\n\n" +
	"These files hold the prompts carebot sends to the configured LLM.\n\n" +
	"- `greeting.txt`: welcome message when a patient starts a check-in\n" +
	"- `receptionist.txt`: system prompt for administrative questions\n" +
	"- `clinical.txt`: prompt for answers built from reference material\n\n" +
	"Edit a file to change the wording; it takes effect on the next command.\n" +
	"Delete it to restore the built-in prompt.\n\n" +
	"Prompts are Go text/template templates over these fields:\n\n" +
	"- `{{.Patient.Name}}`, `{{.Patient.Age}}`, `{{.Patient.PrimaryDiagnosis}}`\n" +
	"- `{{.Patient.DischargeDate}}`, `{{.Patient.FollowUp}}`, `{{.Patient.WarningSigns}}`\n" +
	"- `{{.Patient.DietaryRestrictions}}`, `{{.Medications}}`\n" +
	"- `{{.Query}}`: the patient's message\n" +
	"- `{{.References}}`: retrieved passages with citations (clinical only)\n\n" +
	"A template that fails to render is ignored in favour of the built-in one.\n" +
	"Clinical answers always end with a fixed safety disclaimer.\n"

// PromptStore serves prompt templates from <dir>/<name>.txt, falling back
// to domain.DefaultPrompts when a file is missing or unreadable.
//
// The directory is seeded with the defaults and a README on first Load.
// Existing files are never overwritten.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]string
}

// NewPromptStore returns a store rooted at dir, or ~/.carebot/prompts when
// dir is empty. It does no I/O.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

func (s *PromptStore) Dir() string { return s.dir }

// Load returns the template called name. The first successful read is
// cached until Reload.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(func() { s.seedErr = s.seed() })

	s.mu.Lock()
	defer s.mu.Unlock()
	if prompt, ok := s.cache[name]; ok {
		return prompt, nil
	}

	err := s.seedErr
	if err == nil {
		var data []byte
		if data, err = os.ReadFile(s.path(name)); err == nil {
			prompt := strings.TrimSpace(string(data))
			s.cache[name] = prompt
			return prompt, nil
		}
	}
	if prompt, ok := domain.DefaultPrompts()[name]; ok {
		return prompt, nil
	}
	return "", fmt.Errorf("load prompt %q: %w", name, err)
}

// Reload drops cached templates so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	for name, content := range domain.DefaultPrompts() {
		if err := writeIfMissing(s.path(name), content); err != nil {
			return fmt.Errorf("create default prompt %q: %w", name, err)
		}
	}
	return writeIfMissing(filepath.Join(s.dir, "README.md"), promptReadme)
}

func writeIfMissing(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
