package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(content), 0600))
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".carebot", "prompts"), store.Dir())

	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err), "constructor does no I/O")
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(domain.PromptGreeting)
	require.NoError(t, err)

	for _, f := range []string{"greeting.txt", "receptionist.txt", "clinical.txt", "README.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Load_DefaultContent(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	for name, want := range domain.DefaultPrompts() {
		got, err := store.Load(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestPromptStore_Load_CustomContent(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.PromptGreeting, "\n  Hello {{.Patient.Name}}  \n")

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(domain.PromptGreeting)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{.Patient.Name}}", prompt)

	data, err := os.ReadFile(filepath.Join(dir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "\n  Hello {{.Patient.Name}}  \n", string(data), "existing files are not overwritten")
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, _ = store.Load(domain.PromptClinical)
	require.NoError(t, os.Remove(filepath.Join(dir, "clinical.txt")))
	store.Reload()

	prompt, err := store.Load(domain.PromptClinical)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrompts()[domain.PromptClinical], prompt)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent_prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(domain.PromptReceptionist)
	require.NoError(t, err)

	writePrompt(t, dir, domain.PromptReceptionist, "edited")

	cached, err := store.Load(domain.PromptReceptionist)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(domain.PromptReceptionist)
	require.NoError(t, err)
	assert.Equal(t, "edited", fresh)
}

func TestPromptStore_InitFailureUsesDefaults(t *testing.T) {
	store, err := NewPromptStore("/dev/null/prompts")
	require.NoError(t, err)

	prompt, err := store.Load(domain.PromptGreeting)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrompts()[domain.PromptGreeting], prompt)

	_, err = store.Load("unknown")
	assert.Error(t, err)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	const goroutines = 50
	results := make([]string, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], _ = store.Load(domain.PromptGreeting)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
		assert.NotEmpty(t, r)
	}
}
