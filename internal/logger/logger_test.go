package logger

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	captureOutput(t, false)
	assert.False(t, IsVerbose())
	assert.False(t, Enabled(LevelDebug))
	assert.False(t, Enabled(LevelInfo))
	assert.True(t, Enabled(LevelWarn))

	SetVerbose(true)
	assert.True(t, IsVerbose())
	assert.True(t, Enabled(LevelDebug))
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		log     func(string, ...any)
		want    string
	}{
		{name: "debug quiet", verbose: false, log: Debug, want: ""},
		{name: "info quiet", verbose: false, log: Info, want: ""},
		{name: "warn quiet", verbose: false, log: Warn, want: "[WARN] vector store unavailable: disk full\n"},
		{name: "debug verbose", verbose: true, log: Debug, want: "[DEBUG] vector store unavailable: disk full\n"},
		{name: "info verbose", verbose: true, log: Info, want: "[INFO] vector store unavailable: disk full\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t, tt.verbose)
			tt.log("vector store unavailable: %s", "disk full")
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSection(t *testing.T) {
	buf := captureOutput(t, false)
	Section("Retrieval")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	Section("Retrieval")
	assert.Equal(t, "\n=== Retrieval ===\n", buf.String())
}

func TestConcurrentAccess(t *testing.T) {
	buf := captureOutput(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				SetVerbose(true)
			}
			Warn("worker %d", n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, strings.Count(buf.String(), "[WARN] worker"))
}
