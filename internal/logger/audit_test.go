package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit_WritesJSONLine(t *testing.T) {
	defer SetAuditOutput(nil)

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return fixed }
	defer func() { now = time.Now }()

	var buf bytes.Buffer
	SetAuditOutput(&buf)

	Audit(EventRoutingDecision, map[string]any{"intent": "urgent", "reason": "distress + monitored"})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "routing_decision", rec["event"])
	assert.Equal(t, "2025-03-01T12:00:00Z", rec["timestamp"])
	fields := rec["fields"].(map[string]any)
	assert.Equal(t, "urgent", fields["intent"])
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestAudit_NoSink(t *testing.T) {
	defer func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetAuditOutput(nil)

	Audit(EventInteraction, nil)
	assert.Empty(t, buf.String(), "nothing is written without a sink or verbose mode")

	SetVerbose(true)
	Audit(EventInteraction, map[string]any{"k": "v"})
	assert.Contains(t, buf.String(), "[AUDIT] interaction")
}

func TestOpenAuditFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")

	closer, err := OpenAuditFile(path)
	require.NoError(t, err)
	Audit(EventHandoff, map[string]any{"to": "clinical"})
	Audit(EventRetrieval, map[string]any{"success": true})
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)

	// Sink is detached after close.
	Audit(EventHandoff, nil)
	data2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, data2)
}
