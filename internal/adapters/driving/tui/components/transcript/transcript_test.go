package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendAndRender(t *testing.T) {
	tr := New(nil)
	tr.SetSize(80, 20)
	tr.SetPatient("Jane Doe")

	tr.Append(Entry{Role: RoleAssistant, Text: "Hello Jane"})
	tr.Append(Entry{Role: RolePatient, Text: "Can I run?"})
	tr.Append(Entry{Role: RoleAssistant, Text: "Gentle walks are fine.", Sources: []string{"cardiac_rehab.txt"}})

	require.Len(t, tr.Entries(), 3)
	view := tr.View()
	assert.Contains(t, view, "Jane Doe:")
	assert.Contains(t, view, "Carebot:")
	assert.Contains(t, view, "source: cardiac_rehab.txt")
}

func TestTranscript_Clear(t *testing.T) {
	tr := New(nil)
	tr.Append(Entry{Role: RoleNotice, Text: "notice"})
	tr.Clear()

	assert.Empty(t, tr.Entries())
	assert.NotContains(t, tr.View(), "notice")
}

func TestTranscript_DefaultPatientLabel(t *testing.T) {
	tr := New(nil)
	tr.SetSize(60, 10)
	tr.Append(Entry{Role: RolePatient, Text: "hi"})

	assert.Contains(t, tr.View(), "You:")
}
