package pdf

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
	input  []byte
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	if len(args) >= 2 {
		m.input, _ = os.ReadFile(args[len(args)-2])
	}
	return m.output, m.err
}

var fakePDF = []byte("%PDF-1.4 fake pdf content")

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{"application/pdf"}, New().SupportedMIMETypes())
}

func TestExtract_SplitsPages(t *testing.T) {
	runner := &mockRunner{output: []byte("Discharge summary\npage one\fMedications\npage two\f\n\f")}
	pages, err := NewWithRunner(runner).Extract(context.Background(), fakePDF)
	require.NoError(t, err)

	assert.Equal(t, []string{"Discharge summary\npage one", "Medications\npage two"}, pages)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
	assert.Equal(t, fakePDF, runner.input)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		runner  *mockRunner
		want    string
	}{
		{name: "empty", content: nil, runner: &mockRunner{}, want: "empty document"},
		{name: "not a pdf", content: []byte("hello"), runner: &mockRunner{}, want: "not a PDF"},
		{name: "runner fails", content: fakePDF, runner: &mockRunner{err: errors.New("crashed")}, want: "pdftotext failed"},
		{name: "no text", content: fakePDF, runner: &mockRunner{output: []byte("\f\f")}, want: "no text layer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithRunner(tt.runner).Extract(context.Background(), tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExtract_ToolMissing(t *testing.T) {
	e := New()
	e.lookPath = func(string) (string, error) { return "", errors.New("missing") }

	_, err := e.Extract(context.Background(), fakePDF)
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
	assert.Contains(t, err.Error(), "poppler")
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}
