package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/carebot/internal/adapters/driving/mcp"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	original := version
	SetVersion(v)
	t.Cleanup(func() {
		version = original
		versionShort = false
	})
}

func TestVersionCmd_Executes(t *testing.T) {
	withVersion(t, "1.2.0")

	out, err := execute([]string{"version"}, "")

	assert.NoError(t, err)
	assert.Contains(t, out, "carebot version 1.2.0")
	assert.Contains(t, out, runtime.Version())
	assert.Contains(t, out, "mcp server:  "+mcp.Version)
}

func TestVersionCmd_Short(t *testing.T) {
	withVersion(t, "1.2.0")

	out, err := execute([]string{"version", "--short"}, "")

	assert.NoError(t, err)
	assert.Equal(t, "1.2.0\n", out)
}

func TestVersionCmd_DisplaysDevByDefault(t *testing.T) {
	withVersion(t, "dev")

	out, err := execute([]string{"version"}, "")

	assert.NoError(t, err)
	assert.Contains(t, out, "carebot version dev")
}
