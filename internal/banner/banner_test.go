package banner

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintEmbedded(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, filepath.Join(t.TempDir(), "missing.txt"), "1.2.3"))
	assert.Contains(t, buf.String(), `|___/`)
	assert.Contains(t, buf.String(), ":: widgetd :: (1.2.3)")
}

func TestPrintLocalOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banner.txt")
	require.NoError(t, os.WriteFile(path, []byte("HELLO WIDGETS"), 0o644))
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, path, "dev"))
	assert.Contains(t, buf.String(), "HELLO WIDGETS")
	assert.NotContains(t, buf.String(), `|___/`)
}
