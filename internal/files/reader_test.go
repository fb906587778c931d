package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0o644))

	content, err := ReadFileContent(path, 1000)
	require.NoError(t, err)

	assert.Equal(t, "print('hi')\n", content.Text)
	assert.Equal(t, int64(12), content.Size)
	assert.False(t, content.Truncated)
}

func TestReadFileContent_Truncates(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 50) + strings.Repeat("m", 100) + strings.Repeat("z", 50)
	path := filepath.Join(t.TempDir(), "big.js")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	content, err := ReadFileContent(path, 100)
	require.NoError(t, err)

	assert.True(t, content.Truncated)
	assert.Equal(t, int64(200), content.Size)
	assert.Equal(t, strings.Repeat("a", 50)+TruncationMarker+strings.Repeat("z", 50), content.Text)
}

func TestReadFileContent_Binary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blob.h")
	require.NoError(t, os.WriteFile(path, []byte{'x', 0, 'y'}, 0o644))

	_, err := ReadFileContent(path, 0)
	assert.ErrorIs(t, err, ErrBinaryFile)
}

func TestReadFileContent_Directory(t *testing.T) {
	t.Parallel()

	_, err := ReadFileContent(t.TempDir(), 0)
	assert.Error(t, err)
}
