package files

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+f), 0o644))
	}

	return root
}

func TestExplorer_FiltersByExtension(t *testing.T) {
	t.Parallel()

	root := makeTree(t, "a.py", "b.cpp", "c.txt")

	files, err := NewExplorer(root, []string{".py", ".cpp"}, nil).List()
	require.NoError(t, err)

	assert.Equal(t, []string{"a.py", "b.cpp"}, files)
}

func TestExplorer_RecursiveAndDeterministic(t *testing.T) {
	t.Parallel()

	root := makeTree(t,
		"z.py",
		"pkg/mod.py",
		"pkg/sub/deep.py",
		"pkg/readme.md",
		"alpha/one.py",
		"alpha/two.PY",
	)
	explorer := NewExplorer(root, []string{".py"}, nil)

	first, err := explorer.List()
	require.NoError(t, err)
	second, err := explorer.List()
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha/one.py", "pkg/mod.py", "pkg/sub/deep.py", "z.py"}, first)
	assert.Equal(t, first, second)
}

func TestExplorer_FullPathOrder(t *testing.T) {
	t.Parallel()

	root := makeTree(t, "a/b.py", "a.py", "a-b/c.py", "a/a/z.py", "b.py")

	files, err := NewExplorer(root, []string{".py"}, nil).List()
	require.NoError(t, err)

	assert.Equal(t, []string{"a-b/c.py", "a.py", "a/a/z.py", "a/b.py", "b.py"}, files)
	assert.True(t, slices.IsSorted(files))
}

func TestExplorer_IgnoreDirs(t *testing.T) {
	t.Parallel()

	root := makeTree(t, "main.js", "node_modules/lib/index.js", "src/app.js")

	files, err := NewExplorer(root, []string{".js"}, []string{"node_modules"}).List()
	require.NoError(t, err)

	assert.Equal(t, []string{"main.js", "src/app.js"}, files)
}

func TestExplorer_LazyStop(t *testing.T) {
	t.Parallel()

	root := makeTree(t, "a.py", "b.py", "c.py")

	var seen []string
	for path, err := range NewExplorer(root, []string{".py"}, nil).Files() {
		require.NoError(t, err)
		seen = append(seen, path)
		if len(seen) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a.py", "b.py"}, seen)
}

func TestExplorer_SymlinkCycleSkipped(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := makeTree(t, "pkg/a.py")
	require.NoError(t, os.Symlink(root, filepath.Join(root, "pkg", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "pkg", "a.py"), filepath.Join(root, "link.py")))

	files, err := NewExplorer(root, []string{".py"}, nil).List()
	require.NoError(t, err)

	assert.Equal(t, []string{"link.py", "pkg/a.py"}, files)
}

func TestExplorer_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := NewExplorer(filepath.Join(t.TempDir(), "missing"), []string{".py"}, nil).List()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExplorer_RootIsFile(t *testing.T) {
	t.Parallel()

	root := makeTree(t, "a.py")

	_, err := NewExplorer(filepath.Join(root, "a.py"), []string{".py"}, nil).List()
	assert.ErrorIs(t, err, ErrNotDirectory)
}
