package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesNestedDirs(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "a", "b", "docs.db")

	require.NoError(t, EnsureParentDir(file))
	require.NoError(t, EnsureParentDir(file))

	fi, err := os.Stat(filepath.Dir(file))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureParentDir_BareFileName(t *testing.T) {
	require.NoError(t, EnsureParentDir("docs.db"))
}

func TestEnsureParentDir_FailsWhenParentIsFile(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	require.Error(t, EnsureParentDir(filepath.Join(blocker, "docs.db")))
}

func TestDefaultDataDir_NotEmpty(t *testing.T) {
	require.NotEmpty(t, DefaultDataDir())
}
