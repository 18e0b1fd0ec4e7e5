package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "."+name+".tmp-"), "临时文件未清理：%q", e.Name())
	}
}

func TestWriteFile_OverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "report.json")

	require.NoError(t, WriteFile(p, []byte("hello")))
	require.NoError(t, WriteFile(p, []byte("world")))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "world", string(b))
	requireNoTemp(t, dir, "report.json")
}

func TestWriteFile_CreatesParentDirs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out", "nested", "audit.json")
	require.NoError(t, WriteFile(p, []byte("{}")))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "{}", string(b))
}

func TestWriteFile_RenameFailCleansTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	require.ErrorIs(t, WriteFile(filepath.Join(dir, "a.txt"), []byte("hello")), os.ErrPermission)
	requireNoTemp(t, dir, "a.txt")
	require.NoFileExists(t, filepath.Join(dir, "a.txt"))
}

func TestWriteFile_DirectoryTargetRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a.txt"), 0o755))

	err := WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"))
	var te *TargetError
	require.True(t, errors.As(err, &te), "期望 TargetError，实际：%T %v", err, err)
	require.Equal(t, "dir", te.Kind)
}

func TestWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "site")
	cases := []struct {
		p    string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "report.json"), true},
		{filepath.Join(root, "a", "..", "b.json"), true},
		{filepath.Join(root, "..", "report.json"), false},
		{root + "-reports", false},
		{filepath.Join(string(filepath.Separator), "tmp", "r.json"), false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Within(root, c.p), c.p)
	}

	err := GuardOutside(root, filepath.Join(root, "out.xlsx"))
	var ie *InsideRootError
	require.True(t, errors.As(err, &ie))
	require.NoError(t, GuardOutside(root, filepath.Join(root, "..", "out.xlsx")))
}
