package fsx

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("hello")))
	require.NoError(t, WriteFileAtomic(path, []byte("again")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "again", string(b))
	requireNoTemp(t, dir, "a.txt")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	require.Error(t, WriteFileAtomic(filepath.Join(dir, "a.txt"), []byte("hello")))

	requireNoTemp(t, dir, "a.txt")
	_, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestWriteAtomic_CallbackErrorLeavesOldContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lengths.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("old\n")))

	boom := errors.New("boom")
	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "old\n", string(b))
	requireNoTemp(t, dir, "lengths.txt")
}

func TestWriteFileAtomicNoOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "root_ROI.txt")

	require.NoError(t, WriteFileAtomicNoOverwrite(path, []byte("1\n")))
	err := WriteFileAtomicNoOverwrite(path, []byte("2\n"))
	require.ErrorIs(t, err, os.ErrExist)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1\n", string(b))
}

func TestWriteFileAtomic_TargetConflictDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a.txt"), 0o755))

	err := WriteFileAtomicNoOverwrite(filepath.Join(dir, "a.txt"), []byte("hello"))
	require.True(t, IsPathTypeConflict(err), "got %T %v", err, err)

	err = WriteFileAtomic(filepath.Join(dir, "a.txt"), []byte("hello"))
	require.True(t, IsPathTypeConflict(err), "got %T %v", err, err)
}

func requireNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "."+name+".tmp-"), "temp file left: %q", e.Name())
	}
}

func TestAtomicFile_AbortAndCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w_bw.gif")

	f, err := CreateAtomic(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("GIF89a"))
	require.NoError(t, err)
	require.NoError(t, f.Abort())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
	requireNoTemp(t, dir, "w_bw.gif")

	f, err = CreateAtomic(path)
	require.NoError(t, err)
	_, err = f.Write([]byte("GIF89a"))
	require.NoError(t, err)
	require.NoError(t, f.Commit())
	require.NoError(t, f.Abort())
	require.Error(t, f.Commit())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "GIF89a", string(b))
}
