package fsutil

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nc")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	t.Run("to_file", func(t *testing.T) {
		dst := filepath.Join(dir, "dst.nc")
		require.NoError(t, SafeCopy(src, dst))
		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		require.Equal(t, "payload", string(got))
	})

	t.Run("to_directory", func(t *testing.T) {
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))
		require.NoError(t, SafeCopy(src, sub))
		_, err := os.Stat(filepath.Join(sub, "src.nc"))
		require.NoError(t, err)
	})

	t.Run("overwrites", func(t *testing.T) {
		dst := filepath.Join(dir, "stale.nc")
		require.NoError(t, os.WriteFile(dst, []byte("old content that is longer"), 0o644))
		require.NoError(t, SafeCopy(src, dst))
		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		require.Equal(t, "payload", string(got))
	})
}

func TestFilesEqual(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	d := filepath.Join(dir, "d")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("same bytez"), 0o644))
	require.NoError(t, os.WriteFile(d, []byte("short"), 0o644))

	eq, err := FilesEqual(a, b)
	require.NoError(t, err)
	require.True(t, eq)

	eq, err = FilesEqual(a, c)
	require.NoError(t, err)
	require.False(t, eq)

	eq, err = FilesEqual(a, d)
	require.NoError(t, err)
	require.False(t, eq)

	_, err = FilesEqual(a, filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestGzipCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cpl.log.250101-120000")
	require.NoError(t, os.WriteFile(src, []byte("coupler log body"), 0o644))

	dst := filepath.Join(dir, "cpl.log.gz")
	require.NoError(t, GzipCopy(src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, "coupler log body", string(got))
}
