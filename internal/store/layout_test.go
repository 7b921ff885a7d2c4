package store

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	t.Parallel()
	l := Layout{Root: "data/franka"}
	require.Equal(t, "data/franka/documents", l.DocumentsDir())
	require.Equal(t, "data/franka/url_mapping.yml", l.URLMappingPath())
	require.Equal(t, "data/franka/context_data.yaml", l.ContextPath())
	require.Equal(t, "data/franka/hashed_content.txt", l.LedgerPath())
}

func TestLayoutReset(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	l := Layout{Root: "/topic"}
	require.NoError(t, l.Ensure(fs))
	for _, p := range []string{l.URLMappingPath(), l.ContextPath(), l.LedgerPath(), l.DocumentsDir() + "/a.txt"} {
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
	}
	require.NoError(t, afero.WriteFile(fs, "/topic/keep.me", []byte("x"), 0o644))

	require.NoError(t, l.Reset(fs))

	for _, p := range []string{l.URLMappingPath(), l.ContextPath(), l.LedgerPath(), l.DocumentsDir() + "/a.txt"} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		require.False(t, exists, p)
	}
	isDir, err := afero.IsDir(fs, l.DocumentsDir())
	require.NoError(t, err)
	require.True(t, isDir)
	empty, err := afero.IsEmpty(fs, l.DocumentsDir())
	require.NoError(t, err)
	require.True(t, empty)

	kept, err := afero.Exists(fs, "/topic/keep.me")
	require.NoError(t, err)
	require.True(t, kept)
}

func TestLayoutResetOnFreshDirectory(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, Layout{Root: "/fresh"}.Reset(fs))
	isDir, err := afero.IsDir(fs, "/fresh/documents")
	require.NoError(t, err)
	require.True(t, isDir)
}
