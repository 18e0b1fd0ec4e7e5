package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/siteaudit/internal/domain"
)

func TestStore_ReadWriteVideo(t *testing.T) {
	s := New(t.TempDir(), false)
	m := domain.VideoMetadata{VideoID: "abcdefghijk", Title: "Ship X Tour", AuthorName: "Cruiser", State: domain.FetchOK}

	_, ok, err := s.ReadVideo(m.VideoID)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.WriteVideo(m))

	got, ok, err := s.ReadVideo(m.VideoID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, m, got)

	path, err := s.VideoPath(m.VideoID)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestStore_TransientErrorsNotPersisted(t *testing.T) {
	s := New(t.TempDir(), false)
	m := domain.VideoMetadata{VideoID: "abcdefghijk", State: domain.FetchError, Reason: domain.ReasonMaxRetries}
	require.NoError(t, s.WriteVideo(m))

	path, err := s.VideoPath(m.VideoID)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "临时失败不应落盘，Stat err=%v", err)
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	s := New(t.TempDir(), true)
	err := s.WriteVideo(domain.VideoMetadata{VideoID: "abcdefghijk", State: domain.FetchNotFound})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestStore_RejectsInvalidID(t *testing.T) {
	s := New(t.TempDir(), false)
	_, err := s.VideoPath("../../etc")
	require.Error(t, err)
	require.Error(t, s.WriteVideo(domain.VideoMetadata{VideoID: "short", State: domain.FetchOK}))
}

func TestStore_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, false)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "oembed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oembed", "abcdefghijk.json"), []byte("{not json"), 0o644))

	_, ok, err := s.ReadVideo("abcdefghijk")
	require.NoError(t, err)
	require.False(t, ok)
}
