package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjidays/minji-music/internal/music/track"
)

func TestPathsAndURL(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "http://localhost:9298")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "42.ogg"), s.Path("42"))
	assert.Equal(t, "http://localhost:9298/tracks/42.ogg", s.URL("42"))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "http://localhost:9298")
	require.NoError(t, err)

	assert.False(t, s.Exists("42"))
	require.NoError(t, os.WriteFile(s.Path("42"), []byte("ogg"), 0o644))
	assert.True(t, s.Exists("42"))
}

func TestMaterializeAlreadyCachedOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "http://localhost:9298")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path("42"), []byte("ogg"), 0o644))

	tr := &track.Track{Kind: track.KindStreamTrack, ProviderID: "42"}
	require.NoError(t, s.Materialize(context.Background(), tr))
	assert.True(t, tr.Cached())
}

func TestMaterializeSkipsVideoTracks(t *testing.T) {
	s, err := New(t.TempDir(), "http://localhost:9298")
	require.NoError(t, err)

	tr := &track.Track{Kind: track.KindVideo}
	require.NoError(t, s.Materialize(context.Background(), tr))
	assert.False(t, tr.Cached())
}

func TestMaterializeNoSourceAudio(t *testing.T) {
	s, err := New(t.TempDir(), "http://localhost:9298")
	require.NoError(t, err)

	tr := &track.Track{Kind: track.KindStreamTrack, ProviderID: "77"}
	assert.ErrorIs(t, s.Materialize(context.Background(), tr), ErrNoSourceAudio)
	assert.False(t, tr.Cached())
}
