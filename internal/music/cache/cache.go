// Package cache materializes stream-provider tracks into locally stored,
// normalized ogg files and serves them over a local HTTP endpoint.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/music/track"
)

var ErrNoSourceAudio = errors.New("track has no source audio URL")

// Store owns the on-disk audio cache. One file per stream-provider track,
// keyed by the provider-native identifier.
type Store struct {
	dir     string
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	inflight map[string]chan struct{} // single-flight per track id
}

func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Store{
		dir:      dir,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 60 * time.Second},
		inflight: make(map[string]chan struct{}),
	}, nil
}

// Path returns the on-disk location for a track id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".ogg")
}

// URL returns the address the local file server exposes for a track id.
func (s *Store) URL(id string) string {
	return s.baseURL + "/tracks/" + id + ".ogg"
}

// Exists reports whether a materialized file is already present.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.Path(id))
	return err == nil
}

// Materialize downloads the track's source audio, normalizes and transcodes
// it to ogg, and flips the track's cached flag. Concurrent calls for the
// same id collapse into one download.
func (s *Store) Materialize(ctx context.Context, t *track.Track) error {
	if t.Kind != track.KindStreamTrack || t.ProviderID == "" {
		return nil
	}
	if t.Cached() || s.Exists(t.ProviderID) {
		t.MarkCached()
		return nil
	}

	done, leader := s.claim(t.ProviderID)
	if !leader {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if s.Exists(t.ProviderID) {
			t.MarkCached()
			return nil
		}
		return fmt.Errorf("materialization of track %s failed elsewhere", t.ProviderID)
	}
	defer s.release(t.ProviderID, done)

	if err := s.materialize(ctx, t); err != nil {
		return err
	}
	t.MarkCached()
	return nil
}

// Prefetch kicks off best-effort background materialization. Pure side
// effect: consumers never wait on it and fall back to Materialize on read.
func (s *Store) Prefetch(t *track.Track) {
	if t == nil || t.Kind != track.KindStreamTrack || t.Cached() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.Materialize(ctx, t); err != nil {
			log.Warn().Err(err).Str("track", t.Title).Msg("prefetch failed")
		}
	}()
}

func (s *Store) claim(id string) (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.inflight[id]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	s.inflight[id] = ch
	return ch, true
}

func (s *Store) release(id string, ch chan struct{}) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
	close(ch)
}

func (s *Store) materialize(ctx context.Context, t *track.Track) error {
	if t.SourceAudioURL == "" {
		return ErrNoSourceAudio
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.SourceAudioURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("source audio download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source audio download failed with status %d", resp.StatusCode)
	}

	if err := s.transcode(ctx, resp.Body, s.Path(t.ProviderID)); err != nil {
		return err
	}

	log.Debug().Str("track", t.Title).Str("id", t.ProviderID).Msg("track materialized")
	return nil
}

// transcode pipes raw provider audio through ffmpeg: loudness-normalized
// ogg at 64k. The heavy work stays in the child process, never inline.
func (s *Store) transcode(ctx context.Context, in io.Reader, dst string) error {
	tmp := dst + ".part"

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", "pipe:0",
		"-vn",
		"-af", "loudnorm",
		"-c:a", "libvorbis",
		"-b:a", "64k",
		"-f", "ogg",
		"-y",
		tmp,
	)
	cmd.Stdin = in

	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg transcode error: %w (%s)", err, string(out))
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
