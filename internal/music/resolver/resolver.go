// Package resolver turns a user query or URL into an ordered sequence of
// track descriptors, delegating to the video or stream provider.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/minjidays/minji-music/internal/music/track"
)

// Provider selects which external source resolves the input.
type Provider string

const (
	ProviderVideo  Provider = "youtube"
	ProviderStream Provider = "spotify"
)

// ResolutionError wraps a provider lookup or metadata fetch failure.
type ResolutionError struct {
	Provider Provider
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s resolution failed: %v", e.Provider, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Result is an ordered batch of resolved tracks. Limited is set when a
// playlist scan hit the fetch cap. An empty Tracks slice is not an error.
type Result struct {
	Tracks  []*track.Track
	Limited bool
}

// Progress reports playlist scan advancement, emitted every few items. Side
// effect only, never required for correctness.
type Progress func(done, total int)

// CacheIndex is the materialized-audio lookup the stream path consults when
// wiring cached flags and playable refs.
type CacheIndex interface {
	Exists(id string) bool
	URL(id string) string
}

type Resolver struct {
	video  *videoResolver
	stream *streamResolver
}

func New(spotifyClientID, spotifyClientSecret string, idx CacheIndex) *Resolver {
	return &Resolver{
		video:  newVideoResolver(),
		stream: newStreamResolver(spotifyClientID, spotifyClientSecret, idx),
	}
}

// DetectProvider guesses the provider for an input the user gave without
// an explicit source choice.
func DetectProvider(input string) Provider {
	if strings.Contains(input, "open.spotify.com") {
		return ProviderStream
	}
	return ProviderVideo
}

// Resolve fetches track descriptors for the input. requester/mention are
// stamped onto every returned track.
func (r *Resolver) Resolve(ctx context.Context, input string, provider Provider, requester, mention string, progress Progress) (Result, error) {
	var (
		res Result
		err error
	)

	switch provider {
	case ProviderStream:
		res, err = r.stream.resolve(ctx, input, progress)
	default:
		res, err = r.video.resolve(ctx, input)
	}
	if err != nil {
		return Result{}, &ResolutionError{Provider: provider, Err: err}
	}

	for _, t := range res.Tracks {
		t.Requester = requester
		t.RequesterMention = mention
	}
	return res, nil
}

// RefreshFormats re-fetches a video track's format catalog by its URL.
// Stream tracks keep their pre-resolved direct URL and are never re-fetched.
func (r *Resolver) RefreshFormats(ctx context.Context, t *track.Track) error {
	if t.Kind != track.KindVideo {
		return nil
	}
	if err := r.video.refreshFormats(ctx, t); err != nil {
		return &ResolutionError{Provider: ProviderVideo, Err: err}
	}
	return nil
}
