// Package track defines the normalized representation of a playable item,
// independent of which provider resolved it.
package track

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Kind tags which provider family a track came from.
type Kind int

const (
	KindVideo Kind = iota
	KindStreamTrack
)

func (k Kind) String() string {
	if k == KindStreamTrack {
		return "stream"
	}
	return "video"
}

// Format is one playable rendition from a video provider's format catalog.
type Format struct {
	Ext string
	URL string
}

// Track is a resolved playable item. Immutable once resolved except for the
// cached flag, which flips false->true exactly once when background
// materialization completes. Tracks are passed by pointer and owned by
// whichever queue slot (or "now playing" slot) currently holds them.
type Track struct {
	Kind             Kind
	Title            string
	PlayableRef      string // direct URL for stream tracks, webpage URL fallback for video
	ProviderID       string // stream provider's native track identifier
	SourceAudioURL   string // provider's raw audio URL, input to materialization
	DurationSec      int
	Requester        string // user ID
	RequesterMention string
	WebpageURL       string
	Thumbnail        string
	Formats          []Format

	cached atomic.Bool
}

// Cached reports whether a locally materialized audio file exists for this
// track. Readers must tolerate false and fall back to lazy materialization.
func (t *Track) Cached() bool {
	return t.cached.Load()
}

// MarkCached flips the cached flag. Single writer, one transition.
func (t *Track) MarkCached() {
	t.cached.Store(true)
}

// SetCached initializes the flag at resolution time.
func (t *Track) SetCached(v bool) {
	t.cached.Store(v)
}

// Duration returns the track length as a time.Duration.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.DurationSec) * time.Second
}

// DurationString renders the track length as h:mm:ss / m:ss for embeds.
func (t *Track) DurationString() string {
	d := t.Duration().Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PreferredFormatURL picks a playable URL from the format catalog: an m4a
// entry when present, otherwise the first entry. Empty string when the
// catalog is empty.
func (t *Track) PreferredFormatURL() string {
	for _, f := range t.Formats {
		if f.Ext == "m4a" {
			return f.URL
		}
	}
	if len(t.Formats) > 0 {
		return t.Formats[0].URL
	}
	return ""
}
