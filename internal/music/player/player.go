// /internal/music/player/player.go
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/music/queue"
	"github.com/minjidays/minji-music/internal/music/track"
)

var (
	ErrPlayerClosed     = errors.New("player is shutting down")
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrNoPlayableSource = errors.New("no playable source available for track")
	ErrVoiceSessionLost = errors.New("voice session lost")
)

const (
	defaultVolume       = 100
	defaultErrorBackoff = 6 * time.Second
)

// RepeatMode governs whether a finished track re-enters the queue.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatQueue
	RepeatTrack
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatQueue:
		return "queue"
	case RepeatTrack:
		return "track"
	default:
		return "off"
	}
}

// Next returns the mode that follows in the three-way toggle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatNone:
		return RepeatQueue
	case RepeatQueue:
		return RepeatTrack
	default:
		return RepeatNone
	}
}

// Resolver refreshes a video track's stream format catalog.
type Resolver interface {
	RefreshFormats(ctx context.Context, t *track.Track) error
}

// Materializer prepares locally cached audio for stream-provider tracks.
type Materializer interface {
	Materialize(ctx context.Context, t *track.Track) error
	Prefetch(t *track.Track)
}

// AudioStream is one in-flight playback session. Done fires exactly once.
type AudioStream interface {
	Done() <-chan error
	Stop()
	Pause(paused bool)
	SetVolume(percent int)
	Close() error
}

// Streamer opens an audio stream against the guild's voice connection.
type Streamer interface {
	Stream(ctx context.Context, url string, volume int) (AudioStream, error)
}

// Voice manages the guild's voice channel connection.
type Voice interface {
	Join(guildID, channelID string) error
	ChannelID() string
	Connected() bool
	Leave() error
}

// Notifier renders playback events into the guild's text channel.
type Notifier interface {
	NowPlaying(t *track.Track, mode RepeatMode, queueLen int)
	PlaybackError(t *track.Track, err error)
	QueueDrained()
}

// Deps bundles the collaborators a player needs.
type Deps struct {
	Resolver Resolver
	Cache    Materializer
	Voice    Voice
	Streamer Streamer
	Notifier Notifier
}

// Player drives sequential playback for one guild. Queue and state are
// mutated only under the player's lock; the play loop is the single
// goroutine that advances playback, and waiting for the stream's done
// signal is its only blocking point.
type Player struct {
	GuildID string

	resolver  Resolver
	cache     Materializer
	voice     Voice
	streamer  Streamer
	notifier  Notifier
	onDestroy func(guildID string)

	ErrorBackoff time.Duration
	IdleTimeout  time.Duration

	mu        sync.Mutex
	queue     *queue.Queue
	current   *track.Track
	repeat    RepeatMode
	paused    bool
	locked    bool
	exiting   bool
	volume    int
	suppress  bool
	stream    AudioStream
	idleTimer *time.Timer

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// New creates a player and starts its play loop. onDestroy runs once as
// the final step of teardown, after the voice connection is released.
func New(guildID string, deps Deps, idleTimeout time.Duration, onDestroy func(guildID string)) *Player {
	p := &Player{
		GuildID:      guildID,
		resolver:     deps.Resolver,
		cache:        deps.Cache,
		voice:        deps.Voice,
		streamer:     deps.Streamer,
		notifier:     deps.Notifier,
		onDestroy:    onDestroy,
		ErrorBackoff: defaultErrorBackoff,
		IdleTimeout:  idleTimeout,
		queue:        queue.New(),
		volume:       defaultVolume,
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go p.playLoop()
	return p
}

func (p *Player) playLoop() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case <-p.wake:
		}
		p.advance()
	}
}

// advance plays tracks head-first until the queue drains or playback is
// halted. Under queue repeat the dequeued track immediately rejoins the
// tail so it comes around again.
func (p *Player) advance() {
	for {
		p.mu.Lock()
		if p.locked || p.exiting {
			p.mu.Unlock()
			return
		}
		p.stopIdleTimerLocked()

		var (
			t   *track.Track
			err error
		)
		if p.repeat == RepeatQueue {
			t, err = p.queue.RequeueHeadToTail()
		} else {
			t, err = p.queue.DequeueHead()
		}
		if err != nil {
			p.current = nil
			p.mu.Unlock()
			p.notifier.QueueDrained()
			p.armIdleTimer()
			return
		}
		if next, ok := p.queue.Peek(); ok {
			p.cache.Prefetch(next)
		}
		p.current = t
		p.mu.Unlock()

		if !p.playTrack(t) {
			return
		}
	}
}

// playTrack resolves a playable source, streams it, and waits for the
// completion signal. Returns false when the loop should stop advancing.
func (p *Player) playTrack(t *track.Track) bool {
	ctx := context.Background()

	url, err := p.playableURL(ctx, t)
	if err != nil {
		return p.failTrack(t, err)
	}

	p.mu.Lock()
	if p.exiting {
		p.current = nil
		p.mu.Unlock()
		return false
	}
	if !p.voice.Connected() {
		p.current = nil
		p.mu.Unlock()
		log.Warn().Err(ErrVoiceSessionLost).Str("guild", p.GuildID).Msg("aborting playback")
		return false
	}
	volume := p.volume
	p.mu.Unlock()

	st, err := p.streamer.Stream(ctx, url, volume)
	if err != nil {
		return p.failTrack(t, err)
	}

	p.mu.Lock()
	if p.exiting {
		// Destroy ran while the stream was opening and never saw it.
		p.current = nil
		p.mu.Unlock()
		st.Stop()
		_ = st.Close()
		return false
	}
	p.stream = st
	if p.paused {
		st.Pause(true)
	}
	suppress := p.suppress
	p.suppress = false
	mode := p.repeat
	queueLen := p.queue.Len()
	p.mu.Unlock()

	if !suppress {
		p.notifier.NowPlaying(t, mode, queueLen)
	}

	streamErr := <-st.Done()
	_ = st.Close()

	p.mu.Lock()
	p.stream = nil
	p.current = nil
	if p.repeat == RepeatTrack && !p.exiting {
		p.queue.InsertHead(t)
	}
	halt := p.exiting
	p.mu.Unlock()

	if streamErr != nil {
		log.Error().Err(streamErr).Str("guild", p.GuildID).Str("title", t.Title).Msg("stream ended with error")
		p.notifier.PlaybackError(t, streamErr)
		p.backoff()
	}
	return !halt
}

// failTrack reports the error, drops the track, and backs off before the
// loop tries the next one. The failing track is never retried.
func (p *Player) failTrack(t *track.Track, err error) bool {
	log.Warn().Err(err).Str("guild", p.GuildID).Str("title", t.Title).Msg("track failed to start")
	p.notifier.PlaybackError(t, err)

	p.mu.Lock()
	p.current = nil
	exiting := p.exiting
	p.mu.Unlock()
	if exiting {
		return false
	}

	p.backoff()
	return true
}

func (p *Player) backoff() {
	p.mu.Lock()
	if p.exiting {
		p.mu.Unlock()
		return
	}
	p.locked = true
	p.mu.Unlock()

	select {
	case <-time.After(p.ErrorBackoff):
	case <-p.quit:
	}

	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

// playableURL picks the concrete source to stream. Video tracks reuse
// their format catalog when present and re-fetch it otherwise; stream
// tracks are materialized on demand and always play from the cache ref.
func (p *Player) playableURL(ctx context.Context, t *track.Track) (string, error) {
	if t.Kind == track.KindStreamTrack {
		if !t.Cached() {
			if err := p.cache.Materialize(ctx, t); err != nil {
				return "", err
			}
		}
		return t.PlayableRef, nil
	}

	if url := t.PreferredFormatURL(); url != "" {
		return url, nil
	}
	if err := p.resolver.RefreshFormats(ctx, t); err != nil {
		return "", err
	}
	if url := t.PreferredFormatURL(); url != "" {
		return url, nil
	}
	return "", ErrNoPlayableSource
}

// Enqueue appends tracks, joins the requester's voice channel, and wakes
// the play loop if it is idle. Enqueuing while paused resumes playback.
func (p *Player) Enqueue(channelID string, tracks ...*track.Track) error {
	p.mu.Lock()
	if p.exiting {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	p.stopIdleTimerLocked()
	for _, t := range tracks {
		p.queue.Enqueue(t)
	}
	if p.paused && p.stream != nil {
		p.paused = false
		p.stream.Pause(false)
	}
	idle := p.current == nil && p.stream == nil
	p.mu.Unlock()

	if channelID != "" {
		if err := p.voice.Join(p.GuildID, channelID); err != nil {
			return err
		}
	}
	if idle {
		p.kick()
	}
	return nil
}

// Skip terminates the active stream. An explicit skip must not loop the
// skipped track, so track repeat is cleared too.
func (p *Player) Skip() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return ErrNothingPlaying
	}
	if p.repeat == RepeatTrack {
		p.repeat = RepeatNone
	}
	p.stream.Stop()
	return nil
}

// Restart replays the current track from the beginning without
// re-announcing it.
func (p *Player) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.stream == nil {
		return ErrNothingPlaying
	}
	switch p.repeat {
	case RepeatTrack:
		// track repeat reinserts on completion already
	case RepeatQueue:
		// the playing track was rotated to the tail at dequeue
		p.queue.Remove(p.current)
		p.queue.InsertHead(p.current)
	default:
		p.queue.InsertHead(p.current)
	}
	p.suppress = true
	p.stream.Stop()
	return nil
}

// TogglePause flips the paused state and returns the new value.
func (p *Player) TogglePause() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return false, ErrNothingPlaying
	}
	p.paused = !p.paused
	p.stream.Pause(p.paused)
	return p.paused, nil
}

func (p *Player) Shuffle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Shuffle()
}

// SetRepeatMode switches repeat behavior and migrates the now-playing
// track into or out of the queue so the next cycle sees it exactly once.
func (p *Player) SetRepeatMode(mode RepeatMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		if mode == RepeatQueue {
			if !p.queue.Contains(p.current) {
				p.queue.Enqueue(p.current)
			}
		} else {
			p.queue.Remove(p.current)
		}
	}
	p.repeat = mode
}

// CycleRepeat advances none -> queue -> track -> none and returns the
// new mode.
func (p *Player) CycleRepeat() RepeatMode {
	p.mu.Lock()
	next := p.repeat.Next()
	p.mu.Unlock()
	p.SetRepeatMode(next)
	return next
}

// SetVolume clamps to 0..100 and applies to the live stream, if any.
func (p *Player) SetVolume(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = percent
	if p.stream != nil {
		p.stream.SetVolume(percent)
	}
	return percent
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) RepeatMode() RepeatMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeat
}

func (p *Player) Current() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// QueueList returns up to n upcoming tracks and the total queue length.
func (p *Player) QueueList(n int) ([]*track.Track, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.List(n), p.queue.Len()
}

// VoiceChannelID reports the channel the player is bound to, empty when
// not connected.
func (p *Player) VoiceChannelID() string {
	return p.voice.ChannelID()
}

// HandleVoiceKick tears the player down after a forced removal from its
// voice channel. A player already exiting ignores the event.
func (p *Player) HandleVoiceKick() {
	p.mu.Lock()
	exiting := p.exiting
	p.mu.Unlock()
	if exiting {
		return
	}
	log.Info().Str("guild", p.GuildID).Msg("removed from voice channel, shutting down player")
	p.Destroy()
}

// Destroy stops playback, leaves voice, and removes the player from its
// registry. Safe to call more than once.
func (p *Player) Destroy() {
	p.mu.Lock()
	if p.exiting {
		p.mu.Unlock()
		return
	}
	p.exiting = true
	p.stopIdleTimerLocked()
	p.queue.Clear()
	p.current = nil
	st := p.stream
	p.mu.Unlock()

	close(p.quit)
	if st != nil {
		st.Stop()
	}
	<-p.done

	if err := p.voice.Leave(); err != nil {
		log.Warn().Err(err).Str("guild", p.GuildID).Msg("failed to leave voice channel")
	}
	if p.onDestroy != nil {
		p.onDestroy(p.GuildID)
	}
}

func (p *Player) armIdleTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exiting || p.IdleTimeout <= 0 {
		return
	}
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.IdleTimeout, func() {
		log.Info().Str("guild", p.GuildID).Msg("idle timeout reached, shutting down player")
		p.Destroy()
	})
}

func (p *Player) stopIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

func (p *Player) kick() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
