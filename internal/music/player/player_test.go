package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjidays/minji-music/internal/music/track"
)

type fakeStream struct {
	url      string
	done     chan error
	stopOnce sync.Once

	mu     sync.Mutex
	paused bool
	volume int
	closed bool
}

func (s *fakeStream) Done() <-chan error { return s.done }

func (s *fakeStream) Stop() { s.finish(nil) }

func (s *fakeStream) finish(err error) {
	s.stopOnce.Do(func() { s.done <- err })
}

func (s *fakeStream) Pause(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

func (s *fakeStream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeStream) SetVolume(percent int) {
	s.mu.Lock()
	s.volume = percent
	s.mu.Unlock()
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeStreamer struct {
	mu       sync.Mutex
	streams  []*fakeStream
	failures int
	opening  chan struct{} // when set, receives one signal per Stream entry
	gate     chan struct{} // when set, Stream parks here until it closes
}

func (f *fakeStreamer) Stream(_ context.Context, url string, volume int) (AudioStream, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("stream refused")
	}
	opening, gate := f.opening, f.gate
	f.mu.Unlock()

	if opening != nil {
		opening <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeStream{url: url, done: make(chan error, 1), volume: volume}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeStreamer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

// stream waits until the idx-th playback session begins and returns it.
func (f *fakeStreamer) stream(t *testing.T, idx int) *fakeStream {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.count() > idx
	}, 2*time.Second, 5*time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[idx]
}

type fakeVoice struct {
	mu        sync.Mutex
	channelID string
	connected bool
	left      bool
}

func (v *fakeVoice) Join(_, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.channelID = channelID
	v.connected = true
	return nil
}

func (v *fakeVoice) ChannelID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.channelID
}

func (v *fakeVoice) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

func (v *fakeVoice) Leave() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connected = false
	v.left = true
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	playing []string
	failed  []string
	drained int
}

func (n *fakeNotifier) NowPlaying(t *track.Track, _ RepeatMode, _ int) {
	n.mu.Lock()
	n.playing = append(n.playing, t.Title)
	n.mu.Unlock()
}

func (n *fakeNotifier) PlaybackError(t *track.Track, _ error) {
	n.mu.Lock()
	n.failed = append(n.failed, t.Title)
	n.mu.Unlock()
}

func (n *fakeNotifier) QueueDrained() {
	n.mu.Lock()
	n.drained++
	n.mu.Unlock()
}

func (n *fakeNotifier) playingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.playing)
}

func (n *fakeNotifier) drainedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drained
}

type fakeResolver struct{}

func (fakeResolver) RefreshFormats(context.Context, *track.Track) error { return nil }

type fakeCache struct {
	mu         sync.Mutex
	prefetched []string
}

func (c *fakeCache) Materialize(_ context.Context, t *track.Track) error {
	t.MarkCached()
	return nil
}

func (c *fakeCache) Prefetch(t *track.Track) {
	c.mu.Lock()
	c.prefetched = append(c.prefetched, t.ProviderID)
	c.mu.Unlock()
}

type testHarness struct {
	player   *Player
	streamer *fakeStreamer
	voice    *fakeVoice
	notifier *fakeNotifier
	cache    *fakeCache
}

func newTestPlayer(t *testing.T, idleTimeout time.Duration) *testHarness {
	t.Helper()
	h := &testHarness{
		streamer: &fakeStreamer{},
		voice:    &fakeVoice{},
		notifier: &fakeNotifier{},
		cache:    &fakeCache{},
	}
	h.player = New("guild-1", Deps{
		Resolver: fakeResolver{},
		Cache:    h.cache,
		Voice:    h.voice,
		Streamer: h.streamer,
		Notifier: h.notifier,
	}, idleTimeout, nil)
	h.player.ErrorBackoff = 10 * time.Millisecond
	t.Cleanup(h.player.Destroy)
	return h
}

func cachedTrack(n int) *track.Track {
	t := &track.Track{
		Kind:        track.KindStreamTrack,
		Title:       fmt.Sprintf("track %d", n),
		ProviderID:  fmt.Sprintf("id-%d", n),
		PlayableRef: fmt.Sprintf("http://localhost:9298/tracks/id-%d.ogg", n),
		DurationSec: 180,
	}
	t.SetCached(true)
	return t
}

func TestEnqueueStartsPlayback(t *testing.T) {
	h := newTestPlayer(t, 0)

	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))

	st := h.streamer.stream(t, 0)
	assert.Contains(t, st.url, "id-1")
	assert.Equal(t, "voice-1", h.voice.ChannelID())

	require.Eventually(t, func() bool { return h.notifier.playingCount() == 1 }, time.Second, 5*time.Millisecond)
	cur := h.player.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "track 1", cur.Title)
}

func TestNaturalAdvanceThroughQueue(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))

	h.streamer.stream(t, 0).finish(nil)
	st := h.streamer.stream(t, 1)
	assert.Contains(t, st.url, "id-2")

	st.finish(nil)
	require.Eventually(t, func() bool { return h.notifier.drainedCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, h.player.Current())
}

func TestSkipWithoutStreamLeavesRepeatMode(t *testing.T) {
	h := newTestPlayer(t, 0)
	h.player.SetRepeatMode(RepeatTrack)

	require.ErrorIs(t, h.player.Skip(), ErrNothingPlaying)
	assert.Equal(t, RepeatTrack, h.player.RepeatMode())
}

func TestSkipClearsTrackRepeat(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	h.streamer.stream(t, 0)

	h.player.SetRepeatMode(RepeatTrack)
	require.NoError(t, h.player.Skip())

	assert.Equal(t, RepeatNone, h.player.RepeatMode())
	require.Eventually(t, func() bool { return h.notifier.drainedCount() == 1 }, time.Second, 5*time.Millisecond)
	_, total := h.player.QueueList(10)
	assert.Zero(t, total)
}

func TestTrackRepeatReplaysSameTrack(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	h.streamer.stream(t, 0)

	h.player.SetRepeatMode(RepeatTrack)
	h.streamer.stream(t, 0).finish(nil)

	st := h.streamer.stream(t, 1)
	assert.Contains(t, st.url, "id-1")
}

func TestQueueRepeatRotates(t *testing.T) {
	h := newTestPlayer(t, 0)
	h.player.SetRepeatMode(RepeatQueue)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))

	h.streamer.stream(t, 0).finish(nil)
	assert.Contains(t, h.streamer.stream(t, 1).url, "id-2")
	h.streamer.stream(t, 1).finish(nil)
	assert.Contains(t, h.streamer.stream(t, 2).url, "id-1")
}

func TestRepeatModeMigrationDoubleToggle(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))
	h.streamer.stream(t, 0)
	require.Eventually(t, func() bool { return h.player.Current() != nil }, time.Second, 5*time.Millisecond)

	h.player.SetRepeatMode(RepeatQueue)
	list, total := h.player.QueueList(10)
	require.Equal(t, 2, total)
	assert.Equal(t, "track 1", list[1].Title) // current joined at tail

	h.player.SetRepeatMode(RepeatNone)
	list, total = h.player.QueueList(10)
	require.Equal(t, 1, total)
	assert.Equal(t, "track 2", list[0].Title)
}

func TestStreamStartFailureDropsTrackAndAdvances(t *testing.T) {
	h := newTestPlayer(t, 0)
	h.streamer.failures = 1

	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))

	st := h.streamer.stream(t, 0)
	assert.Contains(t, st.url, "id-2")

	h.notifier.mu.Lock()
	failed := append([]string(nil), h.notifier.failed...)
	h.notifier.mu.Unlock()
	require.Len(t, failed, 1)
	assert.Equal(t, "track 1", failed[0])
}

func TestPauseResumeOnEnqueue(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	st := h.streamer.stream(t, 0)

	paused, err := h.player.TogglePause()
	require.NoError(t, err)
	assert.True(t, paused)
	assert.True(t, st.Paused())

	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(2)))
	assert.False(t, h.player.Paused())
	assert.False(t, st.Paused())
}

func TestRestartSuppressesAnnouncement(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	h.streamer.stream(t, 0)
	require.Eventually(t, func() bool { return h.notifier.playingCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.player.Restart())

	st := h.streamer.stream(t, 1)
	assert.Contains(t, st.url, "id-1")
	assert.Equal(t, 1, h.notifier.playingCount())
}

func TestRestartUnderQueueRepeatKeepsQueueIntact(t *testing.T) {
	h := newTestPlayer(t, 0)
	h.player.SetRepeatMode(RepeatQueue)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))
	h.streamer.stream(t, 0)
	require.Eventually(t, func() bool { return h.notifier.playingCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.player.Restart())

	st := h.streamer.stream(t, 1)
	assert.Contains(t, st.url, "id-1")

	list, total := h.player.QueueList(10)
	require.Equal(t, 2, total)
	assert.ElementsMatch(t, []string{"track 1", "track 2"}, []string{list[0].Title, list[1].Title})
}

func TestDestroyDuringStreamOpenStopsFreshSession(t *testing.T) {
	h := newTestPlayer(t, 0)
	h.streamer.opening = make(chan struct{})
	gate := make(chan struct{})
	h.streamer.gate = gate

	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	<-h.streamer.opening

	destroyed := make(chan struct{})
	go func() {
		h.player.Destroy()
		close(destroyed)
	}()
	require.Eventually(t, func() bool {
		h.player.mu.Lock()
		defer h.player.mu.Unlock()
		return h.player.exiting
	}, time.Second, time.Millisecond)

	close(gate)

	select {
	case <-destroyed:
	case <-time.After(2 * time.Second):
		t.Fatal("teardown blocked behind a session opened mid-shutdown")
	}

	st := h.streamer.stream(t, 0)
	st.mu.Lock()
	closed := st.closed
	st.mu.Unlock()
	assert.True(t, closed)
}

func TestShuffleRequiresThreeTracks(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))
	h.streamer.stream(t, 0)

	assert.Error(t, h.player.Shuffle())
}

func TestSetVolumeClampsAndApplies(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	st := h.streamer.stream(t, 0)

	assert.Equal(t, 100, h.player.SetVolume(250))
	assert.Equal(t, 0, h.player.SetVolume(-5))
	assert.Equal(t, 42, h.player.SetVolume(42))
	assert.Equal(t, 42, h.player.Volume())

	st.mu.Lock()
	vol := st.volume
	st.mu.Unlock()
	assert.Equal(t, 42, vol)
}

func TestPrefetchNextTrack(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1), cachedTrack(2)))
	h.streamer.stream(t, 0)

	require.Eventually(t, func() bool {
		h.cache.mu.Lock()
		defer h.cache.mu.Unlock()
		return len(h.cache.prefetched) > 0 && h.cache.prefetched[0] == "id-2"
	}, time.Second, 5*time.Millisecond)
}

func TestDestroyIsIdempotentAndLeavesVoice(t *testing.T) {
	h := newTestPlayer(t, 0)
	require.NoError(t, h.player.Enqueue("voice-1", cachedTrack(1)))
	h.streamer.stream(t, 0)

	h.player.Destroy()
	h.player.Destroy()

	h.voice.mu.Lock()
	left := h.voice.left
	h.voice.mu.Unlock()
	assert.True(t, left)
	assert.ErrorIs(t, h.player.Enqueue("voice-1", cachedTrack(2)), ErrPlayerClosed)
}

func TestVoiceKickDuringExitIsIgnored(t *testing.T) {
	h := newTestPlayer(t, 0)
	h.player.Destroy()
	h.player.HandleVoiceKick() // must not panic on double teardown
}
