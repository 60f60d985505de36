// /internal/music/stream/stream.go
package stream

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Session is one playback attempt of a single audio source. The ffmpeg
// child decodes the source into raw s16le PCM; the send loop encodes it to
// opus and feeds the voice connection. Done fires exactly once per session.
type Session struct {
	cmd *exec.Cmd
	pcm io.ReadCloser

	stop     chan struct{}
	stopOnce sync.Once
	done     chan error
	doneOnce sync.Once

	paused atomic.Bool
	volume atomic.Int32 // percent, 0-100
}

// Open launches the ffmpeg transcode process for url. The session does not
// start sending audio until Start is called.
func Open(url string, volumePct int) (*Session, error) {
	cmd := exec.Command("ffmpeg",
		"-nostdin",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-vn",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	pcm, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	s := &Session{
		cmd:  cmd,
		pcm:  pcm,
		stop: make(chan struct{}),
		done: make(chan error, 1),
	}
	s.volume.Store(int32(clampVolume(volumePct)))
	return s, nil
}

// Done returns the one-shot completion signal: nil on normal end or forced
// stop, the read/encode error otherwise.
func (s *Session) Done() <-chan error {
	return s.done
}

// Stop forcibly terminates the stream, which completes the session through
// the normal Done path.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Pause withholds frames without tearing down ffmpeg.
func (s *Session) Pause(paused bool) {
	s.paused.Store(paused)
}

// SetVolume adjusts gain live, applied per frame.
func (s *Session) SetVolume(pct int) {
	s.volume.Store(int32(clampVolume(pct)))
}

// Close releases the ffmpeg process and pipe. Safe to call after Done.
func (s *Session) Close() error {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.pcm.Close()
	go s.cmd.Wait()
	return err
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		s.done <- err
	})
}

func clampVolume(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
