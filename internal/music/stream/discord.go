// /internal/music/stream/discord.go
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// Start launches the send loop: read one 20ms PCM frame, apply gain, opus
// encode, push to the voice connection. Runs until EOF, error or Stop.
func (s *Session) Start(vc *discordgo.VoiceConnection) {
	go s.sendLoop(vc)
}

func (s *Session) sendLoop(vc *discordgo.VoiceConnection) {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		s.finish(fmt.Errorf("encoder error: %w", err))
		return
	}

	_ = vc.Speaking(true)
	defer vc.Speaking(false) //nolint:errcheck

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-s.stop:
			s.finish(nil)
			return
		default:
		}

		if s.paused.Load() {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		if _, err := io.ReadFull(s.pcm, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.finish(nil)
			} else {
				s.finish(fmt.Errorf("read error: %w", err))
			}
			return
		}

		vol := int32(s.volume.Load())
		for i := range intBuf {
			sample := int32(int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2])))
			intBuf[i] = int16(sample * vol / 100)
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			s.finish(fmt.Errorf("encode error: %w", err))
			return
		}

		select {
		case vc.OpusSend <- opus:
		case <-s.stop:
			s.finish(nil)
			return
		}
	}
}
