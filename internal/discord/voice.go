package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/minjidays/minji-music/internal/music/player"
	"github.com/minjidays/minji-music/internal/music/stream"
)

// guildVoice wraps one guild's voice connection. It implements both the
// player's Voice and Streamer collaborators.
type guildVoice struct {
	session *discordgo.Session

	mu   sync.Mutex
	conn *discordgo.VoiceConnection
}

func (v *guildVoice) Join(guildID, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conn != nil && v.conn.ChannelID == channelID {
		return nil
	}
	conn, err := v.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	v.conn = conn
	return nil
}

func (v *guildVoice) ChannelID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conn == nil {
		return ""
	}
	return v.conn.ChannelID
}

func (v *guildVoice) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn != nil
}

func (v *guildVoice) Leave() error {
	v.mu.Lock()
	conn := v.conn
	v.conn = nil
	v.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// Stream launches ffmpeg for the url and pumps opus frames into the
// voice connection until the session finishes or is stopped.
func (v *guildVoice) Stream(_ context.Context, url string, volume int) (player.AudioStream, error) {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()
	if conn == nil {
		return nil, errors.New("no voice connection")
	}

	sess, err := stream.Open(url, volume)
	if err != nil {
		return nil, err
	}
	sess.Start(conn)
	return sess, nil
}
