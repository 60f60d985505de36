package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/bot"
	"github.com/minjidays/minji-music/internal/command/music"
	"github.com/minjidays/minji-music/internal/music/player"
	"github.com/minjidays/minji-music/internal/music/track"
	"github.com/minjidays/minji-music/internal/storage"
)

// guildNotifier renders playback events into the guild's bound text
// channel. At most one now-playing message exists at a time; a new one
// replaces the previous.
type guildNotifier struct {
	session *discordgo.Session
	guildID string
	storage *storage.Storage

	mu           sync.Mutex
	channelID    string
	nowPlayingID string
}

func (n *guildNotifier) bind(channelID string) {
	n.mu.Lock()
	n.channelID = channelID
	n.mu.Unlock()
}

func (n *guildNotifier) NowPlaying(t *track.Track, mode player.RepeatMode, queueLen int) {
	ch := n.takeChannelAndDeletePrevious()
	if ch == "" {
		return
	}

	desc := fmt.Sprintf("🎶 [%s](%s) `%s`", t.Title, t.WebpageURL, t.DurationString())
	if t.RequesterMention != "" {
		desc += "\nrequested by " + t.RequesterMention
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: desc,
		Color:       bot.EmbedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("repeat: %s • %d in queue", mode, queueLen),
		},
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}

	msg, err := n.session.ChannelMessageSendComplex(ch, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: music.ControlButtons(),
	})
	if err != nil {
		log.Warn().Err(err).Str("guild", n.guildID).Msg("failed to send now-playing message")
		return
	}

	n.mu.Lock()
	n.nowPlayingID = msg.ID
	n.mu.Unlock()

	if err := n.storage.AppendTrackToHistory(n.guildID, storage.TrackHistoryRecord{
		Title:      t.Title,
		WebpageURL: t.WebpageURL,
		Requester:  t.Requester,
		PlayedAt:   time.Now(),
	}); err != nil {
		log.Warn().Err(err).Str("guild", n.guildID).Msg("failed to append track history")
	}
}

func (n *guildNotifier) PlaybackError(t *track.Track, err error) {
	n.mu.Lock()
	ch := n.channelID
	n.mu.Unlock()
	if ch == "" {
		return
	}

	_ = bot.MessageEmbed(n.session, ch, &discordgo.MessageEmbed{
		Title:       "⚠️ Playback Error",
		Description: fmt.Sprintf("Failed to play [%s](%s):\n%v", t.Title, t.WebpageURL, err),
	})
}

func (n *guildNotifier) QueueDrained() {
	ch := n.takeChannelAndDeletePrevious()
	if ch == "" {
		return
	}

	_ = bot.MessageEmbed(n.session, ch, &discordgo.MessageEmbed{
		Description: "Queue is empty. Add more tracks with `/music play`.",
		Color:       bot.EmbedColor,
	})
}

// takeChannelAndDeletePrevious removes the previous now-playing message,
// if any, and returns the bound channel ID.
func (n *guildNotifier) takeChannelAndDeletePrevious() string {
	n.mu.Lock()
	ch := n.channelID
	prev := n.nowPlayingID
	n.nowPlayingID = ""
	n.mu.Unlock()

	if ch != "" && prev != "" {
		if err := n.session.ChannelMessageDelete(ch, prev); err != nil {
			log.Debug().Err(err).Str("guild", n.guildID).Msg("failed to delete now-playing message")
		}
	}
	return ch
}
