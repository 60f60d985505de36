package music

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/minjidays/minji-music/internal/bot"
	"github.com/minjidays/minji-music/internal/command"
	"github.com/minjidays/minji-music/internal/music/queue"
)

// Button custom IDs rendered under the now-playing message.
const (
	RepeatButtonID  = "music_repeat_button"
	BackButtonID    = "music_back_button"
	PauseButtonID   = "music_pause_button"
	NextButtonID    = "music_next_track_button"
	ShuffleButtonID = "music_shuffle_button"
	ListButtonID    = "music_list_button"
	CloseButtonID   = "music_close_button"
)

func (c *MusicCommand) ComponentIDs() []string {
	return []string{
		RepeatButtonID, BackButtonID, PauseButtonID, NextButtonID,
		ShuffleButtonID, ListButtonID, CloseButtonID,
	}
}

// Component mirrors the slash subcommands for button clicks, responding
// ephemerally to the clicking user.
func (c *MusicCommand) Component(ctx *command.ComponentInteractionContext) error {
	s := ctx.Session
	e := ctx.Event
	customID := e.MessageComponentData().CustomID

	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	switch customID {
	case RepeatButtonID:
		mode := p.CycleRepeat()
		return respondGuard(s, e, "🔁 Repeat mode: "+mode.String())

	case BackButtonID:
		if err := p.Restart(); err != nil {
			return respondGuard(s, e, "Nothing is playing.")
		}
		return respondGuard(s, e, "⏪ Playing the current track from the beginning.")

	case PauseButtonID:
		paused, err := p.TogglePause()
		if err != nil {
			return respondGuard(s, e, "Nothing is playing.")
		}
		if paused {
			return respondGuard(s, e, "⏸️ Playback paused.")
		}
		return respondGuard(s, e, "▶️ Playback resumed.")

	case NextButtonID:
		if err := p.Skip(); err != nil {
			return respondGuard(s, e, "Nothing is playing.")
		}
		return respondGuard(s, e, "⏭️ Skipped.")

	case ShuffleButtonID:
		if err := p.Shuffle(); err != nil {
			if err == queue.ErrTooFewTracks {
				return respondGuard(s, e, "Need at least 3 tracks in the queue to shuffle.")
			}
			return respondGuard(s, e, fmt.Sprintf("%v", err))
		}
		return respondGuard(s, e, "🔀 Queue shuffled.")

	case ListButtonID:
		return bot.RespondEmbedEphemeral(s, e, queueEmbed(p))

	case CloseButtonID:
		if !stopPermitted(s, e.GuildID, p.VoiceChannelID(), e.Member.User.ID) {
			return respondGuard(s, e, "Someone with channel management rights is listening. Ask them to stop the session.")
		}
		go c.Bot.Players().Destroy(e.GuildID)
		return respondGuard(s, e, "⏹️ Playback stopped. Queue cleared.")
	}
	return nil
}

// ControlButtons builds the action rows rendered under a now-playing
// message.
func ControlButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "🔁"}, Style: discordgo.SecondaryButton, CustomID: RepeatButtonID},
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "⏪"}, Style: discordgo.SecondaryButton, CustomID: BackButtonID},
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "⏯️"}, Style: discordgo.SecondaryButton, CustomID: PauseButtonID},
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "⏭️"}, Style: discordgo.SecondaryButton, CustomID: NextButtonID},
			},
		},
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "🔀"}, Style: discordgo.SecondaryButton, CustomID: ShuffleButtonID},
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "📜"}, Style: discordgo.SecondaryButton, CustomID: ListButtonID},
				discordgo.Button{Emoji: &discordgo.ComponentEmoji{Name: "⏹️"}, Style: discordgo.DangerButton, CustomID: CloseButtonID},
			},
		},
	}
}
