package music

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/minjidays/minji-music/internal/bot"
	"github.com/minjidays/minji-music/internal/command"
	"github.com/minjidays/minji-music/internal/music/player"
	"github.com/minjidays/minji-music/internal/music/queue"
	"github.com/minjidays/minji-music/internal/music/resolver"
)

const queueDisplayLimit = 20

type MusicCommand struct {
	Bot bot.MusicHost
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Control music playback" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return []int64{} }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a track, album or playlist",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "source",
						Description: "Specify a source if search query is used",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "YouTube", Value: string(resolver.ProviderVideo)},
							{Name: "Spotify", Value: string(resolver.ProviderStream)},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the playback queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "restart",
				Description: "Play the current track from the beginning",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause or resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip to the next track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "repeat",
				Description: "Cycle repeat mode (off, queue, track)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Set playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "level",
						Description: "Volume percent, 0 to 100",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear queue",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx interface{}) error {
	context, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	s := context.Session
	e := context.Event

	if len(e.ApplicationCommandData().Options) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Missing subcommand.",
		})
	}

	sub := e.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "play":
		var input, source string
		for _, opt := range sub.Options {
			switch opt.Name {
			case "input":
				input = opt.StringValue()
			case "source":
				source = opt.StringValue()
			}
		}
		return c.runPlay(s, e, input, source)

	case "queue":
		return c.runQueue(s, e)

	case "restart":
		return c.runRestart(s, e)

	case "pause":
		return c.runPause(s, e)

	case "skip":
		return c.runSkip(s, e)

	case "shuffle":
		return c.runShuffle(s, e)

	case "repeat":
		return c.runRepeat(s, e)

	case "volume":
		level := 0
		for _, opt := range sub.Options {
			if opt.Name == "level" {
				level = int(opt.IntValue())
			}
		}
		return c.runVolume(s, e, level)

	case "stop":
		return c.runStop(s, e)

	default:
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Unknown subcommand: %s", sub.Name),
		})
	}
}

func (c *MusicCommand) runPlay(s *discordgo.Session, e *discordgo.InteractionCreate, input, source string) error {
	if input == "" {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: "Input is required.",
		})
	}

	voiceState, guardErr := c.requireVoice(s, e)
	if guardErr != "" {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Voice Error",
			Description: guardErr,
		})
	}

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	provider := resolver.Provider(source)
	if provider == "" {
		provider = resolver.DetectProvider(input)
	}

	progress := func(done, total int) {
		msg := fmt.Sprintf("Fetching playlist... %d/%d", done, total)
		_, _ = s.InteractionResponseEdit(e.Interaction, &discordgo.WebhookEdit{Content: &msg})
	}

	result, err := c.Bot.Resolver().Resolve(context.Background(), input, provider,
		e.Member.User.ID, e.Member.User.Mention(), progress)
	if err != nil {
		_ = bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: fmt.Sprintf("Failed to resolve track: %v", err),
		})
		return nil
	}
	if len(result.Tracks) == 0 {
		_ = bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Error",
			Description: "Nothing found for that input.",
		})
		return nil
	}

	c.Bot.BindTextChannel(e.GuildID, e.ChannelID)
	p := c.Bot.Players().GetOrCreate(e.GuildID)
	if err := p.Enqueue(voiceState.ChannelID, result.Tracks...); err != nil {
		_ = bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "🎵 Queue Error",
			Description: fmt.Sprintf("%v", err),
		})
		return nil
	}

	var desc string
	if len(result.Tracks) == 1 {
		t := result.Tracks[0]
		desc = fmt.Sprintf("➕ Added [%s](%s) to the queue", t.Title, t.WebpageURL)
	} else {
		desc = fmt.Sprintf("➕ Added %d tracks to the queue", len(result.Tracks))
		if result.Limited {
			desc += "\n-# Long playlist, only the first part was added."
		}
	}
	_ = bot.FollowupEmbed(s, e, &discordgo.MessageEmbed{
		Description: desc,
		Color:       bot.EmbedColor,
	})
	return nil
}

func (c *MusicCommand) runQueue(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, ok := c.Bot.Players().Get(e.GuildID)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Nothing is playing.",
		})
	}
	return bot.RespondEmbed(s, e, queueEmbed(p))
}

func (c *MusicCommand) runRestart(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	if err := p.Restart(); err != nil {
		return respondGuard(s, e, "Nothing is playing.")
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "⏪ Playing the current track from the beginning.",
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runPause(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	paused, err := p.TogglePause()
	if err != nil {
		return respondGuard(s, e, "Nothing is playing.")
	}
	desc := "▶️ Playback resumed."
	if paused {
		desc = "⏸️ Playback paused."
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{Description: desc, Color: bot.EmbedColor})
}

func (c *MusicCommand) runSkip(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	if err := p.Skip(); err != nil {
		return respondGuard(s, e, "Nothing is playing.")
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "⏭️ Skipped.",
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runShuffle(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	if err := p.Shuffle(); err != nil {
		if err == queue.ErrTooFewTracks {
			return respondGuard(s, e, "Need at least 3 tracks in the queue to shuffle.")
		}
		return respondGuard(s, e, fmt.Sprintf("%v", err))
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "🔀 Queue shuffled.",
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runRepeat(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	mode := p.CycleRepeat()
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "🔁 Repeat mode: " + mode.String(),
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runVolume(s *discordgo.Session, e *discordgo.InteractionCreate, level int) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	applied := p.SetVolume(level)
	if err := c.Bot.Storage().SetVolume(e.GuildID, applied); err != nil {
		return err
	}
	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: fmt.Sprintf("🔊 Volume set to %d%%.", applied),
		Color:       bot.EmbedColor,
	})
}

func (c *MusicCommand) runStop(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	p, guardErr := c.requireControl(s, e)
	if guardErr != "" {
		return respondGuard(s, e, guardErr)
	}

	if !stopPermitted(s, e.GuildID, p.VoiceChannelID(), e.Member.User.ID) {
		return respondGuard(s, e, "Someone with channel management rights is listening. Ask them to stop the session.")
	}

	go c.Bot.Players().Destroy(e.GuildID)

	return bot.RespondEmbed(s, e, &discordgo.MessageEmbed{
		Description: "⏹️ Playback stopped. Queue cleared.",
		Color:       bot.EmbedColor,
	})
}

// requireVoice checks that the invoking member has an active voice session
// and, when a player exists, that they share its channel. Returns a guard
// message to show the user when the check fails.
func (c *MusicCommand) requireVoice(s *discordgo.Session, e *discordgo.InteractionCreate) (*bot.VoiceState, string) {
	voiceState, err := c.Bot.FindUserVoiceState(e.GuildID, e.Member.User.ID)
	if err != nil {
		return nil, "Join a voice channel first."
	}
	if p, ok := c.Bot.Players().Get(e.GuildID); ok {
		if ch := p.VoiceChannelID(); ch != "" && ch != voiceState.ChannelID {
			return nil, "You need to be in the same voice channel as the bot."
		}
	}
	return voiceState, ""
}

// requireControl is requireVoice plus "a player must exist".
func (c *MusicCommand) requireControl(s *discordgo.Session, e *discordgo.InteractionCreate) (*player.Player, string) {
	if _, guardErr := c.requireVoice(s, e); guardErr != "" {
		return nil, guardErr
	}
	p, ok := c.Bot.Players().Get(e.GuildID)
	if !ok {
		return nil, "Nothing is playing."
	}
	return p, ""
}

// stopPermitted requires channel management rights from the requester
// whenever another non-bot member holding those rights shares the channel.
func stopPermitted(s *discordgo.Session, guildID, channelID, userID string) bool {
	if channelID == "" {
		return true
	}
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return true
	}

	otherElevated := false
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == userID {
			continue
		}
		member, err := s.State.Member(guildID, vs.UserID)
		if err != nil || member.User == nil || member.User.Bot {
			continue
		}
		perms, err := s.UserChannelPermissions(vs.UserID, channelID)
		if err == nil && perms&discordgo.PermissionManageChannels != 0 {
			otherElevated = true
			break
		}
	}
	if !otherElevated {
		return true
	}

	perms, err := s.UserChannelPermissions(userID, channelID)
	return err == nil && perms&discordgo.PermissionManageChannels != 0
}

func respondGuard(s *discordgo.Session, e *discordgo.InteractionCreate, msg string) error {
	return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: msg})
}

func queueEmbed(p *player.Player) *discordgo.MessageEmbed {
	var b strings.Builder

	if cur := p.Current(); cur != nil {
		fmt.Fprintf(&b, "🎶 [%s](%s) `%s`\n\n", cur.Title, cur.WebpageURL, cur.DurationString())
	}

	list, total := p.QueueList(queueDisplayLimit)
	if total == 0 && b.Len() == 0 {
		b.WriteString("The queue is empty.")
	}
	for i, t := range list {
		fmt.Fprintf(&b, "`%d` | `%s` - [%s](%s) | %s\n", i+1, t.DurationString(), t.Title, t.WebpageURL, t.RequesterMention)
	}
	if total > len(list) {
		fmt.Fprintf(&b, "\n+%d more", total-len(list))
	}

	return &discordgo.MessageEmbed{
		Title:       "📜 Queue",
		Description: b.String(),
		Color:       bot.EmbedColor,
	}
}
