package bot

import (
	"github.com/minjidays/minji-music/internal/music/player"
	"github.com/minjidays/minji-music/internal/music/resolver"
	"github.com/minjidays/minji-music/internal/storage"
)

// MusicHost is the interface the Discord bot provides for voice/music.
// Commands depend on it instead of the concrete bot type, which keeps the
// command packages free of import cycles.
type MusicHost interface {
	Players() *player.Registry
	Resolver() *resolver.Resolver
	Storage() *storage.Storage
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
	BindTextChannel(guildID, channelID string)
}

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}
