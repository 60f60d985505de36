package version

const (
	AppName        = "Minji Music"
	AppDescription = "Discord bot that plays audio from YouTube and Spotify into voice channels"
	AppVersion     = "2.0.0"
)
