package resolver

import (
	"context"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"

	"github.com/minjidays/minji-music/internal/music/track"
)

var videoURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.|music\.)?(?:youtube\.com/watch\?v=|youtu\.be/)[-\w]+`)

type videoResolver struct {
	client *youtube.Client
	search *searchClient
}

func newVideoResolver() *videoResolver {
	return &videoResolver{
		client: &youtube.Client{},
		search: newSearchClient(),
	}
}

func (v *videoResolver) resolve(ctx context.Context, input string) (Result, error) {
	input = strings.TrimSpace(input)

	// canonical video URL: fetch that single video
	if m := videoURLPattern.FindString(input); m != "" {
		t, err := v.fetchVideo(ctx, m)
		if err != nil {
			return Result{}, err
		}
		return Result{Tracks: []*track.Track{t}}, nil
	}

	// free text: top search result only
	if !isURL(input) {
		videoURL, err := v.search.FirstVideoURL(ctx, input)
		if err != nil {
			return Result{}, err
		}
		t, err := v.fetchVideo(ctx, videoURL)
		if err != nil {
			return Result{}, err
		}
		return Result{Tracks: []*track.Track{t}}, nil
	}

	// arbitrary URL: generic extraction, may yield a playlist
	return v.resolvePlaylist(ctx, input)
}

func (v *videoResolver) fetchVideo(ctx context.Context, url string) (*track.Track, error) {
	video, err := v.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, err
	}

	t := &track.Track{
		Kind:        track.KindVideo,
		Title:       track.CleanTitle(video.Title),
		DurationSec: int(video.Duration.Seconds()),
		WebpageURL:  watchURL(video.ID),
		PlayableRef: watchURL(video.ID),
		Formats:     v.formatCatalog(ctx, video),
	}
	if len(video.Thumbnails) > 0 {
		t.Thumbnail = video.Thumbnails[0].URL
	}
	return t, nil
}

func (v *videoResolver) resolvePlaylist(ctx context.Context, url string) (Result, error) {
	playlist, err := v.client.GetPlaylistContext(ctx, url)
	if err != nil {
		return Result{}, err
	}

	var tracks []*track.Track
	for _, entry := range playlist.Videos {
		// zero duration marks an unplayable/live entry: skip, not an error
		if entry.Duration <= 0 {
			continue
		}
		tracks = append(tracks, &track.Track{
			Kind:        track.KindVideo,
			Title:       track.CleanTitle(entry.Title),
			DurationSec: int(entry.Duration.Seconds()),
			WebpageURL:  watchURL(entry.ID),
			PlayableRef: watchURL(entry.ID),
		})
	}

	log.Debug().Int("entries", len(playlist.Videos)).Int("playable", len(tracks)).Msg("playlist extracted")
	return Result{Tracks: tracks}, nil
}

// refreshFormats performs the fresh metadata fetch keyed by the track URL.
func (v *videoResolver) refreshFormats(ctx context.Context, t *track.Track) error {
	video, err := v.client.GetVideoContext(ctx, t.WebpageURL)
	if err != nil {
		return err
	}
	t.Formats = v.formatCatalog(ctx, video)
	if t.DurationSec == 0 {
		t.DurationSec = int(video.Duration.Seconds())
	}
	return nil
}

func (v *videoResolver) formatCatalog(ctx context.Context, video *youtube.Video) []track.Format {
	var catalog []track.Format
	formats := video.Formats.WithAudioChannels()
	for i := range formats {
		f := formats[i]
		url, err := v.client.GetStreamURLContext(ctx, video, &f)
		if err != nil {
			continue
		}
		catalog = append(catalog, track.Format{Ext: extFromMime(f.MimeType), URL: url})
	}
	return catalog
}

func extFromMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/mp4"):
		return "m4a"
	case strings.HasPrefix(mime, "audio/webm"):
		return "webm"
	case strings.HasPrefix(mime, "video/mp4"):
		return "mp4"
	default:
		return "webm"
	}
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
