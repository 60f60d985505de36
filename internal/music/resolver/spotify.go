package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	spotify "github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/minjidays/minji-music/internal/music/track"
)

// playlistTrackLimit caps how many playlist entries one resolve fetches.
const playlistTrackLimit = 50

// progressEvery controls how often playlist scans report progress.
const progressEvery = 10

var (
	spotifyTrackPattern    = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?track/([A-Za-z0-9]+)`)
	spotifyAlbumPattern    = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?album/([A-Za-z0-9]+)`)
	spotifyPlaylistPattern = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?playlist/([A-Za-z0-9]+)`)
	highlightTrackPattern  = regexp.MustCompile(`highlight=spotify(?::|%3A)track(?::|%3A)([A-Za-z0-9]+)`)

	ErrStreamNotConfigured = errors.New("stream provider credentials are not configured")
)

type streamRefKind int

const (
	streamRefNone streamRefKind = iota
	streamRefTrack
	streamRefAlbum
	streamRefPlaylist
)

type streamRef struct {
	kind    streamRefKind
	id      string
	trackID string // album URL track fragment, when present
}

// classifyStreamURL sorts an input by URL shape. streamRefNone means the
// input should fall through to free-text search.
func classifyStreamURL(input string) streamRef {
	if m := spotifyTrackPattern.FindStringSubmatch(input); m != nil {
		return streamRef{kind: streamRefTrack, id: m[1]}
	}
	if m := spotifyAlbumPattern.FindStringSubmatch(input); m != nil {
		ref := streamRef{kind: streamRefAlbum, id: m[1]}
		if h := highlightTrackPattern.FindStringSubmatch(input); h != nil {
			ref.trackID = h[1]
		}
		return ref
	}
	if m := spotifyPlaylistPattern.FindStringSubmatch(input); m != nil {
		return streamRef{kind: streamRefPlaylist, id: m[1]}
	}
	return streamRef{kind: streamRefNone}
}

type streamResolver struct {
	clientID     string
	clientSecret string
	idx          CacheIndex
	limiter      *rate.Limiter

	mu       sync.Mutex
	client   *spotify.Client
	tokenExp time.Time
}

func newStreamResolver(clientID, clientSecret string, idx CacheIndex) *streamResolver {
	return &streamResolver{
		clientID:     clientID,
		clientSecret: clientSecret,
		idx:          idx,
		limiter:      rate.NewLimiter(rate.Limit(8), 4),
	}
}

func (s *streamResolver) resolve(ctx context.Context, input string, progress Progress) (Result, error) {
	client, err := s.api(ctx)
	if err != nil {
		return Result{}, err
	}

	ref := classifyStreamURL(input)
	switch ref.kind {
	case streamRefTrack:
		return s.resolveTrack(ctx, client, ref.id)
	case streamRefAlbum:
		if ref.trackID != "" {
			// album link pointing at a specific track resolves only that track
			return s.resolveTrack(ctx, client, ref.trackID)
		}
		return s.resolveAlbum(ctx, client, ref.id)
	case streamRefPlaylist:
		return s.resolvePlaylist(ctx, client, ref.id, progress)
	default:
		return s.resolveSearch(ctx, client, input)
	}
}

func (s *streamResolver) resolveTrack(ctx context.Context, client *spotify.Client, id string) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	ft, err := client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Result{}, err
	}
	return Result{Tracks: []*track.Track{s.wrap(ft.SimpleTrack, albumImage(ft.Album))}}, nil
}

// resolveAlbum returns every track across every disc, in order.
func (s *streamResolver) resolveAlbum(ctx context.Context, client *spotify.Client, id string) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	album, err := client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return Result{}, err
	}

	thumb := albumImage(album.SimpleAlbum)
	var tracks []*track.Track
	for {
		for _, st := range album.Tracks.Tracks {
			tracks = append(tracks, s.wrap(st, thumb))
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		err = client.NextPage(ctx, &album.Tracks)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return Result{}, err
		}
	}
	return Result{Tracks: tracks}, nil
}

// resolvePlaylist paginates through playlist entries, capping the total at
// playlistTrackLimit and reporting progress periodically.
func (s *streamResolver) resolvePlaylist(ctx context.Context, client *spotify.Client, id string, progress Progress) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	page, err := client.GetPlaylistItems(ctx, spotify.ID(id))
	if err != nil {
		return Result{}, err
	}

	total := int(page.Total)
	var tracks []*track.Track
	limited := false

scan:
	for {
		for _, item := range page.Items {
			ft := item.Track.Track
			if ft == nil {
				continue // episode or removed entry
			}
			tracks = append(tracks, s.wrap(ft.SimpleTrack, albumImage(ft.Album)))
			if len(tracks) >= playlistTrackLimit {
				limited = len(tracks) < total
				break scan
			}
			if progress != nil && len(tracks)%progressEvery == 0 {
				progress(len(tracks), total)
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		err = client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return Result{}, err
		}
	}

	log.Debug().Int("tracks", len(tracks)).Int("total", total).Bool("limited", limited).Msg("playlist resolved")
	return Result{Tracks: tracks, Limited: limited}, nil
}

func (s *streamResolver) resolveSearch(ctx context.Context, client *spotify.Client, query string) (Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	result, err := client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return Result{}, err
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return Result{}, nil
	}
	ft := result.Tracks.Tracks[0]
	return Result{Tracks: []*track.Track{s.wrap(ft.SimpleTrack, albumImage(ft.Album))}}, nil
}

// wrap converts a provider track into a descriptor. The playable ref points
// at the local cache endpoint; cached reflects what is already on disk.
func (s *streamResolver) wrap(st spotify.SimpleTrack, thumbnail string) *track.Track {
	id := string(st.ID)

	webpage := st.ExternalURLs["spotify"]
	if webpage == "" {
		webpage = "https://open.spotify.com/track/" + id
	}

	t := &track.Track{
		Kind:           track.KindStreamTrack,
		Title:          artistLine(st.Artists) + " - " + st.Name,
		ProviderID:     id,
		DurationSec:    int(st.TimeDuration().Seconds()),
		WebpageURL:     webpage,
		Thumbnail:      thumbnail,
		SourceAudioURL: st.PreviewURL,
		PlayableRef:    s.idx.URL(id),
	}
	t.SetCached(s.idx.Exists(id))
	return t
}

func artistLine(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

func albumImage(album spotify.SimpleAlbum) string {
	if len(album.Images) > 0 {
		return album.Images[0].URL
	}
	return ""
}

// api returns an authorized API client, refreshing the client-credentials
// token when it is close to expiry.
func (s *streamResolver) api(ctx context.Context) (*spotify.Client, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return nil, ErrStreamNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && time.Now().Before(s.tokenExp) {
		return s.client, nil
	}

	token, tokenType, expiresIn, err := s.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize stream provider: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &tokenTransport{
			base:      http.DefaultTransport,
			token:     token,
			tokenType: tokenType,
		},
	}
	s.client = spotify.New(httpClient)
	s.tokenExp = time.Now().Add(time.Duration(expiresIn)*time.Second - time.Minute)
	return s.client, nil
}

func (s *streamResolver) fetchToken(ctx context.Context) (token, tokenType string, expiresIn int, err error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://accounts.spotify.com/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", 0, err
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", "", 0, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", "", 0, err
	}
	if tr.AccessToken == "" {
		return "", "", 0, errors.New("no access token received")
	}
	return tr.AccessToken, tr.TokenType, tr.ExpiresIn, nil
}

type tokenTransport struct {
	base      http.RoundTripper
	token     string
	tokenType string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", t.tokenType+" "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
