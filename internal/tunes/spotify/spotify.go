// Package spotify reads playlists, albums, and tracks from the Spotify Web
// API using client-credentials authentication.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"dreary/internal/config"
	"dreary/internal/logging"
	"dreary/internal/lookup"
	"dreary/internal/services"
	"dreary/internal/tunes"
)

// LinkHost is the only host Spotify share links are accepted from.
const LinkHost = "open.spotify.com"

// Link kinds.
const (
	KindPlaylist = "playlist"
	KindAlbum    = "album"
	KindTrack    = "track"
)

// tokenSlack renews the access token shortly before it expires.
const tokenSlack = 30 * time.Second

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logging.NewComponentLogger(logger, "spotify")
	}
}

// Source is a Spotify Web API client.
type Source struct {
	cfg    config.Spotify
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// New creates a Spotify source from its configuration section.
func New(cfg config.Spotify, opts ...Option) *Source {
	cfg.AccountsURL = strings.TrimRight(cfg.AccountsURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	s := &Source{
		cfg:    cfg,
		client: http.DefaultClient,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseLink splits an open.spotify.com link into its kind and ID. Locale
// prefixes such as /intl-de/ are ignored.
func ParseLink(rawURL string) (kind, id string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "spotify", "link", "Bad url input", err)
	}
	if u.Host != LinkHost {
		return "", "", services.Wrap(services.ErrValidation, "spotify", "link", "URL is not a Spotify link", nil)
	}
	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return "", "", services.Wrap(services.ErrValidation, "spotify", "link", "link has no resource id", nil)
	}
	switch parts[0] {
	case KindPlaylist, KindAlbum, KindTrack:
		return parts[0], parts[1], nil
	default:
		return "", "", services.Wrap(services.ErrValidation, "spotify", "link",
			fmt.Sprintf("Link type not supported: %s", parts[0]), nil)
	}
}

// Fetch implements tunes.Source. Track links return no playlist.
func (s *Source) Fetch(ctx context.Context, rawURL string) (*tunes.Playlist, []tunes.Track, error) {
	kind, id, err := ParseLink(rawURL)
	if err != nil {
		return nil, nil, err
	}
	switch kind {
	case KindPlaylist:
		return s.playlist(ctx, id)
	case KindAlbum:
		return s.album(ctx, id)
	default:
		track, err := s.get(ctx, s.cfg.APIURL+"/tracks/"+url.PathEscape(id))
		if err != nil {
			return nil, nil, err
		}
		return nil, []tunes.Track{convert(track, "")}, nil
	}
}

func (s *Source) playlist(ctx context.Context, id string) (*tunes.Playlist, []tunes.Track, error) {
	data, err := s.get(ctx, s.cfg.APIURL+"/playlists/"+url.PathEscape(id))
	if err != nil {
		return nil, nil, err
	}
	owner := tunes.Owner{
		Name: lookup.String(data, "$.owner.display_name"),
		ID:   lookup.String(data, "$.owner.id"),
		Link: lookup.String(data, "$.owner.external_urls.spotify"),
	}
	playlist := newPlaylist(data, []tunes.Owner{owner})
	playlist.Description = lookup.String(data, "$.description")

	page, _ := lookup.First(data, "$.tracks")
	tracks, err := s.collect(ctx, page, "")
	if err != nil {
		return nil, nil, err
	}
	return playlist, tracks, nil
}

func (s *Source) album(ctx context.Context, id string) (*tunes.Playlist, []tunes.Track, error) {
	data, err := s.get(ctx, s.cfg.APIURL+"/albums/"+url.PathEscape(id))
	if err != nil {
		return nil, nil, err
	}
	var owners []tunes.Owner
	for _, artist := range lookup.All(data, "$.artists") {
		owners = append(owners, tunes.Owner{
			Name: lookup.String(artist, "$.name"),
			ID:   lookup.String(artist, "$.id"),
			Link: lookup.String(artist, "$.external_urls.spotify"),
		})
	}
	playlist := newPlaylist(data, owners)

	page, _ := lookup.First(data, "$.tracks")
	tracks, err := s.collect(ctx, page, playlist.Thumbnail)
	if err != nil {
		return nil, nil, err
	}
	return playlist, tracks, nil
}

func newPlaylist(data any, owners []tunes.Owner) *tunes.Playlist {
	return &tunes.Playlist{
		Name:      lookup.String(data, "$.name"),
		Thumbnail: lookup.String(data, "$.images[0].url"),
		Owners:    owners,
		Reference: tunes.Reference{
			Source: tunes.SourceSpotify,
			Link:   lookup.String(data, "$.external_urls.spotify"),
			ID:     lookup.String(data, "$.id"),
		},
	}
}

// collect walks a paging object and its next links. Playlist pages wrap each
// track in an item object; album pages do not.
func (s *Source) collect(ctx context.Context, page any, thumbnail string) ([]tunes.Track, error) {
	var tracks []tunes.Track
	for page != nil {
		for _, item := range lookup.All(page, "$.items") {
			track := item
			if wrapper, ok := item.(map[string]any); ok {
				if inner, wrapped := wrapper["track"]; wrapped {
					if inner == nil {
						continue
					}
					track = inner
				}
			}
			tracks = append(tracks, convert(track, thumbnail))
		}
		next := lookup.String(page, "$.next")
		if next == "" {
			break
		}
		var err error
		if page, err = s.get(ctx, next); err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

func convert(track any, thumbnail string) tunes.Track {
	out := tunes.Track{
		Title:     lookup.String(track, "$.name"),
		Thumbnail: thumbnail,
		URL:       lookup.String(track, "$.external_urls.spotify"),
		ID:        lookup.String(track, "$.id"),
		Source:    tunes.SourceSpotify,
	}
	if out.Thumbnail == "" {
		out.Thumbnail = lookup.String(track, "$.album.images[0].url")
	}
	if ms, ok := lookup.Float(track, "$.duration_ms"); ok {
		out.Duration = int(ms) / 1000
	}
	for _, artist := range lookup.All(track, "$.artists") {
		out.Artists = append(out.Artists, tunes.Person{
			Name: lookup.String(artist, "$.name"),
			ID:   lookup.String(artist, "$.id"),
			URL:  lookup.String(artist, "$.external_urls.spotify"),
		})
	}
	return out
}

func (s *Source) get(ctx context.Context, rawURL string) (any, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	var doc any
	if err := tunes.GetJSON(ctx, s.client, rawURL, header, &doc); err != nil {
		return nil, services.Wrap(services.ErrTransient, "spotify", "api", "", err)
	}
	return doc, nil
}

// accessToken returns a cached client-credentials token, requesting a new one
// when it is missing or about to expire.
func (s *Source) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return "", services.Wrap(services.ErrConfiguration, "spotify", "token",
			"set [spotify] client_id and client_secret (or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET)", nil)
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AccountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "token", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrConfiguration, "spotify", "token",
			fmt.Sprintf("token request rejected with status %d", resp.StatusCode), nil)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "token", "decode response", err)
	}
	if body.AccessToken == "" {
		return "", services.Wrap(services.ErrTransient, "spotify", "token", "response carried no access token", nil)
	}
	s.token = body.AccessToken
	s.expires = s.now().Add(time.Duration(body.ExpiresIn)*time.Second - tokenSlack)
	s.logger.Debug("access token issued", logging.Int("expires_in", body.ExpiresIn))
	return s.token, nil
}

var _ tunes.Source = (*Source)(nil)
