// Package soundcloud resolves SoundCloud sets and tracks through api-v2.
package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"dreary/internal/config"
	"dreary/internal/logging"
	"dreary/internal/services"
	"dreary/internal/tunes"
)

// hydrateBatchSize is the api-v2 limit for /tracks?ids=.
const hydrateBatchSize = 50

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
		s.logger = logging.NewComponentLogger(logger, "soundcloud")
	}
}

// Source talks to api-v2. The client ID is scraped from the public site when
// none is configured.
type Source struct {
	apiURL  string
	siteURL string
	client  *http.Client
	logger  *slog.Logger

	mu       sync.Mutex
	clientID string
}

// New creates a SoundCloud source from its configuration section.
func New(cfg config.SoundCloud, opts ...Option) *Source {
	s := &Source{
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		siteURL:  strings.TrimRight(cfg.SiteURL, "/"),
		clientID: cfg.ClientID,
		client:   http.DefaultClient,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type user struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PermalinkURL string `json:"permalink_url"`
}

type track struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ArtworkURL   string `json:"artwork_url"`
	Duration     int64  `json:"duration"`
	PermalinkURL string `json:"permalink_url"`
	User         *user  `json:"user"`
}

// mini reports whether the track is an id-only stub from a long set.
func (t track) mini() bool {
	return t.User == nil || t.PermalinkURL == ""
}

type resource struct {
	Kind         string  `json:"kind"`
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ArtworkURL   string  `json:"artwork_url"`
	PermalinkURL string  `json:"permalink_url"`
	SecretToken  string  `json:"secret_token"`
	Tracks       []track `json:"tracks"`
}

// Fetch implements tunes.Source. Sets yield a playlist; a single track link
// yields that track without one.
func (s *Source) Fetch(ctx context.Context, rawURL string) (*tunes.Playlist, []tunes.Track, error) {
	raw, err := s.api(ctx, "/resolve", url.Values{"url": {rawURL}})
	if err != nil {
		return nil, nil, err
	}
	var res resource
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "soundcloud", "resolve", "unexpected response", err)
	}

	switch res.Kind {
	case "track":
		var t track
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, nil, services.Wrap(services.ErrTransient, "soundcloud", "resolve", "unexpected track", err)
		}
		return nil, []tunes.Track{convert(t)}, nil
	case "playlist", "system-playlist":
	default:
		return nil, nil, services.Wrap(services.ErrValidation, "soundcloud", "resolve",
			fmt.Sprintf("unsupported resource kind %q", res.Kind), nil)
	}
	if len(res.Tracks) == 0 {
		return nil, nil, services.Wrap(services.ErrNotFound, "soundcloud", "resolve", "No tracks found in the playlist", nil)
	}

	full, err := s.hydrate(ctx, res)
	if err != nil {
		return nil, nil, err
	}
	playlist := &tunes.Playlist{
		Name:        res.Title,
		Description: res.Description,
		Thumbnail:   res.ArtworkURL,
		Reference: tunes.Reference{
			Source: tunes.SourceSoundCloud,
			Link:   res.PermalinkURL,
			ID:     strconv.FormatInt(res.ID, 10),
		},
	}
	tracks := make([]tunes.Track, 0, len(full))
	for _, t := range full {
		tracks = append(tracks, convert(t))
	}
	return playlist, tracks, nil
}

// hydrate replaces mini tracks with full ones, preserving set order.
func (s *Source) hydrate(ctx context.Context, res resource) ([]track, error) {
	var ids []int64
	for _, t := range res.Tracks {
		if t.mini() {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return res.Tracks, nil
	}
	s.logger.Debug("hydrating mini tracks", logging.Int(logging.FieldCount, len(ids)))

	full := make(map[int64]track, len(ids))
	for start := 0; start < len(ids); start += hydrateBatchSize {
		end := min(start+hydrateBatchSize, len(ids))
		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		params := url.Values{"ids": {strings.Join(parts, ",")}}
		if res.SecretToken != "" {
			params.Set("playlistId", strconv.FormatInt(res.ID, 10))
			params.Set("playlistSecretToken", res.SecretToken)
		}
		raw, err := s.api(ctx, "/tracks", params)
		if err != nil {
			return nil, err
		}
		var batch []track
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, services.Wrap(services.ErrTransient, "soundcloud", "tracks", "unexpected response", err)
		}
		for _, t := range batch {
			full[t.ID] = t
		}
	}

	out := make([]track, 0, len(res.Tracks))
	for _, t := range res.Tracks {
		if !t.mini() {
			out = append(out, t)
			continue
		}
		hydrated, ok := full[t.ID]
		if !ok {
			logging.WarnWithContext(s.logger, "track unavailable", "soundcloud_hydrate",
				logging.Int64("track_id", t.ID))
			continue
		}
		out = append(out, hydrated)
	}
	return out, nil
}

func convert(t track) tunes.Track {
	out := tunes.Track{
		Title:       t.Title,
		Thumbnail:   t.ArtworkURL,
		Duration:    int(t.Duration / 1000),
		Description: t.Description,
		URL:         t.PermalinkURL,
		ID:          strconv.FormatInt(t.ID, 10),
		Source:      tunes.SourceSoundCloud,
	}
	if t.User != nil {
		out.Uploader = &tunes.Person{
			Name: t.User.Username,
			ID:   strconv.FormatInt(t.User.ID, 10),
			URL:  t.User.PermalinkURL,
		}
	}
	return out
}

// api performs an authenticated api-v2 GET. A rejected client ID is dropped
// and re-scraped once.
func (s *Source) api(ctx context.Context, path string, params url.Values) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		id, err := s.ClientID(ctx)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("client_id", id)
		body, err := tunes.Get(ctx, s.client, s.apiURL+path+"?"+q.Encode(), nil)
		if err == nil {
			return body, nil
		}
		var status *tunes.StatusError
		if errors.As(err, &status) {
			switch status.Status {
			case http.StatusUnauthorized, http.StatusForbidden:
				if attempt == 0 {
					s.resetClientID(id)
					continue
				}
			case http.StatusNotFound:
				return nil, services.Wrap(services.ErrNotFound, "soundcloud", strings.TrimPrefix(path, "/"), "resource does not exist", err)
			}
		}
		return nil, services.Wrap(services.ErrTransient, "soundcloud", strings.TrimPrefix(path, "/"), "", err)
	}
}

func (s *Source) resetClientID(stale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientID == stale {
		s.clientID = ""
	}
}

var _ tunes.Source = (*Source)(nil)
