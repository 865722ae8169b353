package tunes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"dreary/internal/services"
)

// maxResponseBytes bounds pages and API responses read from sources.
var maxResponseBytes int64 = 32 << 20

// ErrResponseTooLarge is returned when a source response exceeds the read limit.
var ErrResponseTooLarge = errors.New("response too large")

// Source extracts a playlist and its tracks from a service URL. A nil
// Playlist means the link names tracks only.
type Source interface {
	Fetch(ctx context.Context, rawURL string) (*Playlist, []Track, error)
}

// Sources holds one extractor per supported service. Nil entries report a
// configuration error when a matching URL is imported.
type Sources struct {
	Bandcamp   Source
	SoundCloud Source
	YouTube    Source
	Spotify    Source
}

// For picks the extractor for rawURL by host name.
func (s Sources) For(rawURL string) (Source, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "tunes", "dispatch", "Invalid URL "+rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	var (
		name string
		src  Source
	)
	switch {
	case strings.Contains(host, "soundcloud"):
		name, src = SourceSoundCloud, s.SoundCloud
	case strings.Contains(host, "bandcamp"):
		name, src = SourceBandcamp, s.Bandcamp
	case strings.Contains(host, "youtu"):
		name, src = SourceYouTube, s.YouTube
	case host == "open.spotify.com":
		name, src = SourceSpotify, s.Spotify
	default:
		return nil, services.Wrap(services.ErrValidation, "tunes", "dispatch",
			fmt.Sprintf("unsupported host %q", host), nil)
	}
	if src == nil {
		return nil, services.Wrap(services.ErrConfiguration, "tunes", "dispatch", name+" source is not configured", nil)
	}
	return src, nil
}

// StatusError reports a non-2xx response from a source.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Get fetches rawURL and returns the body of a 2xx response.
func Get(ctx context.Context, client *http.Client, rawURL string, header http.Header) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", rawURL, ErrResponseTooLarge, maxResponseBytes)
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) error {
	body, err := Get(ctx, client, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
