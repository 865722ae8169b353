// Package youtube extracts playlists by shelling out to yt-dlp.
package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os/exec"
	"strings"

	"dreary/internal/logging"
	"dreary/internal/lookup"
	"dreary/internal/services"
	"dreary/internal/tunes"
)

var commandContext = exec.CommandContext

// Option configures the CLI source.
type Option func(*CLI)

// WithBinary overrides the yt-dlp binary.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CLI) {
		c.logger = logging.NewComponentLogger(logger, "youtube")
	}
}

// CLI wraps yt-dlp.
type CLI struct {
	binary string
	logger *slog.Logger
}

// NewCLI constructs a yt-dlp source using defaults.
func NewCLI(opts ...Option) *CLI {
	c := &CLI{binary: "yt-dlp", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch implements tunes.Source. Playlists yield a playlist record; a single
// video yields a track without one.
func (c *CLI) Fetch(ctx context.Context, rawURL string) (*tunes.Playlist, []tunes.Track, error) {
	c.logger.Info("retrieving playlist data", logging.String("binary", c.binary))
	doc, err := c.dump(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}

	if lookup.String(doc, "$._type") == "video" {
		return nil, []tunes.Track{convert(doc)}, nil
	}
	entries := lookup.All(doc, "$.entries")
	if len(entries) == 0 {
		return nil, nil, services.Wrap(services.ErrNotFound, "youtube", "extract", "No tracks found in the playlist", nil)
	}

	id := lookup.String(doc, "$.id")
	playlist := &tunes.Playlist{
		Name:        lookup.String(doc, "$.title"),
		Description: lookup.String(doc, "$.description"),
		Thumbnail:   playlistThumbnail(doc),
		Reference:   tunes.Reference{Source: tunes.SourceYouTube, ID: id},
	}
	if id != "" {
		playlist.Reference.Link = "https://www.youtube.com/playlist?list=" + url.QueryEscape(id)
	}
	tracks := make([]tunes.Track, 0, len(entries))
	for _, entry := range entries {
		tracks = append(tracks, convert(entry))
	}
	return playlist, tracks, nil
}

func (c *CLI) dump(ctx context.Context, rawURL string) (any, error) {
	cmd := commandContext(ctx, c.binary, "--dump-single-json", "--no-warnings", "--", rawURL) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		detail := strings.TrimSpace(stderr.String())
		if errors.As(err, &exitErr) && detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return nil, services.Wrap(services.ErrExternalTool, "youtube", "yt-dlp", "Failed to retrieve playlist", err)
	}
	doc, err := lookup.Decode(stdout.Bytes())
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "youtube", "yt-dlp", "unexpected output", err)
	}
	return doc, nil
}

// playlistThumbnail prefers the explicit thumbnail and otherwise takes the
// second largest of the listed thumbnails.
func playlistThumbnail(doc any) string {
	if thumb := lookup.String(doc, "$.thumbnail"); thumb != "" {
		return thumb
	}
	thumbs := lookup.Strings(doc, "$.thumbnails[*].url")
	switch len(thumbs) {
	case 0:
		return ""
	case 1:
		return thumbs[0]
	default:
		return thumbs[len(thumbs)-2]
	}
}

func convert(entry any) tunes.Track {
	duration, _ := lookup.Float(entry, "$.duration")
	track := tunes.Track{
		Title:       lookup.String(entry, "$.title"),
		Thumbnail:   lookup.String(entry, "$.thumbnail"),
		Duration:    int(math.Round(duration)),
		Description: lookup.String(entry, "$.description"),
		URL:         lookup.String(entry, "$.webpage_url", "$.url"),
		ID:          lookup.String(entry, "$.id"),
		Source:      tunes.SourceYouTube,
	}
	uploader := tunes.Person{
		Name: lookup.String(entry, "$.uploader", "$.channel"),
		ID:   lookup.String(entry, "$.channel_id", "$.uploader_id"),
		URL:  lookup.String(entry, "$.channel_url", "$.uploader_url"),
	}
	if uploader != (tunes.Person{}) {
		track.Uploader = &uploader
	}
	return track
}

var _ tunes.Source = (*CLI)(nil)
