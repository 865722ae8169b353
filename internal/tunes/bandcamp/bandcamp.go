// Package bandcamp extracts album and playlist data from Bandcamp pages.
//
// Bandcamp embeds the same album in three places: the #pagedata data-blob, a
// schema.org ld+json script, and the data-tralbum attribute. The documents are
// merged in that order and fields are read with fallbacks across them.
package bandcamp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"dreary/internal/logging"
	"dreary/internal/lookup"
	"dreary/internal/services"
	"dreary/internal/tunes"
)

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
		s.logger = logging.NewComponentLogger(logger, "bandcamp")
	}
}

// Source fetches Bandcamp album pages.
type Source struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Bandcamp source.
func New(opts ...Option) *Source {
	s := &Source{client: http.DefaultClient, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch implements tunes.Source.
func (s *Source) Fetch(ctx context.Context, rawURL string) (*tunes.Playlist, []tunes.Track, error) {
	body, err := tunes.Get(ctx, s.client, rawURL, nil)
	if err != nil {
		var status *tunes.StatusError
		if errors.As(err, &status) {
			return nil, nil, services.Wrap(services.ErrNotFound, "bandcamp", "fetch",
				"The Album/Track requested does not exist at "+rawURL, err)
		}
		return nil, nil, services.Wrap(services.ErrTransient, "bandcamp", "fetch", "", err)
	}
	docs, err := s.embeddedDocuments(body)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "bandcamp", "parse", "", err)
	}
	page := lookup.Merge(docs...)
	return extract(page)
}

// embeddedDocuments returns the page's JSON documents in merge order.
func (s *Source) embeddedDocuments(body []byte) ([]any, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var pagedata, ldJSON string
	var tralbums []string
	walk(root, func(n *html.Node) {
		switch n.Data {
		case "div":
			if attr(n, "id") == "pagedata" && pagedata == "" {
				pagedata = attr(n, "data-blob")
			}
		case "script":
			if attr(n, "type") == "application/ld+json" && ldJSON == "" {
				ldJSON = text(n)
			}
			if v, ok := attrOK(n, "data-tralbum"); ok {
				tralbums = append(tralbums, v)
			}
		}
	})

	raws := append([]string{pagedata, ldJSON}, tralbums...)
	docs := make([]any, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		doc, err := lookup.Decode([]byte(raw))
		if err != nil {
			s.logger.Debug("embedded json skipped", logging.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("page carries no embedded album data")
	}
	return docs, nil
}

func extract(page map[string]any) (*tunes.Playlist, []tunes.Track, error) {
	items := lookup.All(page, "$.track.itemListElement")
	if len(items) == 0 {
		return nil, nil, services.Wrap(services.ErrNotFound, "bandcamp", "extract", "No tracks found in the playlist", nil)
	}
	thumbnail := lookup.String(page, "$.image")
	playlist := &tunes.Playlist{
		Name:        lookup.String(page, "$.name"),
		Description: lookup.String(page, "$.description"),
		Thumbnail:   thumbnail,
		Reference: tunes.Reference{
			Source: tunes.SourceBandcamp,
			Link:   lookup.String(page, "$.url"),
			ID:     lookup.String(page, "$.id"),
		},
	}
	uploader := &tunes.Person{
		Name: lookup.String(page, "$.artist", "$.byArtist.name", "$.publisher.name"),
		ID: lookup.String(page,
			"$.current.band_id",
			"$.current.selling_band_id",
			`$.publisher.additionalProperty[?(@.name=="band_id")].value`),
		URL: lookup.String(page, `$.byArtist["@id"]`, `$.publisher["@id"]`),
	}
	infos := lookup.All(page, "$.trackinfo")

	tracks := make([]tunes.Track, 0, len(items))
	for _, element := range items {
		item, ok := lookup.First(element, "$.item")
		if !ok {
			continue
		}
		trackID := lookup.String(item, `$.additionalProperty[?(@.name=="track_id")].value`)
		info := trackInfo(infos, trackID)
		duration, _ := lookup.Float(info, "$.duration")
		tracks = append(tracks, tunes.Track{
			Title:     firstNonEmpty(lookup.String(item, "$.name"), lookup.String(info, "$.title")),
			Uploader:  uploader,
			Thumbnail: thumbnail,
			Duration:  int(math.Round(duration)),
			Lyrics:    lookup.String(item, "$.recordingOf.lyrics.text"),
			URL:       lookup.String(item, `$["@id"]`, "$.mainEntityOfPage"),
			ID:        trackID,
			Source:    tunes.SourceBandcamp,
		})
	}
	if len(tracks) == 0 {
		return nil, nil, services.Wrap(services.ErrNotFound, "bandcamp", "extract", "No tracks found in the playlist", nil)
	}
	return playlist, tracks, nil
}

// trackInfo finds the tralbum trackinfo entry for id.
func trackInfo(infos []any, id string) any {
	if id == "" {
		return nil
	}
	for _, info := range infos {
		if lookup.String(info, "$.id") == id || lookup.String(info, "$.track_id") == id {
			return info
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	v, _ := attrOK(n, key)
	return v
}

func attrOK(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

var _ tunes.Source = (*Source)(nil)
