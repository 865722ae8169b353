package soundcloud

import (
	"bytes"
	"context"
	"net/url"
	"regexp"

	"golang.org/x/net/html"

	"dreary/internal/logging"
	"dreary/internal/services"
	"dreary/internal/tunes"
)

var clientIDPattern = regexp.MustCompile(`client_id\s*[:=]\s*"?([0-9A-Za-z]{32})"?`)

// ClientID returns the configured client ID, scraping one from the site's
// scripts when none is set.
func (s *Source) ClientID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientID != "" {
		return s.clientID, nil
	}
	id, err := s.scrapeClientID(ctx)
	if err != nil {
		return "", err
	}
	s.clientID = id
	return id, nil
}

// scrapeClientID scans the site's script bundles, newest (last) first.
func (s *Source) scrapeClientID(ctx context.Context) (string, error) {
	page, err := tunes.Get(ctx, s.client, s.siteURL, nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "soundcloud", "client id", "could not load "+s.siteURL, err)
	}
	scripts, err := scriptSources(page, s.siteURL)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "soundcloud", "client id", "could not parse "+s.siteURL, err)
	}
	for i := len(scripts) - 1; i >= 0; i-- {
		body, err := tunes.Get(ctx, s.client, scripts[i], nil)
		if err != nil {
			s.logger.Debug("script fetch failed", logging.String("script", scripts[i]), logging.Error(err))
			continue
		}
		if m := clientIDPattern.FindSubmatch(body); m != nil {
			s.logger.Debug("client id scraped", logging.String("script", scripts[i]))
			return string(m[1]), nil
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "soundcloud", "client id",
		"no client_id found; set [soundcloud] client_id", nil)
}

func scriptSources(page []byte, base string) ([]string, error) {
	root, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	var out []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key != "src" || a.Val == "" {
					continue
				}
				ref, err := url.Parse(a.Val)
				if err != nil {
					continue
				}
				out = append(out, baseURL.ResolveReference(ref).String())
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return out, nil
}
