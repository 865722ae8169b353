// Package blobsource resolves attachment references found in exports to local
// files. Relative paths are read next to the export; http(s) references are
// downloaded into a scratch directory that is removed when the import ends.
package blobsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dreary/internal/logging"
)

// Option configures a Scratch.
type Option func(*Scratch)

// WithHTTPClient overrides the download client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scratch) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scratch) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "blobsource")
		}
	}
}

// Scratch resolves references relative to root and stores downloads in a
// temporary directory under base.
type Scratch struct {
	root       string
	base       string
	dir        string
	httpClient *http.Client
	logger     *slog.Logger
	seq        int
}

// NewScratch creates base/tmp-<timestamp>. Relative references resolve against
// root. An empty base uses root.
func NewScratch(root, base string, opts ...Option) (*Scratch, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if strings.TrimSpace(base) == "" {
		base = root
	}
	base, err = filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch base: %w", err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch base: %w", err)
	}
	dir, err := os.MkdirTemp(base, "tmp-"+strconv.FormatInt(time.Now().Unix(), 10)+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	s := &Scratch{
		root:       root,
		base:       base,
		dir:        dir,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the scratch directory.
func (s *Scratch) Dir() string {
	return s.dir
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// Resolve returns a local path for ref, downloading remote references.
func (s *Scratch) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty reference")
	}
	if IsRemote(ref) {
		return s.download(ctx, ref)
	}
	if filepath.IsAbs(ref) {
		return ref, nil
	}
	return filepath.Join(s.root, filepath.FromSlash(ref)), nil
}

// ReadBytes resolves ref and returns its contents.
func (s *Scratch) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	local, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return data, nil
}

// ReadText resolves ref and returns its contents as text.
func (s *Scratch) ReadText(ctx context.Context, ref string) (string, error) {
	data, err := s.ReadBytes(ctx, ref)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Scratch) download(ctx context.Context, rawURL string) (string, error) {
	target := filepath.Join(s.dir, s.nextName(rawURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s returned %d (latency=%v)", rawURL, resp.StatusCode, time.Since(start))
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return "", fmt.Errorf("write %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close %s: %w", target, closeErr)
	}
	s.logger.Debug("downloaded attachment",
		logging.String("url", rawURL),
		logging.Int64("bytes", n),
		logging.Duration("latency", time.Since(start)))
	return target, nil
}

// nextName derives a file name from the last path segment of rawURL, ignoring
// the query string. A sequence prefix keeps repeated names apart.
func (s *Scratch) nextName(rawURL string) string {
	s.seq++
	name := "download"
	if parsed, err := url.Parse(rawURL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "/" && base != "." {
			if unescaped, err := url.PathUnescape(base); err == nil {
				base = unescaped
			}
			name = filepath.Base(filepath.Clean(base))
		}
	}
	return fmt.Sprintf("%04d-%s", s.seq, name)
}

// Close removes the scratch directory. It refuses to delete anything that is
// not strictly inside base.
func (s *Scratch) Close() error {
	if s == nil || s.dir == "" {
		return nil
	}
	rel, err := filepath.Rel(s.base, s.dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove scratch dir %s outside %s", s.dir, s.base)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	s.dir = ""
	return nil
}
