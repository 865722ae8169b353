package atproto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"dreary/internal/logging"
)

// Option configures a Client or Resolver.
type Option func(*transport)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(agent string) Option {
	return func(t *transport) {
		if agent != "" {
			t.userAgent = agent
		}
	}
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(t *transport) {
		if logger != nil {
			t.logger = logging.NewComponentLogger(logger, "atproto")
		}
	}
}

type transport struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

func newTransport(opts []Option) transport {
	t := transport{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "dreary/dev",
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// xrpcRequest describes a single XRPC call.
type xrpcRequest struct {
	method      string
	host        string
	nsid        string
	params      url.Values
	body        []byte
	contentType string
	token       string
}

func (r xrpcRequest) url() string {
	endpoint := r.host + "/xrpc/" + r.nsid
	if len(r.params) > 0 {
		endpoint += "?" + r.params.Encode()
	}
	return endpoint
}

// send executes the request and returns the open response for 2xx statuses.
// The caller closes the body.
func (t *transport) send(ctx context.Context, r xrpcRequest) (*http.Response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", r.nsid, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%s request (latency=%v): %w", r.nsid, latency, err)
	}
	t.logger.Debug("xrpc call",
		logging.String("nsid", r.nsid),
		logging.String("method", r.method),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(r.nsid, resp)
	}
	return resp, nil
}

// do executes the request and decodes a JSON body into out when out is non-nil.
func (t *transport) do(ctx context.Context, r xrpcRequest, out any) error {
	resp, err := t.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", r.nsid, err)
	}
	return nil
}

// getJSON fetches a plain JSON document outside the XRPC namespace.
func (t *transport) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s returned %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func marshalBody(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return data, nil
}
