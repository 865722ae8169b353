package atproto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"dreary/internal/logging"
)

// Session is the result of com.atproto.server.createSession.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// Client talks to a single PDS. It is safe for concurrent use.
type Client struct {
	transport
	host string

	mu      sync.RWMutex
	session *Session
}

// NewClient creates an unauthenticated client for the PDS at host.
func NewClient(host string, opts ...Option) (*Client, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, errors.New("pds host required")
	}
	return &Client{transport: newTransport(opts), host: host}, nil
}

// Host returns the PDS base URL.
func (c *Client) Host() string {
	return c.host
}

// Session returns a copy of the current session, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// DID returns the authenticated repository DID or an empty string.
func (c *Client) DID() string {
	s, _ := c.Session()
	return s.DID
}

// CreateSession logs in and stores the session on the client.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	body, err := marshalBody(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return nil, err
	}
	var session Session
	err = c.do(ctx, xrpcRequest{
		method:      http.MethodPost,
		host:        c.host,
		nsid:        "com.atproto.server.createSession",
		body:        body,
		contentType: "application/json",
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if session.AccessJwt == "" || session.DID == "" {
		return nil, errors.New("create session: response missing did or access token")
	}
	c.mu.Lock()
	c.session = &session
	c.mu.Unlock()
	c.logger.Debug("session created", logging.String("did", session.DID), logging.String("handle", session.Handle))
	return &session, nil
}

func (c *Client) refreshSession(ctx context.Context, stale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrUnauthorized
	}
	if c.session.AccessJwt != stale {
		// Another caller already refreshed.
		return nil
	}
	var refreshed Session
	err := c.do(ctx, xrpcRequest{
		method: http.MethodPost,
		host:   c.host,
		nsid:   "com.atproto.server.refreshSession",
		token:  c.session.RefreshJwt,
	}, &refreshed)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if refreshed.DID == "" {
		refreshed.DID = c.session.DID
	}
	c.session = &refreshed
	c.logger.Debug("session refreshed", logging.String("did", refreshed.DID))
	return nil
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessJwt
}

// call runs an XRPC request with the session token attached, refreshing the
// session once if the server reports the token expired.
func (c *Client) call(ctx context.Context, r xrpcRequest, out any) error {
	r.host = c.host
	r.token = c.accessToken()
	err := c.do(ctx, r, out)
	if err == nil || r.token == "" || !errors.Is(err, ErrExpiredToken) {
		return err
	}
	if rerr := c.refreshSession(ctx, r.token); rerr != nil {
		return errors.Join(err, rerr)
	}
	r.token = c.accessToken()
	return c.do(ctx, r, out)
}

func (c *Client) requireDID() (string, error) {
	did := c.DID()
	if did == "" {
		return "", fmt.Errorf("%w: no session", ErrUnauthorized)
	}
	return did, nil
}
