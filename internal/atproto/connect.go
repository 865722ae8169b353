package atproto

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"dreary/internal/config"
	"dreary/internal/logging"
	"dreary/internal/services"
)

// Login resolves the configured account to its PDS and opens a session
// authenticated with the account DID.
func Login(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	opts = append(baseOptions(cfg, logger), opts...)
	resolver := NewResolver(cfg.ATProto.ResolverURL, cfg.ATProto.PLCDirectory, opts...)

	did, err := resolver.ResolveHandle(ctx, cfg.Account.Handle)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "atproto", "resolve handle", "Could not resolve account handle", err)
	}
	host := cfg.Account.Service
	if host == "" {
		host, err = resolver.ResolveService(ctx, did)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "atproto", "resolve service", "Could not find the account PDS", err)
		}
	}
	client, err := NewClient(host, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := client.CreateSession(ctx, did, cfg.Account.Password); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "atproto", "create session", "Login failed", err)
	}
	if logger != nil {
		logger.Info("authenticated",
			logging.String("did", did),
			logging.String("pds", host))
	}
	return client, nil
}

// ConnectRepo returns an unauthenticated client for the PDS hosting did, for
// reading public records and blobs.
func ConnectRepo(ctx context.Context, cfg *config.Config, logger *slog.Logger, did string, opts ...Option) (*Client, error) {
	opts = append(baseOptions(cfg, logger), opts...)
	resolver := NewResolver(cfg.ATProto.ResolverURL, cfg.ATProto.PLCDirectory, opts...)
	host, err := resolver.ResolveService(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("locate repository %s: %w", did, err)
	}
	return NewClient(host, opts...)
}

// NewResolverFromConfig builds a resolver honoring the configured endpoints.
func NewResolverFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Resolver {
	opts = append(baseOptions(cfg, logger), opts...)
	return NewResolver(cfg.ATProto.ResolverURL, cfg.ATProto.PLCDirectory, opts...)
}

func baseOptions(cfg *config.Config, logger *slog.Logger) []Option {
	timeout := time.Duration(cfg.ATProto.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return []Option{
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithUserAgent(cfg.ATProto.UserAgent),
		WithLogger(logger),
	}
}
