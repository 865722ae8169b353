package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked
// separately by RequireCredentials so offline commands keep working.
func (c *Config) Validate() error {
	if err := c.validateATProto(); err != nil {
		return err
	}
	if err := c.validateAccount(); err != nil {
		return err
	}
	if err := c.validateRenPy(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateATProto() error {
	for name, value := range map[string]string{
		"atproto.resolver_url":  c.ATProto.ResolverURL,
		"atproto.plc_directory": c.ATProto.PLCDirectory,
	} {
		if err := validateHTTPURL(name, value); err != nil {
			return err
		}
	}
	if c.ATProto.BatchSize < 1 || c.ATProto.BatchSize > maxBatchSize {
		return fmt.Errorf("atproto.batch_size must be between 1 and %d", maxBatchSize)
	}
	return nil
}

func (c *Config) validateAccount() error {
	if c.Account.Service == "" {
		return nil
	}
	return validateHTTPURL("account.service", c.Account.Service)
}

func (c *Config) validateRenPy() error {
	if c.RenPy.UploadConcurrency > 32 {
		return errors.New("renpy.upload_concurrency must be 32 or less")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(name, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, value)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("%s is missing a host", name)
	}
	return nil
}
