package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"dreary/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Account holds the repository owner's login.
type Account struct {
	Handle   string `toml:"handle"`
	Password string `toml:"password"`
	// Service overrides the PDS endpoint discovered from the DID document.
	Service string `toml:"service"`
}

// ATProto contains XRPC endpoint and request settings.
type ATProto struct {
	ResolverURL    string `toml:"resolver_url"`
	PLCDirectory   string `toml:"plc_directory"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	BatchSize      int    `toml:"batch_size"`
	UserAgent      string `toml:"user_agent"`
}

// Paths contains local directories.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	ScratchDir string `toml:"scratch_dir"`
}

// Spotify contains Web API client credentials.
type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	AccountsURL  string `toml:"accounts_url"`
	APIURL       string `toml:"api_url"`
}

// SoundCloud contains api-v2 settings. An empty client ID is scraped from the
// public site on first use.
type SoundCloud struct {
	ClientID string `toml:"client_id"`
	APIURL   string `toml:"api_url"`
	SiteURL  string `toml:"site_url"`
}

// YouTube configures the yt-dlp extractor.
type YouTube struct {
	YtDlpBinary string `toml:"ytdlp_binary"`
}

// RenPy contains project upload settings.
type RenPy struct {
	UploadConcurrency int    `toml:"upload_concurrency"`
	ViewerURL         string `toml:"viewer_url"`
}

// BlobCache toggles the local blob upload cache.
type BlobCache struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dreary.
//
// Configuration sections:
//   - Account: handle, password, optional PDS override
//   - ATProto: resolver and PLC endpoints, timeouts, applyWrites batch size
//   - Paths: ledger/log state directory and scratch space
//   - Spotify, SoundCloud, YouTube: playlist source settings
//   - RenPy: asset upload concurrency and viewer links
//   - BlobCache: skip re-uploading identical files
//   - Logging: log format and level
type Config struct {
	Account    Account    `toml:"account"`
	ATProto    ATProto    `toml:"atproto"`
	Paths      Paths      `toml:"paths"`
	Spotify    Spotify    `toml:"spotify"`
	SoundCloud SoundCloud `toml:"soundcloud"`
	YouTube    YouTube    `toml:"youtube"`
	RenPy      RenPy      `toml:"renpy"`
	BlobCache  BlobCache  `toml:"blob_cache"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(newEnvSource()); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dreary.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory and its log subdirectory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, filepath.Join(c.Paths.StateDir, "logs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ScratchDir) != "" {
		if err := os.MkdirAll(c.Paths.ScratchDir, 0o755); err != nil {
			return fmt.Errorf("create scratch directory %q: %w", c.Paths.ScratchDir, err)
		}
	}
	return nil
}

// RequireCredentials reports a configuration error when the account handle or
// password is missing. Commands that talk to a PDS call this before logging in.
func (c *Config) RequireCredentials() error {
	var missing []string
	if strings.TrimSpace(c.Account.Handle) == "" {
		missing = append(missing, "account.handle")
	}
	if c.Account.Password == "" {
		missing = append(missing, "account.password")
	}
	if len(missing) == 0 {
		return nil
	}
	path, err := DefaultConfigPath()
	if err != nil {
		path = defaultConfigPath
	}
	return services.Wrap(services.ErrConfiguration, "config", "credentials",
		fmt.Sprintf("%s required; set DREARY_HANDLE/DREARY_PASSWORD or edit %s (create with 'dreary config init')", strings.Join(missing, " and "), path), nil)
}

// RequireSpotify reports a configuration error when Spotify credentials are missing.
func (c *Config) RequireSpotify() error {
	if c.Spotify.ClientID != "" && c.Spotify.ClientSecret != "" {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "config", "spotify",
		"spotify.client_id and spotify.client_secret required; set SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", nil)
}

// LedgerPath returns the SQLite ledger location inside the state directory.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "dreary")
	}
	return "~/.local/share/dreary"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	// The sample may hold a password once edited.
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
