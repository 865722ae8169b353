package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envSource resolves credential fallbacks from the process environment first
// and then from a .env file in the working directory.
type envSource struct {
	dotenv map[string]string
}

func newEnvSource() envSource {
	values, err := godotenv.Read(".env")
	if err != nil {
		values = nil
	}
	return envSource{dotenv: values}
}

func (e envSource) lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	for _, key := range keys {
		if value, ok := e.dotenv[key]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func (c *Config) normalize(env envSource) error {
	c.normalizeAccount(env)
	c.normalizeATProto()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources(env)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeAccount(env envSource) {
	c.Account.Handle = strings.TrimSpace(c.Account.Handle)
	if c.Account.Handle == "" {
		if value, ok := env.lookup("DREARY_HANDLE", "HANDLE"); ok {
			c.Account.Handle = value
		}
	}
	c.Account.Handle = strings.TrimPrefix(c.Account.Handle, "@")
	if c.Account.Password == "" {
		if value, ok := env.lookup("DREARY_PASSWORD", "PASSWORD"); ok {
			c.Account.Password = value
		}
	}
	c.Account.Service = strings.TrimRight(strings.TrimSpace(c.Account.Service), "/")
}

func (c *Config) normalizeATProto() {
	c.ATProto.ResolverURL = strings.TrimRight(strings.TrimSpace(c.ATProto.ResolverURL), "/")
	if c.ATProto.ResolverURL == "" {
		c.ATProto.ResolverURL = defaultResolverURL
	}
	c.ATProto.PLCDirectory = strings.TrimRight(strings.TrimSpace(c.ATProto.PLCDirectory), "/")
	if c.ATProto.PLCDirectory == "" {
		c.ATProto.PLCDirectory = defaultPLCDirectory
	}
	if c.ATProto.TimeoutSeconds <= 0 {
		c.ATProto.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.ATProto.BatchSize == 0 {
		c.ATProto.BatchSize = defaultBatchSize
	}
	c.ATProto.UserAgent = strings.TrimSpace(c.ATProto.UserAgent)
	if c.ATProto.UserAgent == "" {
		c.ATProto.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(strings.TrimSpace(c.Paths.ScratchDir)); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources(env envSource) {
	c.Spotify.ClientID = strings.TrimSpace(c.Spotify.ClientID)
	if c.Spotify.ClientID == "" {
		if value, ok := env.lookup("SPOTIFY_CLIENT_ID", "CLIENT_ID"); ok {
			c.Spotify.ClientID = value
		}
	}
	c.Spotify.ClientSecret = strings.TrimSpace(c.Spotify.ClientSecret)
	if c.Spotify.ClientSecret == "" {
		if value, ok := env.lookup("SPOTIFY_CLIENT_SECRET", "CLIENT_SECRET"); ok {
			c.Spotify.ClientSecret = value
		}
	}
	c.Spotify.AccountsURL = trimOrDefault(c.Spotify.AccountsURL, defaultSpotifyAccounts)
	c.Spotify.APIURL = trimOrDefault(c.Spotify.APIURL, defaultSpotifyAPI)

	c.SoundCloud.ClientID = strings.TrimSpace(c.SoundCloud.ClientID)
	if c.SoundCloud.ClientID == "" {
		if value, ok := env.lookup("SOUNDCLOUD_CLIENT_ID"); ok {
			c.SoundCloud.ClientID = value
		}
	}
	c.SoundCloud.APIURL = trimOrDefault(c.SoundCloud.APIURL, defaultSoundCloudAPI)
	c.SoundCloud.SiteURL = trimOrDefault(c.SoundCloud.SiteURL, defaultSoundCloudSite)

	c.YouTube.YtDlpBinary = strings.TrimSpace(c.YouTube.YtDlpBinary)
	if c.YouTube.YtDlpBinary == "" {
		c.YouTube.YtDlpBinary = defaultYtDlpBinary
	}

	if c.RenPy.UploadConcurrency <= 0 {
		c.RenPy.UploadConcurrency = defaultUploadConcurrency
	}
	c.RenPy.ViewerURL = trimOrDefault(c.RenPy.ViewerURL, defaultViewerURL)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimOrDefault(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}
