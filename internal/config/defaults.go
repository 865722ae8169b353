package config

const (
	defaultConfigPath        = "~/.config/dreary/config.toml"
	defaultResolverURL       = "https://public.api.bsky.app"
	defaultPLCDirectory      = "https://plc.directory"
	defaultTimeoutSeconds    = 30
	defaultBatchSize         = 200
	maxBatchSize             = 200
	defaultUserAgent         = "dreary/dev"
	defaultSpotifyAccounts   = "https://accounts.spotify.com"
	defaultSpotifyAPI        = "https://api.spotify.com/v1"
	defaultSoundCloudAPI     = "https://api-v2.soundcloud.com"
	defaultSoundCloudSite    = "https://soundcloud.com"
	defaultYtDlpBinary       = "yt-dlp"
	defaultUploadConcurrency = 4
	defaultViewerURL         = "https://pdsls.dev"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		ATProto: ATProto{
			ResolverURL:    defaultResolverURL,
			PLCDirectory:   defaultPLCDirectory,
			TimeoutSeconds: defaultTimeoutSeconds,
			BatchSize:      defaultBatchSize,
			UserAgent:      defaultUserAgent,
		},
		Paths: Paths{
			StateDir: defaultStateDir(),
		},
		Spotify: Spotify{
			AccountsURL: defaultSpotifyAccounts,
			APIURL:      defaultSpotifyAPI,
		},
		SoundCloud: SoundCloud{
			APIURL:  defaultSoundCloudAPI,
			SiteURL: defaultSoundCloudSite,
		},
		YouTube: YouTube{
			YtDlpBinary: defaultYtDlpBinary,
		},
		RenPy: RenPy{
			UploadConcurrency: defaultUploadConcurrency,
			ViewerURL:         defaultViewerURL,
		},
		BlobCache: BlobCache{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
