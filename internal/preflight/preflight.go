package preflight

import (
	"context"

	"dreary/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every applicable check for the given config. Account checks
// are skipped when no handle is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Paths.ScratchDir != "" {
		results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	}

	if cfg.Account.Handle != "" {
		account, host := CheckAccount(ctx, cfg)
		results = append(results, account)
		if host != "" {
			results = append(results, CheckPDS(ctx, host))
		}
	} else {
		results = append(results, Result{Name: "Account", Detail: "account.handle not configured"})
	}

	results = append(results, CheckBinary("yt-dlp", cfg.YouTube.YtDlpBinary, "Required for YouTube playlists", true))
	results = append(results, CheckSpotify(cfg))

	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
