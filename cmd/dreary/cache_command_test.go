package main

import (
	"testing"
)

func TestCacheStatsAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.BlobCache.Enabled = true
	writeTestConfig(t, env.configPath, env.cfg)

	path := writeDiscordExport(t, t.TempDir())
	if _, _, err := runCLI(t, []string{"discord", "import", path}, env.configPath, ""); err != nil {
		t.Fatalf("discord import: %v", err)
	}

	out, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath, "")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Account: "+env.pds.DID)
	// Icon and avatar share content, so one upload is remembered.
	requireContains(t, out, "Cached blobs: 1")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath, "")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Forgot 1 cached blobs")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath, "")
	if err != nil {
		t.Fatalf("second cache clear: %v", err)
	}
	requireContains(t, out, "No cached blobs to forget")
}

func TestCacheStatsWarnsWhenDisabled(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath, "")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Blob cache is disabled")
	requireContains(t, out, "Cached blobs: 0")
}
