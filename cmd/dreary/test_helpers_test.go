package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dreary/internal/config"
	"dreary/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	pds        *testsupport.PDS
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("DREARY_HANDLE", "")
	t.Setenv("DREARY_PASSWORD", "")

	pds := testsupport.NewPDS(t)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithPDS(pds)}, opts...)...)
	if cfg.YouTube.YtDlpBinary == config.Default().YouTube.YtDlpBinary {
		cfg.YouTube.YtDlpBinary = filepath.Join(base, "missing-yt-dlp")
	}

	configPath := filepath.Join(homeDir, ".config", "dreary", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		pds:        pds,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeDiscordExport(t *testing.T, dir string) string {
	t.Helper()
	testsupport.WriteFile(t, filepath.Join(dir, "media", "icon.png"), testsupport.PNG)
	testsupport.WriteFile(t, filepath.Join(dir, "media", "avatar.png"), testsupport.PNG)
	export := map[string]any{
		"guild":   map[string]any{"id": "100", "name": "Test Guild", "iconUrl": "media/icon.png"},
		"channel": map[string]any{"id": "200", "type": "GuildTextChat", "categoryId": "300", "category": "Text", "name": "general"},
		"messages": []map[string]any{{
			"id": "1001", "type": "Default", "timestamp": "2024-01-02T03:04:05+00:00",
			"isPinned": false, "content": "hello",
			"author": map[string]any{"id": "42", "name": "alice", "discriminator": "0000", "isBot": false, "avatarUrl": "media/avatar.png"},
		}},
	}
	path := filepath.Join(dir, "export.json")
	testsupport.WriteJSON(t, path, export)
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
