package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dreary/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Account.Handle = "alice.test"
	cfgVal.Account.Password = "hunter2"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.ATProto.TimeoutSeconds = 5
	cfgVal.BlobCache.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPDS points the resolver, PLC directory, and account service at a fake PDS.
func WithPDS(pds *PDS) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ATProto.ResolverURL = pds.URL()
		b.cfg.ATProto.PLCDirectory = pds.URL()
		b.cfg.Account.Handle = pds.Handle
		b.cfg.Account.Password = pds.Password
	}
}

// WithBatchSize overrides the applyWrites chunk size.
func WithBatchSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ATProto.BatchSize = size
	}
}

// WithStubbedYtDlp writes a shell script that prints output and points the
// youtube extractor at it.
func WithStubbedYtDlp(output string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		payload := filepath.Join(binDir, "yt-dlp.json")
		if err := os.WriteFile(payload, []byte(output), 0o644); err != nil {
			b.t.Fatalf("write stub payload: %v", err)
		}
		target := filepath.Join(binDir, "yt-dlp")
		script := []byte("#!/bin/sh\ncat '" + payload + "'\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub yt-dlp: %v", err)
		}
		b.cfg.YouTube.YtDlpBinary = target
	}
}
