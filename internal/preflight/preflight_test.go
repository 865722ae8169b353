package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dreary/internal/preflight"
	"dreary/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckPDS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xrpc/com.atproto.server.describeServer" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := preflight.CheckPDS(context.Background(), srv.URL+"/"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := preflight.CheckPDS(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckPDS_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if result := preflight.CheckPDS(context.Background(), url); result.Passed {
		t.Fatal("expected failure for closed server")
	}
}

func TestRunAllAgainstFakePDS(t *testing.T) {
	pds := testsupport.NewPDS(t)
	cfg := testsupport.NewConfig(t, testsupport.WithPDS(pds))
	cfg.YouTube.YtDlpBinary = "clearly-not-present-binary"

	results := preflight.RunAll(context.Background(), cfg)
	byName := make(map[string]preflight.Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"State directory", "Scratch directory", "Account", "PDS"} {
		if !byName[name].Passed {
			t.Fatalf("expected %s to pass, got %q", name, byName[name].Detail)
		}
	}
	if byName["yt-dlp"].Passed || !byName["yt-dlp"].Optional {
		t.Fatalf("expected optional yt-dlp failure, got %+v", byName["yt-dlp"])
	}
	if preflight.Failed(results) {
		t.Fatal("optional failures must not fail the run")
	}
}

func TestRunAllWithoutHandle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Account.Handle = ""
	results := preflight.RunAll(context.Background(), cfg)
	if !preflight.Failed(results) {
		t.Fatal("expected missing handle to fail")
	}
}
