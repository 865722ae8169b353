package renpy_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"dreary/internal/atproto"
	"dreary/internal/ledger"
	"dreary/internal/renpy"
	"dreary/internal/services"
	"dreary/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func writeGame(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "script.rpy"), []byte("label start:\n    \"Hello.\"\n    return\n"))
	testsupport.WriteFile(t, filepath.Join(root, "script.rpyc"), []byte{0x00, 0x01})
	testsupport.WriteFile(t, filepath.Join(root, "images", "bg.png"), testsupport.PNG)
	testsupport.WriteFile(t, filepath.Join(root, "audio", "theme.mp3"), []byte("ID3fake"))
	testsupport.WriteFile(t, filepath.Join(root, "fonts", "body.ttf"), []byte("font"))
	testsupport.WriteFile(t, filepath.Join(root, "cache", "bytecode.rpyb"), []byte("cache"))
	return root
}

func login(t *testing.T, pds *testsupport.PDS) *atproto.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPDS(pds))
	client, err := atproto.Login(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return client
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		want error
	}{
		{"My Novel", nil},
		{"", renpy.ErrEmptyName},
		{"bad[name", renpy.ErrNameBrackets},
		{"bad{name", renpy.ErrNameBrackets},
		{"a/b", renpy.ErrNameSeparators},
		{`a\b`, renpy.ErrNameSeparators},
		{"café", renpy.ErrNameNonASCII},
	}
	for _, tt := range tests {
		if got := renpy.ValidateName(tt.name); !errors.Is(got, tt.want) {
			t.Fatalf("ValidateName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	if _, ok := renpy.SafeJoin(root, "images/bg.png"); !ok {
		t.Fatal("expected nested path accepted")
	}
	for _, rel := range []string{"../escape.rpy", "images/../../escape", "/etc/passwd", "."} {
		if _, ok := renpy.SafeJoin(root, rel); ok {
			t.Fatalf("expected %q rejected", rel)
		}
	}
}

func TestUploadThenDownload(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	root := writeGame(t)

	up := renpy.NewUploader(client, ledger.NewUploader(client, nil, nil), 2, 3, nil)
	res, err := up.Upload(context.Background(), root, "Test Novel")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Assets != 4 || res.Skipped != 2 {
		t.Fatalf("unexpected upload result %+v", res)
	}
	if got := pds.Calls("com.atproto.repo.applyWrites"); got != 2 {
		t.Fatalf("expected batches of 2, got %d applyWrites calls", got)
	}
	assets := pds.Records(renpy.CollectionAsset)
	byPath := make(map[string]map[string]any, len(assets))
	for _, a := range assets {
		byPath[a.Value["path"].(string)] = a.Value
	}
	if byPath["script.rpy"]["contents"] == nil {
		t.Fatal("expected script contents inline")
	}
	file, ok := byPath["audio/theme.mp3"]["file"].(map[string]any)
	if !ok || file["mimeType"] != "audio/mpeg" {
		t.Fatalf("expected mp3 blob with audio/mpeg, got %v", byPath["audio/theme.mp3"])
	}

	// An unrelated project's asset must not be downloaded.
	pds.Put(renpy.CollectionAsset, "", map[string]any{"path": "other.rpy", "project": "at://did:plc:x/dev.dreary.renpy.project/y", "contents": "x"})
	// Unsafe paths are rejected.
	pds.Put(renpy.CollectionAsset, "", map[string]any{"path": "../../evil.rpy", "project": res.ProjectURI, "contents": "x"})

	dir := t.TempDir()
	down := renpy.NewDownloader(func(ctx context.Context, did string) (renpy.Reader, error) {
		return atproto.NewClient(pds.URL())
	}, nil)
	dres, err := down.Download(context.Background(), dir, res.ProjectURI)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dres.Written != 4 || dres.Rejected != 1 {
		t.Fatalf("unexpected download result %+v", dres)
	}
	gameDir := filepath.Join(dir, "Test Novel", "game")
	png, err := os.ReadFile(filepath.Join(gameDir, "images", "bg.png"))
	if err != nil || !bytes.Equal(png, testsupport.PNG) {
		t.Fatalf("png mismatch: %v", err)
	}
	script, err := os.ReadFile(filepath.Join(gameDir, "script.rpy"))
	if err != nil || len(script) == 0 {
		t.Fatalf("script missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(gameDir, "other.rpy")); !os.IsNotExist(err) {
		t.Fatal("asset from another project must not be downloaded")
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.rpy")); !os.IsNotExist(err) {
		t.Fatal("unsafe path must not be written")
	}

	again, err := down.Download(context.Background(), dir, res.ProjectURI)
	if err != nil {
		t.Fatalf("second Download: %v", err)
	}
	if again.Written != 0 || again.Existing != 4 {
		t.Fatalf("expected existing files skipped, got %+v", again)
	}
}

func TestUploadRejectsInvalidName(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	up := renpy.NewUploader(client, ledger.NewUploader(client, nil, nil), 200, 1, nil)
	_, err := up.Upload(context.Background(), writeGame(t), "bad/name")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(pds.Records(renpy.CollectionProject)) != 0 {
		t.Fatal("no project should be created for an invalid name")
	}
}

func TestUploadFailureStopsWorkers(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	pds.FailNext("com.atproto.repo.uploadBlob", 10)

	up := renpy.NewUploader(client, ledger.NewUploader(client, nil, nil), 200, 2, nil)
	if _, err := up.Upload(context.Background(), writeGame(t), "Broken"); err == nil {
		t.Fatal("expected upload failure")
	}
	if len(pds.Records(renpy.CollectionAsset)) != 0 {
		t.Fatal("no assets should be written when blob uploads fail")
	}
}

func TestDownloadRequiresProjectName(t *testing.T) {
	pds := testsupport.NewPDS(t)
	uri := pds.Put(renpy.CollectionProject, "", map[string]any{"createdAt": "2024-01-01T00:00:00.000Z"})
	down := renpy.NewDownloader(func(ctx context.Context, did string) (renpy.Reader, error) {
		return atproto.NewClient(pds.URL())
	}, nil)
	_, err := down.Download(context.Background(), t.TempDir(), uri)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
