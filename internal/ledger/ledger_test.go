package ledger_test

import (
	"context"
	"errors"
	"testing"

	"dreary/internal/atproto"
	"dreary/internal/ledger"
	"dreary/internal/services"
	"dreary/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	first, err := store.BeginRun(ctx, "discord", "export.json", "did:plc:a")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if first.ID == "" || first.Status != ledger.RunRunning {
		t.Fatalf("unexpected run %+v", first)
	}
	if err := store.FinishRun(ctx, first.ID, 5, 2, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	second, err := store.BeginRun(ctx, "tunes", "https://example.bandcamp.com/album/x", "did:plc:a")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, second.ID, 0, 0, errors.New("boom")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != ledger.RunSucceeded || got.Created != 5 || got.Skipped != 2 || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected finished run %+v", got)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs[0].Status != ledger.RunFailed || runs[0].Error != "boom" {
		t.Fatalf("expected failed run, got %+v", runs[0])
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one run, got %d (%v)", len(limited), err)
	}

	if err := store.FinishRun(ctx, "missing", 0, 0, nil); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if missing, err := store.GetRun(ctx, "missing"); err != nil || missing != nil {
		t.Fatalf("expected nil miss, got %v, %v", missing, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.BeginRun(context.Background(), "renpy", "game", "did:plc:a"); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	_ = store.Close()

	reopened := testsupport.MustOpenLedger(t, cfg)
	runs, err := reopened.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected persisted run, got %d (%v)", len(runs), err)
	}
}

func TestBlobCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if blob, err := store.LookupBlob(ctx, "did:plc:a", "abc"); err != nil || blob != nil {
		t.Fatalf("expected miss, got %v, %v", blob, err)
	}
	blob := &atproto.Blob{Type: "blob", Ref: atproto.BlobRef{Link: "bafkrei1"}, MimeType: "image/png", Size: 10}
	if err := store.StoreBlob(ctx, "did:plc:a", "abc", blob); err != nil {
		t.Fatalf("StoreBlob: %v", err)
	}
	got, err := store.LookupBlob(ctx, "did:plc:a", "abc")
	if err != nil || got == nil {
		t.Fatalf("LookupBlob: %v", err)
	}
	if *got != *blob {
		t.Fatalf("expected %+v, got %+v", blob, got)
	}
	if other, _ := store.LookupBlob(ctx, "did:plc:b", "abc"); other != nil {
		t.Fatal("cache must be scoped per account")
	}
	if n, err := store.ForgetBlobs(ctx, "did:plc:a"); err != nil || n != 1 {
		t.Fatalf("ForgetBlobs: %d, %v", n, err)
	}
}

func TestUploaderReusesCachedBlobs(t *testing.T) {
	pds := testsupport.NewPDS(t)
	cfg := testsupport.NewConfig(t, testsupport.WithPDS(pds))
	client, err := atproto.Login(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	store := testsupport.MustOpenLedger(t, cfg)
	uploader := ledger.NewUploader(client, store, nil)

	first, err := uploader.Upload(context.Background(), testsupport.PNG, "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	second, err := uploader.Upload(context.Background(), testsupport.PNG, "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if first.CID() != second.CID() {
		t.Fatalf("expected same cid, got %s and %s", first.CID(), second.CID())
	}
	if got := pds.Calls("com.atproto.repo.uploadBlob"); got != 1 {
		t.Fatalf("expected one upload, got %d", got)
	}

	uncached := ledger.NewUploader(client, nil, nil)
	if _, err := uncached.Upload(context.Background(), testsupport.PNG, ""); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := pds.Calls("com.atproto.repo.uploadBlob"); got != 2 {
		t.Fatalf("expected uncached upload, got %d calls", got)
	}
}

func TestLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := ledger.Lock(dir, "did:plc:a")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer first.Release()

	_, err = ledger.Lock(dir, "did:plc:a")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	other, err := ledger.Lock(dir, "did:plc:b")
	if err != nil {
		t.Fatalf("Lock other account: %v", err)
	}
	_ = other.Release()

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := ledger.Lock(dir, "did:plc:a")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	_ = again.Release()
}
