package atproto_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"dreary/internal/atproto"
	"dreary/internal/testsupport"
)

func TestUploadBlobFileSniffsMIME(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)

	path := filepath.Join(t.TempDir(), "icon.bin")
	if err := os.WriteFile(path, testsupport.PNG, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	blob, err := client.UploadBlobFile(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadBlobFile: %v", err)
	}
	if blob.MimeType != "image/png" || !blob.IsImage() {
		t.Fatalf("expected image/png, got %q", blob.MimeType)
	}
	if blob.Size != int64(len(testsupport.PNG)) || blob.CID() == "" {
		t.Fatalf("unexpected blob %+v", blob)
	}

	var buf bytes.Buffer
	if _, err := client.GetBlob(context.Background(), pds.DID, blob.CID(), &buf); err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), testsupport.PNG) {
		t.Fatal("blob round trip mismatch")
	}
}

func TestDetectMIMEStripsParameters(t *testing.T) {
	if got := atproto.DetectMIME([]byte("label start:\n    return\n")); got != "text/plain" {
		t.Fatalf("expected text/plain, got %q", got)
	}
}

func TestGetBlobMissing(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client, err := atproto.NewClient(pds.URL())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.GetBlob(context.Background(), pds.DID, "bafkreimissing", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing blob")
	}
}
