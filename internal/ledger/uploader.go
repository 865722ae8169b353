package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"dreary/internal/atproto"
	"dreary/internal/logging"
)

// BlobUploader uploads binary content to a repository.
type BlobUploader interface {
	DID() string
	UploadBlob(ctx context.Context, data []byte, mimeType string) (*atproto.Blob, error)
}

// Uploader uploads blobs, reusing earlier uploads of identical content when a
// store is attached.
type Uploader struct {
	client BlobUploader
	store  *Store
	logger *slog.Logger
}

// NewUploader wraps client. A nil store disables caching.
func NewUploader(client BlobUploader, store *Store, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{client: client, store: store, logger: logging.NewComponentLogger(logger, "blobs")}
}

// Upload uploads data with mimeType; an empty mimeType is sniffed.
func (u *Uploader) Upload(ctx context.Context, data []byte, mimeType string) (*atproto.Blob, error) {
	if mimeType == "" {
		mimeType = atproto.DetectMIME(data)
	}
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])
	did := u.client.DID()

	if u.store != nil {
		cached, err := u.store.LookupBlob(ctx, did, sha)
		if err != nil {
			return nil, err
		}
		if cached != nil && cached.MimeType == mimeType {
			u.logger.Debug("blob cache hit", logging.String("cid", cached.CID()))
			return cached, nil
		}
	}

	blob, err := u.client.UploadBlob(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	if u.store != nil {
		if err := u.store.StoreBlob(ctx, did, sha, blob); err != nil {
			logging.WarnWithContext(u.logger, "blob cache write failed", "blob_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "identical content will be uploaded again next run"))
		}
	}
	return blob, nil
}

// UploadFile uploads a file, sniffing its MIME type from content.
func (u *Uploader) UploadFile(ctx context.Context, path string) (*atproto.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return u.Upload(ctx, data, "")
}

// UploadFileAs uploads a file with an explicit MIME type.
func (u *Uploader) UploadFileAs(ctx context.Context, path, mimeType string) (*atproto.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return u.Upload(ctx, data, mimeType)
}
