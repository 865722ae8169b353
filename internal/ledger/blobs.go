package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dreary/internal/atproto"
)

// LookupBlob returns a previously uploaded blob for the account and content
// hash, or nil when the content has not been uploaded.
func (s *Store) LookupBlob(ctx context.Context, did, sha string) (*atproto.Blob, error) {
	var blob atproto.Blob
	err := s.db.QueryRowContext(ctx,
		`SELECT cid, mime_type, size FROM blobs WHERE did = ? AND sha256 = ?`, did, sha,
	).Scan(&blob.Ref.Link, &blob.MimeType, &blob.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}
	blob.Type = "blob"
	return &blob, nil
}

// StoreBlob remembers an uploaded blob.
func (s *Store) StoreBlob(ctx context.Context, did, sha string, blob *atproto.Blob) error {
	if blob == nil {
		return errors.New("blob is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (did, sha256, cid, mime_type, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(did, sha256) DO UPDATE SET cid = excluded.cid, mime_type = excluded.mime_type,
             size = excluded.size, uploaded_at = excluded.uploaded_at`,
		did, sha, blob.CID(), blob.MimeType, blob.Size, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store blob: %w", err)
	}
	return nil
}

// ForgetBlobs drops every cached blob for an account.
func (s *Store) ForgetBlobs(ctx context.Context, did string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE did = ?`, did)
	if err != nil {
		return 0, fmt.Errorf("forget blobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// BlobCount returns the number of cached blobs for an account.
func (s *Store) BlobCount(ctx context.Context, did string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM blobs WHERE did = ?`, did).Scan(&n); err != nil {
		return 0, fmt.Errorf("count blobs: %w", err)
	}
	return n, nil
}
