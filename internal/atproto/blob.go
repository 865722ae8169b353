package atproto

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Blob is a reference to uploaded binary content, embedded in records.
type Blob struct {
	Type     string  `json:"$type"`
	Ref      BlobRef `json:"ref"`
	MimeType string  `json:"mimeType"`
	Size     int64   `json:"size"`
}

// BlobRef is the CID link of a blob.
type BlobRef struct {
	Link string `json:"$link"`
}

// CID returns the content identifier of the blob.
func (b Blob) CID() string {
	return b.Ref.Link
}

// IsImage reports whether the blob carries an image MIME type.
func (b Blob) IsImage() bool {
	return strings.HasPrefix(b.MimeType, "image/")
}

// UploadBlob uploads raw bytes with the given MIME type.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*Blob, error) {
	if _, err := c.requireDID(); err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	var out struct {
		Blob Blob `json:"blob"`
	}
	err := c.call(ctx, xrpcRequest{
		method:      http.MethodPost,
		nsid:        "com.atproto.repo.uploadBlob",
		body:        data,
		contentType: mimeType,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("upload blob (%s, %d bytes): %w", mimeType, len(data), err)
	}
	if out.Blob.Type == "" {
		out.Blob.Type = "blob"
	}
	return &out.Blob, nil
}

// UploadBlobFile uploads a file, sniffing its MIME type from content.
func (c *Client) UploadBlobFile(ctx context.Context, path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob file: %w", err)
	}
	return c.UploadBlob(ctx, data, DetectMIME(data))
}

// DetectMIME sniffs a MIME type from content, without parameters.
func DetectMIME(data []byte) string {
	detected := mimetype.Detect(data).String()
	if base, _, err := mime.ParseMediaType(detected); err == nil {
		return base
	}
	return detected
}

// GetBlob streams a blob from the repository of did into w. The call is
// unauthenticated so blobs can be read from any PDS.
func (c *Client) GetBlob(ctx context.Context, did, cid string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, xrpcRequest{
		method: http.MethodGet,
		host:   c.host,
		nsid:   "com.atproto.sync.getBlob",
		params: url.Values{"did": {did}, "cid": {cid}},
	})
	if err != nil {
		return 0, fmt.Errorf("get blob %s: %w", cid, err)
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read blob %s: %w", cid, err)
	}
	return n, nil
}
