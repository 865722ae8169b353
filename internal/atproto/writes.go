package atproto

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	// MaxWritesPerBatch is the server limit for a single applyWrites call.
	MaxWritesPerBatch = 200

	writeCreate = "com.atproto.repo.applyWrites#create"
	writeUpdate = "com.atproto.repo.applyWrites#update"
	writeDelete = "com.atproto.repo.applyWrites#delete"
)

// Write is one operation of an applyWrites call.
type Write struct {
	Type       string `json:"$type"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey,omitempty"`
	Value      any    `json:"value,omitempty"`
}

// Create builds a create write with a server-assigned record key.
func Create(collection string, value any) Write {
	return Write{Type: writeCreate, Collection: collection, Value: value}
}

// Update builds an update write replacing the record at rkey.
func Update(collection, rkey string, value any) Write {
	return Write{Type: writeUpdate, Collection: collection, RKey: rkey, Value: value}
}

// Delete builds a delete write.
func Delete(collection, rkey string) Write {
	return Write{Type: writeDelete, Collection: collection, RKey: rkey}
}

// WriteResult is one entry of the applyWrites results array. URI is empty for
// deletes.
type WriteResult struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
	CID  string `json:"cid"`
}

// IsCreate reports whether the result belongs to a create write.
func (r WriteResult) IsCreate() bool {
	return strings.HasSuffix(r.Type, "#createResult")
}

// ApplyWrites submits writes in a single call. Callers are responsible for
// keeping len(writes) within MaxWritesPerBatch.
func (c *Client) ApplyWrites(ctx context.Context, writes []Write) ([]WriteResult, error) {
	did, err := c.requireDID()
	if err != nil {
		return nil, err
	}
	if len(writes) == 0 {
		return nil, nil
	}
	body, err := marshalBody(map[string]any{
		"repo":   did,
		"writes": writes,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Results []WriteResult `json:"results"`
	}
	err = c.call(ctx, xrpcRequest{
		method:      http.MethodPost,
		nsid:        "com.atproto.repo.applyWrites",
		body:        body,
		contentType: "application/json",
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("apply %d writes: %w", len(writes), err)
	}
	return out.Results, nil
}

// BatchProgress is called after each applyWrites chunk completes.
type BatchProgress func(done, total int)

// ApplyWritesBatched splits writes into chunks of at most size (clamped to
// MaxWritesPerBatch) and applies them in order. Results are concatenated in
// submission order.
func (c *Client) ApplyWritesBatched(ctx context.Context, writes []Write, size int, progress BatchProgress) ([]WriteResult, error) {
	if len(writes) == 0 {
		return nil, nil
	}
	batches := Chunk(writes, size)
	results := make([]WriteResult, 0, len(writes))
	for i, batch := range batches {
		res, err := c.ApplyWrites(ctx, batch)
		if err != nil {
			return results, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		results = append(results, res...)
		if progress != nil {
			progress(i+1, len(batches))
		}
	}
	return results, nil
}

// CreatedURIs returns the URIs of create results in order.
func CreatedURIs(results []WriteResult) []string {
	uris := make([]string, 0, len(results))
	for _, res := range results {
		if res.IsCreate() && res.URI != "" {
			uris = append(uris, res.URI)
		}
	}
	return uris
}

// Chunk splits items into consecutive slices of at most size elements. A size
// outside 1..MaxWritesPerBatch is treated as MaxWritesPerBatch.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || size > MaxWritesPerBatch {
		size = MaxWritesPerBatch
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
