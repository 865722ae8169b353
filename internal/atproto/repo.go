package atproto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"dreary/internal/logging"
)

const listRecordsPageSize = 100

// Record is a stored repository record.
type Record struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid"`
	Value json.RawMessage `json:"value"`
}

// Decode unmarshals the record value into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("decode record %s: %w", r.URI, err)
	}
	return nil
}

// RKey returns the record key of the record URI, or an empty string when the
// URI is malformed.
func (r Record) RKey() string {
	parsed, err := ParseURI(r.URI)
	if err != nil {
		return ""
	}
	return parsed.RKey
}

// CreateRecord writes a record to the session repository and returns its URI.
// An empty rkey lets the server assign a TID. An empty collection is taken
// from the record's $type.
func (c *Client) CreateRecord(ctx context.Context, collection, rkey string, record any) (string, error) {
	did, err := c.requireDID()
	if err != nil {
		return "", err
	}
	if collection == "" {
		collection = recordType(record)
	}
	if collection == "" {
		return "", errors.New("create record: collection required")
	}
	payload := map[string]any{
		"repo":       did,
		"collection": collection,
		"record":     record,
	}
	if rkey != "" {
		payload["rkey"] = rkey
	}
	body, err := marshalBody(payload)
	if err != nil {
		return "", err
	}
	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	err = c.call(ctx, xrpcRequest{
		method:      http.MethodPost,
		nsid:        "com.atproto.repo.createRecord",
		body:        body,
		contentType: "application/json",
	}, &out)
	if err != nil {
		return "", fmt.Errorf("create %s record: %w", collection, err)
	}
	c.logger.Debug("record created",
		logging.String(logging.FieldCollection, collection),
		logging.String(logging.FieldURI, out.URI))
	return out.URI, nil
}

// GetRecord fetches a single record. Misses match ErrRecordNotFound.
func (c *Client) GetRecord(ctx context.Context, repo, collection, rkey string) (*Record, error) {
	var rec Record
	err := c.call(ctx, xrpcRequest{
		method: http.MethodGet,
		nsid:   "com.atproto.repo.getRecord",
		params: url.Values{
			"repo":       {repo},
			"collection": {collection},
			"rkey":       {rkey},
		},
	}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindRecord is GetRecord that reports a miss as (nil, nil).
func (c *Client) FindRecord(ctx context.Context, repo, collection, rkey string) (*Record, error) {
	rec, err := c.GetRecord(ctx, repo, collection, rkey)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListRecords walks every page of a collection and calls fn for each record.
func (c *Client) ListRecords(ctx context.Context, repo, collection string, fn func(Record) error) error {
	params := url.Values{
		"repo":       {repo},
		"collection": {collection},
		"limit":      {strconv.Itoa(listRecordsPageSize)},
	}
	for {
		var page struct {
			Cursor  string   `json:"cursor"`
			Records []Record `json:"records"`
		}
		err := c.call(ctx, xrpcRequest{
			method: http.MethodGet,
			nsid:   "com.atproto.repo.listRecords",
			params: params,
		}, &page)
		if err != nil {
			return fmt.Errorf("list %s records: %w", collection, err)
		}
		for _, rec := range page.Records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		if page.Cursor == "" || len(page.Records) == 0 {
			return nil
		}
		params.Set("cursor", page.Cursor)
	}
}

// ListAllRecords collects every record of a collection.
func (c *Client) ListAllRecords(ctx context.Context, repo, collection string) ([]Record, error) {
	var out []Record
	err := c.ListRecords(ctx, repo, collection, func(rec Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("records listed",
		logging.String(logging.FieldCollection, collection),
		logging.Int(logging.FieldCount, len(out)))
	return out, nil
}

// IndexByRKey lists a collection and maps record keys to URIs.
func (c *Client) IndexByRKey(ctx context.Context, repo, collection string) (map[string]string, error) {
	index := make(map[string]string)
	err := c.ListRecords(ctx, repo, collection, func(rec Record) error {
		if key := rec.RKey(); key != "" {
			index[key] = rec.URI
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// recordType reads the $type of a record value, if it carries one.
func recordType(record any) string {
	switch v := record.(type) {
	case map[string]any:
		s, _ := v["$type"].(string)
		return s
	case interface{ RecordType() string }:
		return v.RecordType()
	}
	return ""
}
