package atproto

import (
	"fmt"
	"strings"
)

const uriScheme = "at://"

// URI is a parsed at://did/collection/rkey reference.
type URI struct {
	DID        string
	Collection string
	RKey       string
}

func (u URI) String() string {
	return ComposeURI(u.DID, u.Collection, u.RKey)
}

// ComposeURI joins the parts of a record URI.
func ComposeURI(did, collection, rkey string) string {
	return uriScheme + did + "/" + collection + "/" + rkey
}

// ParseURI splits a record URI. It requires exactly three non-empty segments.
func ParseURI(raw string) (URI, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, uriScheme) {
		return URI{}, fmt.Errorf("invalid at-uri %q: missing %s prefix", raw, uriScheme)
	}
	parts := strings.Split(strings.TrimPrefix(trimmed, uriScheme), "/")
	switch {
	case len(parts) < 3:
		return URI{}, fmt.Errorf("invalid at-uri %q: too few segments", raw)
	case len(parts) > 3:
		return URI{}, fmt.Errorf("invalid at-uri %q: too many segments", raw)
	}
	for _, part := range parts {
		if part == "" {
			return URI{}, fmt.Errorf("invalid at-uri %q: empty segment", raw)
		}
	}
	return URI{DID: parts[0], Collection: parts[1], RKey: parts[2]}, nil
}

// RKeyOf returns the record key of uri, or an empty string if it is malformed.
func RKeyOf(uri string) string {
	parsed, err := ParseURI(uri)
	if err != nil {
		return ""
	}
	return parsed.RKey
}
