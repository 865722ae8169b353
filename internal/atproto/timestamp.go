package atproto

import (
	"fmt"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t in UTC with millisecond precision and a Z suffix.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Now returns the current time as a record timestamp.
func Now() string {
	return Timestamp(time.Now())
}

// ConvertTimestampUTC reparses an RFC 3339 timestamp with any offset and
// renders it in UTC.
func ConvertTimestampUTC(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return Timestamp(t), nil
}
