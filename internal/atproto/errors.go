package atproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrRecordNotFound matches getRecord misses.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnauthorized matches rejected or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExpiredToken matches an access token the server no longer accepts.
	ErrExpiredToken = errors.New("expired token")
)

// Error is a non-2xx XRPC response.
type Error struct {
	NSID    string `json:"-"`
	Status  int    `json:"-"`
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.NSID)
	b.WriteString(" returned ")
	fmt.Fprintf(&b, "%d", e.Status)
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Name)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is lets callers match XRPC failures against the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRecordNotFound:
		return e.Name == "RecordNotFound" || e.Status == http.StatusNotFound
	case ErrExpiredToken:
		return e.Name == "ExpiredToken"
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Name == "AuthRequired" ||
			e.Name == "InvalidToken" || e.Name == "AuthenticationRequired"
	default:
		return false
	}
}

func decodeError(nsid string, resp *http.Response) error {
	xerr := &Error{NSID: nsid, Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(body) > 0 {
		if json.Unmarshal(body, xerr) != nil {
			xerr.Message = strings.TrimSpace(string(body))
		}
	}
	return xerr
}
