package atproto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const pdsServiceType = "AtprotoPersonalDataServer"

// DIDDocument is the subset of a DID document the importers read.
type DIDDocument struct {
	ID          string       `json:"id"`
	AlsoKnownAs []string     `json:"alsoKnownAs"`
	Service     []DIDService `json:"service"`
}

// DIDService is one service entry of a DID document.
type DIDService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// ServiceEndpoint returns the PDS endpoint advertised by the document.
func (d *DIDDocument) ServiceEndpoint() (string, bool) {
	if d == nil {
		return "", false
	}
	for _, svc := range d.Service {
		if svc.Type == pdsServiceType && strings.TrimSpace(svc.ServiceEndpoint) != "" {
			return strings.TrimRight(svc.ServiceEndpoint, "/"), true
		}
	}
	return "", false
}

// Resolver resolves handles and DIDs through public, unauthenticated endpoints.
type Resolver struct {
	transport
	resolverURL string
	plcURL      string
}

// NewResolver creates a resolver using the given AppView and PLC directory.
func NewResolver(resolverURL, plcURL string, opts ...Option) *Resolver {
	return &Resolver{
		transport:   newTransport(opts),
		resolverURL: strings.TrimRight(strings.TrimSpace(resolverURL), "/"),
		plcURL:      strings.TrimRight(strings.TrimSpace(plcURL), "/"),
	}
}

// ResolveHandle returns the DID for a handle. DIDs pass through unchanged and a
// leading @ is ignored.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimSpace(handle)
	if strings.HasPrefix(handle, "did:") {
		return handle, nil
	}
	handle = strings.TrimPrefix(handle, "@")
	if handle == "" {
		return "", errors.New("handle must not be empty")
	}
	var out struct {
		DID string `json:"did"`
	}
	err := r.do(ctx, xrpcRequest{
		method: http.MethodGet,
		host:   r.resolverURL,
		nsid:   "com.atproto.identity.resolveHandle",
		params: url.Values{"handle": {handle}},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("resolve handle %s: %w", handle, err)
	}
	if out.DID == "" {
		return "", fmt.Errorf("resolve handle %s: empty did", handle)
	}
	return out.DID, nil
}

// ResolveDIDDocument fetches the DID document for did:plc or did:web identifiers.
func (r *Resolver) ResolveDIDDocument(ctx context.Context, did string) (*DIDDocument, error) {
	var docURL string
	switch {
	case strings.HasPrefix(did, "did:web:"):
		host, err := url.PathUnescape(strings.TrimPrefix(did, "did:web:"))
		if err != nil || host == "" {
			return nil, fmt.Errorf("invalid did:web %q", did)
		}
		docURL = "https://" + host + "/.well-known/did.json"
	case strings.HasPrefix(did, "did:plc:"):
		docURL = r.plcURL + "/" + did
	default:
		return nil, fmt.Errorf("unsupported did method %q", did)
	}
	var doc DIDDocument
	if err := r.getJSON(ctx, docURL, &doc); err != nil {
		return nil, fmt.Errorf("resolve did document: %w", err)
	}
	return &doc, nil
}

// ResolveService returns the PDS endpoint hosting the DID's repository.
func (r *Resolver) ResolveService(ctx context.Context, did string) (string, error) {
	doc, err := r.ResolveDIDDocument(ctx, did)
	if err != nil {
		return "", err
	}
	endpoint, ok := doc.ServiceEndpoint()
	if !ok {
		return "", fmt.Errorf("did %s has no %s service", did, pdsServiceType)
	}
	return endpoint, nil
}
