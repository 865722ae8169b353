package testsupport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// StoredRecord is a record held by the fake PDS.
type StoredRecord struct {
	URI   string
	RKey  string
	CID   string
	Value map[string]any
}

type storedBlob struct {
	data     []byte
	mimeType string
}

// PDS is an in-memory XRPC server covering the repository, identity, and sync
// endpoints the importers use. It also answers DID document lookups so it can
// stand in for the PLC directory.
type PDS struct {
	DID      string
	Handle   string
	Password string

	server *httptest.Server

	mu          sync.Mutex
	collections map[string][]*StoredRecord
	blobs       map[string]storedBlob
	calls       map[string]int
	seq         int
	expireNext  bool
	tokens      int
	accessToken string
	failures    map[string]int
}

// NewPDS starts a fake PDS that is shut down when the test ends.
func NewPDS(t testing.TB) *PDS {
	t.Helper()

	p := &PDS{
		DID:         "did:plc:testaccount",
		Handle:      "alice.test",
		Password:    "hunter2",
		collections: make(map[string][]*StoredRecord),
		blobs:       make(map[string]storedBlob),
		calls:       make(map[string]int),
		failures:    make(map[string]int),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.server.Close)
	return p
}

// URL returns the base URL of the server.
func (p *PDS) URL() string {
	return p.server.URL
}

// Calls returns how many times nsid was invoked.
func (p *PDS) Calls(nsid string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[nsid]
}

// ExpireNextToken makes the next authenticated call fail with ExpiredToken.
func (p *PDS) ExpireNextToken() {
	p.mu.Lock()
	p.expireNext = true
	p.mu.Unlock()
}

// FailNext makes the next n calls to nsid return a 500.
func (p *PDS) FailNext(nsid string, n int) {
	p.mu.Lock()
	p.failures[nsid] = n
	p.mu.Unlock()
}

// Records returns a snapshot of a collection in insertion order.
func (p *PDS) Records(collection string) []StoredRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StoredRecord, 0, len(p.collections[collection]))
	for _, rec := range p.collections[collection] {
		out = append(out, *rec)
	}
	return out
}

// Record returns a single stored record.
func (p *PDS) Record(collection, rkey string) (StoredRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec := p.find(collection, rkey); rec != nil {
		return *rec, true
	}
	return StoredRecord{}, false
}

// Put seeds a record and returns its URI. An empty rkey is generated.
func (p *PDS) Put(collection, rkey string, value map[string]any) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.put(collection, rkey, value).URI
}

// BlobCount returns the number of distinct blobs stored.
func (p *PDS) BlobCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blobs)
}

func (p *PDS) put(collection, rkey string, value map[string]any) *StoredRecord {
	p.seq++
	if rkey == "" {
		rkey = fmt.Sprintf("3kfake%08d", p.seq)
	}
	raw, _ := json.Marshal(value)
	sum := sha256.Sum256(raw)
	rec := &StoredRecord{
		URI:   "at://" + p.DID + "/" + collection + "/" + rkey,
		RKey:  rkey,
		CID:   "bafyrei" + hex.EncodeToString(sum[:8]),
		Value: value,
	}
	if existing := p.find(collection, rkey); existing != nil {
		*existing = *rec
		return existing
	}
	p.collections[collection] = append(p.collections[collection], rec)
	return rec
}

func (p *PDS) putBlob(data []byte, mimeType string) string {
	sum := sha256.Sum256(data)
	cid := "bafkrei" + hex.EncodeToString(sum[:12])
	p.blobs[cid] = storedBlob{data: append([]byte(nil), data...), mimeType: mimeType}
	return cid
}

func (p *PDS) find(collection, rkey string) *StoredRecord {
	for _, rec := range p.collections[collection] {
		if rec.RKey == rkey {
			return rec
		}
	}
	return nil
}

func (p *PDS) remove(collection, rkey string) {
	recs := p.collections[collection]
	for i, rec := range recs {
		if rec.RKey == rkey {
			p.collections[collection] = append(recs[:i], recs[i+1:]...)
			return
		}
	}
}

func (p *PDS) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/did:") {
		p.serveDIDDocument(w, r)
		return
	}
	nsid, ok := strings.CutPrefix(r.URL.Path, "/xrpc/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[nsid]++
	if n := p.failures[nsid]; n > 0 {
		p.failures[nsid] = n - 1
		writeXRPCError(w, http.StatusInternalServerError, "InternalServerError", "injected failure")
		return
	}

	switch nsid {
	case "com.atproto.identity.resolveHandle":
		p.resolveHandle(w, r)
	case "com.atproto.server.createSession":
		p.createSession(w, r)
	case "com.atproto.server.refreshSession":
		p.refreshSession(w, r)
	case "com.atproto.server.describeServer":
		writeJSON(w, map[string]any{"did": "did:web:pds.test", "availableUserDomains": []string{".test"}})
	case "com.atproto.repo.getRecord":
		p.getRecord(w, r)
	case "com.atproto.repo.listRecords":
		p.listRecords(w, r)
	case "com.atproto.sync.getBlob":
		p.getBlob(w, r)
	case "com.atproto.repo.createRecord", "com.atproto.repo.applyWrites", "com.atproto.repo.uploadBlob":
		if !p.authorize(w, r) {
			return
		}
		switch nsid {
		case "com.atproto.repo.createRecord":
			p.createRecord(w, r)
		case "com.atproto.repo.applyWrites":
			p.applyWrites(w, r)
		default:
			p.uploadBlob(w, r)
		}
	default:
		writeXRPCError(w, http.StatusNotImplemented, "MethodNotImplemented", nsid)
	}
}

func (p *PDS) serveDIDDocument(w http.ResponseWriter, r *http.Request) {
	did := strings.TrimPrefix(r.URL.Path, "/")
	if did != p.DID {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{
		"id":          p.DID,
		"alsoKnownAs": []string{"at://" + p.Handle},
		"service": []map[string]string{{
			"id":              "#atproto_pds",
			"type":            "AtprotoPersonalDataServer",
			"serviceEndpoint": p.server.URL,
		}},
	})
}

func (p *PDS) authorize(w http.ResponseWriter, r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token != p.accessToken {
		writeXRPCError(w, http.StatusUnauthorized, "AuthRequired", "missing or invalid token")
		return false
	}
	if p.expireNext {
		p.expireNext = false
		writeXRPCError(w, http.StatusBadRequest, "ExpiredToken", "token has expired")
		return false
	}
	return true
}

func (p *PDS) issueTokens() (string, string) {
	p.tokens++
	p.accessToken = "access-" + strconv.Itoa(p.tokens)
	return p.accessToken, "refresh-" + strconv.Itoa(p.tokens)
}

func (p *PDS) resolveHandle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("handle") != p.Handle {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "Unable to resolve handle")
		return
	}
	writeJSON(w, map[string]string{"did": p.DID})
}

func (p *PDS) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if (req.Identifier != p.DID && req.Identifier != p.Handle) || req.Password != p.Password {
		writeXRPCError(w, http.StatusUnauthorized, "AuthenticationRequired", "Invalid identifier or password")
		return
	}
	access, refresh := p.issueTokens()
	writeJSON(w, map[string]string{
		"did":        p.DID,
		"handle":     p.Handle,
		"accessJwt":  access,
		"refreshJwt": refresh,
	})
}

func (p *PDS) refreshSession(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !strings.HasPrefix(token, "refresh-") {
		writeXRPCError(w, http.StatusBadRequest, "InvalidToken", "not a refresh token")
		return
	}
	access, refresh := p.issueTokens()
	writeJSON(w, map[string]string{
		"did":        p.DID,
		"handle":     p.Handle,
		"accessJwt":  access,
		"refreshJwt": refresh,
	})
}

func (p *PDS) getRecord(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("repo") != p.DID && q.Get("repo") != p.Handle {
		writeXRPCError(w, http.StatusBadRequest, "RepoNotFound", "unknown repo")
		return
	}
	rec := p.find(q.Get("collection"), q.Get("rkey"))
	if rec == nil {
		writeXRPCError(w, http.StatusBadRequest, "RecordNotFound", "Could not locate record")
		return
	}
	writeJSON(w, map[string]any{"uri": rec.URI, "cid": rec.CID, "value": rec.Value})
}

func (p *PDS) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	start, _ := strconv.Atoi(q.Get("cursor"))
	recs := p.collections[q.Get("collection")]
	if q.Get("repo") != p.DID {
		recs = nil
	}
	end := min(start+limit, len(recs))
	page := make([]map[string]any, 0, limit)
	for i := start; i < end; i++ {
		page = append(page, map[string]any{"uri": recs[i].URI, "cid": recs[i].CID, "value": recs[i].Value})
	}
	resp := map[string]any{"records": page}
	if end < len(recs) {
		resp["cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, resp)
}

func (p *PDS) createRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo       string         `json:"repo"`
		Collection string         `json:"collection"`
		RKey       string         `json:"rkey"`
		Record     map[string]any `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if req.Repo != p.DID {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "repo mismatch")
		return
	}
	if req.RKey != "" && p.find(req.Collection, req.RKey) != nil {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "record already exists")
		return
	}
	rec := p.put(req.Collection, req.RKey, req.Record)
	writeJSON(w, map[string]string{"uri": rec.URI, "cid": rec.CID})
}

func (p *PDS) applyWrites(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo   string `json:"repo"`
		Writes []struct {
			Type       string         `json:"$type"`
			Collection string         `json:"collection"`
			RKey       string         `json:"rkey"`
			Value      map[string]any `json:"value"`
		} `json:"writes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if len(req.Writes) > 200 {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "Too many writes. Max: 200")
		return
	}
	results := make([]map[string]string, 0, len(req.Writes))
	for _, write := range req.Writes {
		switch write.Type {
		case "com.atproto.repo.applyWrites#create":
			rec := p.put(write.Collection, write.RKey, write.Value)
			results = append(results, map[string]string{"$type": "com.atproto.repo.applyWrites#createResult", "uri": rec.URI, "cid": rec.CID})
		case "com.atproto.repo.applyWrites#update":
			rec := p.put(write.Collection, write.RKey, write.Value)
			results = append(results, map[string]string{"$type": "com.atproto.repo.applyWrites#updateResult", "uri": rec.URI, "cid": rec.CID})
		case "com.atproto.repo.applyWrites#delete":
			p.remove(write.Collection, write.RKey)
			results = append(results, map[string]string{"$type": "com.atproto.repo.applyWrites#deleteResult"})
		default:
			writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "unknown write type "+write.Type)
			return
		}
	}
	writeJSON(w, map[string]any{"results": results})
}

func (p *PDS) uploadBlob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	mimeType := r.Header.Get("Content-Type")
	cid := p.putBlob(data, mimeType)
	writeJSON(w, map[string]any{"blob": map[string]any{
		"$type":    "blob",
		"ref":      map[string]string{"$link": cid},
		"mimeType": mimeType,
		"size":     len(data),
	}})
}

func (p *PDS) getBlob(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	blob, ok := p.blobs[q.Get("cid")]
	if !ok || q.Get("did") != p.DID {
		writeXRPCError(w, http.StatusBadRequest, "BlobNotFound", "Blob not found")
		return
	}
	w.Header().Set("Content-Type", blob.mimeType)
	_, _ = w.Write(blob.data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeXRPCError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": name, "message": message})
}
