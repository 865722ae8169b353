package atproto_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"dreary/internal/atproto"
	"dreary/internal/logging"
	"dreary/internal/testsupport"
)

func login(t *testing.T, pds *testsupport.PDS) *atproto.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPDS(pds))
	client, err := atproto.Login(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return client
}

func TestLoginResolvesDIDAndService(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)

	if client.DID() != pds.DID {
		t.Fatalf("expected did %q, got %q", pds.DID, client.DID())
	}
	if client.Host() != pds.URL() {
		t.Fatalf("expected host %q, got %q", pds.URL(), client.Host())
	}
	if pds.Calls("com.atproto.identity.resolveHandle") != 1 {
		t.Fatalf("expected one resolveHandle call")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	pds := testsupport.NewPDS(t)
	cfg := testsupport.NewConfig(t, testsupport.WithPDS(pds))
	cfg.Account.Password = "wrong"

	_, err := atproto.Login(context.Background(), cfg, logging.NewNop())
	if err == nil {
		t.Fatal("expected login failure")
	}
	if !errors.Is(err, atproto.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized in chain, got %v", err)
	}
}

func TestResolveHandlePassthrough(t *testing.T) {
	resolver := atproto.NewResolver("http://127.0.0.1:1", "http://127.0.0.1:1")
	did, err := resolver.ResolveHandle(context.Background(), "did:plc:abc")
	if err != nil {
		t.Fatalf("ResolveHandle: %v", err)
	}
	if did != "did:plc:abc" {
		t.Fatalf("expected passthrough, got %q", did)
	}
	if _, err := resolver.ResolveHandle(context.Background(), "@"); err == nil {
		t.Fatal("expected error for empty handle")
	}
}

func TestResolveHandleStripsAt(t *testing.T) {
	pds := testsupport.NewPDS(t)
	resolver := atproto.NewResolver(pds.URL(), pds.URL())
	did, err := resolver.ResolveHandle(context.Background(), "@"+pds.Handle)
	if err != nil {
		t.Fatalf("ResolveHandle: %v", err)
	}
	if did != pds.DID {
		t.Fatalf("expected %q, got %q", pds.DID, did)
	}
}

func TestServiceEndpointPicksPDS(t *testing.T) {
	doc := &atproto.DIDDocument{Service: []atproto.DIDService{
		{Type: "BskyNotificationService", ServiceEndpoint: "https://notify.example"},
		{Type: "AtprotoPersonalDataServer", ServiceEndpoint: "https://pds.example/"},
	}}
	endpoint, ok := doc.ServiceEndpoint()
	if !ok || endpoint != "https://pds.example" {
		t.Fatalf("unexpected endpoint %q (ok=%v)", endpoint, ok)
	}
	if _, ok := (&atproto.DIDDocument{}).ServiceEndpoint(); ok {
		t.Fatal("expected no endpoint for empty document")
	}
}

func TestCreateAndGetRecord(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	ctx := context.Background()

	uri, err := client.CreateRecord(ctx, "", "self", map[string]any{
		"$type": "dev.dreary.test.thing",
		"name":  "widget",
	})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	want := atproto.ComposeURI(pds.DID, "dev.dreary.test.thing", "self")
	if uri != want {
		t.Fatalf("expected %q, got %q", want, uri)
	}

	rec, err := client.GetRecord(ctx, pds.DID, "dev.dreary.test.thing", "self")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	var value struct {
		Name string `json:"name"`
	}
	if err := rec.Decode(&value); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if value.Name != "widget" || rec.RKey() != "self" {
		t.Fatalf("unexpected record %+v", rec)
	}

	_, err = client.GetRecord(ctx, pds.DID, "dev.dreary.test.thing", "missing")
	if !errors.Is(err, atproto.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	found, err := client.FindRecord(ctx, pds.DID, "dev.dreary.test.thing", "missing")
	if err != nil || found != nil {
		t.Fatalf("expected nil miss, got %v, %v", found, err)
	}
}

func TestCreateRecordRequiresSession(t *testing.T) {
	client, err := atproto.NewClient("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.CreateRecord(context.Background(), "dev.dreary.test.thing", "", map[string]any{})
	if !errors.Is(err, atproto.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestListRecordsFollowsCursor(t *testing.T) {
	pds := testsupport.NewPDS(t)
	for i := range 250 {
		pds.Put("dev.dreary.test.item", fmt.Sprintf("k%03d", i), map[string]any{"n": i})
	}
	client := login(t, pds)

	recs, err := client.ListAllRecords(context.Background(), pds.DID, "dev.dreary.test.item")
	if err != nil {
		t.Fatalf("ListAllRecords: %v", err)
	}
	if len(recs) != 250 {
		t.Fatalf("expected 250 records, got %d", len(recs))
	}
	if got := pds.Calls("com.atproto.repo.listRecords"); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}

	index, err := client.IndexByRKey(context.Background(), pds.DID, "dev.dreary.test.item")
	if err != nil {
		t.Fatalf("IndexByRKey: %v", err)
	}
	if index["k042"] != atproto.ComposeURI(pds.DID, "dev.dreary.test.item", "k042") {
		t.Fatalf("unexpected index entry %q", index["k042"])
	}
}

func TestListRecordsEmptyCollection(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	recs, err := client.ListAllRecords(context.Background(), pds.DID, "dev.dreary.none")
	if err != nil {
		t.Fatalf("ListAllRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestApplyWritesBatchedChunks(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)

	writes := make([]atproto.Write, 0, 450)
	for i := range 450 {
		writes = append(writes, atproto.Create("dev.dreary.test.item", map[string]any{"n": i}))
	}
	var progress []int
	results, err := client.ApplyWritesBatched(context.Background(), writes, 200, func(done, total int) {
		progress = append(progress, done)
		if total != 3 {
			t.Errorf("expected 3 batches, got %d", total)
		}
	})
	if err != nil {
		t.Fatalf("ApplyWritesBatched: %v", err)
	}
	if got := pds.Calls("com.atproto.repo.applyWrites"); got != 3 {
		t.Fatalf("expected 3 applyWrites calls, got %d", got)
	}
	uris := atproto.CreatedURIs(results)
	if len(uris) != 450 {
		t.Fatalf("expected 450 uris, got %d", len(uris))
	}
	stored := pds.Records("dev.dreary.test.item")
	if uris[0] != stored[0].URI || uris[449] != stored[449].URI {
		t.Fatal("expected results in submission order")
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Fatalf("unexpected progress %v", progress)
	}
}

func TestApplyWritesUpdateAndDelete(t *testing.T) {
	pds := testsupport.NewPDS(t)
	pds.Put("dev.dreary.test.item", "a", map[string]any{"n": 1})
	pds.Put("dev.dreary.test.item", "b", map[string]any{"n": 2})
	client := login(t, pds)

	results, err := client.ApplyWrites(context.Background(), []atproto.Write{
		atproto.Update("dev.dreary.test.item", "a", map[string]any{"n": 10}),
		atproto.Delete("dev.dreary.test.item", "b"),
	})
	if err != nil {
		t.Fatalf("ApplyWrites: %v", err)
	}
	if len(results) != 2 || len(atproto.CreatedURIs(results)) != 0 {
		t.Fatalf("unexpected results %+v", results)
	}
	rec, ok := pds.Record("dev.dreary.test.item", "a")
	if !ok || rec.Value["n"] != float64(10) {
		t.Fatalf("expected update, got %+v", rec)
	}
	if _, ok := pds.Record("dev.dreary.test.item", "b"); ok {
		t.Fatal("expected b deleted")
	}
}

func TestExpiredTokenRefreshesOnce(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	pds.ExpireNextToken()

	if _, err := client.CreateRecord(context.Background(), "dev.dreary.test.item", "", map[string]any{"n": 1}); err != nil {
		t.Fatalf("CreateRecord after expiry: %v", err)
	}
	if got := pds.Calls("com.atproto.server.refreshSession"); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if got := pds.Calls("com.atproto.repo.createRecord"); got != 2 {
		t.Fatalf("expected retry after refresh, got %d calls", got)
	}
}

func TestXRPCErrorSurfacesStatus(t *testing.T) {
	pds := testsupport.NewPDS(t)
	client := login(t, pds)
	pds.FailNext("com.atproto.repo.createRecord", 1)

	_, err := client.CreateRecord(context.Background(), "dev.dreary.test.item", "", map[string]any{})
	var xerr *atproto.Error
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *atproto.Error, got %v", err)
	}
	if xerr.Status != 500 || xerr.Name != "InternalServerError" {
		t.Fatalf("unexpected error %+v", xerr)
	}
}
