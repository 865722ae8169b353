package discord_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dreary/internal/atproto"
	"dreary/internal/discord"
	"dreary/internal/ledger"
	"dreary/internal/services"
	"dreary/internal/testsupport"
)

func newImporter(t *testing.T, pds *testsupport.PDS) *discord.Importer {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPDS(pds))
	client, err := atproto.Login(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	uploader := ledger.NewUploader(client, testsupport.MustOpenLedger(t, cfg), nil)
	return discord.NewImporter(client, uploader, discord.Options{})
}

func writeExport(t *testing.T, avatarURL string) string {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "media", "icon.png"), testsupport.PNG)
	testsupport.WriteFile(t, filepath.Join(dir, "media", "avatar.png"), testsupport.PNG)
	testsupport.WriteFile(t, filepath.Join(dir, "media", "wave.json"), []byte(`{"v":"5.5.7"}`))
	testsupport.WriteFile(t, filepath.Join(dir, "media", "notes.txt"), []byte("meeting notes"))

	export := map[string]any{
		"guild":   map[string]any{"id": "100", "name": "Test Guild", "iconUrl": "media/icon.png"},
		"channel": map[string]any{"id": "200", "type": "GuildTextChat", "categoryId": "300", "category": "Text", "name": "general", "topic": nil},
		"messages": []map[string]any{
			{
				"id": "1001", "type": "Default", "timestamp": "2024-01-02T03:04:05.678+02:00",
				"timestampEdited": nil, "callEndedTimestamp": nil, "isPinned": false,
				"content": "hello",
				"author":  map[string]any{"id": "42", "name": "alice", "discriminator": "0000", "isBot": false, "avatarUrl": "media/avatar.png"},
				"attachments": []map[string]any{
					{"id": "555", "url": "media/notes.txt", "fileName": "notes.txt", "fileSizeBytes": 13},
				},
				"embeds": []map[string]any{
					{"title": "Example", "url": "https://example.com", "description": "A page"},
				},
				"stickers":  []map[string]any{{"id": "777", "name": "wave", "format": "Lottie", "sourceUrl": "media/wave.json"}},
				"reactions": []map[string]any{{"emoji": map[string]any{"id": "", "name": "👍", "code": "thumbsup", "isAnimated": false}, "count": 2}},
				"mentions":  []map[string]any{{"id": "43", "name": "bob", "isBot": true, "avatarUrl": avatarURL}},
			},
			{
				"id": "1002", "type": "Reply", "timestamp": "2024-01-02T03:05:00+00:00",
				"isPinned": true, "content": "hi alice",
				"author":    map[string]any{"id": "43", "name": "bob", "isBot": true, "avatarUrl": avatarURL},
				"reference": map[string]any{"messageId": "1001", "channelId": "200", "guildId": nil},
			},
		},
	}
	path := filepath.Join(dir, "export.json")
	testsupport.WriteJSON(t, path, export)
	return path
}

func avatarServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(testsupport.PNG)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImportCreatesRecords(t *testing.T) {
	pds := testsupport.NewPDS(t)
	srv := avatarServer(t)
	path := writeExport(t, srv.URL+"/avatars/43.png?size=128")
	im := newImporter(t, pds)

	stats, err := im.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Created != 2 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	guild, ok := pds.Record(discord.CollectionGuild, "100")
	if !ok || guild.Value["name"] != "Test Guild" {
		t.Fatalf("expected guild record, got %+v", guild)
	}
	channel, ok := pds.Record(discord.CollectionChannel, "200")
	if !ok || channel.Value["guild"] != guild.URI {
		t.Fatalf("expected channel linked to guild, got %+v", channel)
	}
	if _, present := channel.Value["topic"]; present {
		t.Fatal("expected empty topic to be omitted")
	}
	if len(pds.Records(discord.CollectionAuthor)) != 2 {
		t.Fatalf("expected two authors, got %d", len(pds.Records(discord.CollectionAuthor)))
	}

	first, ok := pds.Record(discord.CollectionMessage, "1001")
	if !ok {
		t.Fatal("expected message 1001")
	}
	if first.Value["timestamp"] != "2024-01-02T01:04:05.678Z" {
		t.Fatalf("expected UTC timestamp, got %v", first.Value["timestamp"])
	}
	if first.Value["author"] != atproto.ComposeURI(pds.DID, discord.CollectionAuthor, "42") {
		t.Fatalf("unexpected author %v", first.Value["author"])
	}
	for _, field := range []string{"mentions", "stickers", "embeds", "attachments", "reactions"} {
		list, ok := first.Value[field].([]any)
		if !ok || len(list) != 1 {
			t.Fatalf("expected one %s, got %v", field, first.Value[field])
		}
	}
	reaction := first.Value["reactions"].([]any)[0].(map[string]any)
	if reaction["count"] != float64(2) {
		t.Fatalf("unexpected reaction %v", reaction)
	}

	sticker, ok := pds.Record(discord.CollectionSticker, "777")
	if !ok || sticker.Value["source"] != `{"v":"5.5.7"}` {
		t.Fatalf("expected sticker source text, got %+v", sticker)
	}
	if _, ok := pds.Record(discord.CollectionAttachment, "555"); !ok {
		t.Fatal("expected attachment record keyed by id")
	}

	reply, _ := pds.Record(discord.CollectionMessage, "1002")
	ref, ok := reply.Value["reference"].(map[string]any)
	if !ok {
		t.Fatalf("expected reference, got %v", reply.Value)
	}
	if ref["guild"] != atproto.ComposeURI(pds.DID, discord.CollectionGuild, "0") {
		t.Fatalf("expected guild fallback 0, got %v", ref["guild"])
	}
	if ref["message"] != first.URI {
		t.Fatalf("expected reference to message 1001, got %v", ref["message"])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == "" && entry.IsDir() && entry.Name() != "media" {
			t.Fatalf("scratch dir %s not cleaned up", entry.Name())
		}
	}
}

func TestImportSkipsExistingMessages(t *testing.T) {
	pds := testsupport.NewPDS(t)
	srv := avatarServer(t)
	path := writeExport(t, srv.URL+"/bob.png")

	if _, err := newImporter(t, pds).Import(context.Background(), path); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	creates := pds.Calls("com.atproto.repo.createRecord")

	stats, err := newImporter(t, pds).Import(context.Background(), path)
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if stats.Created != 0 || stats.Skipped != 2 {
		t.Fatalf("expected all messages skipped, got %+v", stats)
	}
	if got := pds.Calls("com.atproto.repo.createRecord"); got != creates {
		t.Fatalf("expected no new records, got %d extra creates", got-creates)
	}
}

func TestImportRequiresGuildIcon(t *testing.T) {
	pds := testsupport.NewPDS(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	testsupport.WriteJSON(t, path, map[string]any{
		"guild":    map[string]any{"id": "1", "name": "No Icon"},
		"channel":  map[string]any{"id": "2", "name": "c", "type": "GuildTextChat"},
		"messages": []any{},
	})
	_, err := newImporter(t, pds).Import(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImportRejectsNonImageIcon(t *testing.T) {
	pds := testsupport.NewPDS(t)
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "icon.txt"), []byte("not an image"))
	path := filepath.Join(dir, "export.json")
	testsupport.WriteJSON(t, path, map[string]any{
		"guild":    map[string]any{"id": "1", "name": "Bad Icon", "iconUrl": "icon.txt"},
		"channel":  map[string]any{"id": "2", "name": "c", "type": "GuildTextChat"},
		"messages": []any{},
	})
	_, err := newImporter(t, pds).Import(context.Background(), path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if pds.BlobCount() != 0 {
		t.Fatal("non-image icon must not be uploaded")
	}
}

func TestEmbedKeyIsStable(t *testing.T) {
	a, err := discord.EmbedKey(map[string]string{"title": "x"})
	if err != nil {
		t.Fatalf("EmbedKey: %v", err)
	}
	b, _ := discord.EmbedKey(map[string]string{"title": "x"})
	c, _ := discord.EmbedKey(map[string]string{"title": "y"})
	if a != b || a == c || len(a) != 32 {
		t.Fatalf("unexpected keys %s %s %s", a, b, c)
	}
}
