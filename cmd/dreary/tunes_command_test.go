package main

import (
	"testing"

	"dreary/internal/testsupport"
	"dreary/internal/tunes"
)

const ytPlaylist = `{
  "_type": "playlist",
  "id": "PL9",
  "title": "Mix",
  "entries": [
    {"id": "a1", "title": "One", "uploader": "Band", "channel_id": "UC1", "duration": 100,
     "webpage_url": "https://www.youtube.com/watch?v=a1"},
    {"id": "a2", "title": "Two", "uploader": "Band", "channel_id": "UC1", "duration": 120,
     "webpage_url": "https://www.youtube.com/watch?v=a2"}
  ]
}`

func TestTunesImportYouTubePlaylist(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedYtDlp(ytPlaylist))
	link := "https://www.youtube.com/playlist?list=PL9"

	out, _, err := runCLI(t, []string{"tunes", "import", link}, env.configPath, "")
	if err != nil {
		t.Fatalf("tunes import: %v", err)
	}
	requireContains(t, out, "Tracks created: 2, reused: 0, playlist items appended: 2")
	if got := len(env.pds.Records(tunes.CollectionPlaylist)); got != 1 {
		t.Fatalf("expected one playlist, got %d", got)
	}

	out, _, err = runCLI(t, []string{"tunes", "import", link}, env.configPath, "")
	if err != nil {
		t.Fatalf("second tunes import: %v", err)
	}
	requireContains(t, out, "Tracks created: 0, reused: 2, playlist items appended: 0")
	if got := len(env.pds.Records(tunes.CollectionPlaylistItem)); got != 2 {
		t.Fatalf("expected two playlist items, got %d", got)
	}
}

func TestTunesImportRejectsUnknownHost(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"tunes", "import", "https://example.com/list"}, env.configPath, ""); err == nil {
		t.Fatal("expected error for unsupported host")
	}
}
