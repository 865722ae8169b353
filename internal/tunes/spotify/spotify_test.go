package spotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"dreary/internal/config"
	"dreary/internal/services"
	"dreary/internal/tunes/spotify"
)

type fakeAPI struct {
	*httptest.Server
	tokens atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return false
		}
		return true
	}
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "cid" || secret != "csecret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.tokens.Add(1)
		write(w, map[string]any{"access_token": "token-1", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/v1/playlists/PL1", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		write(w, map[string]any{
			"id":            "PL1",
			"name":          "Commute",
			"description":   "weekday mornings",
			"external_urls": map[string]any{"spotify": "https://open.spotify.com/playlist/PL1"},
			"images":        []any{map[string]any{"url": "https://i.scdn.co/pl1.jpg"}},
			"owner": map[string]any{
				"id":            "owner1",
				"display_name":  "Owner",
				"external_urls": map[string]any{"spotify": "https://open.spotify.com/user/owner1"},
			},
			"tracks": map[string]any{
				"items": []any{
					map[string]any{"track": track("T1", "One", 200999)},
					map[string]any{"track": nil},
				},
				"next": f.URL + "/v1/playlists/PL1/tracks?offset=2",
			},
		})
	})
	mux.HandleFunc("/v1/playlists/PL1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		write(w, map[string]any{
			"items": []any{map[string]any{"track": track("T2", "Two", 1500)}},
			"next":  nil,
		})
	})
	mux.HandleFunc("/v1/albums/AL1", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		write(w, map[string]any{
			"id":            "AL1",
			"name":          "Record",
			"external_urls": map[string]any{"spotify": "https://open.spotify.com/album/AL1"},
			"images":        []any{map[string]any{"url": "https://i.scdn.co/al1.jpg"}},
			"artists":       []any{artist("A1", "Artist")},
			"tracks": map[string]any{
				"items": []any{track("T3", "Three", 90000)},
			},
		})
	})
	mux.HandleFunc("/v1/tracks/T4", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		write(w, track("T4", "Four", 61000))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func artist(id, name string) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/artist/" + id},
	}
}

func track(id, name string, ms int) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"duration_ms":   ms,
		"artists":       []any{artist("A1", "Artist"), artist("A2", "Guest")},
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + id},
		"album": map[string]any{
			"images": []any{map[string]any{"url": "https://i.scdn.co/" + id + ".jpg"}},
		},
	}
}

func (f *fakeAPI) source(id, secret string) *spotify.Source {
	return spotify.New(config.Spotify{
		ClientID:     id,
		ClientSecret: secret,
		AccountsURL:  f.URL,
		APIURL:       f.URL + "/v1",
	}, spotify.WithHTTPClient(f.Client()))
}

func TestParseLink(t *testing.T) {
	tests := []struct {
		raw      string
		kind, id string
		wantErr  bool
	}{
		{raw: "https://open.spotify.com/playlist/2HuVbuhG6UwyM0Ygegghxc?pi=u-yOp1", kind: "playlist", id: "2HuVbuhG6UwyM0Ygegghxc"},
		{raw: "https://open.spotify.com/intl-de/album/5QJlwvAXmPBLymGvbqKzdQ", kind: "album", id: "5QJlwvAXmPBLymGvbqKzdQ"},
		{raw: "https://open.spotify.com/track/6hzwfFKrTabeUsW5SWti17", kind: "track", id: "6hzwfFKrTabeUsW5SWti17"},
		{raw: "https://open.spotify.com/show/abc", wantErr: true},
		{raw: "https://spotify.com/track/abc", wantErr: true},
		{raw: "https://open.spotify.com/track", wantErr: true},
	}
	for _, tc := range tests {
		kind, id, err := spotify.ParseLink(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("ParseLink(%q) expected validation error, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || kind != tc.kind || id != tc.id {
			t.Fatalf("ParseLink(%q) = %q, %q, %v", tc.raw, kind, id, err)
		}
	}
}

func TestFetchPlaylistFollowsNext(t *testing.T) {
	api := newFakeAPI(t)
	src := api.source("cid", "csecret")

	playlist, tracks, err := src.Fetch(context.Background(), "https://open.spotify.com/playlist/PL1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if playlist.Name != "Commute" || playlist.Reference.ID != "PL1" || playlist.Thumbnail != "https://i.scdn.co/pl1.jpg" {
		t.Fatalf("unexpected playlist %+v", playlist)
	}
	if len(playlist.Owners) != 1 || playlist.Owners[0].Name != "Owner" || playlist.Owners[0].Link == "" {
		t.Fatalf("unexpected owners %+v", playlist.Owners)
	}
	if len(tracks) != 2 || tracks[0].ID != "T1" || tracks[1].ID != "T2" {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
	if tracks[0].Duration != 200 || len(tracks[0].Artists) != 2 || tracks[0].Thumbnail != "https://i.scdn.co/T1.jpg" {
		t.Fatalf("unexpected first track %+v", tracks[0])
	}

	if _, _, err := src.Fetch(context.Background(), "https://open.spotify.com/track/T4"); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if got := api.tokens.Load(); got != 1 {
		t.Fatalf("expected token reuse, requested %d tokens", got)
	}
}

func TestFetchAlbumUsesAlbumArt(t *testing.T) {
	api := newFakeAPI(t)
	playlist, tracks, err := api.source("cid", "csecret").Fetch(context.Background(), "https://open.spotify.com/album/AL1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(playlist.Owners) != 1 || playlist.Owners[0].ID != "A1" {
		t.Fatalf("album artists should become owners: %+v", playlist.Owners)
	}
	if len(tracks) != 1 || tracks[0].Thumbnail != "https://i.scdn.co/al1.jpg" {
		t.Fatalf("unexpected album tracks %+v", tracks)
	}
}

func TestFetchTrackHasNoPlaylist(t *testing.T) {
	api := newFakeAPI(t)
	playlist, tracks, err := api.source("cid", "csecret").Fetch(context.Background(), "https://open.spotify.com/track/T4")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if playlist != nil {
		t.Fatalf("expected no playlist, got %+v", playlist)
	}
	if len(tracks) != 1 || tracks[0].Title != "Four" || tracks[0].Duration != 61 {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
}

func TestFetchRequiresCredentials(t *testing.T) {
	api := newFakeAPI(t)
	_, _, err := api.source("", "").Fetch(context.Background(), "https://open.spotify.com/track/T4")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
