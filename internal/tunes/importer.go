package tunes

import (
	"context"
	"fmt"
	"log/slog"

	"dreary/internal/atproto"
	"dreary/internal/logging"
	"dreary/internal/lookup"
	"dreary/internal/services"
)

// Repository is the subset of the XRPC client the importer needs.
type Repository interface {
	DID() string
	CreateRecord(ctx context.Context, collection, rkey string, record any) (string, error)
	ListAllRecords(ctx context.Context, repo, collection string) ([]atproto.Record, error)
	ApplyWritesBatched(ctx context.Context, writes []atproto.Write, size int, progress atproto.BatchProgress) ([]atproto.WriteResult, error)
}

// Result summarizes one import.
type Result struct {
	PlaylistURI     string
	PlaylistCreated bool
	TracksCreated   int
	TracksExisting  int
	ItemsAppended   int
}

// Importer writes fetched playlists into the repository.
type Importer struct {
	repo      Repository
	sources   Sources
	batchSize int
	logger    *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(repo Repository, sources Sources, batchSize int, logger *slog.Logger) *Importer {
	return &Importer{
		repo:      repo,
		sources:   sources,
		batchSize: batchSize,
		logger:    logging.NewComponentLogger(logger, "tunes"),
	}
}

// Import fetches rawURL and records its playlist, tracks, and playlist items.
// Re-importing a playlist reuses existing records and appends only tracks the
// playlist does not already contain.
func (im *Importer) Import(ctx context.Context, rawURL string) (Result, error) {
	src, err := im.sources.For(rawURL)
	if err != nil {
		return Result{}, err
	}
	playlist, tracks, err := src.Fetch(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	if len(tracks) == 0 {
		return Result{}, services.Wrap(services.ErrNotFound, "tunes", "fetch", "No tracks found in the playlist", nil)
	}
	im.logger.Info("source fetched",
		logging.String("url", rawURL),
		logging.Int(logging.FieldCount, len(tracks)))

	now := atproto.Now()
	var res Result
	if playlist != nil {
		res.PlaylistURI, res.PlaylistCreated, err = im.findOrCreatePlaylist(ctx, playlist, now)
		if err != nil {
			return res, err
		}
	}

	trackURIs, created, err := im.ensureTracks(ctx, tracks, now)
	if err != nil {
		return res, err
	}
	res.TracksCreated = created
	res.TracksExisting = len(tracks) - created
	if playlist == nil {
		im.logger.Info("tracks imported without playlist",
			logging.Int("created", res.TracksCreated),
			logging.Int("existing", res.TracksExisting))
		return res, nil
	}

	res.ItemsAppended, err = im.appendItems(ctx, res.PlaylistURI, trackURIs, now)
	if err != nil {
		return res, err
	}
	im.logger.Info("playlist imported",
		logging.String(logging.FieldURI, res.PlaylistURI),
		logging.Bool("playlist_created", res.PlaylistCreated),
		logging.Int("tracks_created", res.TracksCreated),
		logging.Int("items_appended", res.ItemsAppended))
	return res, nil
}

func (im *Importer) findOrCreatePlaylist(ctx context.Context, playlist *Playlist, now string) (string, bool, error) {
	existing, err := im.repo.ListAllRecords(ctx, im.repo.DID(), CollectionPlaylist)
	if err != nil {
		return "", false, err
	}
	for _, rec := range existing {
		ref, ok := storedReference(rec)
		if ok && ref.Source != "" && ref.Matches(playlist.Reference) {
			im.logger.Info("playlist already recorded", logging.String(logging.FieldURI, rec.URI))
			return rec.URI, false, nil
		}
	}

	record := *playlist
	record.Type = CollectionPlaylist
	if record.CreatedAt == "" {
		record.CreatedAt = now
	}
	uri, err := im.repo.CreateRecord(ctx, CollectionPlaylist, "", record)
	if err != nil {
		return "", false, err
	}
	return uri, true, nil
}

// ensureTracks returns one URI per track in source order, creating records for
// tracks whose URL is not yet in the repository.
func (im *Importer) ensureTracks(ctx context.Context, tracks []Track, now string) ([]string, int, error) {
	existing, err := im.repo.ListAllRecords(ctx, im.repo.DID(), CollectionTrack)
	if err != nil {
		return nil, 0, err
	}
	byURL := make(map[string]string, len(existing))
	for _, rec := range existing {
		doc, err := lookup.Decode(rec.Value)
		if err != nil {
			continue
		}
		if url := lookup.String(doc, "$.url"); url != "" {
			byURL[url] = rec.URI
		}
	}

	uris := make([]string, len(tracks))
	var (
		writes []atproto.Write
		slots  [][]int
	)
	pending := make(map[string]int)
	for i, track := range tracks {
		if track.URL == "" {
			logging.WarnWithContext(im.logger, "track has no url", "track_without_url",
				logging.String("title", track.Title),
				logging.String(logging.FieldImpact, "a new track record and playlist item are written on every import"))
		}
		if uri, ok := byURL[track.URL]; ok && track.URL != "" {
			uris[i] = uri
			continue
		}
		if w, ok := pending[track.URL]; ok && track.URL != "" {
			slots[w] = append(slots[w], i)
			continue
		}
		record := track
		record.Type = CollectionTrack
		if record.CreatedAt == "" {
			record.CreatedAt = now
		}
		if track.URL != "" {
			pending[track.URL] = len(writes)
		}
		writes = append(writes, atproto.Create(CollectionTrack, record))
		slots = append(slots, []int{i})
	}
	if len(writes) == 0 {
		im.logger.Info("no track record creation required")
		return uris, 0, nil
	}

	results, err := im.repo.ApplyWritesBatched(ctx, writes, im.batchSize, im.progress("tracks"))
	if err != nil {
		return nil, 0, err
	}
	created := atproto.CreatedURIs(results)
	if len(created) != len(writes) {
		return nil, 0, fmt.Errorf("track writes returned %d uris for %d records", len(created), len(writes))
	}
	for w, positions := range slots {
		for _, i := range positions {
			uris[i] = created[w]
		}
	}
	return uris, len(writes), nil
}

// appendItems links trackURIs onto the tail of the playlist, skipping tracks
// the playlist already holds. The first appended item points back at the
// tail playlist item; the rest point at their neighbouring tracks.
func (im *Importer) appendItems(ctx context.Context, playlistURI string, trackURIs []string, now string) (int, error) {
	existing, err := im.repo.ListAllRecords(ctx, im.repo.DID(), CollectionPlaylistItem)
	if err != nil {
		return 0, err
	}
	present := make(map[string]bool)
	var (
		tail    map[string]any
		tailURI string
	)
	for _, rec := range existing {
		doc, err := lookup.Decode(rec.Value)
		if err != nil || lookup.String(doc, "$.playlist") != playlistURI {
			continue
		}
		present[lookup.String(doc, "$.track")] = true
		if lookup.String(doc, "$.nodes.nextUri") == "" {
			if value, ok := doc.(map[string]any); ok {
				tail, tailURI = value, rec.URI
			}
		}
	}

	fresh := make([]string, 0, len(trackURIs))
	for _, uri := range trackURIs {
		if present[uri] {
			continue
		}
		present[uri] = true
		fresh = append(fresh, uri)
	}
	if len(fresh) == 0 {
		im.logger.Info("no playlistitem record creation required")
		return 0, nil
	}

	writes := make([]atproto.Write, 0, len(fresh)+1)
	previous := ""
	if tail != nil {
		nodes, ok := tail["nodes"].(map[string]any)
		if !ok {
			nodes = make(map[string]any)
			tail["nodes"] = nodes
		}
		nodes["nextUri"] = fresh[0]
		writes = append(writes, atproto.Update(CollectionPlaylistItem, atproto.RKeyOf(tailURI), tail))
		previous = tailURI
	}
	for i, uri := range fresh {
		next := ""
		if i+1 < len(fresh) {
			next = fresh[i+1]
		}
		writes = append(writes, atproto.Create(CollectionPlaylistItem, PlaylistItem{
			Type:      CollectionPlaylistItem,
			Playlist:  playlistURI,
			Track:     uri,
			CreatedAt: now,
			Nodes:     Nodes{PreviousURI: previous, NextURI: next},
		}))
		previous = uri
	}
	if _, err := im.repo.ApplyWritesBatched(ctx, writes, im.batchSize, im.progress("playlist items")); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// storedReference reads a playlist's reference without assuming field types;
// numeric ids are rendered as strings.
func storedReference(rec atproto.Record) (Reference, bool) {
	doc, err := lookup.Decode(rec.Value)
	if err != nil {
		return Reference{}, false
	}
	return Reference{
		Source: lookup.String(doc, "$.reference.source"),
		Link:   lookup.String(doc, "$.reference.link"),
		ID:     lookup.String(doc, "$.reference.id"),
	}, true
}

func (im *Importer) progress(stage string) atproto.BatchProgress {
	return func(done, total int) {
		im.logger.Info("applyWrites complete",
			logging.String("stage", stage),
			logging.Int("batch", done),
			logging.Int("batches", total))
	}
}
