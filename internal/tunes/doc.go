// Package tunes imports playlists from music services into the repository as
// dev.dreary.tunes.playlist, track, and playlistitem records.
//
// Extractors live in the bandcamp, soundcloud, youtube, and spotify
// subpackages. Each one implements Source and returns source-neutral Playlist
// and Track values; the Importer takes care of deduplication against records
// already in the repository and of threading new playlist items onto the end
// of the existing linked list.
package tunes
