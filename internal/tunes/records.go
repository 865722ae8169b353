package tunes

// Collection NSIDs.
const (
	CollectionPlaylist     = "dev.dreary.tunes.playlist"
	CollectionTrack        = "dev.dreary.tunes.track"
	CollectionPlaylistItem = "dev.dreary.tunes.playlistitem"
)

// Source names stored in records.
const (
	SourceBandcamp   = "Bandcamp"
	SourceSoundCloud = "SoundCloud"
	SourceYouTube    = "YouTube"
	SourceSpotify    = "Spotify"
)

// Reference identifies the upstream playlist a record was imported from.
type Reference struct {
	Source string `json:"source"`
	Link   string `json:"link,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Matches reports whether other names the same upstream playlist.
func (r Reference) Matches(other Reference) bool {
	return r.Source == other.Source && r.Link == other.Link && r.ID == other.ID
}

// Person is an uploader or artist.
type Person struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Owner is a playlist owner or album artist.
type Owner struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
	Link string `json:"link,omitempty"`
}

// Playlist is a dev.dreary.tunes.playlist record.
type Playlist struct {
	Type        string    `json:"$type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Owners      []Owner   `json:"owners,omitempty"`
	Reference   Reference `json:"reference"`
	CreatedAt   string    `json:"createdAt"`
}

// Track is a dev.dreary.tunes.track record. Duration is in whole seconds.
type Track struct {
	Type        string   `json:"$type"`
	Title       string   `json:"title"`
	Uploader    *Person  `json:"uploader,omitempty"`
	Artists     []Person `json:"artists,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Duration    int      `json:"duration,omitempty"`
	Description string   `json:"description,omitempty"`
	Lyrics      string   `json:"lyrics,omitempty"`
	URL         string   `json:"url,omitempty"`
	ID          string   `json:"id,omitempty"`
	Source      string   `json:"source"`
	CreatedAt   string   `json:"createdAt"`
}

// Nodes links a playlist item to its neighbours by track URI, except that the
// first item of an appended run points back at the previous tail playlist
// item. An empty NextURI marks the tail of the list.
type Nodes struct {
	PreviousURI string `json:"previousUri,omitempty"`
	NextURI     string `json:"nextUri,omitempty"`
}

// PlaylistItem is a dev.dreary.tunes.playlistitem record.
type PlaylistItem struct {
	Type      string `json:"$type"`
	Playlist  string `json:"playlist"`
	Track     string `json:"track"`
	CreatedAt string `json:"createdAt"`
	Nodes     Nodes  `json:"nodes"`
}
