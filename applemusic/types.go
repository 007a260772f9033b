package applemusic

// AppleMusicRequest is a parsed Apple Music share link.
type AppleMusicRequest struct {
	TrackID    string
	AlbumID    string
	PlaylistID string
	ArtistID   string
	Country    string
}

// TrackInfo is the metadata a page exposes about one track. There is no
// stream here; tracks get matched against the library before they can play.
type TrackInfo struct {
	Title   string
	Artists []string
	Album   string
}

// Label renders the track the way unmatched entries are reported.
func (t TrackInfo) Label() string {
	if len(t.Artists) > 0 {
		return t.Artists[0] + " - " + t.Title
	}
	return t.Title
}

// PlaylistTrackInfo is a track with its position in the source collection.
type PlaylistTrackInfo struct {
	TrackInfo
	Position int
}

// AlbumResult is a scraped album page.
type AlbumResult struct {
	Name        string
	Artist      string
	Tracks      []PlaylistTrackInfo
	TotalTracks int
}

// PlaylistResult is a scraped playlist page.
type PlaylistResult struct {
	Name        string
	Tracks      []PlaylistTrackInfo
	TotalTracks int
}
