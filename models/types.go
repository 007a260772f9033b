package models

import "strings"

// Track is a playable library item as it moves between the plex client,
// the queue and the playback engine. Key is the stable identifier within
// a queue; order in a queue is significant.
type Track struct {
	Key        string      `json:"key"`
	RatingKey  string      `json:"ratingKey,omitempty"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist,omitempty"`
	Album      string      `json:"album,omitempty"`
	Thumb      string      `json:"thumb,omitempty"`
	DurationMS int64       `json:"duration,omitempty"`
	UserRating float64     `json:"userRating,omitempty"`
	URL        string      `json:"url,omitempty"`
	Parts      []MediaPart `json:"parts,omitempty"`
}

// MediaPart is the raw media-part descriptor a track carries for lazy URL
// building: the file key plus container/codec hints.
type MediaPart struct {
	Key       string `json:"key"`
	Container string `json:"container,omitempty"`
	Size      int64  `json:"size,omitempty"`
}

// FirstPart returns the first media part, or nil when the track carries none.
func (t *Track) FirstPart() *MediaPart {
	if len(t.Parts) == 0 {
		return nil
	}
	return &t.Parts[0]
}

// Container returns the container hint for the track's first part, lowercased.
// Falls back to the file extension of the part key when the container field
// is missing from the listing response.
func (t *Track) Container() string {
	part := t.FirstPart()
	if part == nil {
		return ""
	}
	if part.Container != "" {
		return strings.ToLower(part.Container)
	}
	if idx := strings.LastIndex(part.Key, "."); idx >= 0 && idx < len(part.Key)-1 {
		return strings.ToLower(part.Key[idx+1:])
	}
	return ""
}

// HasAbsoluteURL reports whether the track already carries a resolved URL
// that can be handed to the engine as-is.
func (t *Track) HasAbsoluteURL() bool {
	return strings.HasPrefix(t.URL, "http://") || strings.HasPrefix(t.URL, "https://")
}
