package applemusic

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	albumRegex    = regexp.MustCompile(`/album/[^/]+/(\d+)`)
	playlistRegex = regexp.MustCompile(`/playlist/[^/]+/(pl\.[a-zA-Z0-9-]+)`)
	artistRegex   = regexp.MustCompile(`/artist/[^/]+/(\d+)`)
)

// ParseAppleMusicURL extracts the country code and track/album/playlist/
// artist IDs from a share link. Both music.apple.com and itunes.apple.com
// links are accepted.
func ParseAppleMusicURL(rawURL string) (AppleMusicRequest, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return AppleMusicRequest{}, err
	}
	if !strings.Contains(parsedURL.Host, "apple.com") {
		return AppleMusicRequest{}, errors.New("not an Apple Music URL")
	}

	request := AppleMusicRequest{}

	pathParts := strings.Split(strings.TrimPrefix(parsedURL.Path, "/"), "/")
	if len(pathParts) > 0 {
		request.Country = pathParts[0]
	}

	// Track links are album links with an ?i= query.
	if trackID := parsedURL.Query().Get("i"); trackID != "" {
		request.TrackID = trackID
		if matches := albumRegex.FindStringSubmatch(parsedURL.Path); len(matches) > 1 {
			request.AlbumID = matches[1]
		}
		return request, nil
	}

	switch {
	case strings.Contains(parsedURL.Path, "/album/"):
		if matches := albumRegex.FindStringSubmatch(parsedURL.Path); len(matches) > 1 {
			request.AlbumID = matches[1]
		}
	case strings.Contains(parsedURL.Path, "/playlist/"):
		if matches := playlistRegex.FindStringSubmatch(parsedURL.Path); len(matches) > 1 {
			request.PlaylistID = matches[1]
		}
	case strings.Contains(parsedURL.Path, "/artist/"):
		if matches := artistRegex.FindStringSubmatch(parsedURL.Path); len(matches) > 1 {
			request.ArtistID = matches[1]
		}
	}

	if request.TrackID == "" && request.AlbumID == "" &&
		request.PlaylistID == "" && request.ArtistID == "" {
		return AppleMusicRequest{}, errors.New("could not parse Apple Music URL")
	}

	return request, nil
}
