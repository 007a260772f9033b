package applemusic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// musicBaseURL is a var so tests can point the scraper at a local server.
var musicBaseURL = "https://music.apple.com"

var httpClient = &http.Client{
	Timeout: 10 * time.Second,
}

var logger = log.WithFields(log.Fields{
	"module": "applemusic",
})

// fetchDocument downloads one Apple Music page. A browser User-Agent keeps
// the bot-detection page away.
func fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	logger.Tracef("fetching %s", url)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

func scrapeTrackInfo(ctx context.Context, country, albumID, trackID string) (*TrackInfo, error) {
	url := fmt.Sprintf("%s/%s/album/%s?i=%s", musicBaseURL, country, albumID, trackID)
	doc, err := fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	// JSON-LD is the reliable source; Open Graph tags survive page
	// redesigns better but carry less.
	trackInfo, err := extractFromJSONLD(doc)
	if err == nil {
		return trackInfo, nil
	}
	logger.Debugf("JSON-LD extraction failed (%v), trying Open Graph", err)

	trackInfo, err = extractFromOpenGraph(doc)
	if err != nil {
		return nil, fmt.Errorf("extracting track metadata: %w", err)
	}
	return trackInfo, nil
}

func scrapeAlbumTracks(ctx context.Context, country, albumID string) (*AlbumResult, error) {
	url := fmt.Sprintf("%s/%s/album/%s", musicBaseURL, country, albumID)
	doc, err := fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	return extractAlbumFromJSONLD(doc)
}

func scrapePlaylistTracks(ctx context.Context, country, playlistID string, limit int) (*PlaylistResult, error) {
	url := fmt.Sprintf("%s/%s/playlist/%s", musicBaseURL, country, playlistID)
	doc, err := fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	result, err := extractPlaylistFromJSONLD(doc)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(result.Tracks) > limit {
		result.Tracks = result.Tracks[:limit]
	}
	return result, nil
}

// findJSONLD returns the first ld+json block of the wanted @type.
func findJSONLD(doc *goquery.Document, wantType string) map[string]interface{} {
	var found map[string]interface{}
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			logger.Tracef("skipping unparsable JSON-LD block %d: %v", i, err)
			return true
		}
		if typeName, _ := data["@type"].(string); typeName != wantType {
			return true
		}
		found = data
		return false
	})
	return found
}

func extractFromJSONLD(doc *goquery.Document) (*TrackInfo, error) {
	data := findJSONLD(doc, "MusicRecording")
	if data == nil {
		return nil, errors.New("no JSON-LD MusicRecording data found")
	}

	title := getString(data, "name")
	if title == "" {
		return nil, errors.New("JSON-LD MusicRecording has no name")
	}

	trackInfo := &TrackInfo{Title: title, Artists: extractArtists(data)}
	if len(trackInfo.Artists) == 0 {
		return nil, errors.New("no artist data found in JSON-LD")
	}
	if albumData, ok := data["inAlbum"].(map[string]interface{}); ok {
		trackInfo.Album = getString(albumData, "name")
	}
	return trackInfo, nil
}

func extractAlbumFromJSONLD(doc *goquery.Document) (*AlbumResult, error) {
	data := findJSONLD(doc, "MusicAlbum")
	if data == nil {
		return nil, errors.New("no JSON-LD MusicAlbum data found")
	}

	name := getString(data, "name")
	if name == "" {
		return nil, errors.New("JSON-LD MusicAlbum has no name")
	}

	result := &AlbumResult{Name: name}
	if artists := extractArtists(data); len(artists) > 0 {
		result.Artist = artists[0]
	}

	for index, entry := range trackEntries(data) {
		title := getString(entry, "name")
		if title == "" {
			continue
		}
		artists := extractArtists(entry)
		if len(artists) == 0 && result.Artist != "" {
			artists = []string{result.Artist}
		}
		result.Tracks = append(result.Tracks, PlaylistTrackInfo{
			TrackInfo: TrackInfo{Title: title, Artists: artists, Album: name},
			Position:  index + 1,
		})
	}
	result.TotalTracks = len(result.Tracks)
	return result, nil
}

func extractPlaylistFromJSONLD(doc *goquery.Document) (*PlaylistResult, error) {
	data := findJSONLD(doc, "MusicPlaylist")
	if data == nil {
		return nil, errors.New("no JSON-LD MusicPlaylist data found")
	}

	result := &PlaylistResult{Name: getString(data, "name")}
	for index, entry := range trackEntries(data) {
		title := getString(entry, "name")
		if title == "" {
			continue
		}
		result.Tracks = append(result.Tracks, PlaylistTrackInfo{
			TrackInfo: TrackInfo{Title: title, Artists: extractArtists(entry)},
			Position:  index + 1,
		})
	}
	result.TotalTracks = len(result.Tracks)
	return result, nil
}

// trackEntries pulls the track list out of an album or playlist node.
// Pages have shipped the list under both "tracks" and "track", bare or
// wrapped in an ItemList, so all four shapes are accepted.
func trackEntries(data map[string]interface{}) []map[string]interface{} {
	list, ok := data["tracks"]
	if !ok {
		list = data["track"]
	}

	switch typed := list.(type) {
	case []interface{}:
		entries := make([]map[string]interface{}, 0, len(typed))
		for _, raw := range typed {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if item, ok := entry["item"].(map[string]interface{}); ok {
				entry = item
			}
			entries = append(entries, entry)
		}
		return entries
	case map[string]interface{}:
		if inner, ok := typed["itemListElement"]; ok {
			return trackEntries(map[string]interface{}{"tracks": inner})
		}
	}
	return nil
}

// extractArtists reads byArtist, which appears as a single object or an
// array depending on the page.
func extractArtists(data map[string]interface{}) []string {
	switch artistData := data["byArtist"].(type) {
	case map[string]interface{}:
		if name := getString(artistData, "name"); name != "" {
			return []string{name}
		}
	case []interface{}:
		var artists []string
		for _, raw := range artistData {
			if artistMap, ok := raw.(map[string]interface{}); ok {
				if name := getString(artistMap, "name"); name != "" {
					artists = append(artists, name)
				}
			}
		}
		return artists
	}
	return nil
}

func extractFromOpenGraph(doc *goquery.Document) (*TrackInfo, error) {
	title, _ := doc.Find("meta[property='og:title']").Attr("content")
	if title == "" {
		title, _ = doc.Find("meta[name='twitter:title']").Attr("content")
	}
	if title == "" {
		return nil, errors.New("no title found in Open Graph tags")
	}

	artist, _ := doc.Find("meta[property='music:musician']").Attr("content")
	if artist == "" {
		artist, _ = doc.Find("meta[name='music:musician']").Attr("content")
	}

	album, _ := doc.Find("meta[property='music:album']").Attr("content")
	if album == "" {
		// og:description reads "Song · Album · Year" on track pages.
		description, _ := doc.Find("meta[property='og:description']").Attr("content")
		if parts := strings.Split(description, "·"); len(parts) >= 2 {
			album = strings.TrimSpace(parts[1])
		}
	}

	// Page titles read "Track Name - Artist Name on Apple Music".
	if artist == "" {
		pageTitle := doc.Find("title").First().Text()
		if _, after, found := strings.Cut(pageTitle, " - "); found {
			artist = strings.TrimSuffix(strings.TrimSpace(after), " on Apple Music")
		}
	}
	if artist == "" {
		return nil, errors.New("no artist found in Open Graph tags or page title")
	}

	return &TrackInfo{
		Title:   title,
		Artists: []string{artist},
		Album:   album,
	}, nil
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}
