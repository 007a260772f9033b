// Package lyrics looks up lyrics on lrclib.net, a free service that needs
// no API key.
package lyrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

type searchResult struct {
	ID           int    `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	AlbumName    string `json:"albumName"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// Result is the best lyrics hit for a track. Synced reports whether the
// lyrics carry LRC timestamps.
type Result struct {
	TrackName  string
	ArtistName string
	Lyrics     string
	Synced     bool
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New() *Client {
	return &Client{
		baseURL: "https://lrclib.net",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Search finds lyrics for one track. It returns the first hit, preferring
// synced lyrics over plain ones, and (nil, nil) when lrclib has nothing.
func (c *Client) Search(ctx context.Context, trackName, artistName string) (*Result, error) {
	params := url.Values{}
	params.Set("track_name", trackName)
	if artistName != "" {
		params.Set("artist_name", artistName)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying lrclib: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lrclib returned status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding lrclib response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	hit := results[0]
	result := &Result{
		TrackName:  hit.TrackName,
		ArtistName: hit.ArtistName,
	}
	switch {
	case hit.SyncedLyrics != "":
		result.Lyrics = hit.SyncedLyrics
		result.Synced = true
	case hit.PlainLyrics != "":
		result.Lyrics = hit.PlainLyrics
	default:
		return nil, nil
	}
	return result, nil
}
