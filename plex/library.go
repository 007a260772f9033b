package plex

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	sentry "github.com/getsentry/sentry-go"

	"plexbeat/models"
)

const libraryIdentifier = "com.plexapp.plugins.library"

// Playlists lists the server's audio playlists. Video and photo playlists
// are filtered out.
func (c *Client) Playlists(ctx context.Context, serverURI string) ([]Playlist, error) {
	span := sentry.StartSpan(ctx, "plex.playlists")
	span.Description = "List audio playlists"
	defer span.Finish()

	var envelope mediaContainerEnvelope
	if err := c.getJSON(ctx, serverURI+"/playlists", &envelope); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(envelope.MediaContainer.Metadata))
	for _, md := range envelope.MediaContainer.Metadata {
		if md.PlaylistType != "audio" {
			continue
		}
		thumb := md.Composite
		if thumb == "" {
			thumb = md.Thumb
		}
		playlists = append(playlists, Playlist{
			Key:       md.RatingKey,
			Title:     md.Title,
			Smart:     md.Smart,
			Summary:   md.Summary,
			LeafCount: md.LeafCount,
			Thumb:     thumb,
		})
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("playlist_count", len(playlists))
	return playlists, nil
}

// PlaylistItems fetches the tracks of one playlist, mapped to queueable
// tracks. limit <= 0 falls back to 50.
func (c *Client) PlaylistItems(ctx context.Context, serverURI, playlistKey string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "plex.playlist_items")
	span.Description = "Fetch playlist tracks"
	span.SetTag("playlist", playlistKey)
	defer span.Finish()

	if limit <= 0 {
		limit = 50
	}

	url := fmt.Sprintf("%s/playlists/%s/items?X-Plex-Container-Start=0&X-Plex-Container-Size=%d",
		serverURI, url.PathEscape(playlistKey), limit)

	var envelope mediaContainerEnvelope
	if err := c.getJSON(ctx, url, &envelope); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("fetching playlist %s items: %w", playlistKey, err)
	}

	tracks := make([]models.Track, 0, len(envelope.MediaContainer.Metadata))
	for _, md := range envelope.MediaContainer.Metadata {
		tracks = append(tracks, trackFromMetadata(md))
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("track_count", len(tracks))
	return tracks, nil
}

// CreatePlaylist makes a new static audio playlist from track rating keys.
func (c *Client) CreatePlaylist(ctx context.Context, serverURI, title string, ratingKeys []string) (*Playlist, error) {
	span := sentry.StartSpan(ctx, "plex.create_playlist")
	span.Description = "Create audio playlist"
	span.SetTag("title", title)
	defer span.Finish()

	if title == "" || len(ratingKeys) == 0 {
		span.Status = sentry.SpanStatusInvalidArgument
		return nil, fmt.Errorf("playlist title and at least one track are required")
	}

	machineID, err := c.Identity(ctx, serverURI)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("resolving machine identifier: %w", err)
	}

	params := url.Values{}
	params.Set("type", "audio")
	params.Set("title", title)
	params.Set("smart", "0")
	params.Set("uri", fmt.Sprintf("server://%s/%s/library/metadata/%s",
		machineID, libraryIdentifier, strings.Join(ratingKeys, ",")))

	var envelope mediaContainerEnvelope
	if err := c.do(ctx, "POST", serverURI+"/playlists?"+params.Encode(), &envelope); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("creating playlist %q: %w", title, err)
	}
	if len(envelope.MediaContainer.Metadata) == 0 {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("create playlist response was empty")
	}

	md := envelope.MediaContainer.Metadata[0]
	span.Status = sentry.SpanStatusOK
	c.logger.Infof("created playlist %q with %d tracks", title, len(ratingKeys))
	return &Playlist{
		Key:       md.RatingKey,
		Title:     md.Title,
		Smart:     md.Smart,
		LeafCount: md.LeafCount,
	}, nil
}

// RateTrack writes a star rating (0-10) for a track. The server stores
// ratings on a 0-20 scale, so the value is doubled on the way in.
func (c *Client) RateTrack(ctx context.Context, serverURI, ratingKey string, rating float64) error {
	span := sentry.StartSpan(ctx, "plex.rate_track")
	span.Description = "Write track rating"
	span.SetTag("ratingKey", ratingKey)
	defer span.Finish()

	if rating < 0 {
		rating = 0
	}
	if rating > 10 {
		rating = 10
	}

	params := url.Values{}
	params.Set("key", ratingKey)
	params.Set("identifier", libraryIdentifier)
	params.Set("rating", strconv.FormatFloat(rating*2, 'f', -1, 64))

	if err := c.do(ctx, "PUT", serverURI+"/:/rate?"+params.Encode(), nil); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return fmt.Errorf("rating track %s: %w", ratingKey, err)
	}

	span.Status = sentry.SpanStatusOK
	c.logger.Debugf("rated track %s: %.1f/10", ratingKey, rating)
	return nil
}

// TopRatedTracks walks the music sections and returns tracks at or above
// minRating (0-10 scale), best first. Stored ratings are doubled, so the
// filter doubles and the returned ratings are halved back.
func (c *Client) TopRatedTracks(ctx context.Context, serverURI string, minRating float64, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "plex.top_rated")
	span.Description = "Fetch top rated tracks"
	defer span.Finish()

	if limit <= 0 {
		limit = 50
	}

	sections, err := c.musicSections(ctx, serverURI)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	var all []metadata
	for _, section := range sections {
		url := fmt.Sprintf("%s/library/sections/%s/all?type=10&userRating>=%s",
			serverURI, section.Key, strconv.FormatFloat(minRating*2, 'f', -1, 64))
		var envelope mediaContainerEnvelope
		if err := c.getJSON(ctx, url, &envelope); err != nil {
			span.Status = sentry.SpanStatusInternalError
			return nil, fmt.Errorf("fetching rated tracks from section %s: %w", section.Key, err)
		}
		for _, md := range envelope.MediaContainer.Metadata {
			if md.UserRating >= minRating*2 {
				all = append(all, md)
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].UserRating > all[j].UserRating
	})
	if len(all) > limit {
		all = all[:limit]
	}

	tracks := make([]models.Track, 0, len(all))
	for _, md := range all {
		track := trackFromMetadata(md)
		track.UserRating = md.UserRating / 2
		tracks = append(tracks, track)
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("track_count", len(tracks))
	return tracks, nil
}

func (c *Client) musicSections(ctx context.Context, serverURI string) ([]directory, error) {
	var envelope mediaContainerEnvelope
	if err := c.getJSON(ctx, serverURI+"/library/sections", &envelope); err != nil {
		return nil, fmt.Errorf("listing library sections: %w", err)
	}

	var sections []directory
	for _, dir := range envelope.MediaContainer.Directory {
		if dir.Type == "artist" {
			sections = append(sections, dir)
		}
	}
	return sections, nil
}

func trackFromMetadata(md metadata) models.Track {
	track := models.Track{
		Key:        md.Key,
		RatingKey:  md.RatingKey,
		Title:      md.Title,
		Artist:     md.GrandparentTitle,
		Album:      md.ParentTitle,
		Thumb:      md.Thumb,
		DurationMS: md.Duration,
		UserRating: md.UserRating,
	}
	for _, m := range md.Media {
		for _, p := range m.Part {
			container := p.Container
			if container == "" {
				container = m.Container
			}
			track.Parts = append(track.Parts, models.MediaPart{
				Key:       p.Key,
				Container: container,
				Size:      p.Size,
			})
		}
	}
	return track
}
