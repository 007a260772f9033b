package plex

import (
	"context"
	"fmt"
	"net/url"

	sentry "github.com/getsentry/sentry-go"

	"plexbeat/models"
)

// SearchTracks runs a global library search and keeps only track hits.
// Used by the import matcher and the recommendation resolver.
func (c *Client) SearchTracks(ctx context.Context, serverURI, query string, limit int) ([]models.Track, error) {
	span := sentry.StartSpan(ctx, "plex.search_tracks")
	span.Description = "Search library tracks"
	span.SetTag("query", query)
	defer span.Finish()

	if query == "" {
		span.Status = sentry.SpanStatusInvalidArgument
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = 10
	}

	searchURL := fmt.Sprintf("%s/search?query=%s&limit=%d", serverURI, url.QueryEscape(query), limit)

	var envelope mediaContainerEnvelope
	if err := c.getJSON(ctx, searchURL, &envelope); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	tracks := make([]models.Track, 0, limit)
	for _, md := range envelope.MediaContainer.Metadata {
		if md.Type != "track" {
			continue
		}
		tracks = append(tracks, trackFromMetadata(md))
		if len(tracks) >= limit {
			break
		}
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("hit_count", len(tracks))
	return tracks, nil
}
