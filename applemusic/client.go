package applemusic

import (
	"context"
	"errors"
	"strconv"

	sentry "github.com/getsentry/sentry-go"
)

// GetTrack scrapes one track page. Track links always carry the album ID
// alongside the track ID.
func GetTrack(ctx context.Context, country, albumID, trackID string) (*TrackInfo, error) {
	span := sentry.StartSpan(ctx, "applemusic.get_track")
	span.Description = "Scrape track metadata from Apple Music"
	span.SetTag("country", country)
	span.SetTag("track_id", trackID)
	span.SetTag("album_id", albumID)
	defer span.Finish()

	if country == "" {
		country = "us"
	}
	if albumID == "" || trackID == "" {
		span.Status = sentry.SpanStatusInvalidArgument
		return nil, errors.New("albumID and trackID are required")
	}

	trackInfo, err := scrapeTrackInfo(ctx, country, albumID, trackID)
	if err != nil {
		logger.Errorf("scraping track %s: %v", trackID, err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("track_title", trackInfo.Title)
	logger.Debugf("scraped track %q by %v", trackInfo.Title, trackInfo.Artists)
	return trackInfo, nil
}

// GetAlbumTracks scrapes an album page into its track list.
func GetAlbumTracks(ctx context.Context, country, albumID string) (*AlbumResult, error) {
	span := sentry.StartSpan(ctx, "applemusic.get_album_tracks")
	span.Description = "Scrape album tracks from Apple Music"
	span.SetTag("country", country)
	span.SetTag("album_id", albumID)
	defer span.Finish()

	if country == "" {
		country = "us"
	}
	if albumID == "" {
		span.Status = sentry.SpanStatusInvalidArgument
		return nil, errors.New("albumID is required")
	}

	albumResult, err := scrapeAlbumTracks(ctx, country, albumID)
	if err != nil {
		logger.Errorf("scraping album %s: %v", albumID, err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	if len(albumResult.Tracks) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return nil, errors.New("album has no listed tracks")
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("album_name", albumResult.Name)
	span.SetData("tracks_count", len(albumResult.Tracks))
	logger.Debugf("scraped album %q by %s (%d tracks)",
		albumResult.Name, albumResult.Artist, len(albumResult.Tracks))
	return albumResult, nil
}

// GetPlaylistTracks scrapes a playlist page, capped at limit tracks.
func GetPlaylistTracks(ctx context.Context, country, playlistID string, limit int) (*PlaylistResult, error) {
	span := sentry.StartSpan(ctx, "applemusic.get_playlist_tracks")
	span.Description = "Scrape playlist tracks from Apple Music"
	span.SetTag("country", country)
	span.SetTag("playlist_id", playlistID)
	span.SetTag("limit", strconv.Itoa(limit))
	defer span.Finish()

	if country == "" {
		country = "us"
	}
	if playlistID == "" {
		span.Status = sentry.SpanStatusInvalidArgument
		return nil, errors.New("playlistID is required")
	}

	playlistResult, err := scrapePlaylistTracks(ctx, country, playlistID, limit)
	if err != nil {
		logger.Errorf("scraping playlist %s: %v", playlistID, err)
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	if len(playlistResult.Tracks) == 0 {
		span.Status = sentry.SpanStatusNotFound
		return nil, errors.New("playlist has no listed tracks")
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("playlist_name", playlistResult.Name)
	span.SetData("tracks_count", len(playlistResult.Tracks))
	logger.Debugf("scraped playlist %q (%d tracks)",
		playlistResult.Name, len(playlistResult.Tracks))
	return playlistResult, nil
}
