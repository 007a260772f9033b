package applemusic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"plexbeat/models"
	"plexbeat/sentryhelper"
)

// LibrarySearcher is the slice of the media server client the importer
// needs: a way to turn "artist title" text into library tracks.
type LibrarySearcher interface {
	SearchTracks(ctx context.Context, serverURI, query string, limit int) ([]models.Track, error)
}

// ImportResult is the outcome of one import: the library tracks that
// matched, and the labels of everything that did not.
type ImportResult struct {
	Source    string         `json:"source"`
	Matched   []models.Track `json:"matched"`
	Unmatched []string       `json:"unmatched"`
}

type Importer struct {
	searcher   LibrarySearcher
	trackLimit int
	logger     *log.Entry
}

func NewImporter(searcher LibrarySearcher, trackLimit int) *Importer {
	return &Importer{
		searcher:   searcher,
		trackLimit: trackLimit,
		logger: log.WithFields(log.Fields{
			"module": "applemusic",
		}),
	}
}

// Import scrapes a share link and resolves every scraped track against the
// library. Scrape failures abort; match misses only land in Unmatched.
func (i *Importer) Import(ctx context.Context, serverURI, rawURL string) (*ImportResult, error) {
	request, err := ParseAppleMusicURL(rawURL)
	if err != nil {
		return nil, err
	}

	var source string
	var wanted []TrackInfo

	switch {
	case request.TrackID != "":
		info, err := GetTrack(ctx, request.Country, request.AlbumID, request.TrackID)
		if err != nil {
			return nil, err
		}
		source = info.Label()
		wanted = []TrackInfo{*info}
	case request.AlbumID != "":
		album, err := GetAlbumTracks(ctx, request.Country, request.AlbumID)
		if err != nil {
			return nil, err
		}
		source = album.Name
		for _, track := range album.Tracks {
			wanted = append(wanted, track.TrackInfo)
		}
	case request.PlaylistID != "":
		playlist, err := GetPlaylistTracks(ctx, request.Country, request.PlaylistID, i.trackLimit)
		if err != nil {
			return nil, err
		}
		source = playlist.Name
		for _, track := range playlist.Tracks {
			wanted = append(wanted, track.TrackInfo)
		}
	default:
		return nil, errors.New("only track, album and playlist links can be imported")
	}

	sentryhelper.AddBreadcrumb(ctx, &sentry.Breadcrumb{
		Category: "import",
		Message:  fmt.Sprintf("scraped %d tracks from %q", len(wanted), source),
		Level:    sentry.LevelInfo,
	})

	result := &ImportResult{Source: source}
	for _, info := range wanted {
		track, err := i.match(ctx, serverURI, info)
		if err != nil {
			i.logger.Warnf("library search for %q failed: %v", info.Label(), err)
		}
		if track == nil {
			result.Unmatched = append(result.Unmatched, info.Label())
			continue
		}
		result.Matched = append(result.Matched, *track)
	}

	sentryhelper.AddBreadcrumb(ctx, &sentry.Breadcrumb{
		Category: "import",
		Message:  fmt.Sprintf("matched %d of %d tracks", len(result.Matched), len(wanted)),
		Level:    sentry.LevelInfo,
	})

	i.logger.Infof("import of %q matched %d/%d tracks", source, len(result.Matched), len(wanted))
	return result, nil
}

// match searches artist plus title first and retries on title alone, since
// artist credits rarely agree between services. An exact title hit beats
// the first result.
func (i *Importer) match(ctx context.Context, serverURI string, info TrackInfo) (*models.Track, error) {
	query := info.Title
	if len(info.Artists) > 0 {
		query = info.Artists[0] + " " + info.Title
	}

	hits, err := i.searcher.SearchTracks(ctx, serverURI, query, 5)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 && len(info.Artists) > 0 {
		hits, err = i.searcher.SearchTracks(ctx, serverURI, info.Title, 5)
		if err != nil {
			return nil, err
		}
	}

	for _, hit := range hits {
		if strings.EqualFold(hit.Title, info.Title) {
			match := hit
			return &match, nil
		}
	}
	if len(hits) > 0 {
		match := hits[0]
		return &match, nil
	}
	return nil, nil
}
