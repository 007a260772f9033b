package plex

import (
	"net/url"
	"strconv"
	"strings"

	"plexbeat/models"
)

// ResolveOptions steer how a track's playback URL is built. Zero values
// fall back to sane transcode targets so the resolver stays usable without
// touching global config.
type ResolveOptions struct {
	// ForceTranscode requests the universal transcoder even for containers
	// that would direct-play, used when a direct attempt already failed.
	ForceTranscode bool
	// HeaderAuth keeps the token out of the URL; the caller must fetch the
	// stream itself with identification headers.
	HeaderAuth  bool
	Codec       string
	BitrateKbps int
	Channels    int
}

// Decision is the resolver's verdict for one track. An empty URL is the
// unplayable sentinel: skip the track, never retry it with this strategy.
type Decision struct {
	URL                 string
	RequiresAuthHeaders bool
}

// Containers the standard decode pipelines cannot play and the server
// cannot transcode either. Resolution returns the empty sentinel for these.
var problematicContainers = map[string]bool{
	"wma": true,
	"wmv": true,
	"asf": true,
}

// Containers that only play through the transcoder.
var transcodeContainers = map[string]bool{
	"aiff": true,
	"ape":  true,
	"dsf":  true,
	"tta":  true,
	"wv":   true,
}

const transcodePath = "/music/:/transcode/universal/start.mp3"

// ResolveTrackPlayback decides the playable URL for a track against the
// chosen server endpoint. It never fails: missing inputs or unresolvable
// media yield an empty URL, which callers treat as skip-not-retry.
func ResolveTrackPlayback(track models.Track, serverURI, token string, opts ResolveOptions) Decision {
	if serverURI == "" || token == "" {
		return Decision{}
	}

	if track.HasAbsoluteURL() && !opts.ForceTranscode {
		return Decision{URL: track.URL}
	}

	container := track.Container()
	if problematicContainers[container] {
		return Decision{}
	}

	if opts.ForceTranscode || transcodeContainers[container] {
		return transcodeDecision(track, serverURI, token, opts)
	}

	part := track.FirstPart()
	if part == nil || part.Key == "" {
		return Decision{}
	}

	return Decision{
		URL: strings.TrimSuffix(serverURI, "/") + part.Key + "?X-Plex-Token=" + url.QueryEscape(token),
	}
}

func transcodeDecision(track models.Track, serverURI, token string, opts ResolveOptions) Decision {
	if track.Key == "" {
		return Decision{}
	}

	codec := opts.Codec
	if codec == "" {
		codec = "mp3"
	}
	bitrate := opts.BitrateKbps
	if bitrate <= 0 {
		bitrate = 320
	}
	channels := opts.Channels
	if channels <= 0 {
		channels = 2
	}

	sourcePath := track.Key
	if !strings.HasPrefix(sourcePath, "/") {
		sourcePath = "/library/metadata/" + sourcePath
	}

	params := url.Values{}
	params.Set("path", sourcePath)
	params.Set("mediaIndex", "0")
	params.Set("partIndex", "0")
	params.Set("protocol", "http")
	params.Set("audioCodec", codec)
	params.Set("musicBitrate", strconv.Itoa(bitrate))
	params.Set("audioChannels", strconv.Itoa(channels))
	if !opts.HeaderAuth {
		params.Set("X-Plex-Token", token)
	}

	return Decision{
		URL:                 strings.TrimSuffix(serverURI, "/") + transcodePath + "?" + params.Encode(),
		RequiresAuthHeaders: opts.HeaderAuth,
	}
}
