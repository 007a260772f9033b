package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TracksPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plexbeat_tracks_played_total",
		Help: "Tracks that started playing.",
	})
	PlaybackErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plexbeat_playback_errors_total",
		Help: "Playback failures, load errors included.",
	})
	TranscodeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plexbeat_transcode_retries_total",
		Help: "Tracks retried with a forced transcode after a direct play failure.",
	})
	TracksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plexbeat_tracks_skipped_total",
		Help: "Tracks skipped because they could not be resolved or played.",
	})
	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plexbeat_websocket_clients",
		Help: "Connected state stream clients.",
	})
)
