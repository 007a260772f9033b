package audio

// ElementEventType names the callbacks a media element fires while a source
// loads and plays. The engine folds these into its player state and never
// mutates that state any other way.
type ElementEventType string

const (
	ElementLoadStart      ElementEventType = "loadstart"
	ElementLoadedData     ElementEventType = "loadeddata"
	ElementDurationChange ElementEventType = "durationchange"
	ElementPlay           ElementEventType = "play"
	ElementPause          ElementEventType = "pause"
	ElementTimeUpdate     ElementEventType = "timeupdate"
	ElementProgress       ElementEventType = "progress"
	ElementEnded          ElementEventType = "ended"
	ElementVolumeChange   ElementEventType = "volumechange"
	ElementError          ElementEventType = "error"
)

type ElementEvent struct {
	Type     ElementEventType
	Time     float64 // seconds, on timeupdate
	Duration float64 // seconds, on durationchange
	Buffered float64 // seconds, on progress
	Volume   float64 // 0..1, on volumechange
	Muted    bool    // on volumechange
	Err      error   // on error
}

// Element is a single playable media pipeline. Load points it at a URL or a
// local file; events describing what happens arrive on Events. Play returns
// an error when playback is rejected outright (missing decoder, dead output
// device); everything that goes wrong later arrives as an error event.
type Element interface {
	Load(location string)
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
	SetMuted(muted bool)
	Stop()
	Events() <-chan ElementEvent
	Close()
}
