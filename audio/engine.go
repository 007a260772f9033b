package audio

import (
	"context"
	"os"
	"sync"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// State is the coarse playback lifecycle phase.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateErrored State = "errored"
)

// PlayerState is the full snapshot broadcast to clients.
type PlayerState struct {
	State           State   `json:"state"`
	IsPlaying       bool    `json:"isPlaying"`
	IsPaused        bool    `json:"isPaused"`
	IsLoading       bool    `json:"isLoading"`
	CurrentTime     float64 `json:"currentTime"`
	Duration        float64 `json:"duration"`
	BufferedUpTo    float64 `json:"bufferedUpTo"`
	Volume          float64 `json:"volume"`
	IsMuted         bool    `json:"isMuted"`
	CurrentTrackURL string  `json:"currentTrackUrl,omitempty"`
	Error           string  `json:"error,omitempty"`
}

type PlaybackNotificationType string

const (
	PlaybackLoading      PlaybackNotificationType = "loading"
	PlaybackLoaded       PlaybackNotificationType = "loaded"
	PlaybackLoadError    PlaybackNotificationType = "load_error"
	PlaybackLoadCanceled PlaybackNotificationType = "load_canceled"
	PlaybackStarted      PlaybackNotificationType = "started"
	PlaybackPaused       PlaybackNotificationType = "paused"
	PlaybackResumed      PlaybackNotificationType = "resumed"
	PlaybackCompleted    PlaybackNotificationType = "completed"
	PlaybackStopped      PlaybackNotificationType = "stopped"
	PlaybackError        PlaybackNotificationType = "error"
)

type PlaybackNotification struct {
	Event    PlaybackNotificationType
	TrackURL string
	Error    error
}

// Engine drives one Element and folds its event stream into a PlayerState
// snapshot, surfacing lifecycle changes on the notifications channel.
type Engine struct {
	element       Element
	fetcher       *Fetcher
	notifications chan PlaybackNotification
	logger        *log.Entry

	mutex            sync.Mutex
	state            PlayerState
	generation       int
	blobPath         string
	startedSinceLoad bool
	wantPlay         bool // play intent for the pending source
	fetching         bool // a header fetch still owes the element its source

	notifyMutex         sync.Mutex
	notificationsClosed bool
}

func NewEngine(element Element, fetcher *Fetcher) *Engine {
	e := &Engine{
		element:       element,
		fetcher:       fetcher,
		notifications: make(chan PlaybackNotification, 100),
		state: PlayerState{
			State:  StateIdle,
			Volume: 1.0,
		},
		logger: log.WithFields(log.Fields{
			"module": "audio",
		}),
	}
	go e.listen()
	return e
}

func (e *Engine) Notifications() <-chan PlaybackNotification {
	return e.notifications
}

func (e *Engine) State() PlayerState {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.state
}

// LoadTrack points the engine at a new source. When the source needs auth
// headers it is fetched to a local blob first, since the element's decoder
// only speaks plain URLs and file paths. LoadTrack never blocks on network
// or decode work; failures surface as load_error notifications.
func (e *Engine) LoadTrack(url string, requiresAuthHeaders bool) {
	e.element.Stop()

	e.mutex.Lock()
	e.generation++
	gen := e.generation
	oldBlob := e.blobPath
	e.blobPath = ""
	e.startedSinceLoad = false
	e.wantPlay = false
	e.fetching = requiresAuthHeaders
	e.state.CurrentTrackURL = url
	e.state.Error = ""
	e.state.CurrentTime = 0
	e.state.Duration = 0
	e.state.BufferedUpTo = 0
	e.state.IsPlaying = false
	e.state.IsPaused = false
	e.state.IsLoading = true
	e.state.State = StateLoading
	e.mutex.Unlock()

	if oldBlob != "" {
		os.Remove(oldBlob)
	}

	if !requiresAuthHeaders {
		e.element.Load(url)
		return
	}
	go e.fetchAndLoad(gen, url)
}

func (e *Engine) fetchAndLoad(gen int, url string) {
	path, err := e.fetcher.Fetch(context.Background(), url)

	e.mutex.Lock()
	stale := gen != e.generation
	e.mutex.Unlock()

	if stale {
		if err == nil {
			os.Remove(path)
		}
		e.logger.Trace("discarding superseded track fetch")
		e.notify(PlaybackNotification{Event: PlaybackLoadCanceled, TrackURL: url})
		return
	}

	if err != nil {
		// fetching stays set: the element still holds the previous source,
		// and a Play must not start that buffer.
		e.failLoad(url, err)
		return
	}

	e.mutex.Lock()
	e.blobPath = path
	e.mutex.Unlock()

	e.element.Load(path)

	e.mutex.Lock()
	play := false
	if gen == e.generation {
		e.fetching = false
		play = e.wantPlay
	}
	e.mutex.Unlock()

	if play {
		e.Play()
	}
}

func (e *Engine) failLoad(url string, err error) {
	e.logger.Errorf("error loading track: %v", err)
	sentry.CaptureException(err)

	e.mutex.Lock()
	e.state.IsLoading = false
	e.state.IsPlaying = false
	e.state.IsPaused = false
	e.state.Error = err.Error()
	e.state.State = StateErrored
	e.mutex.Unlock()

	e.notify(PlaybackNotification{Event: PlaybackLoadError, TrackURL: url, Error: err})
}

// Play returns an error only when the element rejects playback outright.
// Failures after a successful start arrive as error notifications. While a
// header fetch is in flight the element still holds the previous source, so
// the intent is only recorded and fetchAndLoad re-asserts it once the new
// source lands.
func (e *Engine) Play() error {
	e.mutex.Lock()
	e.wantPlay = true
	deferred := e.fetching
	e.mutex.Unlock()
	if deferred {
		return nil
	}

	if err := e.element.Play(); err != nil {
		e.logger.Errorf("play rejected: %v", err)
		sentry.CaptureException(err)

		e.mutex.Lock()
		e.state.Error = err.Error()
		e.state.State = StateErrored
		url := e.state.CurrentTrackURL
		e.mutex.Unlock()

		e.notify(PlaybackNotification{Event: PlaybackError, TrackURL: url, Error: err})
		return err
	}
	return nil
}

func (e *Engine) Pause() {
	e.mutex.Lock()
	e.wantPlay = false
	e.mutex.Unlock()

	e.element.Pause()
}

func (e *Engine) TogglePlayPause() error {
	e.mutex.Lock()
	playing := e.state.IsPlaying || (e.fetching && e.wantPlay)
	e.mutex.Unlock()

	if playing {
		e.Pause()
		return nil
	}
	return e.Play()
}

func (e *Engine) Seek(seconds float64) {
	e.element.Seek(seconds)
}

func (e *Engine) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	e.element.SetVolume(volume)
}

func (e *Engine) ToggleMute() {
	e.mutex.Lock()
	muted := e.state.IsMuted
	e.mutex.Unlock()

	e.element.SetMuted(!muted)
}

func (e *Engine) Stop() {
	e.mutex.Lock()
	e.wantPlay = false
	url := e.state.CurrentTrackURL
	e.mutex.Unlock()

	e.element.Stop()
	e.notify(PlaybackNotification{Event: PlaybackStopped, TrackURL: url})
}

// Close shuts the element down. The notifications channel closes once the
// element's event stream ends.
func (e *Engine) Close() {
	e.element.Close()

	e.mutex.Lock()
	blob := e.blobPath
	e.blobPath = ""
	e.mutex.Unlock()

	if blob != "" {
		os.Remove(blob)
	}
}

func (e *Engine) listen() {
	for event := range e.element.Events() {
		e.fold(event)
	}
	e.notifyMutex.Lock()
	e.notificationsClosed = true
	close(e.notifications)
	e.notifyMutex.Unlock()
}

// fold applies one element event to the state snapshot and decides which
// lifecycle notifications it implies.
func (e *Engine) fold(event ElementEvent) {
	var notes []PlaybackNotification

	e.mutex.Lock()
	switch event.Type {
	case ElementLoadStart:
		e.state.IsLoading = true
		e.state.IsPlaying = false
		e.state.IsPaused = false
		e.state.Error = ""
		e.state.CurrentTime = 0
		e.state.State = StateLoading
		notes = append(notes, PlaybackNotification{Event: PlaybackLoading})

	case ElementDurationChange:
		e.state.Duration = event.Duration

	case ElementLoadedData:
		e.state.IsLoading = false
		notes = append(notes, PlaybackNotification{Event: PlaybackLoaded})
		if e.state.IsPlaying && !e.startedSinceLoad {
			e.state.State = StatePlaying
			e.startedSinceLoad = true
			notes = append(notes, PlaybackNotification{Event: PlaybackStarted})
		} else if !e.state.IsPlaying {
			e.state.State = StatePaused
		}

	case ElementProgress:
		e.state.BufferedUpTo = event.Buffered

	case ElementPlay:
		if e.state.CurrentTrackURL == "" || e.state.State == StateErrored {
			break // nothing playable behind the intent, ignore
		}
		e.state.IsPlaying = true
		e.state.IsPaused = false
		e.state.Error = ""
		if !e.state.IsLoading {
			e.state.State = StatePlaying
			if e.startedSinceLoad {
				notes = append(notes, PlaybackNotification{Event: PlaybackResumed})
			} else {
				e.startedSinceLoad = true
				notes = append(notes, PlaybackNotification{Event: PlaybackStarted})
			}
		}

	case ElementPause:
		e.state.IsPlaying = false
		e.state.IsPaused = true
		if !e.state.IsLoading {
			e.state.State = StatePaused
			notes = append(notes, PlaybackNotification{Event: PlaybackPaused})
		}

	case ElementTimeUpdate:
		e.state.CurrentTime = event.Time

	case ElementEnded:
		e.state.IsPlaying = false
		e.state.IsPaused = false
		e.state.CurrentTime = 0
		e.state.State = StateEnded
		notes = append(notes, PlaybackNotification{Event: PlaybackCompleted})

	case ElementVolumeChange:
		e.state.Volume = event.Volume
		e.state.IsMuted = event.Muted

	case ElementError:
		wasLoading := e.state.IsLoading
		e.state.IsLoading = false
		e.state.IsPlaying = false
		e.state.IsPaused = false
		if event.Err != nil {
			e.state.Error = event.Err.Error()
		}
		e.state.State = StateErrored
		if wasLoading {
			notes = append(notes, PlaybackNotification{Event: PlaybackLoadError, Error: event.Err})
		} else {
			notes = append(notes, PlaybackNotification{Event: PlaybackError, Error: event.Err})
		}
	}
	url := e.state.CurrentTrackURL
	e.mutex.Unlock()

	for _, note := range notes {
		note.TrackURL = url
		e.notify(note)
	}
}

func (e *Engine) notify(note PlaybackNotification) {
	e.notifyMutex.Lock()
	defer e.notifyMutex.Unlock()
	if e.notificationsClosed {
		return
	}
	select {
	case e.notifications <- note:
	default:
		msg := "playback notifications channel is full"
		sentry.CaptureMessage(msg)
		e.logger.Warn(msg)
	}
}
