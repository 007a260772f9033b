package controller

import (
	"errors"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"plexbeat/audio"
	"plexbeat/metrics"
	"plexbeat/models"
	"plexbeat/plex"
	"plexbeat/queue"
)

// Errors arriving closer together than this are treated as the same
// failure; recovery runs once per window.
const recoveryCooldownInterval = 500 * time.Millisecond

// Previous restarts the current track instead of stepping back once this
// many seconds have played.
const previousRestartGrace = 3.0

// Resolver turns a queued track into a playable decision against the
// connection the player currently holds. The force flag requests a
// transcode, used when a direct attempt already failed.
type Resolver func(track models.Track, serverURI, token string, forceTranscode bool) plex.Decision

// PlayRecorder is what the player needs from storage: one history line per
// started track.
type PlayRecorder interface {
	RecordPlay(trackKey, ratingKey, title, artist, album string, durationSeconds int) error
}

// StateUpdate is the snapshot pushed to connected clients whenever the
// player's situation changes.
type StateUpdate struct {
	Playback audio.PlayerState `json:"playback"`
	Track    *models.Track     `json:"track,omitempty"`
	Index    int               `json:"index"`
	QueueLen int               `json:"queueLength"`
	Shuffle  bool              `json:"shuffle"`
	Repeat   queue.RepeatMode  `json:"repeat"`
}

// Player ties the queue to the engine: it reacts to queue changes, chases
// track endings with the next track, and recovers from playback failures
// by retrying through the transcoder before giving up and skipping.
type Player struct {
	Engine *audio.Engine
	Queue  *queue.Queue

	resolve          Resolver
	recorder         PlayRecorder
	recoveryCooldown *Cooldown
	updates          chan StateUpdate
	logger           *log.Entry

	mutex          sync.Mutex
	current        *models.Track
	triedTranscode bool
	serverURI      string
	token          string

	done      chan struct{}
	closeOnce sync.Once
}

func NewPlayer(engine *audio.Engine, q *queue.Queue, resolve Resolver, recorder PlayRecorder) *Player {
	p := &Player{
		Engine:           engine,
		Queue:            q,
		resolve:          resolve,
		recorder:         recorder,
		recoveryCooldown: NewCooldown(recoveryCooldownInterval),
		updates:          make(chan StateUpdate, 100),
		done:             make(chan struct{}),
		logger: log.WithFields(log.Fields{
			"module": "controller",
		}),
	}

	go p.listenForPlaybackEvents()
	go p.listenForQueueEvents()
	go p.progressLoop()

	return p
}

// Updates delivers state snapshots for the websocket hub. Lifecycle changes
// push immediately; progress ticks once a second while playing.
func (p *Player) Updates() <-chan StateUpdate {
	return p.updates
}

// SetConnection points the player at a server endpoint. Until one is set
// every track resolves to the unplayable sentinel. Swapped after discovery
// or a PIN login; the queue itself is left alone.
func (p *Player) SetConnection(serverURI, token string) {
	p.mutex.Lock()
	p.serverURI = serverURI
	p.token = token
	p.mutex.Unlock()

	p.logger.WithField("server", serverURI).Info("Player connection set")
}

// Connection returns the server URI and token the player resolves against.
func (p *Player) Connection() (string, string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.serverURI, p.token
}

func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.Engine.Close()
}

// CurrentTrack returns the track whose audio the engine currently holds,
// or nil when playback is stopped.
func (p *Player) CurrentTrack() *models.Track {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.current == nil {
		return nil
	}
	cloned := *p.current
	return &cloned
}

// Snapshot assembles the full now-playing view.
func (p *Player) Snapshot() StateUpdate {
	return StateUpdate{
		Playback: p.Engine.State(),
		Track:    p.CurrentTrack(),
		Index:    p.Queue.CurrentIndex(),
		QueueLen: p.Queue.Len(),
		Shuffle:  p.Queue.ShuffleEnabled(),
		Repeat:   p.Queue.Repeat(),
	}
}

// Play resumes the engine, or starts the queue's current track when
// nothing is loaded yet.
func (p *Player) Play() error {
	p.mutex.Lock()
	current := p.current
	p.mutex.Unlock()

	if current == nil {
		if track := p.Queue.CurrentTrack(); track != nil {
			p.playCurrent()
			return nil
		}
		if p.Queue.Len() > 0 {
			p.advance(p.Queue.PlayNext)
			return nil
		}
		return errors.New("nothing queued to play")
	}
	return p.Engine.Play()
}

func (p *Player) Pause() {
	p.Engine.Pause()
}

func (p *Player) TogglePlayPause() error {
	if p.Engine.State().IsPlaying {
		p.Engine.Pause()
		return nil
	}
	return p.Play()
}

func (p *Player) Seek(seconds float64) {
	p.Engine.Seek(seconds)
}

func (p *Player) SetVolume(volume float64) {
	p.Engine.SetVolume(volume)
}

func (p *Player) ToggleMute() {
	p.Engine.ToggleMute()
}

func (p *Player) Stop() {
	p.stopPlayback()
}

// Next skips forward. The engine pauses first so frames stop before the
// pointer moves.
func (p *Player) Next() {
	p.Engine.Pause()
	p.advance(p.Queue.PlayNext)
}

// Previous restarts the current track when it is more than a few seconds
// in, or when no backward move is legal. Otherwise it steps back.
func (p *Player) Previous() {
	state := p.Engine.State()
	p.Engine.Pause()

	if state.CurrentTime > previousRestartGrace || !p.Queue.HasPrevious() {
		p.mutex.Lock()
		current := p.current
		p.mutex.Unlock()
		if current != nil {
			p.logger.WithField("title", current.Title).Debug("Restarting current track")
			p.Engine.Seek(0)
			if err := p.Engine.Play(); err != nil {
				p.logger.Errorf("error restarting track: %v", err)
			}
			return
		}
	}
	p.advance(p.Queue.PlayPrevious)
}

// PlayAtIndex jumps to an arbitrary queue position. It reports false when
// the index is out of range.
func (p *Player) PlayAtIndex(index int) bool {
	p.Engine.Pause()
	track := p.Queue.PlayTrackAtIndex(index)
	if track == nil {
		return false
	}
	if !p.startTrack(*track, false) {
		metrics.TracksSkipped.Inc()
		p.logger.WithField("title", track.Title).Warn("Skipping unplayable track")
		p.advance(p.Queue.PlayNext)
	}
	return true
}

func (p *Player) listenForPlaybackEvents() {
	for notification := range p.Engine.Notifications() {
		p.handlePlaybackNotification(notification)
	}
	p.logger.Debug("Playback notifications channel closed")
}

func (p *Player) listenForQueueEvents() {
	for event := range p.Queue.Notifications() {
		p.handleQueueEvent(event)
	}
}

// progressLoop pushes a snapshot once a second while audio advances, so
// clients track position without polling.
func (p *Player) progressLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if p.Engine.State().IsPlaying {
				p.broadcast()
			}
		case <-p.done:
			return
		}
	}
}

func (p *Player) handlePlaybackNotification(notification audio.PlaybackNotification) {
	logger := p.logger.WithField("event", string(notification.Event))
	switch notification.Event {
	case audio.PlaybackStarted:
		p.handleStarted()
	case audio.PlaybackCompleted:
		p.handleCompleted()
	case audio.PlaybackLoadError, audio.PlaybackError:
		p.handlePlaybackError(notification)
	default:
		logger.Trace("playback event")
	}
	p.broadcast()
}

func (p *Player) handleQueueEvent(event queue.Event) {
	logger := p.logger.WithField("event", string(event.Type))
	switch event.Type {
	case queue.EventSet:
		logger.Debug("Queue replaced, starting playback")
		p.playCurrent()
	case queue.EventAdd:
		state := p.Engine.State()
		p.mutex.Lock()
		idle := p.current == nil
		p.mutex.Unlock()
		if idle && !state.IsPlaying && !state.IsLoading {
			logger.Debug("Queue gained a track while idle, starting playback")
			p.advance(p.Queue.PlayNext)
		}
	case queue.EventClear:
		logger.Debug("Queue cleared, stopping")
		p.stopPlayback()
	case queue.EventRemove:
		logger.Trace("queue item removed")
	}
	p.broadcast()
}

func (p *Player) handleStarted() {
	p.mutex.Lock()
	track := p.current
	// Playback came up cleanly, so a later failure earns a fresh
	// transcode retry.
	p.triedTranscode = false
	p.mutex.Unlock()
	if track == nil {
		return
	}

	metrics.TracksPlayed.Inc()
	if p.recorder != nil {
		err := p.recorder.RecordPlay(track.Key, track.RatingKey, track.Title, track.Artist, track.Album, int(track.DurationMS/1000))
		if err != nil {
			p.logger.Errorf("error recording play: %v", err)
			sentry.CaptureException(err)
		}
	}
	p.logger.WithFields(log.Fields{
		"title":  track.Title,
		"artist": track.Artist,
	}).Info("Now playing")
}

// handleCompleted advances the queue after a natural track end. The engine
// state is cross-checked so a stray notification cannot double-advance.
func (p *Player) handleCompleted() {
	state := p.Engine.State()
	if state.IsPlaying || state.IsLoading || state.CurrentTime != 0 || state.Duration <= 0 {
		p.logger.WithField("state", string(state.State)).Trace("completed notification without end-of-track state")
		return
	}

	p.mutex.Lock()
	current := p.current
	p.mutex.Unlock()
	if current == nil {
		return
	}

	p.logger.WithField("title", current.Title).Debug("Track finished, advancing")
	p.advance(p.Queue.PlayNext)
}

// handlePlaybackError retries the failed track through the transcoder once,
// then skips it. The cooldown collapses error bursts into one recovery.
func (p *Player) handlePlaybackError(notification audio.PlaybackNotification) {
	metrics.PlaybackErrors.Inc()

	logger := p.logger.WithField("event", string(notification.Event))
	if notification.Error != nil {
		logger = logger.WithField("error", notification.Error.Error())
	}

	if !p.recoveryCooldown.Allow() {
		logger.Debug("Suppressing playback recovery inside cooldown window")
		return
	}

	p.mutex.Lock()
	current := p.current
	tried := p.triedTranscode
	p.mutex.Unlock()

	if current == nil {
		logger.Warn("Playback error with no current track")
		return
	}

	if !tried {
		logger.WithField("title", current.Title).Warn("Playback failed, retrying with transcode")
		if p.startTrack(*current, true) {
			return
		}
	} else {
		logger.WithField("title", current.Title).Warn("Playback failed after transcode retry, skipping")
	}

	metrics.TracksSkipped.Inc()
	p.advance(p.Queue.PlayNext)
}

// playCurrent starts whatever the queue pointer rests on.
func (p *Player) playCurrent() {
	track := p.Queue.CurrentTrack()
	if track == nil {
		p.stopPlayback()
		return
	}
	if !p.startTrack(*track, false) {
		metrics.TracksSkipped.Inc()
		p.logger.WithField("title", track.Title).Warn("Skipping unplayable track")
		p.advance(p.Queue.PlayNext)
	}
}

// advance moves the queue with the supplied step and starts whatever it
// lands on, skipping unresolvable tracks. The pass is bounded by the queue
// length so a fully unplayable queue cannot spin forever. A nil step result
// stops playback.
func (p *Player) advance(step func() *models.Track) {
	for attempts := p.Queue.Len(); attempts > 0; attempts-- {
		track := step()
		if track == nil {
			p.stopPlayback()
			return
		}
		if p.startTrack(*track, false) {
			return
		}
		metrics.TracksSkipped.Inc()
		p.logger.WithField("title", track.Title).Warn("Skipping unplayable track")
	}
	p.stopPlayback()
}

// startTrack resolves a track and hands it to the engine. It reports false
// when resolution yields the unplayable sentinel; engine-side failures
// surface later as error notifications.
func (p *Player) startTrack(track models.Track, forceTranscode bool) bool {
	p.mutex.Lock()
	serverURI, token := p.serverURI, p.token
	p.mutex.Unlock()

	decision := p.resolve(track, serverURI, token, forceTranscode)
	if decision.URL == "" {
		return false
	}

	p.mutex.Lock()
	cloned := track
	p.current = &cloned
	p.triedTranscode = forceTranscode
	p.mutex.Unlock()

	if forceTranscode {
		metrics.TranscodeRetries.Inc()
	}

	p.logger.WithFields(log.Fields{
		"title":     track.Title,
		"transcode": forceTranscode,
	}).Debug("Loading track")

	p.Engine.LoadTrack(decision.URL, decision.RequiresAuthHeaders)
	if err := p.Engine.Play(); err != nil {
		p.logger.Errorf("error starting playback: %v", err)
	}
	return true
}

func (p *Player) stopPlayback() {
	p.mutex.Lock()
	p.current = nil
	p.triedTranscode = false
	p.mutex.Unlock()

	p.Engine.Stop()
	p.logger.Debug("Playback stopped")
}

func (p *Player) broadcast() {
	select {
	case p.updates <- p.Snapshot():
	default:
		msg := "State updates channel is full"
		sentry.CaptureMessage(msg)
		p.logger.Warn(msg)
	}
}
