package queue

import (
	"math/rand"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"plexbeat/models"
)

type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// History is capped so a long session cannot grow it without bound.
const historyLimit = 50

type EventType string

const (
	EventSet    EventType = "set"
	EventAdd    EventType = "add"
	EventRemove EventType = "remove"
	EventClear  EventType = "clear"
)

type Event struct {
	Type  EventType
	Track *models.Track
}

// Queue holds the playback order: the base sequence as queued, an optional
// shuffled permutation of the same tracks, and a bounded most-recent-first
// history. The current index points into whichever sequence is active.
type Queue struct {
	mutex    sync.Mutex
	base     []models.Track
	shuffled []models.Track
	current  int
	history  []models.Track
	shuffle  bool
	repeat   RepeatMode

	store         Store
	rng           *rand.Rand
	notifications chan Event
	logger        *log.Entry
}

func New(store Store) *Queue {
	return &Queue{
		current:       -1,
		repeat:        RepeatOff,
		store:         store,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		notifications: make(chan Event, 100),
		logger: log.WithFields(log.Fields{
			"module": "queue",
		}),
	}
}

func (q *Queue) Notifications() <-chan Event {
	return q.notifications
}

// SetQueue replaces the queue contents and moves the pointer to startIndex.
// Out-of-range start indexes are clamped rather than rejected, and history
// is reset along with the tracks.
func (q *Queue) SetQueue(tracks []models.Track, startIndex int) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.base = append([]models.Track(nil), tracks...)
	if q.shuffle {
		q.reshuffle()
	}
	q.history = nil
	if len(q.base) == 0 {
		q.current = -1
	} else {
		q.current = clamp(startIndex, 0, len(q.base)-1)
	}

	q.logger.Debugf("queue set: %d tracks, start index %d", len(q.base), q.current)
	q.persist()
	q.notify(Event{Type: EventSet})
}

// AddToQueue appends the track to the end of the base sequence. With
// shuffle on the shuffled sequence is rebuilt, so the appended track lands
// at an arbitrary position in the shuffled order.
func (q *Queue) AddToQueue(track models.Track) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.base = append(q.base, track)
	if q.shuffle {
		q.reshuffle()
	}

	q.logger.Tracef("track added: %s", track.Title)
	q.persist()
	q.notify(Event{Type: EventAdd, Track: &track})
}

// AddNextInQueue inserts the track immediately after the current position.
// With shuffle on it is spliced into the shuffled sequence at the same spot
// so the track actually plays next.
func (q *Queue) AddNextInQueue(track models.Track) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	at := q.current + 1
	q.base = insertAt(q.base, clamp(at, 0, len(q.base)), track)
	if q.shuffle {
		q.shuffled = insertAt(q.shuffled, clamp(at, 0, len(q.shuffled)), track)
	}

	q.logger.Tracef("track queued next: %s", track.Title)
	q.persist()
	q.notify(Event{Type: EventAdd, Track: &track})
}

// RemoveFromQueue drops the track at index from the base sequence and
// returns it, or nil when the index is out of range. The pointer shifts
// down when an earlier track is removed and clamps when the current one is.
func (q *Queue) RemoveFromQueue(index int) *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if index < 0 || index >= len(q.base) {
		return nil
	}

	removed := q.base[index]
	q.base = append(q.base[:index], q.base[index+1:]...)

	if index < q.current {
		q.current--
	} else if index == q.current && q.current > len(q.base)-1 {
		q.current = len(q.base) - 1
	}
	if len(q.base) == 0 {
		q.current = -1
	}
	if q.shuffle {
		q.reshuffle()
	}

	q.logger.Tracef("track removed: %s", removed.Title)
	q.persist()
	q.notify(Event{Type: EventRemove, Track: &removed})
	return &removed
}

// PlayNext advances the pointer per the repeat mode and returns the newly
// current track, or nil when no forward move is legal.
func (q *Queue) PlayNext() *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	next, ok := q.nextIndex()
	if !ok {
		return nil
	}
	q.moveTo(next)
	return q.trackAt(q.current)
}

// PlayPrevious moves the pointer backward per the repeat mode and returns
// the newly current track, or nil when no backward move is legal.
func (q *Queue) PlayPrevious() *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	prev, ok := q.prevIndex()
	if !ok {
		return nil
	}
	q.moveTo(prev)
	return q.trackAt(q.current)
}

// PlayTrackAtIndex jumps straight to index in the active sequence. An
// out-of-range index changes nothing and returns nil.
func (q *Queue) PlayTrackAtIndex(index int) *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if index < 0 || index >= len(q.active()) {
		return nil
	}
	q.moveTo(index)
	return q.trackAt(q.current)
}

// ToggleShuffle flips shuffle and reports the new setting. The pointer is
// reused numerically against whichever sequence becomes active, so the
// track under it may change; callers wanting to keep the sounding track
// current must re-locate it themselves.
func (q *Queue) ToggleShuffle() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.shuffle = !q.shuffle
	if q.shuffle {
		q.reshuffle()
	} else {
		q.shuffled = nil
	}

	q.logger.Debugf("shuffle: %t", q.shuffle)
	q.persist()
	return q.shuffle
}

// CycleRepeat steps off -> all -> one -> off and returns the new mode.
func (q *Queue) CycleRepeat() RepeatMode {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	switch q.repeat {
	case RepeatOff:
		q.repeat = RepeatAll
	case RepeatAll:
		q.repeat = RepeatOne
	default:
		q.repeat = RepeatOff
	}

	q.logger.Debugf("repeat: %s", q.repeat)
	q.persist()
	return q.repeat
}

// Clear empties the queue and forgets history and any persisted snapshot.
func (q *Queue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.base = nil
	q.shuffled = nil
	q.history = nil
	q.current = -1

	if q.store != nil {
		if err := q.store.ClearQueueSnapshot(); err != nil {
			q.logger.Warnf("clearing queue snapshot: %v", err)
		}
	}
	q.notify(Event{Type: EventClear})
}

// CurrentTrack returns the track under the pointer without moving it.
func (q *Queue) CurrentTrack() *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.trackAt(q.current)
}

// NextTrack previews what PlayNext would return.
func (q *Queue) NextTrack() *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if next, ok := q.nextIndex(); ok {
		return q.trackAt(next)
	}
	return nil
}

// PreviousTrack previews what PlayPrevious would return.
func (q *Queue) PreviousTrack() *models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if prev, ok := q.prevIndex(); ok {
		return q.trackAt(prev)
	}
	return nil
}

func (q *Queue) HasNext() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	_, ok := q.nextIndex()
	return ok
}

func (q *Queue) HasPrevious() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	_, ok := q.prevIndex()
	return ok
}

// Tracks returns a copy of the active sequence in play order.
func (q *Queue) Tracks() []models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]models.Track(nil), q.active()...)
}

// History returns a copy of the history, most recent first.
func (q *Queue) History() []models.Track {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]models.Track(nil), q.history...)
}

func (q *Queue) CurrentIndex() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.current
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.base)
}

func (q *Queue) IsEmpty() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.base) == 0
}

func (q *Queue) ShuffleEnabled() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.shuffle
}

func (q *Queue) Repeat() RepeatMode {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.repeat
}

// active returns the sequence the pointer indexes into. Callers must hold
// the mutex.
func (q *Queue) active() []models.Track {
	if q.shuffle {
		return q.shuffled
	}
	return q.base
}

func (q *Queue) trackAt(index int) *models.Track {
	tracks := q.active()
	if index < 0 || index >= len(tracks) {
		return nil
	}
	track := tracks[index]
	return &track
}

// nextIndex reports where PlayNext would move. Callers must hold the mutex.
func (q *Queue) nextIndex() (int, bool) {
	tracks := q.active()
	if len(tracks) == 0 {
		return -1, false
	}
	switch q.repeat {
	case RepeatOne:
		if q.current >= 0 {
			return q.current, true
		}
		return 0, true
	case RepeatAll:
		return (q.current + 1) % len(tracks), true
	default:
		if q.current+1 < len(tracks) {
			return q.current + 1, true
		}
		return -1, false
	}
}

// prevIndex reports where PlayPrevious would move. Callers must hold the
// mutex.
func (q *Queue) prevIndex() (int, bool) {
	tracks := q.active()
	if len(tracks) == 0 {
		return -1, false
	}
	switch q.repeat {
	case RepeatOne:
		if q.current >= 0 {
			return q.current, true
		}
		return 0, true
	case RepeatAll:
		if q.current <= 0 {
			return len(tracks) - 1, true
		}
		return q.current - 1, true
	default:
		if q.current > 0 {
			return q.current - 1, true
		}
		return -1, false
	}
}

// moveTo repoints the queue. History grows only when the index actually
// changes, so repeat-one replays leave it untouched. Callers must hold the
// mutex.
func (q *Queue) moveTo(index int) {
	if index == q.current {
		return
	}
	if previous := q.trackAt(q.current); previous != nil {
		q.pushHistory(*previous)
	}
	q.current = index
	q.persist()
}

func (q *Queue) pushHistory(track models.Track) {
	q.history = append([]models.Track{track}, q.history...)
	if len(q.history) > historyLimit {
		q.history = q.history[:historyLimit]
	}
}

// reshuffle rebuilds the shuffled sequence from base with a Fisher-Yates
// pass. Base order is never mutated. Callers must hold the mutex.
func (q *Queue) reshuffle() {
	q.shuffled = append([]models.Track(nil), q.base...)
	q.rng.Shuffle(len(q.shuffled), func(i, j int) {
		q.shuffled[i], q.shuffled[j] = q.shuffled[j], q.shuffled[i]
	})
}

func (q *Queue) notify(event Event) {
	select {
	case q.notifications <- event:
	default:
		msg := "queue notifications channel is full"
		sentry.CaptureMessage(msg)
		q.logger.Warn(msg)
	}
}

func insertAt(tracks []models.Track, index int, track models.Track) []models.Track {
	tracks = append(tracks, models.Track{})
	copy(tracks[index+1:], tracks[index:])
	tracks[index] = track
	return tracks
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
