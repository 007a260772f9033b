package queue

import (
	"fmt"

	json "github.com/goccy/go-json"

	"plexbeat/models"
)

// Store persists queue snapshots between runs. The database package
// implements it; tests substitute an in-memory version.
type Store interface {
	SaveQueueSnapshot(version int, payload []byte) error
	LoadQueueSnapshot() (int, []byte, error)
	ClearQueueSnapshot() error
}

const (
	snapshotVersion = 2

	// Queues past the threshold persist only a window around the pointer
	// to keep snapshot rows small. The full queue stays in memory for the
	// live session.
	windowThreshold = 100
	windowRadius    = 10
)

// Snapshot is the persisted queue shape. Version 2 stores the repeat mode
// as a string; version 1 stored a single loop flag and is migrated on load.
type Snapshot struct {
	Version       int            `json:"version"`
	Queue         []models.Track `json:"queue"`
	CurrentIndex  int            `json:"currentIndex"`
	Shuffle       bool           `json:"shuffle"`
	Repeat        RepeatMode     `json:"repeat"`
	Windowed      bool           `json:"windowed,omitempty"`
	OriginalSize  int            `json:"originalSize,omitempty"`
	OriginalIndex int            `json:"originalIndex,omitempty"`
}

// migrations upgrades stored payloads to the current shape, keyed by the
// stored version. Versions without an entry are discarded on load.
var migrations = map[int]func([]byte) (*Snapshot, error){
	1:               decodeV1,
	snapshotVersion: decodeCurrent,
}

// Restore loads the persisted snapshot, if any, into the queue. Corrupt or
// unknown-version snapshots are discarded and the stored row cleared; the
// queue then simply starts empty.
func (q *Queue) Restore() error {
	if q.store == nil {
		return nil
	}

	version, payload, err := q.store.LoadQueueSnapshot()
	if err != nil {
		return fmt.Errorf("loading queue snapshot: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}

	decode, ok := migrations[version]
	if !ok {
		q.logger.Warnf("discarding queue snapshot with unknown version %d", version)
		q.discardSnapshot()
		return nil
	}

	snap, err := decode(payload)
	if err != nil {
		q.logger.Warnf("discarding corrupt queue snapshot: %v", err)
		q.discardSnapshot()
		return nil
	}

	q.apply(snap)
	return nil
}

// persist writes the current snapshot through the store. Failures are
// logged and dropped; persistence is best effort. Callers must hold the
// mutex.
func (q *Queue) persist() {
	if q.store == nil {
		return
	}

	payload, err := json.Marshal(q.snapshot())
	if err != nil {
		q.logger.Errorf("encoding queue snapshot: %v", err)
		return
	}
	if err := q.store.SaveQueueSnapshot(snapshotVersion, payload); err != nil {
		q.logger.Warnf("saving queue snapshot: %v", err)
	}
}

// snapshot captures the active sequence, windowed around the pointer once
// the queue passes the size threshold. Callers must hold the mutex.
func (q *Queue) snapshot() Snapshot {
	tracks := q.active()
	snap := Snapshot{
		Version:      snapshotVersion,
		Queue:        append([]models.Track(nil), tracks...),
		CurrentIndex: q.current,
		Shuffle:      q.shuffle,
		Repeat:       q.repeat,
	}
	if len(tracks) <= windowThreshold {
		return snap
	}

	start := q.current - windowRadius
	if start < 0 {
		start = 0
	}
	end := q.current + windowRadius + 1
	if end > len(tracks) {
		end = len(tracks)
	}

	snap.Queue = append([]models.Track(nil), tracks[start:end]...)
	snap.CurrentIndex = q.current - start
	snap.Windowed = true
	snap.OriginalSize = len(tracks)
	snap.OriginalIndex = q.current
	return snap
}

// apply installs a decoded snapshot. A windowed snapshot restores just the
// persisted slice; resuming a very large queue is deliberately lossy. The
// stored track order is the order the listener was hearing, so with
// shuffle on it becomes the shuffled sequence as-is.
func (q *Queue) apply(snap *Snapshot) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.base = append([]models.Track(nil), snap.Queue...)
	q.shuffle = snap.Shuffle
	if q.shuffle {
		q.shuffled = append([]models.Track(nil), snap.Queue...)
	} else {
		q.shuffled = nil
	}

	q.repeat = snap.Repeat
	if q.repeat != RepeatAll && q.repeat != RepeatOne {
		q.repeat = RepeatOff
	}

	if len(q.base) == 0 {
		q.current = -1
	} else {
		q.current = clamp(snap.CurrentIndex, -1, len(q.base)-1)
	}
	q.history = nil

	q.logger.Infof("restored queue snapshot: %d tracks, index %d", len(q.base), q.current)
}

func (q *Queue) discardSnapshot() {
	if err := q.store.ClearQueueSnapshot(); err != nil {
		q.logger.Warnf("clearing queue snapshot: %v", err)
	}
}

func decodeCurrent(payload []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// snapshotV1 predates repeat modes; loop meant wrap-around at the end.
type snapshotV1 struct {
	Queue         []models.Track `json:"queue"`
	CurrentIndex  int            `json:"currentIndex"`
	Shuffle       bool           `json:"shuffle"`
	Loop          bool           `json:"loop"`
	Windowed      bool           `json:"windowed"`
	OriginalSize  int            `json:"originalSize"`
	OriginalIndex int            `json:"originalIndex"`
}

func decodeV1(payload []byte) (*Snapshot, error) {
	var old snapshotV1
	if err := json.Unmarshal(payload, &old); err != nil {
		return nil, err
	}

	repeat := RepeatOff
	if old.Loop {
		repeat = RepeatAll
	}
	return &Snapshot{
		Version:       snapshotVersion,
		Queue:         old.Queue,
		CurrentIndex:  old.CurrentIndex,
		Shuffle:       old.Shuffle,
		Repeat:        repeat,
		Windowed:      old.Windowed,
		OriginalSize:  old.OriginalSize,
		OriginalIndex: old.OriginalIndex,
	}, nil
}
