package queue

import (
	"fmt"
	"sync"
	"testing"

	"plexbeat/models"
)

func makeTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			Key:   fmt.Sprintf("/library/metadata/%d", i+1),
			Title: fmt.Sprintf("Track %d", i+1),
		}
	}
	return tracks
}

func trackKey(track *models.Track) string {
	if track == nil {
		return ""
	}
	return track.Key
}

func TestSetQueueClampsStartIndex(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		start int
		want  int
	}{
		{"negative", 3, -5, 0},
		{"zero", 3, 0, 0},
		{"in_range", 3, 2, 2},
		{"past_end", 3, 99, 2},
		{"empty", 0, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(nil)
			q.SetQueue(makeTracks(tt.size), tt.start)
			if got := q.CurrentIndex(); got != tt.want {
				t.Errorf("CurrentIndex() = %d; want %d", got, tt.want)
			}
		})
	}
}

// With repeat all the pointer wraps at the end; with repeat off it stops.
func TestPlayNextAtQueueEnd(t *testing.T) {
	t.Run("repeat_all_wraps", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 2)
		q.CycleRepeat() // all
		got := q.PlayNext()
		if trackKey(got) != "/library/metadata/1" {
			t.Errorf("PlayNext() = %q; want first track", trackKey(got))
		}
		if q.CurrentIndex() != 0 {
			t.Errorf("CurrentIndex() = %d; want 0", q.CurrentIndex())
		}
	})

	t.Run("repeat_off_stops", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 2)
		if got := q.PlayNext(); got != nil {
			t.Errorf("PlayNext() = %v; want nil", got)
		}
		if q.CurrentIndex() != 2 {
			t.Errorf("CurrentIndex() = %d; want unchanged 2", q.CurrentIndex())
		}
	})
}

// Repeat one keeps returning the current track and never touches history.
func TestRepeatOneStickiness(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(3), 1)
	q.CycleRepeat() // all
	q.CycleRepeat() // one

	for i := 0; i < 5; i++ {
		got := q.PlayNext()
		if trackKey(got) != "/library/metadata/2" {
			t.Fatalf("PlayNext() call %d = %q; want current track", i+1, trackKey(got))
		}
	}
	if q.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex() = %d; want 1", q.CurrentIndex())
	}
	if got := len(q.History()); got != 0 {
		t.Errorf("history length = %d; want 0", got)
	}
}

func TestPlayPrevious(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		repeats int // CycleRepeat calls: 0=off, 1=all, 2=one
		want    string
	}{
		{"off_at_start_stops", 0, 0, ""},
		{"off_in_middle", 2, 0, "/library/metadata/2"},
		{"all_at_start_wraps", 0, 1, "/library/metadata/3"},
		{"one_stays_put", 1, 2, "/library/metadata/2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(nil)
			q.SetQueue(makeTracks(3), tt.start)
			for i := 0; i < tt.repeats; i++ {
				q.CycleRepeat()
			}
			if got := trackKey(q.PlayPrevious()); got != tt.want {
				t.Errorf("PlayPrevious() = %q; want %q", got, tt.want)
			}
		})
	}
}

// After 60 advances the history holds the 50 most recent tracks, newest
// first, and never exceeds the cap.
func TestHistoryCap(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(70), 0)

	for i := 0; i < 60; i++ {
		if q.PlayNext() == nil {
			t.Fatalf("PlayNext() returned nil on advance %d", i+1)
		}
	}

	history := q.History()
	if len(history) != 50 {
		t.Fatalf("history length = %d; want 50", len(history))
	}
	for i, track := range history {
		want := fmt.Sprintf("Track %d", 60-i)
		if track.Title != want {
			t.Errorf("history[%d] = %q; want %q", i, track.Title, want)
		}
	}
}

// Shuffling never gains or loses tracks: it is a permutation of the base.
func TestShuffleIsPermutation(t *testing.T) {
	q := New(nil)
	tracks := makeTracks(20)
	q.SetQueue(tracks, 0)
	q.ToggleShuffle()

	counts := make(map[string]int)
	for _, track := range q.Tracks() {
		counts[track.Key]++
	}
	for _, track := range tracks {
		if counts[track.Key] != 1 {
			t.Errorf("track %s appears %d times in shuffled order; want 1", track.Key, counts[track.Key])
		}
	}
	if got := len(q.Tracks()); got != len(tracks) {
		t.Errorf("shuffled length = %d; want %d", got, len(tracks))
	}
}

func TestShuffleLeavesBaseOrderIntact(t *testing.T) {
	q := New(nil)
	tracks := makeTracks(20)
	q.SetQueue(tracks, 0)
	q.ToggleShuffle()
	q.ToggleShuffle()

	got := q.Tracks()
	for i := range tracks {
		if got[i].Key != tracks[i].Key {
			t.Fatalf("base order changed at %d: got %s; want %s", i, got[i].Key, tracks[i].Key)
		}
	}
}

// Toggling shuffle reuses the numeric pointer against the new sequence
// instead of re-locating the playing track.
func TestShuffleReusesNumericIndex(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(10), 0)
	q.PlayTrackAtIndex(4)

	q.ToggleShuffle()
	if q.CurrentIndex() != 4 {
		t.Fatalf("CurrentIndex() = %d after shuffle; want 4", q.CurrentIndex())
	}
	if got, want := trackKey(q.CurrentTrack()), q.Tracks()[4].Key; got != want {
		t.Errorf("CurrentTrack() = %q; want track at shuffled index 4 (%q)", got, want)
	}
}

func TestRemoveFromQueue(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		current     int
		remove      int
		wantIndex   int
		wantRemoved string
		wantAtIndex string
	}{
		{"before_current", 3, 2, 1, 1, "/library/metadata/2", "/library/metadata/3"},
		{"current_at_end_clamps", 3, 2, 2, 1, "/library/metadata/3", "/library/metadata/2"},
		{"current_in_middle", 3, 1, 1, 1, "/library/metadata/2", "/library/metadata/3"},
		{"after_current", 3, 0, 2, 0, "/library/metadata/3", "/library/metadata/1"},
		{"last_remaining", 1, 0, 0, -1, "/library/metadata/1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(nil)
			q.SetQueue(makeTracks(tt.size), tt.current)

			removed := q.RemoveFromQueue(tt.remove)
			if trackKey(removed) != tt.wantRemoved {
				t.Errorf("RemoveFromQueue(%d) = %q; want %q", tt.remove, trackKey(removed), tt.wantRemoved)
			}
			if got := q.CurrentIndex(); got != tt.wantIndex {
				t.Errorf("CurrentIndex() = %d; want %d", got, tt.wantIndex)
			}
			if got := trackKey(q.CurrentTrack()); got != tt.wantAtIndex {
				t.Errorf("CurrentTrack() = %q; want %q", got, tt.wantAtIndex)
			}
		})
	}

	t.Run("out_of_range", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 0)
		if got := q.RemoveFromQueue(5); got != nil {
			t.Errorf("RemoveFromQueue(5) = %v; want nil", got)
		}
		if q.Len() != 3 {
			t.Errorf("Len() = %d; want 3", q.Len())
		}
	})
}

func TestAddNextInQueue(t *testing.T) {
	t.Run("plays_next", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 0)
		q.AddNextInQueue(models.Track{Key: "/library/metadata/99", Title: "Interloper"})

		if got := q.Tracks()[1].Key; got != "/library/metadata/99" {
			t.Errorf("track at index 1 = %q; want the inserted track", got)
		}
		if got := trackKey(q.NextTrack()); got != "/library/metadata/99" {
			t.Errorf("NextTrack() = %q; want the inserted track", got)
		}
		if q.Len() != 4 {
			t.Errorf("Len() = %d; want 4", q.Len())
		}
	})

	t.Run("into_empty_queue", func(t *testing.T) {
		q := New(nil)
		q.AddNextInQueue(models.Track{Key: "/library/metadata/99"})
		if q.CurrentIndex() != -1 {
			t.Errorf("CurrentIndex() = %d; want -1", q.CurrentIndex())
		}
		if got := trackKey(q.PlayNext()); got != "/library/metadata/99" {
			t.Errorf("PlayNext() = %q; want the inserted track", got)
		}
	})

	t.Run("after_last_track", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(2), 1)
		q.AddNextInQueue(models.Track{Key: "/library/metadata/99"})
		if got := q.Tracks()[2].Key; got != "/library/metadata/99" {
			t.Errorf("track at index 2 = %q; want the inserted track", got)
		}
	})
}

func TestAddToQueueAppends(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(2), 0)
	q.AddToQueue(models.Track{Key: "/library/metadata/99"})

	tracks := q.Tracks()
	if len(tracks) != 3 {
		t.Fatalf("Len() = %d; want 3", len(tracks))
	}
	if tracks[2].Key != "/library/metadata/99" {
		t.Errorf("last track = %q; want the appended track", tracks[2].Key)
	}
}

func TestAddToQueueWhileShuffled(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(5), 0)
	q.ToggleShuffle()
	q.AddToQueue(models.Track{Key: "/library/metadata/99"})

	found := false
	for _, track := range q.Tracks() {
		if track.Key == "/library/metadata/99" {
			found = true
		}
	}
	if !found {
		t.Error("appended track missing from shuffled sequence")
	}
	if q.Len() != 6 {
		t.Errorf("Len() = %d; want 6", q.Len())
	}
}

func TestCycleRepeat(t *testing.T) {
	q := New(nil)
	want := []RepeatMode{RepeatAll, RepeatOne, RepeatOff, RepeatAll}
	for i, mode := range want {
		if got := q.CycleRepeat(); got != mode {
			t.Errorf("CycleRepeat() call %d = %q; want %q", i+1, got, mode)
		}
	}
}

func TestPlayTrackAtIndex(t *testing.T) {
	t.Run("out_of_range", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 1)
		for _, index := range []int{-1, 3, 99} {
			if got := q.PlayTrackAtIndex(index); got != nil {
				t.Errorf("PlayTrackAtIndex(%d) = %v; want nil", index, got)
			}
		}
		if q.CurrentIndex() != 1 {
			t.Errorf("CurrentIndex() = %d; want unchanged 1", q.CurrentIndex())
		}
	})

	t.Run("jump_pushes_history", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 0)
		if got := trackKey(q.PlayTrackAtIndex(2)); got != "/library/metadata/3" {
			t.Fatalf("PlayTrackAtIndex(2) = %q; want third track", got)
		}
		history := q.History()
		if len(history) != 1 || history[0].Key != "/library/metadata/1" {
			t.Errorf("history = %v; want just the first track", history)
		}
	})

	t.Run("same_index_no_history", func(t *testing.T) {
		q := New(nil)
		q.SetQueue(makeTracks(3), 1)
		q.PlayTrackAtIndex(1)
		if got := len(q.History()); got != 0 {
			t.Errorf("history length = %d; want 0", got)
		}
	})
}

// The read-only helpers must predict exactly what the mutating calls do.
func TestReadHelpersAgreeWithMutators(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		repeats int
	}{
		{"off_at_start", 0, 0},
		{"off_in_middle", 1, 0},
		{"off_at_end", 2, 0},
		{"all_at_start", 0, 1},
		{"all_at_end", 2, 1},
		{"one_in_middle", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			build := func() *Queue {
				q := New(nil)
				q.SetQueue(makeTracks(3), tt.start)
				for i := 0; i < tt.repeats; i++ {
					q.CycleRepeat()
				}
				return q
			}

			peek, mutate := build(), build()
			peekNext := trackKey(peek.NextTrack())
			hasNext := peek.HasNext()
			gotNext := trackKey(mutate.PlayNext())
			if peekNext != gotNext {
				t.Errorf("NextTrack() = %q; PlayNext() = %q", peekNext, gotNext)
			}
			if hasNext != (gotNext != "") {
				t.Errorf("HasNext() = %t; PlayNext() returned %q", hasNext, gotNext)
			}

			peek, mutate = build(), build()
			peekPrev := trackKey(peek.PreviousTrack())
			hasPrev := peek.HasPrevious()
			gotPrev := trackKey(mutate.PlayPrevious())
			if peekPrev != gotPrev {
				t.Errorf("PreviousTrack() = %q; PlayPrevious() = %q", peekPrev, gotPrev)
			}
			if hasPrev != (gotPrev != "") {
				t.Errorf("HasPrevious() = %t; PlayPrevious() returned %q", hasPrev, gotPrev)
			}
		})
	}
}

func TestClear(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(3), 0)
	q.PlayNext()
	q.Clear()

	if !q.IsEmpty() {
		t.Error("IsEmpty() = false after Clear()")
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex() = %d; want -1", q.CurrentIndex())
	}
	if q.CurrentTrack() != nil {
		t.Error("CurrentTrack() != nil after Clear()")
	}
	if got := len(q.History()); got != 0 {
		t.Errorf("history length = %d; want 0", got)
	}
}

func TestPlayNextOnEmptyQueue(t *testing.T) {
	q := New(nil)
	if got := q.PlayNext(); got != nil {
		t.Errorf("PlayNext() = %v; want nil", got)
	}
	if q.HasNext() {
		t.Error("HasNext() = true on empty queue")
	}
}

// TestQueueConcurrentAccess is a race-detector test. HTTP handlers mutate
// and read the queue from concurrent requests, so mixed operations are
// hammered from many goroutines at once.
// Run with: go test -race ./queue/...
func TestQueueConcurrentAccess(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(10), 0)

	var wg sync.WaitGroup
	const goroutines = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 10 {
			case 0:
				q.AddToQueue(models.Track{Key: fmt.Sprintf("/library/metadata/add-%d", i)})
			case 1:
				q.AddNextInQueue(models.Track{Key: fmt.Sprintf("/library/metadata/next-%d", i)})
			case 2:
				q.PlayNext()
			case 3:
				q.PlayPrevious()
			case 4:
				q.PlayTrackAtIndex(i % 7)
			case 5:
				q.RemoveFromQueue(i % 7)
			case 6:
				q.ToggleShuffle()
			case 7:
				q.CycleRepeat()
			case 8:
				_ = q.Tracks()
				_ = q.CurrentTrack()
				_ = q.History()
			default:
				_ = q.Len()
				_ = q.CurrentIndex()
				_ = q.HasNext()
				_ = q.NextTrack()
			}
		}(i)
	}
	wg.Wait()

	// Whatever interleaving happened, the queue must come out consistent:
	// both sequences agree on length and the pointer is in range.
	length := q.Len()
	if got := len(q.Tracks()); got != length {
		t.Errorf("active sequence length = %d; Len() = %d", got, length)
	}
	index := q.CurrentIndex()
	if index < -1 || index >= length {
		t.Errorf("CurrentIndex() = %d with %d tracks", index, length)
	}
	if index >= 0 && q.CurrentTrack() == nil {
		t.Errorf("CurrentTrack() = nil with index %d in range", index)
	}
}

func TestNotifications(t *testing.T) {
	q := New(nil)
	q.SetQueue(makeTracks(1), 0)

	select {
	case event := <-q.Notifications():
		if event.Type != EventSet {
			t.Errorf("event type = %q; want %q", event.Type, EventSet)
		}
	default:
		t.Fatal("no event after SetQueue")
	}

	q.AddToQueue(models.Track{Key: "/library/metadata/99"})
	select {
	case event := <-q.Notifications():
		if event.Type != EventAdd {
			t.Errorf("event type = %q; want %q", event.Type, EventAdd)
		}
		if event.Track == nil || event.Track.Key != "/library/metadata/99" {
			t.Errorf("event track = %v; want the added track", event.Track)
		}
	default:
		t.Fatal("no event after AddToQueue")
	}
}
