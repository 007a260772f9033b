package database

import (
	"path/filepath"
	"testing"

	"plexbeat/queue"
)

// The queue persists through this package.
var _ queue.Store = (*Database)(nil)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "plexbeat.db"))

	d, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestRecordPlayAndGetHistory(t *testing.T) {
	d := newTestDatabase(t)

	plays := []struct {
		key   string
		title string
	}{
		{"/library/metadata/1", "First"},
		{"/library/metadata/2", "Second"},
		{"/library/metadata/3", "Third"},
	}
	for _, p := range plays {
		if err := d.RecordPlay(p.key, "", p.title, "Artist", "Album", 240); err != nil {
			t.Fatalf("RecordPlay(%s) error = %v", p.key, err)
		}
	}

	records, err := d.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("GetHistory() returned %d records; want 3", len(records))
	}

	seen := make(map[string]bool)
	for _, r := range records {
		seen[r.TrackKey] = true
		if r.PlayedAt.IsZero() {
			t.Errorf("record %s has zero played_at", r.TrackKey)
		}
		if r.DurationSeconds != 240 {
			t.Errorf("record %s duration = %d; want 240", r.TrackKey, r.DurationSeconds)
		}
	}
	for _, p := range plays {
		if !seen[p.key] {
			t.Errorf("record %s missing from history", p.key)
		}
	}

	limited, err := d.GetHistory(2)
	if err != nil {
		t.Fatalf("GetHistory(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("GetHistory(2) returned %d records; want 2", len(limited))
	}
}

func TestGetMostPlayed(t *testing.T) {
	d := newTestDatabase(t)

	for i := 0; i < 3; i++ {
		if err := d.RecordPlay("/library/metadata/1", "", "Heavy Rotation", "Artist", "", 200); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.RecordPlay("/library/metadata/2", "", "One Off", "Artist", "", 200); err != nil {
		t.Fatal(err)
	}

	records, err := d.GetMostPlayed(10)
	if err != nil {
		t.Fatalf("GetMostPlayed() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("GetMostPlayed() returned %d records; want 2", len(records))
	}
	if records[0].TrackKey != "/library/metadata/1" || records[0].PlayCount != 3 {
		t.Errorf("top record = %s with %d plays; want /library/metadata/1 with 3", records[0].TrackKey, records[0].PlayCount)
	}
	if records[0].LastPlayed.Year() < 2000 {
		t.Errorf("last_played parsed to %v; timestamp parsing failed", records[0].LastPlayed)
	}
}

func TestQueueSnapshotRoundTrip(t *testing.T) {
	d := newTestDatabase(t)

	version, payload, err := d.LoadQueueSnapshot()
	if err != nil {
		t.Fatalf("LoadQueueSnapshot() error = %v", err)
	}
	if version != 0 || payload != nil {
		t.Errorf("empty store returned version %d payload %q; want 0 and nil", version, payload)
	}

	if err := d.SaveQueueSnapshot(2, []byte(`{"queue":[]}`)); err != nil {
		t.Fatalf("SaveQueueSnapshot() error = %v", err)
	}
	// Saving again must replace the single row, not add another.
	if err := d.SaveQueueSnapshot(2, []byte(`{"queue":[{"key":"k"}]}`)); err != nil {
		t.Fatalf("SaveQueueSnapshot() error = %v", err)
	}

	version, payload, err = d.LoadQueueSnapshot()
	if err != nil {
		t.Fatalf("LoadQueueSnapshot() error = %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d; want 2", version)
	}
	if string(payload) != `{"queue":[{"key":"k"}]}` {
		t.Errorf("payload = %q; want the latest snapshot", payload)
	}

	if err := d.ClearQueueSnapshot(); err != nil {
		t.Fatalf("ClearQueueSnapshot() error = %v", err)
	}
	version, payload, err = d.LoadQueueSnapshot()
	if err != nil {
		t.Fatalf("LoadQueueSnapshot() error = %v", err)
	}
	if version != 0 || payload != nil {
		t.Errorf("cleared store returned version %d payload %q; want 0 and nil", version, payload)
	}
}

func TestSettings(t *testing.T) {
	d := newTestDatabase(t)

	value, err := d.GetSetting("client_id")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if value != "" {
		t.Errorf("GetSetting(unset) = %q; want empty", value)
	}

	if err := d.SetSetting("client_id", "plexbeat-abc"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if err := d.SetSetting("client_id", "plexbeat-def"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}

	value, err = d.GetSetting("client_id")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if value != "plexbeat-def" {
		t.Errorf("GetSetting() = %q; want the replaced value", value)
	}
}
