package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

type PlayHistoryRecord struct {
	ID              int64     `json:"id"`
	TrackKey        string    `json:"trackKey"`
	RatingKey       string    `json:"ratingKey,omitempty"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist,omitempty"`
	Album           string    `json:"album,omitempty"`
	PlayedAt        time.Time `json:"playedAt"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
}

type MostPlayedRecord struct {
	TrackKey   string    `json:"trackKey"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist,omitempty"`
	PlayCount  int       `json:"playCount"`
	LastPlayed time.Time `json:"lastPlayed"`
}

// New creates a new Database instance. dbPath defaults to DB_PATH env var or /app/data/plexbeat.db.
func New() (*Database, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "/app/data/plexbeat.db"
	}

	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS play_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_key TEXT NOT NULL,
			rating_key TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			played_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			duration_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_played_at ON play_history(played_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_track_key ON play_history(track_key)`,
		`CREATE TABLE IF NOT EXISTS queue_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// RecordPlay inserts a track play record.
func (d *Database) RecordPlay(trackKey, ratingKey, title, artist, album string, durationSeconds int) error {
	_, err := d.db.Exec(
		`INSERT INTO play_history (track_key, rating_key, title, artist, album, played_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trackKey, ratingKey, title, artist, album, time.Now().UTC().Format(time.RFC3339Nano), durationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// GetHistory returns the most recent plays.
func (d *Database) GetHistory(limit int) ([]PlayHistoryRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.Query(
		`SELECT id, track_key, rating_key, title, artist, album, played_at, duration_seconds
		 FROM play_history
		 ORDER BY played_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []PlayHistoryRecord
	for rows.Next() {
		var r PlayHistoryRecord
		if err := rows.Scan(&r.ID, &r.TrackKey, &r.RatingKey, &r.Title, &r.Artist,
			&r.Album, &r.PlayedAt, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMostPlayed returns the most played tracks.
func (d *Database) GetMostPlayed(limit int) ([]MostPlayedRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.Query(
		`SELECT track_key, title, artist, COUNT(*) as play_count, MAX(played_at) as last_played
		 FROM play_history
		 GROUP BY track_key
		 ORDER BY play_count DESC, last_played DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most played: %w", err)
	}
	defer rows.Close()

	var records []MostPlayedRecord
	for rows.Next() {
		var r MostPlayedRecord
		var lastPlayedStr string
		if err := rows.Scan(&r.TrackKey, &r.Title, &r.Artist, &r.PlayCount, &lastPlayedStr); err != nil {
			return nil, fmt.Errorf("failed to scan most played row: %w", err)
		}

		// MAX(played_at) is an expression column, so the driver hands back
		// the raw string instead of a time.Time. Stored format depends on
		// how the row was inserted:
		//   - RecordPlay writes RFC3339Nano
		//   - rows relying on the column default get "2006-01-02 15:04:05"
		formats := []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02 15:04:05.999999999 -0700 MST",
			"2006-01-02 15:04:05",
		}
		var lastPlayed time.Time
		parsed := false
		for _, layout := range formats {
			if t, err := time.Parse(layout, lastPlayedStr); err == nil {
				lastPlayed = t
				parsed = true
				break
			}
		}
		if !parsed {
			log.Warnf("failed to parse last_played timestamp '%s' with all known formats", lastPlayedStr)
			lastPlayed = time.Now() // Fall back to now rather than year 1
		}
		r.LastPlayed = lastPlayed

		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveQueueSnapshot upserts the single persisted queue row.
func (d *Database) SaveQueueSnapshot(version int, payload []byte) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO queue_snapshot (id, version, payload, saved_at) VALUES (1, ?, ?, ?)`,
		version, payload, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save queue snapshot: %w", err)
	}
	return nil
}

// LoadQueueSnapshot returns the persisted queue row, or (0, nil, nil) when
// none has been saved.
func (d *Database) LoadQueueSnapshot() (int, []byte, error) {
	var version int
	var payload []byte
	err := d.db.QueryRow(`SELECT version, payload FROM queue_snapshot WHERE id = 1`).Scan(&version, &payload)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load queue snapshot: %w", err)
	}
	return version, payload, nil
}

func (d *Database) ClearQueueSnapshot() error {
	_, err := d.db.Exec(`DELETE FROM queue_snapshot WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to clear queue snapshot: %w", err)
	}
	return nil
}

// GetSetting returns the stored value for key, or empty string when unset.
func (d *Database) GetSetting(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

func (d *Database) SetSetting(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
