// Package history keeps a local record of channel summaries so growth can be
// compared between runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/gauthierbraillon/channelscope/internal/youtube"
)

// DefaultLimit is how many snapshots List returns when no limit is given.
const DefaultLimit = 50

// timeLayout has fixed width so recorded_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Snapshot is a channel summary as it was at RecordedAt.
type Snapshot struct {
	ID              int64     `json:"id"`
	ChannelID       string    `json:"channel_id"`
	Title           string    `json:"title"`
	SubscriberCount int64     `json:"subscriber_count"`
	ViewCount       int64     `json:"view_count"`
	VideoCount      int64     `json:"video_count"`
	RecordedAt      time.Time `json:"recorded_at"`
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Store is a SQLite-backed snapshot log.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (or creates) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}

	s := &Store{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id       TEXT NOT NULL,
		title            TEXT NOT NULL,
		subscriber_count INTEGER NOT NULL,
		view_count       INTEGER NOT NULL,
		video_count      INTEGER NOT NULL,
		recorded_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS snapshots_channel ON snapshots (channel_id, recorded_at)`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a snapshot of summary taken now.
func (s *Store) Record(ctx context.Context, summary youtube.ChannelSummary) error {
	now := s.clock.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (channel_id, title, subscriber_count, view_count, video_count, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.Title, summary.SubscriberCount, summary.ViewCount, summary.VideoCount, now,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// List returns the latest snapshots of channelID, newest first.
func (s *Store) List(ctx context.Context, channelID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_id, title, subscriber_count, view_count, video_count, recorded_at
		 FROM snapshots WHERE channel_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var recordedAt string
		if err := rows.Scan(&snap.ID, &snap.ChannelID, &snap.Title, &snap.SubscriberCount,
			&snap.ViewCount, &snap.VideoCount, &recordedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		snap.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}

	return snapshots, nil
}
