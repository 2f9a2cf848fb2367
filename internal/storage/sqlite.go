package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"htbwatch/migrations"
	logx "htbwatch/pkg/logx"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Store is the SQLite-backed implementation of the dedup and queue state.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the database and runs pending migrations.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage: path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Exists reports whether the record id was already processed for the feed.
func (s *Store) Exists(ctx context.Context, feed Feed, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_records WHERE feed = ? AND id = ?`, string(feed), id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seen lookup: %w", err)
	}
	return true, nil
}

// Insert atomically records the id as seen. The insert and the existence
// check share one statement, so a crash can never leave a half-written row
// that reads as existing. Returns false when the id was already present.
func (s *Store) Insert(ctx context.Context, feed Feed, rec SeenRecord) (bool, error) {
	rel := ""
	if !rec.ReleaseAt.IsZero() {
		rel = rec.ReleaseAt.UTC().Format(timeLayout)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_records (feed, id, name, kind, difficulty, release_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(feed, id) DO NOTHING`,
		string(feed), rec.ID, rec.Name, rec.Kind, rec.Difficulty, rel,
	)
	if err != nil {
		return false, fmt.Errorf("insert seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert seen: rows affected: %w", err)
	}
	return n > 0, nil
}

// ReleasesBetween returns the records with a release timestamp inside
// [from, to], oldest first. Read-only; feeds with no release time (notices)
// never appear.
func (s *Store) ReleasesBetween(ctx context.Context, from, to time.Time) ([]Release, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feed, id, name, kind, difficulty, release_at
		 FROM seen_records
		 WHERE release_at != '' AND release_at >= ? AND release_at <= ?
		 ORDER BY release_at ASC, feed ASC, id ASC`,
		from.UTC().Format(timeLayout), to.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("releases query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Release
	for rows.Next() {
		var (
			r    Release
			feed string
			rel  string
		)
		if err := rows.Scan(&feed, &r.ID, &r.Name, &r.Kind, &r.Difficulty, &rel); err != nil {
			return nil, fmt.Errorf("releases scan: %w", err)
		}
		r.Feed = Feed(feed)
		t, err := time.Parse(timeLayout, rel)
		if err != nil {
			// A row we wrote with a bad timestamp is a programming error;
			// skip it rather than failing the whole projection.
			s.log.Warn("skipping release with invalid timestamp",
				logx.String("feed", feed), logx.Int64("id", r.ID), logx.String("release_at", rel))
			continue
		}
		r.ReleaseAt = t
		out = append(out, r)
	}
	return out, rows.Err()
}

// Enqueue stores a captured link. Duplicate payloads are ignored; returns
// false when the link was already queued (or already processed).
func (s *Store) Enqueue(ctx context.Context, groupKey, payload string) (bool, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return false, errors.New("storage: empty payload")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO links (channel_name, link) VALUES (?, ?)
		 ON CONFLICT(link) DO NOTHING`,
		groupKey, payload,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue link: rows affected: %w", err)
	}
	return n > 0, nil
}

// DequeueBatch returns up to limit unprocessed items, oldest first.
// It never marks anything processed; callers confirm delivery first.
func (s *Store) DequeueBatch(ctx context.Context, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel_name, link, processed, created_at
		 FROM links WHERE processed = 0
		 ORDER BY id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []QueueItem
	for rows.Next() {
		var (
			it        QueueItem
			processed int
			created   string
		)
		if err := rows.Scan(&it.ID, &it.GroupKey, &it.Payload, &processed, &created); err != nil {
			return nil, fmt.Errorf("dequeue scan: %w", err)
		}
		it.Processed = processed != 0
		if ts, err := time.Parse(timeLayout, created); err == nil {
			it.CreatedAt = ts
		} else {
			s.log.Warn("queue item has invalid created_at",
				logx.Int64("id", it.ID), logx.String("created_at", created))
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// MarkProcessed flips the item to processed. The transition is one-way and
// idempotent; marking an already-processed item succeeds. Unknown ids
// return ErrNotFound.
func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE links SET processed = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("queue item %d: %w", id, ErrNotFound)
	}
	return nil
}
