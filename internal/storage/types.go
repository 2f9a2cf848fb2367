package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by MarkProcessed for unknown queue ids.
	ErrNotFound = errors.New("storage: not found")
)

// Feed identifies one origin of trackable records.
type Feed string

const (
	FeedMachines   Feed = "machines"
	FeedChallenges Feed = "challenges"
	FeedNotices    Feed = "notices"
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// SeenRecord is the durable trace of a record the watcher decided was new.
// Once inserted it is never updated or removed.
type SeenRecord struct {
	ID         int64
	Name       string
	Kind       string // OS for machines, category for challenges, type for notices
	Difficulty string
	ReleaseAt  time.Time // zero when the feed has no release timestamp (notices)
}

// QueueItem is one pending link forward.
type QueueItem struct {
	ID        int64
	GroupKey  string // originating channel name; resolves to a destination collection
	Payload   string // the captured URL
	Processed bool
	CreatedAt time.Time
}

// Release is the calendar projection row.
type Release struct {
	Feed       Feed
	ID         int64
	Name       string
	Kind       string
	Difficulty string
	ReleaseAt  time.Time
}
