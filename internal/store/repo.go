package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	ClassID string    // exact class match ("" = all)
	After   int64     // sequence > After
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
}

// GraphSnapshot is the last good response body for a class.
type GraphSnapshot struct {
	ID        int
	ClassID   string
	Sequence  int64
	FetchedAt time.Time
	// Payload is the raw response body as received.
	Payload []byte
}

// SnapshotRepo caches knowledge-graph payloads per class.
type SnapshotRepo interface {
	// Save stores a new snapshot and assigns its sequence.
	Save(ctx context.Context, snap *GraphSnapshot) error

	// Latest returns the most recent snapshot for a class, or nil if none exist.
	Latest(ctx context.Context, classID string) (*GraphSnapshot, error)

	// Prune deletes all but the keep most recent snapshots of a class.
	Prune(ctx context.Context, classID string, keep int) error

	// Classes lists every class with at least one snapshot.
	Classes(ctx context.Context) ([]string, error)
}

// FetchEvent records the outcome of one knowledge-graph fetch.
type FetchEvent struct {
	ID           int
	Sequence     int64
	Timestamp    time.Time
	ClassID      string
	RequestID    string
	Success      bool
	StatusCode   int
	Latency      time.Duration
	NodeCount    int
	EdgeCount    int
	Warnings     []string
	ErrorMessage string
}

// EventRepo provides append and query access to fetch events.
type EventRepo interface {
	// Append records a fetch event and assigns its sequence.
	Append(ctx context.Context, ev *FetchEvent) error

	// Recent returns events newest first.
	Recent(ctx context.Context, opts QueryOpts) ([]FetchEvent, error)
}
