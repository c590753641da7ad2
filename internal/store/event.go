package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	json "github.com/goccy/go-json"
)

// sequenceCounter hands out the global monotonic sequence shared by
// snapshots and fetch events, so ordering survives restarts and spans both
// tables.
//
// Uses raw SQL because the ent builders have no atomic increment with
// RETURNING. The mutex serializes within the process; the RETURNING clause
// makes the increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var eventColumns = []string{
	"id", "sequence", "timestamp", "class_id", "request_id", "success",
	"status_code", "latency_ms", "node_count", "edge_count", "warnings", "error_message",
}

func (r *eventRepo) Append(ctx context.Context, ev *FetchEvent) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	var warnings any
	if len(ev.Warnings) > 0 {
		b, err := json.Marshal(ev.Warnings)
		if err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
		warnings = string(b)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableFetchEvents).
		Columns(eventColumns[1:]...).
		Values(
			seq, ev.Timestamp, ev.ClassID, nullString(ev.RequestID), ev.Success,
			ev.StatusCode, ev.Latency.Milliseconds(), ev.NodeCount, ev.EdgeCount,
			warnings, nullString(ev.ErrorMessage),
		).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("append fetch event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		ev.ID = int(id)
	}
	ev.Sequence = seq
	return nil
}

func (r *eventRepo) Recent(ctx context.Context, opts QueryOpts) ([]FetchEvent, error) {
	b := entsql.Dialect(dialect.SQLite)
	t := b.Table(tableFetchEvents)
	sel := b.Select(eventColumns...).From(t)

	var preds []*entsql.Predicate
	if opts.ClassID != "" {
		preds = append(preds, entsql.EQ("class_id", opts.ClassID))
	}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UTC()))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetch events: %w", err)
	}
	defer rows.Close()

	var out []FetchEvent
	for rows.Next() {
		var (
			ev        FetchEvent
			requestID sql.NullString
			warnings  sql.NullString
			errMsg    sql.NullString
			latencyMs int64
		)
		if err := rows.Scan(
			&ev.ID, &ev.Sequence, &ev.Timestamp, &ev.ClassID, &requestID, &ev.Success,
			&ev.StatusCode, &latencyMs, &ev.NodeCount, &ev.EdgeCount, &warnings, &errMsg,
		); err != nil {
			return nil, fmt.Errorf("scan fetch event: %w", err)
		}
		ev.RequestID = requestID.String
		ev.ErrorMessage = errMsg.String
		ev.Latency = time.Duration(latencyMs) * time.Millisecond
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &ev.Warnings); err != nil {
				return nil, fmt.Errorf("unmarshal warnings: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetch events: %w", err)
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
