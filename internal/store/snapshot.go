package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type snapshotRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *snapshotRepo) Save(ctx context.Context, snap *GraphSnapshot) error {
	seq, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	snap.FetchedAt = snap.FetchedAt.UTC()

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableGraphSnapshots).
		Columns("class_id", "sequence", "fetched_at", "payload").
		Values(snap.ClassID, seq, snap.FetchedAt, snap.Payload).
		Query()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = int(id)
	}
	snap.Sequence = seq
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, classID string) (*GraphSnapshot, error) {
	b := entsql.Dialect(dialect.SQLite)
	query, args := b.Select("id", "class_id", "sequence", "fetched_at", "payload").
		From(b.Table(tableGraphSnapshots)).
		Where(entsql.EQ("class_id", classID)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	var s GraphSnapshot
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.ClassID, &s.Sequence, &s.FetchedAt, &s.Payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	return &s, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, classID string, keep int) error {
	// Find the sequence threshold: the first snapshot past the ones we keep.
	b := entsql.Dialect(dialect.SQLite)
	query, args := b.Select("sequence").
		From(b.Table(tableGraphSnapshots)).
		Where(entsql.EQ("class_id", classID)).
		OrderBy(entsql.Desc("sequence")).
		Offset(max(0, keep)).
		Limit(1).
		Query()

	var threshold int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&threshold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // fewer than keep snapshots exist
		}
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	query, args = entsql.Dialect(dialect.SQLite).
		Delete(tableGraphSnapshots).
		Where(entsql.And(
			entsql.EQ("class_id", classID),
			entsql.LTE("sequence", threshold),
		)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Classes(ctx context.Context) ([]string, error) {
	b := entsql.Dialect(dialect.SQLite)
	query, args := b.Select("class_id").
		From(b.Table(tableGraphSnapshots)).
		Distinct().
		OrderBy("class_id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshot classes: %w", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan class id: %w", err)
		}
		classes = append(classes, id)
	}
	return classes, rows.Err()
}
