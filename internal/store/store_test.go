package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kgraph.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"graph_snapshots", "fetch_events", "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kgraph.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Snapshots().Save(ctx, &GraphSnapshot{ClassID: "1", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	snap, err := s.Snapshots().Latest(ctx, "1")
	if err != nil || snap == nil {
		t.Fatalf("latest after reopen: %v, %v", snap, err)
	}

	// The sequence continues across restarts.
	next := &GraphSnapshot{ClassID: "1", Payload: []byte(`{}`)}
	if err := s.Snapshots().Save(ctx, next); err != nil {
		t.Fatalf("save: %v", err)
	}
	if next.Sequence <= snap.Sequence {
		t.Errorf("sequence %d not after %d", next.Sequence, snap.Sequence)
	}
}

func TestSnapshotSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	snap, err := repo.Latest(ctx, "42")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot when none exist")
	}

	now := time.Now().UTC().Truncate(time.Second)
	saved := &GraphSnapshot{ClassID: "42", FetchedAt: now, Payload: []byte(`{"nodes":[]}`)}
	if err := repo.Save(ctx, saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Sequence != 1 || saved.ID == 0 {
		t.Errorf("saved sequence=%d id=%d", saved.Sequence, saved.ID)
	}

	snap, err = repo.Latest(ctx, "42")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if string(snap.Payload) != `{"nodes":[]}` {
		t.Errorf("payload = %s", snap.Payload)
	}
	if !snap.FetchedAt.Equal(now) {
		t.Errorf("fetched_at = %v, want %v", snap.FetchedAt, now)
	}
	if snap.ClassID != "42" {
		t.Errorf("class = %q", snap.ClassID)
	}
}

func TestSnapshotLatestPerClass(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	for _, snap := range []GraphSnapshot{
		{ClassID: "a", Payload: []byte("1")},
		{ClassID: "b", Payload: []byte("2")},
		{ClassID: "a", Payload: []byte("3")},
	} {
		if err := repo.Save(ctx, &snap); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	a, _ := repo.Latest(ctx, "a")
	b, _ := repo.Latest(ctx, "b")
	if string(a.Payload) != "3" || string(b.Payload) != "2" {
		t.Errorf("latest a=%s b=%s", a.Payload, b.Payload)
	}

	classes, err := repo.Classes(ctx)
	if err != nil {
		t.Fatalf("classes: %v", err)
	}
	if len(classes) != 2 || classes[0] != "a" || classes[1] != "b" {
		t.Errorf("classes = %v", classes)
	}
}

func TestSnapshotPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if err := repo.Save(ctx, &GraphSnapshot{ClassID: "x", Payload: []byte{byte('0' + i)}}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := repo.Save(ctx, &GraphSnapshot{ClassID: "y", Payload: []byte("y")}); err != nil {
		t.Fatalf("save y: %v", err)
	}

	if err := repo.Prune(ctx, "x", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if got := countRows(t, s, "graph_snapshots"); got != 6 {
		t.Errorf("remaining snapshots = %d, want 6", got)
	}
	snap, _ := repo.Latest(ctx, "x")
	if string(snap.Payload) != "6" {
		t.Errorf("latest payload = %s, want 6", snap.Payload)
	}
	if y, _ := repo.Latest(ctx, "y"); y == nil {
		t.Error("prune of x removed y")
	}
}

func TestSnapshotPruneWithFewerThanKeep(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Save(ctx, &GraphSnapshot{ClassID: "x", Payload: []byte("p")}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if err := repo.Prune(ctx, "x", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if got := countRows(t, s, "graph_snapshots"); got != 2 {
		t.Errorf("remaining snapshots = %d, want 2", got)
	}
}

func TestEventAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	repo := s.Events()
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	events := []FetchEvent{
		{Timestamp: base, ClassID: "1", RequestID: "r1", Success: true, StatusCode: 200, Latency: 120 * time.Millisecond, NodeCount: 4, EdgeCount: 3, Warnings: []string{"nodes[2]: missing or invalid id"}},
		{Timestamp: base.Add(time.Minute), ClassID: "2", Success: false, StatusCode: 503, ErrorMessage: "unexpected status 503"},
		{Timestamp: base.Add(2 * time.Minute), ClassID: "1", Success: false, ErrorMessage: "backend unavailable"},
	}
	for i := range events {
		if err := repo.Append(ctx, &events[i]); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := repo.Recent(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].ErrorMessage != "backend unavailable" || got[2].RequestID != "r1" {
		t.Errorf("events not newest first: %+v", got)
	}

	first := got[2]
	if !first.Success || first.StatusCode != 200 || first.Latency != 120*time.Millisecond {
		t.Errorf("first event = %+v", first)
	}
	if first.NodeCount != 4 || first.EdgeCount != 3 {
		t.Errorf("counts = %d/%d", first.NodeCount, first.EdgeCount)
	}
	if len(first.Warnings) != 1 || first.Warnings[0] != "nodes[2]: missing or invalid id" {
		t.Errorf("warnings = %v", first.Warnings)
	}
	if !first.Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", first.Timestamp, base)
	}
	if got[1].Warnings != nil {
		t.Errorf("expected no warnings, got %v", got[1].Warnings)
	}
}

func TestEventRecentFilters(t *testing.T) {
	s := openTestStore(t)
	repo := s.Events()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		class := "odd"
		if i%2 == 0 {
			class = "even"
		}
		if err := repo.Append(ctx, &FetchEvent{ClassID: class, Success: true}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	tests := []struct {
		name string
		opts QueryOpts
		want int
	}{
		{"all", QueryOpts{}, 6},
		{"limit", QueryOpts{Limit: 2}, 2},
		{"class", QueryOpts{ClassID: "even"}, 3},
		{"class and limit", QueryOpts{ClassID: "odd", Limit: 1}, 1},
		{"after", QueryOpts{After: 4}, 2},
		{"unknown class", QueryOpts{ClassID: "none"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Recent(ctx, tt.opts)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSequenceSharedAcrossTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	snap := &GraphSnapshot{ClassID: "1", Payload: []byte("{}")}
	ev := &FetchEvent{ClassID: "1", Success: true}
	if err := s.Snapshots().Save(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if err := s.Events().Append(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if snap.Sequence != 1 || ev.Sequence != 2 {
		t.Errorf("sequences = %d, %d; want 1, 2", snap.Sequence, ev.Sequence)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := newSequenceCounter(s.DB())
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}

	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if want := int64(i + 1); seq != want {
			t.Errorf("seq[%d] = %d, want %d", i, seq, want)
		}
	}
}
