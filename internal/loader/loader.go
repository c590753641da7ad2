// Package loader sequences knowledge-graph fetches for a screen. Fetch does
// the I/O and may run on any goroutine; Begin and Apply mutate loader state
// and must be called from the owning goroutine only.
package loader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/kgraph/internal/api"
	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/mastery"
	"github.com/abhisek/kgraph/internal/store"
)

// Fetcher retrieves a class's knowledge graph from the backend.
type Fetcher interface {
	FetchGraph(ctx context.Context, classID string) (*api.Response, error)
}

// Source says where the current graph came from.
type Source int

const (
	SourceNone Source = iota
	SourceNetwork
	SourceCache
)

func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourceCache:
		return "cache"
	default:
		return "none"
	}
}

// Options configures a Loader. Snapshots and Events are optional.
type Options struct {
	Fetcher   Fetcher
	Snapshots store.SnapshotRepo
	Events    store.EventRepo
	Mastery   mastery.Config
	// KeepSnapshots bounds the per-class cache. Zero keeps everything.
	KeepSnapshots int
	Logger        *zap.Logger
	Now           func() time.Time
}

// Ticket identifies one fetch. Only the most recently issued ticket's
// result is applied.
type Ticket struct {
	Seq     uint64
	ClassID string
	// Config is the effective mastery config when the fetch began; server
	// overrides are layered on top of it.
	Config mastery.Config
}

// Result is the outcome of a fetch, ready to Apply.
type Result struct {
	Ticket Ticket
	Graph  knowledgegraph.Graph
	Config mastery.Config
	Source Source
	// FetchedAt is when the graph's payload was retrieved.
	FetchedAt time.Time
	Warnings  []string
	Err       error
	// Fallback is the cached graph offered when the fetch failed.
	Fallback *Result
}

// Loader owns the current graph of one screen.
type Loader struct {
	fetcher   Fetcher
	snapshots store.SnapshotRepo
	events    store.EventRepo
	keep      int
	logger    *zap.Logger
	now       func() time.Time
	base      mastery.Config

	seq       uint64
	loading   bool
	classID   string
	graph     knowledgegraph.Graph
	config    mastery.Config
	source    Source
	fetchedAt time.Time
	lastErr   error
}

// New creates a Loader.
func New(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Loader{
		fetcher:   opts.Fetcher,
		snapshots: opts.Snapshots,
		events:    opts.Events,
		keep:      opts.KeepSnapshots,
		logger:    logger,
		now:       now,
		base:      opts.Mastery,
		config:    opts.Mastery,
	}
}

// Graph returns the current graph. It is never partially updated.
func (l *Loader) Graph() knowledgegraph.Graph { return l.graph }

// Config returns the mastery config the current graph was scored with.
func (l *Loader) Config() mastery.Config { return l.config }

// Loading reports whether the latest fetch is still outstanding.
func (l *Loader) Loading() bool { return l.loading }

// Source reports where the current graph came from.
func (l *Loader) Source() Source { return l.source }

// FetchedAt returns when the current graph's payload was retrieved.
func (l *Loader) FetchedAt() time.Time { return l.fetchedAt }

// LastError returns the error of the most recent applied fetch, if it failed.
func (l *Loader) LastError() error { return l.lastErr }

// ClassID returns the class of the latest fetch.
func (l *Loader) ClassID() string { return l.classID }

// Begin issues a new ticket and marks the loader as loading. Any result
// for an earlier ticket will be discarded.
func (l *Loader) Begin(classID string) Ticket {
	if classID != l.classID {
		// Overrides from another class must not leak into this one.
		l.classID = classID
		l.graph = knowledgegraph.Graph{}
		l.config = l.base
		l.source = SourceNone
		l.fetchedAt = time.Time{}
		l.lastErr = nil
	}
	l.seq++
	l.loading = true
	return Ticket{Seq: l.seq, ClassID: classID, Config: l.config}
}

// Fetch performs the fetch for t. It reads no mutable loader state, so it
// is safe to call from a goroutine while the owner keeps rendering.
func (l *Loader) Fetch(ctx context.Context, t Ticket) (res Result) {
	res = Result{Ticket: t, Config: t.Config}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Ticket: t, Config: t.Config, Err: fmt.Errorf("fetch panicked: %v", r)}
			l.logger.Error("knowledge graph fetch panicked", zap.Any("panic", r), zap.String("class_id", t.ClassID))
		}
	}()

	if l.fetcher == nil {
		res.Err = fmt.Errorf("no backend configured")
		res.Fallback = l.cached(ctx, t)
		return res
	}

	start := l.now()
	resp, err := l.fetcher.FetchGraph(ctx, t.ClassID)
	if err != nil {
		res.Err = err
		l.recordEvent(ctx, t, resp, err, l.now().Sub(start))
		l.logger.Warn("knowledge graph fetch failed",
			zap.String("class_id", t.ClassID),
			zap.Uint64("seq", t.Seq),
			zap.Int("status", api.StatusCode(err)),
			zap.Error(err),
		)
		res.Fallback = l.cached(ctx, t)
		return res
	}

	res.FetchedAt = l.now()
	res = l.build(t, resp.Payload, res.FetchedAt, SourceNetwork)
	l.recordEvent(ctx, t, resp, nil, resp.Latency)
	l.saveSnapshot(ctx, t.ClassID, resp.Body, res.FetchedAt)
	return res
}

// Apply installs a fetch result. Results for superseded tickets are
// discarded and reported false. A failed fetch leaves the current graph in
// place, falling back to the cache only when nothing is loaded.
func (l *Loader) Apply(res Result) bool {
	if res.Ticket.Seq != l.seq || res.Ticket.ClassID != l.classID {
		l.logger.Debug("discarding stale knowledge graph response",
			zap.Uint64("seq", res.Ticket.Seq),
			zap.Uint64("latest", l.seq),
		)
		return false
	}
	defer func() { l.loading = false }()

	if res.Err != nil {
		l.lastErr = res.Err
		if l.graph.Empty() && res.Fallback != nil {
			l.install(*res.Fallback)
			l.logger.Info("using cached knowledge graph",
				zap.String("class_id", res.Ticket.ClassID),
				zap.Time("fetched_at", res.Fallback.FetchedAt),
			)
		}
		return true
	}

	l.lastErr = nil
	l.install(res)
	return true
}

// Refresh runs a complete fetch synchronously.
func (l *Loader) Refresh(ctx context.Context, classID string) Result {
	res := l.Fetch(ctx, l.Begin(classID))
	l.Apply(res)
	return res
}

func (l *Loader) install(res Result) {
	l.graph = res.Graph
	l.config = res.Config
	l.source = res.Source
	l.fetchedAt = res.FetchedAt
}

// build scores a decoded payload against the ticket's config.
func (l *Loader) build(t Ticket, p api.Payload, fetchedAt time.Time, src Source) Result {
	cfg := t.Config.WithOverrides(p.Overrides())
	g := knowledgegraph.Normalize(p, cfg, l.now())

	warnings := append([]string(nil), p.Warnings...)
	warnings = append(warnings, knowledgegraph.Validate(g)...)
	if len(warnings) > 0 {
		l.logger.Warn("knowledge graph payload problems",
			zap.String("class_id", t.ClassID),
			zap.String("source", src.String()),
			zap.Strings("warnings", warnings),
		)
	}

	return Result{
		Ticket:    t,
		Graph:     g,
		Config:    cfg,
		Source:    src,
		FetchedAt: fetchedAt,
		Warnings:  warnings,
	}
}

func (l *Loader) cached(ctx context.Context, t Ticket) *Result {
	if l.snapshots == nil {
		return nil
	}
	snap, err := l.snapshots.Latest(ctx, t.ClassID)
	if err != nil {
		l.logger.Warn("read cached knowledge graph", zap.String("class_id", t.ClassID), zap.Error(err))
		return nil
	}
	if snap == nil {
		return nil
	}
	p, err := api.DecodePayload(snap.Payload)
	if err != nil {
		l.logger.Warn("decode cached knowledge graph", zap.String("class_id", t.ClassID), zap.Error(err))
		return nil
	}
	res := l.build(t, p, snap.FetchedAt, SourceCache)
	return &res
}

func (l *Loader) recordEvent(ctx context.Context, t Ticket, resp *api.Response, fetchErr error, latency time.Duration) {
	if l.events == nil {
		return
	}
	ev := &store.FetchEvent{
		Timestamp:  l.now(),
		ClassID:    t.ClassID,
		Success:    fetchErr == nil,
		StatusCode: api.StatusCode(fetchErr),
		Latency:    latency,
	}
	if resp != nil {
		ev.RequestID = resp.RequestID
		ev.StatusCode = resp.StatusCode
		ev.NodeCount = len(resp.Payload.Nodes)
		ev.EdgeCount = len(resp.Payload.Edges)
		ev.Warnings = resp.Payload.Warnings
	}
	if fetchErr != nil {
		ev.ErrorMessage = fetchErr.Error()
	}

	// Don't fail the fetch if recording fails.
	if err := l.events.Append(ctx, ev); err != nil {
		l.logger.Warn("record fetch event", zap.Error(err))
	}
}

func (l *Loader) saveSnapshot(ctx context.Context, classID string, body []byte, fetchedAt time.Time) {
	if l.snapshots == nil || len(body) == 0 {
		return
	}
	snap := &store.GraphSnapshot{ClassID: classID, FetchedAt: fetchedAt, Payload: body}
	if err := l.snapshots.Save(ctx, snap); err != nil {
		l.logger.Warn("cache knowledge graph", zap.String("class_id", classID), zap.Error(err))
		return
	}
	if l.keep > 0 {
		if err := l.snapshots.Prune(ctx, classID, l.keep); err != nil {
			l.logger.Warn("prune cached knowledge graphs", zap.String("class_id", classID), zap.Error(err))
		}
	}
}
