package knowledgegraph

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/abhisek/kgraph/internal/api"
	"github.com/abhisek/kgraph/internal/mastery"
)

// LayoutScale is applied to both axes of every server-supplied position.
const LayoutScale = 1.25

// Point is a coordinate in graph space.
type Point struct {
	X float64
	Y float64
}

// Size is a node's bounding box in graph space.
type Size struct {
	Width  float64
	Height float64
}

// DefaultNodeSize matches the node footprint of the original layout.
var DefaultNodeSize = Size{Width: 200, Height: 50}

// TopicNode is a render-ready knowledge-graph topic.
type TopicNode struct {
	ID       int
	Label    string
	Active   bool
	Position Point

	RawOccurrences   int
	RawCorrect       int
	LastQuizAttempts int
	LastQuizCorrect  int
	LastReviewedAt   *time.Time

	Accuracy   float64
	Masterable bool
	Mastered   bool

	DisplayCorrect     int
	DisplayOccurrences int
}

// State returns the node's display state.
func (n TopicNode) State() mastery.State {
	return mastery.Classify(n.Active, n.Masterable, n.Mastered)
}

// Edge is a directed link between two topic ids.
type Edge struct {
	ID     string
	Source int
	Target int
}

// EdgeID returns the stable id for an edge.
func EdgeID(source, target int) string {
	return fmt.Sprintf("%d->%d", source, target)
}

// Graph is a normalized knowledge graph. It is immutable once built and is
// replaced wholesale on every successful fetch.
type Graph struct {
	Nodes []TopicNode
	Edges []Edge
	// Config is the mastery config the graph was scored with.
	Config mastery.Config

	byID map[int]int
}

// Normalize scores every payload node with cfg and builds the render-ready
// graph. cfg must already include any server overrides. Normalize is pure:
// the same inputs always produce the same graph.
func Normalize(p api.Payload, cfg mastery.Config, now time.Time) Graph {
	g := Graph{
		Nodes:  make([]TopicNode, 0, len(p.Nodes)),
		Edges:  make([]Edge, 0, len(p.Edges)),
		Config: cfg,
	}

	for _, n := range p.Nodes {
		g.Nodes = append(g.Nodes, normalizeNode(n, cfg, now))
	}
	for _, e := range p.Edges {
		g.Edges = append(g.Edges, Edge{ID: EdgeID(e.Source, e.Target), Source: e.Source, Target: e.Target})
	}

	g.index()
	return g
}

func normalizeNode(n api.Node, cfg mastery.Config, now time.Time) TopicNode {
	raw := mastery.RawStats{
		Occurrences:    mastery.SafeCount(n.Occurrences),
		Correct:        mastery.SafeCount(n.CorrectResponses),
		LastReviewedAt: n.LastReviewed,
	}
	if n.LastQuizAttempts != nil {
		raw.LastQuizAttempts = mastery.SafeCount(*n.LastQuizAttempts)
	}
	if n.LastQuizCorrect != nil {
		raw.LastQuizCorrect = mastery.SafeCount(*n.LastQuizCorrect)
	}

	res := mastery.Score(raw, now, cfg)
	displayCorrect, displayOcc := mastery.DisplayCounters(res.Accuracy, cfg)

	active := true
	if n.IsActive != nil {
		active = *n.IsActive
	}

	var reviewed *time.Time
	if n.LastReviewed != nil {
		t := *n.LastReviewed
		reviewed = &t
	}

	return TopicNode{
		ID:                 n.ID,
		Label:              n.Label,
		Active:             active,
		Position:           Point{X: n.Position.X * LayoutScale, Y: n.Position.Y * LayoutScale},
		RawOccurrences:     raw.Occurrences,
		RawCorrect:         raw.Correct,
		LastQuizAttempts:   raw.LastQuizAttempts,
		LastQuizCorrect:    raw.LastQuizCorrect,
		LastReviewedAt:     reviewed,
		Accuracy:           res.Accuracy,
		Masterable:         res.Masterable,
		Mastered:           res.Mastered,
		DisplayCorrect:     displayCorrect,
		DisplayOccurrences: displayOcc,
	}
}

// index builds the id lookup. On duplicate ids the first node wins.
func (g *Graph) index() {
	g.byID = make(map[int]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := g.byID[n.ID]; !dup {
			g.byID[n.ID] = i
		}
	}
}

// Node looks up a node by id.
func (g Graph) Node(id int) (TopicNode, bool) {
	if g.byID == nil {
		for _, n := range g.Nodes {
			if n.ID == id {
				return n, true
			}
		}
		return TopicNode{}, false
	}
	i, ok := g.byID[id]
	if !ok {
		return TopicNode{}, false
	}
	return g.Nodes[i], true
}

// Empty reports whether the graph has no nodes.
func (g Graph) Empty() bool {
	return len(g.Nodes) == 0
}

// Segment is a resolved edge ready for drawing.
type Segment struct {
	Edge   Edge
	From   Point
	To     Point
	Length float64
	// Angle is the direction from From to To in radians.
	Angle float64
}

// Segments resolves every edge whose endpoints both exist and returns its
// geometry between node centers. Unresolvable edges are skipped.
func (g Graph) Segments(size Size) []Segment {
	out := make([]Segment, 0, len(g.Edges))
	for _, e := range g.Edges {
		src, ok := g.Node(e.Source)
		if !ok {
			continue
		}
		dst, ok := g.Node(e.Target)
		if !ok {
			continue
		}
		from := Center(src.Position, size)
		to := Center(dst.Position, size)
		dx, dy := to.X-from.X, to.Y-from.Y
		out = append(out, Segment{
			Edge:   e,
			From:   from,
			To:     to,
			Length: math.Hypot(dx, dy),
			Angle:  math.Atan2(dy, dx),
		})
	}
	return out
}

// Center returns the center of a node box whose top-left corner is at p.
func Center(p Point, size Size) Point {
	return Point{X: p.X + size.Width/2, Y: p.Y + size.Height/2}
}

// Bounds returns the top-left and bottom-right corners enclosing every node
// box. Both are zero for an empty graph.
func (g Graph) Bounds(size Size) (Point, Point) {
	if len(g.Nodes) == 0 {
		return Point{}, Point{}
	}
	minP := Point{X: math.Inf(1), Y: math.Inf(1)}
	maxP := Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, n := range g.Nodes {
		minP.X = math.Min(minP.X, n.Position.X)
		minP.Y = math.Min(minP.Y, n.Position.Y)
		maxP.X = math.Max(maxP.X, n.Position.X+size.Width)
		maxP.Y = math.Max(maxP.Y, n.Position.Y+size.Height)
	}
	return minP, maxP
}

// SortedByID returns the nodes ordered by id.
func (g Graph) SortedByID() []TopicNode {
	nodes := slices.Clone(g.Nodes)
	slices.SortStableFunc(nodes, func(a, b TopicNode) int { return a.ID - b.ID })
	return nodes
}

// Summary aggregates node states for headers and listings.
type Summary struct {
	Total        int
	Inactive     int
	Locked       int
	Learning     int
	Mastered     int
	MeanAccuracy float64
}

// Summarize counts nodes per display state.
func (g Graph) Summarize() Summary {
	var s Summary
	var sum float64
	for _, n := range g.Nodes {
		s.Total++
		sum += n.Accuracy
		switch n.State() {
		case mastery.StateInactive:
			s.Inactive++
		case mastery.StateLocked:
			s.Locked++
		case mastery.StateLearning:
			s.Learning++
		case mastery.StateMastered:
			s.Mastered++
		}
	}
	if s.Total > 0 {
		s.MeanAccuracy = mastery.Round2(sum / float64(s.Total))
	}
	return s
}
