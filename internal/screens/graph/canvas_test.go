package graph

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/mastery"
	"github.com/abhisek/kgraph/internal/viewport"
)

func TestEdgeGlyphs(t *testing.T) {
	tests := []struct {
		dx, dy      int
		line, arrow rune
	}{
		{10, 0, '─', '→'},
		{-10, 0, '─', '←'},
		{0, 5, '│', '↓'},
		{0, -5, '│', '↑'},
		{4, 2, '╲', '↘'},
		{-4, -2, '╲', '↖'},
		{4, -2, '╱', '↗'},
		{-4, 2, '╱', '↙'},
	}
	for _, tt := range tests {
		line, arrow := edgeGlyphs(tt.dx, tt.dy)
		if line != tt.line || arrow != tt.arrow {
			t.Errorf("edgeGlyphs(%d, %d) = %q %q, want %q %q", tt.dx, tt.dy, line, arrow, tt.line, tt.arrow)
		}
	}
}

func TestCanvasTextWideRunes(t *testing.T) {
	c := newCanvas(6, 1)
	c.text(0, 0, "👑ab", styleLabel, 6)

	if c.cells[0].r != '👑' || !c.cells[1].cont {
		t.Fatalf("expected wide rune to span two cells, got %+v %+v", c.cells[0], c.cells[1])
	}
	if c.cells[2].r != 'a' || c.cells[3].r != 'b' {
		t.Errorf("unexpected cells %+v", c.cells[:4])
	}
}

func TestCanvasTextClipsToWidth(t *testing.T) {
	c := newCanvas(10, 1)
	c.text(0, 0, "abcdefgh", styleLabel, 3)
	if c.cells[2].r != 'c' || c.cells[3].r != ' ' {
		t.Errorf("expected clip after 3 columns, got %+v", c.cells[:4])
	}
}

func TestCanvasIgnoresOutOfRange(t *testing.T) {
	c := newCanvas(3, 2)
	c.set(-1, 0, 'x', styleEdge, "")
	c.set(3, 1, 'x', styleEdge, "")
	c.set(0, 2, 'x', styleEdge, "")
	for _, cl := range c.cells {
		if cl.r != ' ' {
			t.Fatalf("unexpected write %+v", cl)
		}
	}
}

func TestCanvasLineEndpoints(t *testing.T) {
	c := newCanvas(10, 10)
	pts := c.line(1, 1, 6, 3, '─')
	if pts[0] != [2]int{1, 1} || pts[len(pts)-1] != [2]int{6, 3} {
		t.Errorf("unexpected endpoints %v", pts)
	}
	if len(pts) != 6 {
		t.Errorf("expected one point per column, got %d", len(pts))
	}
}

func TestOffscreen(t *testing.T) {
	if !offscreen(-5, 2, -1, 8, 10, 10) {
		t.Error("segment left of canvas should be offscreen")
	}
	if offscreen(-5, 2, 5, 2, 10, 10) {
		t.Error("segment crossing the canvas should be drawn")
	}
}

func sceneGraph() knowledgegraph.Graph {
	return knowledgegraph.Graph{
		Config: mastery.DefaultConfig(),
		Nodes: []knowledgegraph.TopicNode{
			{ID: 1, Label: "A", Active: true, Position: knowledgegraph.Point{X: 0, Y: 0}},
			{ID: 2, Label: "B", Active: true, Position: knowledgegraph.Point{X: 400, Y: 200}},
			{ID: 1, Label: "dup", Active: true, Position: knowledgegraph.Point{X: 800, Y: 0}},
		},
		Edges: []knowledgegraph.Edge{{ID: "1->2", Source: 1, Target: 2}},
	}
}

func TestLayoutSceneFollowsViewport(t *testing.T) {
	g := sceneGraph()

	sc := layoutScene(g, viewport.Initial())
	if len(sc.Boxes) != 2 {
		t.Fatalf("expected duplicate id skipped, got %d boxes", len(sc.Boxes))
	}
	b, _ := sc.box(2)
	if b.X != 42 || b.Y != 11 || b.W != 20 {
		t.Errorf("unexpected box %+v", b)
	}

	vs := viewport.Zoom(viewport.Initial(), 2)
	vs = viewport.Pan(vs, -100, 0)
	b, _ = layoutScene(g, vs).box(2)
	if b.X != 74 || b.Y != 22 || b.W != 40 {
		t.Errorf("unexpected zoomed box %+v", b)
	}
}

func TestLayoutSceneMinimumWidth(t *testing.T) {
	vs := viewport.Zoom(viewport.Initial(), 0.5)
	b, _ := layoutScene(sceneGraph(), vs).box(1)
	if b.W != minBoxCols {
		t.Errorf("expected width %d, got %d", minBoxCols, b.W)
	}
}

func TestSceneHit(t *testing.T) {
	sc := layoutScene(sceneGraph(), viewport.Initial())
	n, ok := sc.hit(3, 1)
	if !ok || n.ID != 1 {
		t.Errorf("expected node 1, got %+v ok=%v", n, ok)
	}
	if _, ok := sc.hit(0, 0); ok {
		t.Error("expected miss in padding")
	}
}

func TestClipSegmentKeepsInsideEndpoints(t *testing.T) {
	x0, y0, x1, y1, ok := clipSegment(2, 3, 40, 9, 80, 20)
	if !ok || x0 != 2 || y0 != 3 || x1 != 40 || y1 != 9 {
		t.Errorf("inside segment changed: %d,%d -> %d,%d ok=%v", x0, y0, x1, y1, ok)
	}
}

func TestClipSegmentTrimsToMargin(t *testing.T) {
	x0, y0, x1, y1, ok := clipSegment(5, 5, 8_000_000, 5, 80, 20)
	if !ok {
		t.Fatal("expected a visible part")
	}
	if x0 != 5 || y0 != 5 || x1 != 80 || y1 != 5 {
		t.Errorf("unexpected clip %d,%d -> %d,%d", x0, y0, x1, y1)
	}

	if _, _, _, _, ok := clipSegment(-50, -10, 200, -5, 80, 20); ok {
		t.Error("segment above the canvas should be rejected")
	}
}

func TestDrawFarNodeIsBounded(t *testing.T) {
	g := knowledgegraph.Graph{
		Config: mastery.DefaultConfig(),
		Nodes: []knowledgegraph.TopicNode{
			{ID: 1, Label: "Near", Active: true, Position: knowledgegraph.Point{X: 0, Y: 0}},
			{ID: 2, Label: "Far", Active: true, Position: knowledgegraph.Point{X: 8e9, Y: 0}},
			{ID: 3, Label: "Huge", Active: true, Position: knowledgegraph.Point{X: 1e300, Y: 0}},
		},
		Edges: []knowledgegraph.Edge{
			{ID: "1->2", Source: 1, Target: 2},
			{ID: "1->3", Source: 1, Target: 3},
		},
	}
	sc := layoutScene(g, viewport.Initial())

	done := make(chan string, 1)
	go func() { done <- sc.draw(g, 80, 20, 0, false) }()
	select {
	case out := <-done:
		if !strings.Contains(out, "Near") {
			t.Error("expected the near node to be drawn")
		}
		if !strings.Contains(out, "─") {
			t.Error("expected the clipped edge to be drawn")
		}
		if strings.Contains(out, "→") {
			t.Error("no arrowhead when the target is off the canvas")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("drawing an edge to a far node took too long")
	}
}

func TestClampCell(t *testing.T) {
	if got := clampCell(math.Inf(1)); got != maxCell {
		t.Errorf("expected %d, got %d", maxCell, got)
	}
	if got := clampCell(-1e300); got != -maxCell {
		t.Errorf("expected %d, got %d", -maxCell, got)
	}
	if got := clampCell(math.NaN()); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := clampCell(-0.5); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}
