package graph

import (
	"math"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/mastery"
	"github.com/abhisek/kgraph/internal/progress"
	"github.com/abhisek/kgraph/internal/ui/components"
	"github.com/abhisek/kgraph/internal/ui/theme"
	"github.com/abhisek/kgraph/internal/viewport"
)

const (
	// Graph units covered by one terminal cell at scale 1.
	cellWidth  = 10.0
	cellHeight = 20.0

	// padding keeps the top-left node off the canvas edge.
	padding    = 20.0
	minBoxCols = 12
	boxRows    = 2
)

type cellStyle int

const (
	styleNone cellStyle = iota
	styleEdge
	styleArrow
	styleLabel
	styleLabelDim
	styleSelected
	styleBarEmpty
	styleBarFill
)

type cell struct {
	r     rune
	style cellStyle
	fill  string
	// cont marks the second column of a wide rune.
	cont bool
}

// canvas is a fixed-size grid of styled terminal cells.
type canvas struct {
	w, h  int
	cells []cell
}

func newCanvas(w, h int) *canvas {
	w, h = max(0, w), max(0, h)
	c := &canvas{w: w, h: h, cells: make([]cell, w*h)}
	for i := range c.cells {
		c.cells[i].r = ' '
	}
	return c
}

func (c *canvas) in(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.w && y < c.h
}

func (c *canvas) set(x, y int, r rune, st cellStyle, fill string) {
	if !c.in(x, y) {
		return
	}
	i := y*c.w + x
	// Overwriting half of a wide rune blanks the other half.
	if c.cells[i].cont && x > 0 {
		c.cells[i-1] = cell{r: ' ', style: c.cells[i-1].style, fill: c.cells[i-1].fill}
	}
	if x+1 < c.w && c.cells[i+1].cont {
		c.cells[i+1] = cell{r: ' ', style: c.cells[i+1].style, fill: c.cells[i+1].fill}
	}
	c.cells[i] = cell{r: r, style: st, fill: fill}
}

// text writes s starting at (x, y), clipped to maxCols columns.
func (c *canvas) text(x, y int, s string, st cellStyle, maxCols int) {
	col := 0
	for _, r := range s {
		w := lipgloss.Width(string(r))
		if w == 0 {
			continue
		}
		if col+w > maxCols {
			return
		}
		c.set(x+col, y, r, st, "")
		if w == 2 {
			if c.in(x+col+1, y) {
				c.cells[y*c.w+x+col+1] = cell{style: st, cont: true}
			} else {
				// A wide rune cut by the right edge becomes a space.
				c.set(x+col, y, ' ', st, "")
			}
		}
		col += w
	}
}

func (c *canvas) fill(x, y, w int, r rune, st cellStyle, fill string) {
	for i := 0; i < w; i++ {
		c.set(x+i, y, r, st, fill)
	}
}

// line draws a straight run of r from (x0, y0) to (x1, y1) and returns the
// visited cells.
func (c *canvas) line(x0, y0, x1, y1 int, r rune) [][2]int {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := sign(x1-x0), sign(y1-y0)
	e := dx + dy

	var pts [][2]int
	for {
		pts = append(pts, [2]int{x0, y0})
		c.set(x0, y0, r, styleEdge, "")
		if x0 == x1 && y0 == y1 {
			return pts
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *canvas) render() string {
	styles := map[cellStyle]lipgloss.Style{
		styleNone:     lipgloss.NewStyle(),
		styleEdge:     lipgloss.NewStyle().Foreground(theme.Edge),
		styleArrow:    lipgloss.NewStyle().Foreground(theme.Edge).Bold(true),
		styleLabel:    lipgloss.NewStyle().Foreground(theme.Text).Background(theme.BgCard),
		styleLabelDim: lipgloss.NewStyle().Foreground(theme.TextDim).Background(theme.BgCard),
		styleSelected: lipgloss.NewStyle().Foreground(theme.Text).Background(theme.Primary).Bold(true),
		styleBarEmpty: theme.ProgressEmpty,
	}
	styleFor := func(cl cell) lipgloss.Style {
		if cl.style == styleBarFill {
			return lipgloss.NewStyle().Background(theme.Band(cl.fill))
		}
		return styles[cl.style]
	}

	var b strings.Builder
	for y := 0; y < c.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		row := c.cells[y*c.w : (y+1)*c.w]
		for x := 0; x < len(row); {
			start := row[x]
			var run strings.Builder
			for x < len(row) && row[x].style == start.style && row[x].fill == start.fill {
				if !row[x].cont {
					run.WriteRune(row[x].r)
				}
				x++
			}
			if start.style == styleNone {
				b.WriteString(run.String())
				continue
			}
			b.WriteString(styleFor(start).Render(run.String()))
		}
	}
	return b.String()
}

// nodeBox is a node's footprint on the canvas, in cells.
type nodeBox struct {
	Node   knowledgegraph.TopicNode
	Detail progress.Detail
	X, Y   int
	W, H   int
}

func (b nodeBox) contains(x, y int) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

func (b nodeBox) center() (int, int) {
	return b.X + b.W/2, b.Y + b.H/2
}

// scene is a graph placed on the canvas through a viewport transform.
type scene struct {
	Boxes []nodeBox
	byID  map[int]int
}

// graphOrigin is the graph-space point drawn at the canvas top-left under
// the initial transform.
func graphOrigin(g knowledgegraph.Graph) knowledgegraph.Point {
	minP, _ := g.Bounds(knowledgegraph.DefaultNodeSize)
	return knowledgegraph.Point{X: minP.X - padding, Y: minP.Y - padding}
}

// toCell maps a graph point to a canvas cell.
func toCell(p, origin knowledgegraph.Point, vs viewport.State) (int, int) {
	sp := vs.GraphToScreen(viewport.Point{X: p.X - origin.X, Y: p.Y - origin.Y})
	return clampCell(sp.X / cellWidth), clampCell(sp.Y / cellHeight)
}

// maxCell keeps far-away positions representable as int and their
// differences free of overflow.
const maxCell = 1 << 30

func clampCell(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > maxCell:
		return maxCell
	case v < -maxCell:
		return -maxCell
	}
	return int(math.Floor(v))
}

func layoutScene(g knowledgegraph.Graph, vs viewport.State) scene {
	origin := graphOrigin(g)
	scale := vs.Scale
	if scale == 0 {
		scale = 1
	}
	w := max(minBoxCols, int(math.Round(knowledgegraph.DefaultNodeSize.Width*scale/cellWidth)))

	sc := scene{Boxes: make([]nodeBox, 0, len(g.Nodes)), byID: make(map[int]int, len(g.Nodes))}
	for _, n := range g.Nodes {
		if _, dup := sc.byID[n.ID]; dup {
			continue
		}
		x, y := toCell(n.Position, origin, vs)
		sc.byID[n.ID] = len(sc.Boxes)
		sc.Boxes = append(sc.Boxes, nodeBox{
			Node:   n,
			Detail: progress.Present(n, g.Config),
			X:      x,
			Y:      y,
			W:      w,
			H:      boxRows,
		})
	}
	return sc
}

func (sc scene) box(id int) (nodeBox, bool) {
	i, ok := sc.byID[id]
	if !ok {
		return nodeBox{}, false
	}
	return sc.Boxes[i], true
}

// hit returns the topmost node under a cell.
func (sc scene) hit(x, y int) (knowledgegraph.TopicNode, bool) {
	for i := len(sc.Boxes) - 1; i >= 0; i-- {
		if sc.Boxes[i].contains(x, y) {
			return sc.Boxes[i].Node, true
		}
	}
	return knowledgegraph.TopicNode{}, false
}

// draw renders the scene's edges and nodes onto a w×h canvas.
func (sc scene) draw(g knowledgegraph.Graph, w, h int, selectedID int, hasSelection bool) string {
	c := newCanvas(w, h)

	for _, e := range g.Edges {
		src, ok := sc.box(e.Source)
		if !ok {
			continue
		}
		dst, ok := sc.box(e.Target)
		if !ok || e.Source == e.Target {
			continue
		}
		x0, y0 := src.center()
		x1, y1 := dst.center()
		if offscreen(x0, y0, x1, y1, w, h) {
			continue
		}
		lineRune, arrowRune := edgeGlyphs(x1-x0, y1-y0)
		cx0, cy0, cx1, cy1, ok := clipSegment(x0, y0, x1, y1, w, h)
		if !ok {
			continue
		}
		pts := c.line(cx0, cy0, cx1, cy1, lineRune)
		if cx1 != x1 || cy1 != y1 {
			// The head lies off the canvas.
			continue
		}
		for i := len(pts) - 1; i >= 0; i-- {
			if !dst.contains(pts[i][0], pts[i][1]) && !src.contains(pts[i][0], pts[i][1]) {
				c.set(pts[i][0], pts[i][1], arrowRune, styleArrow, "")
				break
			}
		}
	}

	for _, b := range sc.Boxes {
		drawBox(c, b, hasSelection && b.Node.ID == selectedID)
	}
	return c.render()
}

func drawBox(c *canvas, b nodeBox, selected bool) {
	st := styleLabel
	switch {
	case selected:
		st = styleSelected
	case b.Node.State() == mastery.StateInactive:
		st = styleLabelDim
	}
	c.fill(b.X, b.Y, b.W, ' ', st, "")
	c.text(b.X+1, b.Y, b.Detail.State.Icon()+" "+b.Node.Label, st, b.W-2)

	filled := components.FilledCells(b.Detail.Fraction, b.W)
	c.fill(b.X, b.Y+1, filled, ' ', styleBarFill, b.Detail.Color)
	c.fill(b.X+filled, b.Y+1, b.W-filled, ' ', styleBarEmpty, "")
}

// edgeGlyphs picks the line and arrowhead runes for a direction in cell
// space. Cells are about twice as tall as wide.
func edgeGlyphs(dx, dy int) (rune, rune) {
	a := math.Atan2(float64(dy)*2, float64(dx))
	octant := int(math.Round(a/(math.Pi/4))+8) % 8
	lines := [8]rune{'─', '╲', '│', '╱', '─', '╲', '│', '╱'}
	arrows := [8]rune{'→', '↘', '↓', '↙', '←', '↖', '↑', '↗'}
	return lines[octant], arrows[octant]
}

// offscreen reports whether a segment lies entirely beyond one side of a
// w×h canvas.
func offscreen(x0, y0, x1, y1, w, h int) bool {
	return (x0 < 0 && x1 < 0) || (y0 < 0 && y1 < 0) || (x0 >= w && x1 >= w) || (y0 >= h && y1 >= h)
}

// clipSegment trims a segment to the canvas plus a one-cell margin
// (Liang-Barsky), so drawing cost is bounded by the canvas size rather
// than the segment length. Endpoints inside the margin are kept exactly.
func clipSegment(x0, y0, x1, y1, w, h int) (int, int, int, int, bool) {
	fx0, fy0 := float64(x0), float64(y0)
	dx, dy := float64(x1-x0), float64(y1-y0)
	minX, minY, maxX, maxY := -1.0, -1.0, float64(w), float64(h)

	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-dx, fx0 - minX},
		{dx, maxX - fx0},
		{-dy, fy0 - minY},
		{dy, maxY - fy0},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			t0 = math.Max(t0, r)
		} else {
			t1 = math.Min(t1, r)
		}
		if t0 > t1 {
			return 0, 0, 0, 0, false
		}
	}

	cx0, cy0, cx1, cy1 := x0, y0, x1, y1
	if t0 > 0 {
		cx0, cy0 = int(math.Round(fx0+t0*dx)), int(math.Round(fy0+t0*dy))
	}
	if t1 < 1 {
		cx1, cy1 = int(math.Round(fx0+t1*dx)), int(math.Round(fy0+t1*dy))
	}
	return cx0, cy0, cx1, cy1, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
