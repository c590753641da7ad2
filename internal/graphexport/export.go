// Package graphexport renders a normalized knowledge graph to a static SVG
// or PNG image.
package graphexport

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/progress"
)

// Options configures Export.
type Options struct {
	Path string
	// Format is "svg" or "png". Empty infers it from Path.
	Format string
	Title  string
}

const (
	margin     = 32.0
	headerH    = 72.0
	barH       = 8.0
	barInset   = 10.0
	arrowLen   = 9.0
	labelChars = 24
)

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorNodeBG   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorInactive = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge     = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorTrack    = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
)

// Export writes g to opts.Path.
func Export(g knowledgegraph.Graph, opts Options) error {
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path += ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	if format == "png" {
		w, h := extent(g)
		if !(w <= MaxPNGSide && h <= MaxPNGSide) {
			return fmt.Errorf("graph too large for PNG (%.0fx%.0f px, limit %d per side); export as SVG instead", w, h, MaxPNGSide)
		}
		return renderPNG(opts.Path, buildLayout(g, opts.Title))
	}

	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	if err := RenderSVG(f, g, opts.Title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderSVG writes g as an SVG document.
func RenderSVG(w io.Writer, g knowledgegraph.Graph, title string) error {
	return renderSVG(w, buildLayout(g, title))
}

// --- layout -----------------------------------------------------------------

type layoutNode struct {
	X, Y   float64
	Label  string
	State  string
	Detail progress.Detail
	Active bool
}

type layoutEdge struct {
	X1, Y1, X2, Y2 float64
	Angle          float64
}

type layout struct {
	Width, Height int
	Title         string
	SummaryLine   string
	Nodes         []layoutNode
	Edges         []layoutEdge
	Size          knowledgegraph.Size
}

// buildLayout shifts graph coordinates so the bounding box starts below
// the header and trims every edge to the target box border.
func buildLayout(g knowledgegraph.Graph, title string) layout {
	size := knowledgegraph.DefaultNodeSize
	minP, _ := g.Bounds(size)
	dx := margin - minP.X
	dy := margin + headerH - minP.Y

	w, h := extent(g)
	l := layout{
		Width:  pixels(w),
		Height: pixels(h),
		Title:  title,
		Size:   size,
	}
	if l.Title == "" {
		l.Title = "Knowledge graph"
	}

	s := g.Summarize()
	l.SummaryLine = fmt.Sprintf("%d topics  %d mastered  %d learning  %d locked  %d inactive  mean accuracy %d%%",
		s.Total, s.Mastered, s.Learning, s.Locked, s.Inactive, int(math.Round(s.MeanAccuracy*100)))

	for _, n := range g.Nodes {
		l.Nodes = append(l.Nodes, layoutNode{
			X:      n.Position.X + dx,
			Y:      n.Position.Y + dy,
			Label:  truncate(n.Label, labelChars),
			State:  n.State().Label(),
			Detail: progress.Present(n, g.Config),
			Active: n.Active,
		})
	}

	for _, seg := range g.Segments(size) {
		if seg.Length == 0 {
			continue
		}
		// Stop the line at the target's border so the arrowhead stays visible.
		cut := boxExit(seg.Length, seg.Angle, size)
		l.Edges = append(l.Edges, layoutEdge{
			X1:    seg.From.X + dx,
			Y1:    seg.From.Y + dy,
			X2:    seg.To.X + dx - math.Cos(seg.Angle)*cut,
			Y2:    seg.To.Y + dy - math.Sin(seg.Angle)*cut,
			Angle: seg.Angle,
		})
	}
	return l
}

// MaxPNGSide bounds each side of a rendered PNG.
const MaxPNGSide = 16384

// extent returns the image size in pixels needed to draw g.
func extent(g knowledgegraph.Graph) (float64, float64) {
	size := knowledgegraph.DefaultNodeSize
	if g.Empty() {
		return 2*margin + size.Width, 2*margin + headerH
	}
	minP, maxP := g.Bounds(size)
	return math.Ceil(maxP.X-minP.X+2*margin) + 1, math.Ceil(maxP.Y-minP.Y+2*margin+headerH) + 1
}

func pixels(v float64) int {
	if !(v < math.MaxInt32) {
		return math.MaxInt32
	}
	return int(v)
}

// boxExit returns the distance from a box center to its border along angle,
// capped at length.
func boxExit(length, angle float64, size knowledgegraph.Size) float64 {
	cos, sin := math.Abs(math.Cos(angle)), math.Abs(math.Sin(angle))
	d := math.Inf(1)
	if cos > 1e-9 {
		d = size.Width / 2 / cos
	}
	if sin > 1e-9 {
		d = math.Min(d, size.Height/2/sin)
	}
	return math.Min(d, length)
}

func arrowHead(x, y, angle float64) (xs, ys [3]float64) {
	const spread = math.Pi / 7
	xs = [3]float64{x, x - arrowLen*math.Cos(angle-spread), x - arrowLen*math.Cos(angle+spread)}
	ys = [3]float64{y, y - arrowLen*math.Sin(angle-spread), y - arrowLen*math.Sin(angle+spread)}
	return xs, ys
}

// --- PNG --------------------------------------------------------------------

func renderPNG(path string, l layout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(l.Width)-32, headerH-8, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, 28, 36, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(l.SummaryLine, 28, 58, 0, 0.5)

	dc.SetLineWidth(2)
	for _, e := range l.Edges {
		dc.SetColor(colorEdge)
		dc.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		dc.Stroke()
		xs, ys := arrowHead(e.X2, e.Y2, e.Angle)
		dc.MoveTo(xs[0], ys[0])
		dc.LineTo(xs[1], ys[1])
		dc.LineTo(xs[2], ys[2])
		dc.ClosePath()
		dc.Fill()
	}

	for _, n := range l.Nodes {
		drawNodePNG(dc, n, l.Size)
	}
	return dc.SavePNG(path)
}

func drawNodePNG(dc *gg.Context, n layoutNode, size knowledgegraph.Size) {
	bg := colorNodeBG
	if !n.Active {
		bg = colorInactive
	}
	dc.SetColor(bg)
	dc.DrawRoundedRectangle(n.X, n.Y, size.Width, size.Height, 8)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(n.X, n.Y, size.Width, size.Height, 8)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(n.Label, n.X+barInset, n.Y+14, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("%s %d%%", n.State, n.Detail.Percent), n.X+barInset, n.Y+28, 0, 0.5)

	trackW := size.Width - 2*barInset
	barY := n.Y + size.Height - barH - 6
	dc.SetColor(colorTrack)
	dc.DrawRoundedRectangle(n.X+barInset, barY, trackW, barH, 3)
	dc.Fill()
	if n.Detail.Fraction > 0 {
		dc.SetColor(hexColor(n.Detail.Color))
		dc.DrawRoundedRectangle(n.X+barInset, barY, trackW*n.Detail.Fraction, barH, 3)
		dc.Fill()
	}
}

// --- SVG --------------------------------------------------------------------

func renderSVG(w io.Writer, l layout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, l.Width-32, int(headerH-8), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(28, 40, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-weight:bold;font-family:sans-serif", css(colorText)))
	canvas.Text(28, 62, l.SummaryLine, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	edgeStyle := fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge))
	for _, e := range l.Edges {
		canvas.Line(int(e.X1), int(e.Y1), int(e.X2), int(e.Y2), edgeStyle)
		xs, ys := arrowHead(e.X2, e.Y2, e.Angle)
		canvas.Polygon(
			[]int{int(xs[0]), int(xs[1]), int(xs[2])},
			[]int{int(ys[0]), int(ys[1]), int(ys[2])},
			fmt.Sprintf("fill:%s", css(colorEdge)),
		)
	}

	for _, n := range l.Nodes {
		drawNodeSVG(canvas, n, l.Size)
	}
	canvas.End()
	return nil
}

func drawNodeSVG(canvas *svg.SVG, n layoutNode, size knowledgegraph.Size) {
	x, y := int(n.X), int(n.Y)
	w, h := int(size.Width), int(size.Height)
	bg := colorNodeBG
	if !n.Active {
		bg = colorInactive
	}
	canvas.Roundrect(x, y, w, h, 8, 8, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(bg), css(colorStroke)))
	canvas.Text(x+int(barInset), y+17, n.Label, fmt.Sprintf("fill:%s;font-size:13px;font-family:sans-serif", css(colorText)))
	canvas.Text(x+int(barInset), y+31, fmt.Sprintf("%s %d%%", n.State, n.Detail.Percent),
		fmt.Sprintf("fill:%s;font-size:10px;font-family:monospace", css(colorSubtle)))

	trackW := int(size.Width - 2*barInset)
	barY := y + h - int(barH) - 6
	canvas.Roundrect(x+int(barInset), barY, trackW, int(barH), 3, 3, fmt.Sprintf("fill:%s", css(colorTrack)))
	if fill := int(float64(trackW) * n.Detail.Fraction); fill > 0 {
		canvas.Roundrect(x+int(barInset), barY, fill, int(barH), 3, 3, fmt.Sprintf("fill:%s", n.Detail.Color))
	}
}

// --- helpers ----------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// hexColor parses "#RRGGBB". Anything else is opaque black.
func hexColor(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
