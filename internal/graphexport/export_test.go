package graphexport

import (
	"bytes"
	"encoding/xml"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/kgraph/internal/api"
	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/mastery"
	"github.com/abhisek/kgraph/internal/progress"
)

func sampleGraph(t *testing.T) knowledgegraph.Graph {
	t.Helper()
	body := `{"nodes": [
	  {"id": 1, "label": "Fractions & Decimals", "position": {"x": 0, "y": 0}, "occurrences": 10, "correctResponses": 10, "lastReviewed": "2025-03-10T12:00:00Z"},
	  {"id": 2, "label": "Ratios", "position": {"x": 300, "y": 120}, "occurrences": 2, "correctResponses": 1},
	  {"id": 3, "label": "Retired", "position": {"x": 0, "y": 240}, "isActive": false}
	], "edges": [{"source": 1, "target": 2}, {"source": 2, "target": 42}]}`
	p, err := api.DecodePayload([]byte(body))
	require.NoError(t, err)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return knowledgegraph.Normalize(p, mastery.DefaultConfig(), now)
}

func TestRenderSVG_ValidXML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, sampleGraph(t), "Class 7"))

	var doc any
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc), buf.String())

	out := buf.String()
	assert.True(t, strings.Contains(out, "<svg"))
	assert.Contains(t, out, "Class 7")
	assert.Contains(t, out, "Fractions &amp; Decimals")
	assert.Contains(t, out, "Ratios")
	assert.Contains(t, out, "3 topics")
}

func TestRenderSVG_BandColors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, sampleGraph(t), ""))
	out := buf.String()

	// Node 1 is mastered at 100% and node 2 is locked at 20%.
	assert.Contains(t, out, "fill:"+progress.ColorBlue)
	assert.Contains(t, out, "fill:"+progress.ColorRed)
	assert.Contains(t, out, "Knowledge graph")
}

func TestRenderSVG_SkipsDanglingEdges(t *testing.T) {
	l := buildLayout(sampleGraph(t), "")
	assert.Len(t, l.Edges, 1)
}

func TestRenderSVG_EmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSVG(&buf, knowledgegraph.Graph{}, ""))
	assert.Contains(t, buf.String(), "0 topics")
}

func TestExport_PNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "graph.png")
	require.NoError(t, Export(sampleGraph(t), Options{Path: path}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	l := buildLayout(sampleGraph(t), "")
	assert.Equal(t, l.Width, img.Bounds().Dx())
	assert.Equal(t, l.Height, img.Bounds().Dy())
}

func TestExport_InfersSVGExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Export(sampleGraph(t), Options{Path: filepath.Join(dir, "graph")}))
	_, err := os.Stat(filepath.Join(dir, "graph.svg"))
	assert.NoError(t, err)
}

func TestExport_Errors(t *testing.T) {
	g := sampleGraph(t)
	assert.ErrorContains(t, Export(g, Options{Path: filepath.Join(t.TempDir(), "g.gif"), Format: "gif"}), "unsupported format")
	assert.ErrorContains(t, Export(g, Options{Format: "svg"}), "output path is required")
}

func TestLayout_EdgeEndsAtTargetBorder(t *testing.T) {
	l := buildLayout(sampleGraph(t), "")
	require.Len(t, l.Edges, 1)
	e := l.Edges[0]

	// Node 2 is the second node; its box must contain the edge end on its border.
	target := l.Nodes[1]
	size := knowledgegraph.DefaultNodeSize
	onVertical := math.Abs(e.X2-target.X) < 1e-6 || math.Abs(e.X2-(target.X+size.Width)) < 1e-6
	onHorizontal := math.Abs(e.Y2-target.Y) < 1e-6 || math.Abs(e.Y2-(target.Y+size.Height)) < 1e-6
	assert.True(t, onVertical || onHorizontal, "edge end %.2f,%.2f not on box border", e.X2, e.Y2)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "", truncate("abc", 0))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0x86, 0xdc, 0x3d, 0xff}, hexColor(progress.ColorGreen))
	assert.Equal(t, color.RGBA{A: 0xff}, hexColor("green"))
}

func TestExport_PNGRejectsOversizedGraph(t *testing.T) {
	body := `{"nodes": [
	  {"id": 1, "label": "Top", "position": {"x": 0, "y": 0}},
	  {"id": 2, "label": "Far below", "position": {"x": 0, "y": 400000}}
	], "edges": [{"source": 1, "target": 2}]}`
	p, err := api.DecodePayload([]byte(body))
	require.NoError(t, err)
	g := knowledgegraph.Normalize(p, mastery.DefaultConfig(), time.Now())

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.png")
	err = Export(g, Options{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large for PNG")
	assert.NoFileExists(t, path)

	// SVG has no pixel buffer and still renders.
	require.NoError(t, Export(g, Options{Path: filepath.Join(dir, "graph.svg")}))
}

func TestExtentFitsSampleGraph(t *testing.T) {
	w, h := extent(sampleGraph(t))
	assert.LessOrEqual(t, w, float64(MaxPNGSide))
	assert.LessOrEqual(t, h, float64(MaxPNGSide))

	w, h = extent(knowledgegraph.Graph{})
	assert.Equal(t, 2*margin+knowledgegraph.DefaultNodeSize.Width, w)
	assert.Equal(t, 2*margin+headerH, h)
}
