// Package graph is the knowledge-graph screen: a pannable, zoomable canvas
// of topic nodes for one class.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/kgraph/internal/loader"
	"github.com/abhisek/kgraph/internal/router"
	"github.com/abhisek/kgraph/internal/screen"
	"github.com/abhisek/kgraph/internal/screens/topic"
	"github.com/abhisek/kgraph/internal/ui/layout"
	"github.com/abhisek/kgraph/internal/ui/theme"
	"github.com/abhisek/kgraph/internal/viewport"
)

const (
	// panCells is how far one arrow key press moves the view.
	panCells   = 4
	zoomStep   = 1.25
	wheelStep  = 1.1
	statusRows = 2
)

// dragSlopCells is how far the pointer may wander before a press becomes a
// pan instead of a click.
const dragSlopCells = 1

// DefaultFetchTimeout bounds one refresh including retries.
const DefaultFetchTimeout = 2 * time.Minute

type keyMap struct {
	Up, Down, Left, Right key.Binding
	ZoomIn, ZoomOut       key.Binding
	ResetView             key.Binding
	Refresh               key.Binding
	Next, Prev            key.Binding
	Open                  key.Binding
	Back                  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "pan")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "pan")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "pan")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "pan")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:   key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		ResetView: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset view")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Next:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next topic")),
		Prev:      key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous topic")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Back:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "back")),
	}
}

// fetchedMsg carries a finished fetch back to the screen that started it.
type fetchedMsg struct {
	owner *loader.Loader
	res   loader.Result
}

func (fetchedMsg) Background() {}

// Options configures a graph screen.
type Options struct {
	ClassID string
	Loader  *loader.Loader
	// FetchTimeout bounds each refresh. Zero means DefaultFetchTimeout.
	FetchTimeout time.Duration
	// OriginY is the terminal row where the canvas starts, used to map
	// mouse positions.
	OriginY int
}

// GraphScreen shows one class's knowledge graph.
type GraphScreen struct {
	classID string
	loader  *loader.Loader
	timeout time.Duration
	originY int

	vp      *viewport.Controller
	spinner spinner.Model
	keys    keyMap

	selectedID   int
	hasSelection bool

	drag struct {
		active bool
		x, y   int
	}

	// Last rendered canvas, for hit testing and keeping the selection visible.
	width, height int
	scene         scene
}

var _ screen.Screen = (*GraphScreen)(nil)
var _ screen.KeyHintProvider = (*GraphScreen)(nil)
var _ screen.Resumer = (*GraphScreen)(nil)

// New creates a graph screen. The fetch starts on Init.
func New(opts Options) *GraphScreen {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	originY := opts.OriginY
	if originY == 0 {
		originY = layout.HeaderHeight
	}
	return &GraphScreen{
		classID: opts.ClassID,
		loader:  opts.Loader,
		timeout: timeout,
		originY: originY,
		vp:      viewport.NewController(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Accent))),
		keys:    defaultKeyMap(),
	}
}

func (s *GraphScreen) Init() tea.Cmd {
	return s.refresh()
}

// Resume restarts the spinner, whose ticks are dropped while another screen
// is on top.
func (s *GraphScreen) Resume() tea.Cmd {
	if s.loader.Loading() {
		return s.spinner.Tick
	}
	return nil
}

func (s *GraphScreen) Title() string {
	return fmt.Sprintf("Class %s", s.classID)
}

// KeyHints returns the key binding hints for the footer.
func (s *GraphScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{
		{Key: "↑↓←→", Description: "Pan"},
		{Key: "+/-", Description: "Zoom"},
		{Key: "0", Description: "Reset"},
		{Key: "Tab", Description: "Select"},
		{Key: "Enter", Description: "Details"},
		{Key: "r", Description: "Refresh"},
		{Key: "Esc", Description: "Back"},
	}
	if layout.IsCompactWidth(s.width) {
		return append(hints[:2], hints[4:6]...)
	}
	return hints
}

// Viewport returns the current view transform.
func (s *GraphScreen) Viewport() viewport.State {
	return s.vp.State()
}

// Selected returns the selected node id.
func (s *GraphScreen) Selected() (int, bool) {
	return s.selectedID, s.hasSelection
}

func (s *GraphScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchedMsg:
		if msg.owner != s.loader {
			return s, nil
		}
		s.loader.Apply(msg.res)
		if s.hasSelection {
			if _, ok := s.loader.Graph().Node(s.selectedID); !ok {
				s.hasSelection = false
			}
		}
		return s, nil

	case spinner.TickMsg:
		if !s.loader.Loading() {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyPressMsg:
		return s, s.handleKey(msg)

	case tea.MouseClickMsg:
		m := msg.Mouse()
		if m.Button == tea.MouseLeft {
			s.drag.active = true
			s.drag.x, s.drag.y = m.X, m.Y
		}
		return s, nil

	case tea.MouseMotionMsg:
		if !s.drag.active {
			return s, nil
		}
		m := msg.Mouse()
		if s.vp.State().Mode == viewport.Idle &&
			abs(m.X-s.drag.x) <= dragSlopCells && abs(m.Y-s.drag.y) <= dragSlopCells {
			// Pointer jitter during a click.
			return s, nil
		}
		s.vp.Handle(viewport.Move{
			DX: float64(m.X-s.drag.x) * cellWidth,
			DY: float64(m.Y-s.drag.y) * cellHeight,
		})
		return s, nil

	case tea.MouseReleaseMsg:
		if !s.drag.active {
			return s, nil
		}
		s.drag.active = false
		wasGesture := s.vp.State().Mode != viewport.Idle
		s.vp.Handle(viewport.Release{})
		if wasGesture {
			return s, nil
		}
		m := msg.Mouse()
		if n, ok := s.scene.hit(m.X, m.Y-s.originY); ok {
			s.selectedID, s.hasSelection = n.ID, true
			return s, s.openSelected()
		}
		return s, nil

	case tea.MouseWheelMsg:
		switch msg.Mouse().Button {
		case tea.MouseWheelUp:
			s.vp.Zoom(wheelStep)
		case tea.MouseWheelDown:
			s.vp.Zoom(1 / wheelStep)
		}
		return s, nil
	}
	return s, nil
}

func (s *GraphScreen) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	switch {
	case key.Matches(msg, s.keys.Up):
		s.vp.Pan(0, panCells*cellHeight/2)
	case key.Matches(msg, s.keys.Down):
		s.vp.Pan(0, -panCells*cellHeight/2)
	case key.Matches(msg, s.keys.Left):
		s.vp.Pan(panCells*cellWidth, 0)
	case key.Matches(msg, s.keys.Right):
		s.vp.Pan(-panCells*cellWidth, 0)
	case key.Matches(msg, s.keys.ZoomIn):
		s.vp.Zoom(zoomStep)
	case key.Matches(msg, s.keys.ZoomOut):
		s.vp.Zoom(1 / zoomStep)
	case key.Matches(msg, s.keys.ResetView):
		s.vp.ResetView()
	case key.Matches(msg, s.keys.Refresh):
		return s.refresh()
	case key.Matches(msg, s.keys.Next):
		s.cycle(1)
	case key.Matches(msg, s.keys.Prev):
		s.cycle(-1)
	case key.Matches(msg, s.keys.Open):
		return s.openSelected()
	case key.Matches(msg, s.keys.Back):
		return func() tea.Msg { return router.PopScreenMsg{} }
	}
	return nil
}

// refresh starts a fetch. Results of earlier fetches still in flight are
// discarded when they arrive.
func (s *GraphScreen) refresh() tea.Cmd {
	l := s.loader
	t := l.Begin(s.classID)
	timeout := s.timeout
	fetch := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fetchedMsg{owner: l, res: l.Fetch(ctx, t)}
	}
	return tea.Batch(s.spinner.Tick, fetch)
}

// cycle moves the selection through nodes in id order.
func (s *GraphScreen) cycle(delta int) {
	nodes := s.loader.Graph().SortedByID()
	if len(nodes) == 0 {
		return
	}
	i := -1
	if s.hasSelection {
		for j, n := range nodes {
			if n.ID == s.selectedID {
				i = j
				break
			}
		}
	}
	switch {
	case i < 0 && delta > 0:
		i = 0
	case i < 0:
		i = len(nodes) - 1
	default:
		i = (i + delta + len(nodes)) % len(nodes)
	}
	s.selectedID, s.hasSelection = nodes[i].ID, true
	s.ensureVisible()
}

// ensureVisible pans so the selected node is on the last rendered canvas.
func (s *GraphScreen) ensureVisible() {
	if s.width <= 0 || s.height <= 0 {
		return
	}
	b, ok := layoutScene(s.loader.Graph(), s.vp.State()).box(s.selectedID)
	if !ok {
		return
	}
	if b.X >= 0 && b.Y >= 0 && b.X+b.W <= s.width && b.Y+b.H <= s.height {
		return
	}
	cx, cy := b.center()
	s.vp.Pan(float64(s.width/2-cx)*cellWidth, float64(s.height/2-cy)*cellHeight)
}

func (s *GraphScreen) openSelected() tea.Cmd {
	if !s.hasSelection {
		return nil
	}
	n, ok := s.loader.Graph().Node(s.selectedID)
	if !ok {
		return nil
	}
	detail := topic.New(n, s.loader.Config())
	return func() tea.Msg {
		return router.PushScreenMsg{Screen: detail}
	}
}

func (s *GraphScreen) View(width, height int) string {
	canvasH := max(0, height-statusRows)
	s.width, s.height = width, canvasH

	g := s.loader.Graph()
	s.scene = layoutScene(g, s.vp.State())

	var body string
	if g.Empty() {
		body = lipgloss.NewStyle().
			Width(width).
			Height(canvasH).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.TextDim).
			Render(s.emptyMessage())
	} else {
		body = s.scene.draw(g, width, canvasH, s.selectedID, s.hasSelection)
	}
	return body + "\n" + s.statusLine(width) + "\n" + s.errorLine(width)
}

func (s *GraphScreen) emptyMessage() string {
	switch {
	case s.loader.Loading():
		return s.spinner.View() + " Loading knowledge graph…"
	case s.loader.LastError() != nil:
		return "Could not load the knowledge graph.\nPress r to retry."
	default:
		return fmt.Sprintf("Class %s has no topics yet.", s.classID)
	}
}

func (s *GraphScreen) statusLine(width int) string {
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	sum := s.loader.Graph().Summarize()

	left := fmt.Sprintf(" %d topics  %s %d  %s %d  %s %d",
		sum.Total,
		"👑", sum.Mastered,
		"❓", sum.Learning,
		"🔒", sum.Locked,
	)
	if s.loader.Loading() {
		left = " " + s.spinner.View() + " refreshing" + left
	}

	right := fmt.Sprintf("zoom %d%% ", int(s.vp.State().Scale*100+0.5))
	switch s.loader.Source() {
	case loader.SourceCache:
		right = "cached " + s.loader.FetchedAt().Local().Format("Jan 2 15:04") + "  " + right
	case loader.SourceNetwork:
		right = "updated " + s.loader.FetchedAt().Local().Format("15:04:05") + "  " + right
	}

	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return dim.Render(left + strings.Repeat(" ", gap) + right)
}

func (s *GraphScreen) errorLine(width int) string {
	err := s.loader.LastError()
	if err == nil {
		return ""
	}
	msg := " ⚠ Last refresh failed: " + err.Error()
	if lipgloss.Width(msg) > width && width > 1 {
		runes := []rune(msg)
		msg = string(runes[:min(len(runes), width-1)]) + "…"
	}
	return theme.Warning.Render(msg)
}
