// Package home is the start screen where a class is chosen.
package home

import (
	"strings"
	"unicode"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/kgraph/internal/router"
	"github.com/abhisek/kgraph/internal/screen"
	"github.com/abhisek/kgraph/internal/ui/components"
	"github.com/abhisek/kgraph/internal/ui/layout"
	"github.com/abhisek/kgraph/internal/ui/theme"
)

const maxClassIDLen = 64

// Options configures the home screen.
type Options struct {
	// Recent lists class ids with a cached graph.
	Recent []string
	// Open builds the graph screen for a class.
	Open func(classID string) screen.Screen
}

// HomeScreen asks for a class id, or offers recently viewed classes.
type HomeScreen struct {
	input  components.TextInput
	recent components.Menu
	open   func(classID string) screen.Screen
}

var _ screen.Screen = (*HomeScreen)(nil)
var _ screen.KeyHintProvider = (*HomeScreen)(nil)

// New creates a HomeScreen.
func New(opts Options) *HomeScreen {
	h := &HomeScreen{open: opts.Open}

	h.input = components.NewTextInput("class id, e.g. 42", maxClassIDLen)
	h.input.Reject = unicode.IsSpace

	items := make([]components.MenuItem, 0, len(opts.Recent))
	for _, id := range opts.Recent {
		items = append(items, components.MenuItem{
			Label:  "Class " + id,
			Hint:   "cached",
			Action: func() tea.Cmd { return h.openClass(id) },
		})
	}
	h.recent = components.NewMenu(items)
	h.recent.Focused = false
	return h
}

func (h *HomeScreen) Init() tea.Cmd {
	return h.input.Init()
}

func (h *HomeScreen) Title() string {
	return "Choose a class"
}

// KeyHints returns the key binding hints for the footer.
func (h *HomeScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{{Key: "Enter", Description: "Open"}}
	if len(h.recent.Items) > 0 {
		hints = append(hints, layout.KeyHint{Key: "↑↓", Description: "Recent"})
	}
	return append(hints, layout.KeyHint{Key: "Ctrl+C", Description: "Quit"})
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		var cmd tea.Cmd
		h.input, cmd = h.input.Update(msg)
		return h, cmd
	}

	switch kmsg.String() {
	case "enter":
		if id := h.input.Value(); id != "" {
			return h, h.openClass(id)
		}
		if h.recent.Focused {
			var cmd tea.Cmd
			h.recent, cmd = h.recent.Update(msg)
			return h, cmd
		}
		h.input.SetError("enter a class id")
		return h, nil
	case "up", "down":
		if len(h.recent.Items) == 0 {
			return h, nil
		}
		if !h.recent.Focused {
			h.recent.Focused = true
			return h, nil
		}
		var cmd tea.Cmd
		h.recent, cmd = h.recent.Update(msg)
		return h, cmd
	}

	// Typing returns focus to the input.
	h.recent.Focused = false
	var cmd tea.Cmd
	h.input, cmd = h.input.Update(msg)
	return h, cmd
}

func (h *HomeScreen) openClass(id string) tea.Cmd {
	if h.open == nil {
		return nil
	}
	next := h.open(id)
	return func() tea.Msg {
		return router.PushScreenMsg{Screen: next}
	}
}

func (h *HomeScreen) View(width, height int) string {
	cw := min(width-4, 56)

	var b strings.Builder
	b.WriteString(theme.Title.Width(cw).Render("Knowledge Graph"))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Width(cw).Render("Track topic mastery for a class"))
	b.WriteString("\n\n")
	b.WriteString(theme.Body.Render("Class"))
	b.WriteString("\n")
	b.WriteString(h.input.View())

	if len(h.recent.Items) > 0 {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render("Recent classes"))
		b.WriteString("\n")
		b.WriteString(h.recent.View())
	}

	card := theme.Card.Width(cw).Render(b.String())
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(card)
}
