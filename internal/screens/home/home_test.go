package home

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/kgraph/internal/router"
	"github.com/abhisek/kgraph/internal/screen"
)

type stubScreen struct{ class string }

func (s *stubScreen) Init() tea.Cmd                          { return nil }
func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *stubScreen) View(int, int) string                   { return s.class }
func (s *stubScreen) Title() string                          { return s.class }

func newTestHome(recent ...string) (*HomeScreen, *[]string) {
	var opened []string
	h := New(Options{
		Recent: recent,
		Open: func(id string) screen.Screen {
			opened = append(opened, id)
			return &stubScreen{class: id}
		},
	})
	return h, &opened
}

func typeText(h *HomeScreen, s string) {
	for _, r := range s {
		h.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

func pushedClass(t *testing.T, cmd tea.Cmd) string {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	push, ok := cmd().(router.PushScreenMsg)
	if !ok {
		t.Fatalf("expected PushScreenMsg, got %T", cmd())
	}
	return push.Screen.Title()
}

func TestEnterOpensTypedClass(t *testing.T) {
	h, opened := newTestHome()
	typeText(h, "42")

	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if got := pushedClass(t, cmd); got != "42" {
		t.Errorf("expected class 42, got %q", got)
	}
	if len(*opened) != 1 {
		t.Errorf("expected one graph screen, got %d", len(*opened))
	}
}

func TestSpacesRejected(t *testing.T) {
	h, _ := newTestHome()
	typeText(h, "4 2")
	if got := h.input.Value(); got != "42" {
		t.Errorf("expected spaces dropped, got %q", got)
	}
}

func TestEnterWithoutClassShowsError(t *testing.T) {
	h, opened := newTestHome()
	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no command")
	}
	if len(*opened) != 0 {
		t.Error("nothing should open")
	}
	if !strings.Contains(h.View(80, 20), "enter a class id") {
		t.Error("expected validation message")
	}
}

func TestRecentClassSelection(t *testing.T) {
	h, _ := newTestHome("3", "7")

	h.Update(tea.KeyPressMsg{Code: tea.KeyDown}) // focus the list
	h.Update(tea.KeyPressMsg{Code: tea.KeyDown}) // move to "7"
	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})

	if got := pushedClass(t, cmd); got != "7" {
		t.Errorf("expected class 7, got %q", got)
	}
}

func TestTypingReturnsFocusToInput(t *testing.T) {
	h, _ := newTestHome("3")
	h.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	typeText(h, "9")

	_, cmd := h.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if got := pushedClass(t, cmd); got != "9" {
		t.Errorf("expected typed class to win, got %q", got)
	}
}

func TestViewListsRecentClasses(t *testing.T) {
	h, _ := newTestHome("3")
	view := h.View(80, 24)
	if !strings.Contains(view, "Recent classes") || !strings.Contains(view, "Class 3") {
		t.Errorf("expected recent classes in view:\n%s", view)
	}
}
