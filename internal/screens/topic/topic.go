// Package topic is the topic detail screen.
package topic

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/mastery"
	"github.com/abhisek/kgraph/internal/progress"
	"github.com/abhisek/kgraph/internal/router"
	"github.com/abhisek/kgraph/internal/screen"
	"github.com/abhisek/kgraph/internal/ui/components"
	"github.com/abhisek/kgraph/internal/ui/layout"
	"github.com/abhisek/kgraph/internal/ui/theme"
)

// TopicScreen shows the progress detail for a single topic.
type TopicScreen struct {
	node   knowledgegraph.TopicNode
	detail progress.Detail
}

var _ screen.Screen = (*TopicScreen)(nil)
var _ screen.KeyHintProvider = (*TopicScreen)(nil)

// New creates a topic screen scored with cfg.
func New(n knowledgegraph.TopicNode, cfg mastery.Config) *TopicScreen {
	return &TopicScreen{node: n, detail: progress.Present(n, cfg)}
}

// Detail returns the presentation the screen renders.
func (t *TopicScreen) Detail() progress.Detail { return t.detail }

func (t *TopicScreen) Init() tea.Cmd { return nil }
func (t *TopicScreen) Title() string { return t.detail.Title }

func (t *TopicScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyPressMsg); ok {
		switch kmsg.String() {
		case "q", "enter":
			return t, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return t, nil
}

func (t *TopicScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (t *TopicScreen) View(width, height int) string {
	d := t.detail
	contentWidth := min(width-8, 70)

	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		Render(fmt.Sprintf("  %s  %s", d.State.Icon(), d.Title)))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Render("  " + d.State.Label()))
	b.WriteString("\n\n")

	b.WriteString("  " + components.NewProgressBar("", d, true, contentWidth).View())
	b.WriteString("\n\n")

	if d.History != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Render("  " + d.History))
		b.WriteString("\n")
	}

	msgStyle := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)
	if d.State == mastery.StateMastered {
		msgStyle = msgStyle.Foreground(theme.Success)
	}
	b.WriteString(msgStyle.Width(contentWidth).PaddingLeft(2).Render(d.Message))
	b.WriteString("\n\n")

	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	val := lipgloss.NewStyle().Foreground(theme.Text)
	n := t.node

	b.WriteString(dim.Render("  Attempts:       ") + val.Render(fmt.Sprintf("%d (%d correct)", n.RawOccurrences, n.RawCorrect)) + "\n")
	if n.LastQuizAttempts > 0 {
		b.WriteString(dim.Render("  Last quiz:      ") + val.Render(fmt.Sprintf("%d / %d", n.LastQuizCorrect, n.LastQuizAttempts)) + "\n")
	}
	reviewed := "never"
	if n.LastReviewedAt != nil {
		reviewed = n.LastReviewedAt.Local().Format("Jan 2, 2006 15:04")
	}
	b.WriteString(dim.Render("  Last reviewed:  ") + val.Render(reviewed) + "\n")
	if !n.Active {
		b.WriteString("\n" + theme.Warning.Render("  This topic is not active in the class.") + "\n")
	}

	return b.String()
}
