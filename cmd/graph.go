package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/abhisek/kgraph/internal/graphexport"
	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/loader"
	"github.com/abhisek/kgraph/internal/progress"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect a class's knowledge graph",
}

var graphShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every topic with its mastery state",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		class, err := classFlag(cmd, d.cfg)
		if err != nil {
			return err
		}
		l, err := fetchGraph(cmd, d.newLoader(), class)
		if err != nil {
			return err
		}

		if asJSON {
			return writeGraphJSON(cmd.OutOrStdout(), class, l)
		}
		writeGraphTable(cmd.OutOrStdout(), l.Graph())
		return nil
	},
}

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the knowledge graph to an SVG or PNG file",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if out == "" {
			return fmt.Errorf("--out is required")
		}

		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		class, err := classFlag(cmd, d.cfg)
		if err != nil {
			return err
		}
		l, err := fetchGraph(cmd, d.newLoader(), class)
		if err != nil {
			return err
		}

		if err := graphexport.Export(l.Graph(), graphexport.Options{
			Path:   out,
			Format: format,
			Title:  fmt.Sprintf("Class %s", class),
		}); err != nil {
			return fmt.Errorf("export graph: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d topics)\n", out, len(l.Graph().Nodes))
		return nil
	},
}

// fetchGraph refreshes class and reports how the graph was obtained on
// stderr. It fails only when no graph could be loaded at all.
func fetchGraph(cmd *cobra.Command, l *loader.Loader, class string) (*loader.Loader, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res := l.Refresh(ctx, class)

	stderr := cmd.ErrOrStderr()
	for _, w := range res.Warnings {
		fmt.Fprintln(stderr, "warning:", w)
	}
	if res.Err != nil {
		if l.Source() != loader.SourceCache {
			return nil, fmt.Errorf("fetch class %s: %w", class, res.Err)
		}
		fmt.Fprintf(stderr, "Backend unavailable (%v); showing cached graph from %s\n",
			res.Err, l.FetchedAt().Local().Format(time.DateTime))
		for _, w := range res.Fallback.Warnings {
			fmt.Fprintln(stderr, "warning:", w)
		}
	}
	return l, nil
}

func writeGraphTable(w io.Writer, g knowledgegraph.Graph) {
	fmt.Fprintf(w, "%-6s  %-32s  %-9s  %6s  %8s  %9s  %s\n",
		"ID", "Label", "State", "Acc", "Progress", "History", "Attempts")
	fmt.Fprintln(w, strings.Repeat("─", 92))

	for _, n := range g.SortedByID() {
		d := progress.Present(n, g.Config)
		label := n.Label
		if len([]rune(label)) > 32 {
			label = string([]rune(label)[:29]) + "..."
		}
		history := "-"
		if !d.Locked {
			history = fmt.Sprintf("%d/%d", n.DisplayCorrect, n.DisplayOccurrences)
		}
		fmt.Fprintf(w, "%-6d  %-32s  %-9s  %5.0f%%  %7d%%  %9s  %d\n",
			n.ID, label, d.State.Label(), n.Accuracy*100, d.Percent, history, n.RawOccurrences)
	}

	s := g.Summarize()
	fmt.Fprintf(w, "\n%d topics: %d mastered, %d learning, %d locked, %d inactive\n",
		s.Total, s.Mastered, s.Learning, s.Locked, s.Inactive)
}

type graphJSON struct {
	ClassID   string      `json:"classId"`
	Source    string      `json:"source"`
	FetchedAt time.Time   `json:"fetchedAt"`
	Config    configJSON  `json:"config"`
	Summary   summaryJSON `json:"summary"`
	Nodes     []nodeJSON  `json:"nodes"`
	Edges     []edgeJSON  `json:"edges"`
}

type configJSON struct {
	TrackingThreshold int     `json:"trackingThreshold"`
	HalfLifeDays      float64 `json:"halfLifeDays"`
	MasteryLimit      float64 `json:"masteryLimit"`
}

type summaryJSON struct {
	Total    int `json:"total"`
	Mastered int `json:"mastered"`
	Learning int `json:"learning"`
	Locked   int `json:"locked"`
	Inactive int `json:"inactive"`
}

type nodeJSON struct {
	ID                 int        `json:"id"`
	Label              string     `json:"label"`
	State              string     `json:"state"`
	Active             bool       `json:"active"`
	X                  float64    `json:"x"`
	Y                  float64    `json:"y"`
	Accuracy           float64    `json:"accuracy"`
	Masterable         bool       `json:"masterable"`
	Mastered           bool       `json:"mastered"`
	Percent            int        `json:"percent"`
	Color              string     `json:"color"`
	Message            string     `json:"message"`
	Occurrences        int        `json:"occurrences"`
	Correct            int        `json:"correct"`
	DisplayCorrect     int        `json:"displayCorrect"`
	DisplayOccurrences int        `json:"displayOccurrences"`
	LastReviewed       *time.Time `json:"lastReviewed,omitempty"`
}

type edgeJSON struct {
	ID     string `json:"id"`
	Source int    `json:"source"`
	Target int    `json:"target"`
}

func writeGraphJSON(w io.Writer, class string, l *loader.Loader) error {
	g := l.Graph()
	s := g.Summarize()
	out := graphJSON{
		ClassID:   class,
		Source:    l.Source().String(),
		FetchedAt: l.FetchedAt(),
		Config: configJSON{
			TrackingThreshold: g.Config.TrackingThreshold,
			HalfLifeDays:      g.Config.EffectiveHalfLife(),
			MasteryLimit:      g.Config.MasteryLimit,
		},
		Summary: summaryJSON{Total: s.Total, Mastered: s.Mastered, Learning: s.Learning, Locked: s.Locked, Inactive: s.Inactive},
		Nodes:   make([]nodeJSON, 0, len(g.Nodes)),
		Edges:   make([]edgeJSON, 0, len(g.Edges)),
	}
	for _, n := range g.SortedByID() {
		d := progress.Present(n, g.Config)
		out.Nodes = append(out.Nodes, nodeJSON{
			ID:                 n.ID,
			Label:              n.Label,
			State:              strings.ToLower(d.State.Label()),
			Active:             n.Active,
			X:                  n.Position.X,
			Y:                  n.Position.Y,
			Accuracy:           n.Accuracy,
			Masterable:         n.Masterable,
			Mastered:           n.Mastered,
			Percent:            d.Percent,
			Color:              d.Color,
			Message:            d.Message,
			Occurrences:        n.RawOccurrences,
			Correct:            n.RawCorrect,
			DisplayCorrect:     n.DisplayCorrect,
			DisplayOccurrences: n.DisplayOccurrences,
			LastReviewed:       n.LastReviewedAt,
		})
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, edgeJSON{ID: e.ID, Source: e.Source, Target: e.Target})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func init() {
	for _, c := range []*cobra.Command{graphShowCmd, graphExportCmd} {
		c.Flags().String("class", "", "Class id (default from config)")
	}
	graphShowCmd.Flags().Bool("json", false, "Print JSON instead of a table")
	graphExportCmd.Flags().StringP("out", "o", "", "Output file (.svg or .png)")
	graphExportCmd.Flags().String("format", "", "svg or png (default from the file extension)")

	graphCmd.AddCommand(graphShowCmd)
	graphCmd.AddCommand(graphExportCmd)
}
