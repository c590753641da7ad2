package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/kgraph/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect recorded knowledge graph fetches",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent fetch events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		class, _ := cmd.Flags().GetString("class")

		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		events, err := d.store.Events().Recent(cmd.Context(), store.QueryOpts{Limit: limit, ClassID: class})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No fetch events found.")
			return nil
		}

		fmt.Fprintf(out, "%-6s  %-19s  %-12s  %-6s  %-6s  %-6s  %-7s  %s\n",
			"Seq", "Timestamp", "Class", "Status", "Nodes", "Edges", "Ms", "OK")
		fmt.Fprintln(out, strings.Repeat("─", 80))

		for _, e := range events {
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			status := "-"
			if e.StatusCode != 0 {
				status = fmt.Sprintf("%d", e.StatusCode)
			}
			fmt.Fprintf(out, "%-6d  %-19s  %-12s  %-6s  %-6d  %-6d  %-7d  %s\n",
				e.Sequence,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncateCell(e.ClassID, 12),
				status,
				e.NodeCount,
				e.EdgeCount,
				e.Latency.Milliseconds(),
				ok,
			)
			if e.ErrorMessage != "" {
				fmt.Fprintf(out, "        %s\n", truncateCell(e.ErrorMessage, 72))
			}
		}
		return nil
	},
}

var eventsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fetch success rate and latency per class",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		events, err := d.store.Events().Recent(cmd.Context(), store.QueryOpts{})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		out := cmd.OutOrStdout()
		stats := summarizeEvents(events)
		if len(stats) == 0 {
			fmt.Fprintln(out, "No fetches recorded yet.")
			return nil
		}

		fmt.Fprintln(out, "Fetches by Class")
		fmt.Fprintln(out, strings.Repeat("─", 72))
		fmt.Fprintf(out, "%-12s  %6s  %6s  %6s  %8s  %s\n",
			"Class", "Calls", "OK", "Failed", "Avg Ms", "Last Fetch")
		fmt.Fprintln(out, strings.Repeat("─", 72))

		var calls, okCount int
		for _, st := range stats {
			fmt.Fprintf(out, "%-12s  %6d  %6d  %6d  %8d  %s\n",
				truncateCell(st.ClassID, 12), st.Calls, st.OK, st.Calls-st.OK,
				st.AvgLatency.Milliseconds(), st.Last.Local().Format("2006-01-02 15:04:05"))
			calls += st.Calls
			okCount += st.OK
		}

		fmt.Fprintln(out, strings.Repeat("─", 72))
		fmt.Fprintf(out, "%-12s  %6d  %6d  %6d\n", "TOTAL", calls, okCount, calls-okCount)
		return nil
	},
}

type classStats struct {
	ClassID    string
	Calls      int
	OK         int
	AvgLatency time.Duration
	Last       time.Time
}

// summarizeEvents groups events by class, sorted by class id.
func summarizeEvents(events []store.FetchEvent) []classStats {
	byClass := make(map[string]*classStats)
	totals := make(map[string]time.Duration)
	for _, e := range events {
		st, ok := byClass[e.ClassID]
		if !ok {
			st = &classStats{ClassID: e.ClassID}
			byClass[e.ClassID] = st
		}
		st.Calls++
		if e.Success {
			st.OK++
		}
		totals[e.ClassID] += e.Latency
		if e.Timestamp.After(st.Last) {
			st.Last = e.Timestamp
		}
	}

	out := make([]classStats, 0, len(byClass))
	for id, st := range byClass {
		st.AvgLatency = totals[id] / time.Duration(st.Calls)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	eventsListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsListCmd.Flags().String("class", "", "Only show events for this class")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsStatsCmd)
}
