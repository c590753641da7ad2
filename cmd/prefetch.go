package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/kgraph/internal/loader"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <class>...",
	Short: "Fetch and cache knowledge graphs for offline use",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parallel, _ := cmd.Flags().GetInt("parallel")

		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		results := make([]loader.Result, len(args))
		var mu sync.Mutex
		out := cmd.OutOrStdout()

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, parallel))
		for i, class := range args {
			g.Go(func() error {
				// One loader per class: a loader only keeps its latest ticket.
				res := d.newLoader().Refresh(ctx, class)
				results[i] = res

				mu.Lock()
				defer mu.Unlock()
				if res.Err != nil {
					fmt.Fprintf(out, "✗ %-12s %v\n", class, res.Err)
					return nil
				}
				s := res.Graph.Summarize()
				fmt.Fprintf(out, "✓ %-12s %d topics, %d mastered\n", class, s.Total, s.Mastered)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var failed int
		for i, res := range results {
			if res.Err != nil {
				failed++
				d.logger.Warn("prefetch failed", zap.String("class_id", args[i]), zap.Error(res.Err))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d classes failed to fetch", failed, len(args))
		}
		return nil
	},
}

func init() {
	prefetchCmd.Flags().IntP("parallel", "p", 4, "Maximum concurrent fetches")
}
