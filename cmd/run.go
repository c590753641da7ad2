package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/kgraph/internal/app"
	"github.com/abhisek/kgraph/internal/screen"
	"github.com/abhisek/kgraph/internal/screens/graph"
)

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	d, err := setup(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	class, _ := cmd.Flags().GetString("class")
	if class == "" {
		class = d.cfg.ClassID
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	recent, err := d.store.Snapshots().Classes(ctx)
	if err != nil {
		d.logger.Warn("list cached classes", zap.Error(err))
	}

	return app.Run(app.Options{
		InitialClass:  class,
		RecentClasses: recent,
		Version:       currentVersion(),
		OpenGraph: func(classID string) screen.Screen {
			return graph.New(graph.Options{
				ClassID: classID,
				Loader:  d.newLoader(),
			})
		},
	})
}
