package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "kgraph",
	Short:        "Knowledge graph mastery viewer",
	Long:         "kgraph shows a class's knowledge graph with per-topic mastery derived from answer history.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

// Execute runs the root command; an interrupt cancels in-flight fetches.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/kgraph/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides KGRAPH_DB env var)")
	rootCmd.PersistentFlags().String("api", "", "Backend base URL (overrides KGRAPH_API_URL env var)")
	rootCmd.Flags().String("class", "", "Open this class on start")

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(prefetchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}
