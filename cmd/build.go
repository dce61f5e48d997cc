package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/config"
	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	"github.com/agentic-research/ranger/internal/store"
	"github.com/agentic-research/ranger/internal/survey"
)

var buildCmd = &cobra.Command{
	Use:   "build [path] [graph.db]",
	Short: "Survey a directory and store its property graph in SQLite",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			c.StorePath = args[1]
		}
		logger, closer, err := newLogger(c, dir)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// 1. Setup Writer
		writer, err := store.NewWriter(c.StorePath)
		if err != nil {
			return err
		}
		writer.Logger = logger
		defer func() { _ = writer.Close() }()

		// 2. Survey, build, store
		start := time.Now()
		fmt.Printf("Building %s from %s...\n", c.StorePath, dir)
		st, err := buildInto(ctx, c, logger, writer, dir, survey.SurveyOptions{Refresh: refresh, Incremental: incremental})
		if err != nil {
			return err
		}
		fmt.Printf("Stored %d nodes and %d edges (%d skipped) in %v.\n",
			st.Nodes, st.Edges, st.SkippedNodes+st.SkippedEdges, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// buildInto surveys dir, builds its graph and classes, and writes both.
func buildInto(ctx context.Context, c *config.Config, logger *slog.Logger, w *store.Writer, dir string, opts survey.SurveyOptions) (store.Stats, error) {
	s, root, err := surveyDir(ctx, c, logger, dir, opts)
	if err != nil {
		return store.Stats{}, err
	}
	b := graph.NewBuilder(c.FolderMetadataExtensions)
	b.Logger = logger
	g := b.Build(s.Base(), root)
	return w.Write(ctx, g, schema.Synthesize(g))
}

func init() {
	buildCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the checkpoint and scan from scratch")
	buildCmd.Flags().BoolVar(&incremental, "incremental", false, "Rescan, reusing unchanged subtrees from the checkpoint")
	rootCmd.AddCommand(buildCmd)
}
