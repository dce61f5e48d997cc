package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/ranger/internal/graph"
	"github.com/agentic-research/ranger/internal/schema"
	"github.com/agentic-research/ranger/internal/store"
	"github.com/agentic-research/ranger/internal/survey"
)

var forestCmd = &cobra.Command{
	Use:   "forest [path] [graph.db]",
	Short: "Build every top-level directory of path into one graph database, in parallel",
	Long: `Each top-level directory is surveyed on its own, with its own checkpoint,
and written into the same database. A directory that fails is reported and
the others continue. Finally a Folder node for path is linked to the root
of every stored tree.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

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

		// 1. Trees
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("%s: %w", dir, survey.ErrBaseNotFound)
		}
		var trees []string
		for _, e := range entries {
			if e.IsDir() && !slices.Contains(c.SkipNames, e.Name()) {
				trees = append(trees, filepath.Join(dir, e.Name()))
			}
		}

		// 2. Setup Writer
		writer, err := store.NewWriter(c.StorePath)
		if err != nil {
			return err
		}
		writer.Logger = logger
		defer func() { _ = writer.Close() }()

		// 3. Fan out over trees; each survey runs sequentially inside.
		parallel := c.Workers
		c.Workers = 1
		start := time.Now()
		var (
			mu    sync.Mutex
			total  store.Stats
			errs   []error
			stored []string
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for _, t := range trees {
			g.Go(func() error {
				st, err := buildInto(gctx, c, logger.With("tree", t), writer, t, survey.SurveyOptions{Refresh: refresh, Incremental: incremental})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					logger.Error("forest.tree_failed", "tree", t, "err", err)
					errs = append(errs, fmt.Errorf("%s: %w", t, err))
					return nil
				}
				total.Add(st)
				stored = append(stored, t)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// 4. Link the parent folder to every stored tree root.
		if len(stored) > 0 {
			slices.Sort(stored)
			fg := graph.Forest(dir, stored)
			st, err := writer.Write(ctx, fg, schema.Synthesize(fg))
			if err != nil {
				return fmt.Errorf("link forest: %w", err)
			}
			total.Add(st)
		}

		fmt.Printf("Stored %d trees (%d failed): %d nodes, %d edges in %v.\n",
			len(trees)-len(errs), len(errs), total.Nodes, total.Edges, time.Since(start).Round(time.Millisecond))
		return errors.Join(errs...)
	},
}

func init() {
	forestCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore checkpoints and scan from scratch")
	forestCmd.Flags().BoolVar(&incremental, "incremental", false, "Rescan, reusing unchanged subtrees from each checkpoint")
	rootCmd.AddCommand(forestCmd)
}
