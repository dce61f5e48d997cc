package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/export"
	"github.com/agentic-research/ranger/internal/survey"
)

var (
	refresh     bool
	incremental bool
	toS3        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path] [output_dir]",
	Short: "Survey a directory and write file_metadata.json and directory_structure.json",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, output := args[0], args[1]

		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, closer, err := newLogger(c, dir)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// 1. Survey (or resume from checkpoint)
		start := time.Now()
		s, root, err := surveyDir(ctx, c, logger, dir, survey.SurveyOptions{
			Refresh:     refresh,
			Incremental: incremental,
		})
		if err != nil {
			return err
		}

		// 2. Sinks
		var sink export.Sink = export.DirSink{Dir: output}
		if toS3 {
			s3, err := export.NewS3Sink(c.Artifacts)
			if err != nil {
				return err
			}
			sink = export.Tee(sink, s3)
		}

		// 3. Write results
		if err := export.WriteResults(ctx, sink, s.Base(), root); err != nil {
			return err
		}
		fmt.Printf("Surveyed %s (%d bytes) into %s in %v.\n", s.Base(), root.Size, output, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	scanCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the checkpoint and scan from scratch")
	scanCmd.Flags().BoolVar(&incremental, "incremental", false, "Rescan, reusing unchanged subtrees from the checkpoint")
	scanCmd.Flags().BoolVar(&toS3, "s3", false, "Also upload the results to the configured artifact bucket")
	rootCmd.AddCommand(scanCmd)
}
