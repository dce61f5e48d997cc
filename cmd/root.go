package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/config"
	"github.com/agentic-research/ranger/internal/logging"
	"github.com/agentic-research/ranger/internal/survey"
	"github.com/agentic-research/ranger/internal/tree"
)

// Version is stamped at build time.
var Version = "dev"

var (
	configPath string
	envFile    string
	logLevel   string
	logJSON    bool
	workers    int
	skipNames  []string
)

var rootCmd = &cobra.Command{
	Use:           "ranger",
	Short:         "Ranger: imaging metadata survey and property graph builder",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to ranger.hcl (default ./ranger.hcl if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a dotenv file (default ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Parallel workers (overrides config)")
	rootCmd.PersistentFlags().StringSliceVar(&skipNames, "skip", nil, "Directory names to skip (overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("workers") {
		c.Workers = workers
	}
	if cmd.Flags().Changed("skip") {
		c.SkipNames = skipNames
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// newLogger builds the logger for a run over dir. Records are also
// appended to the log file inside dir; if that cannot be opened the run
// continues with stderr only.
func newLogger(c *config.Config, dir string) (*slog.Logger, io.Closer, error) {
	opts := logging.Options{Level: c.LogLevel, JSON: logJSON}
	if dir != "" && c.LogName != "" {
		opts.File = filepath.Join(dir, c.LogName)
	}
	logger, closer, err := logging.New(opts)
	if err != nil && opts.File != "" {
		file := opts.File
		opts.File = ""
		logger, closer, err = logging.New(opts)
		if err == nil {
			logger.Warn("log.file_unavailable", "path", file)
		}
	}
	return logger, closer, err
}

// surveyDir surveys dir with the resolved configuration, resuming from its
// checkpoint unless refresh is set.
func surveyDir(ctx context.Context, c *config.Config, logger *slog.Logger, dir string, opts survey.SurveyOptions) (*survey.Surveyor, *tree.Node, error) {
	s, err := survey.New(dir, c.Registry(), c.SurveyOptions())
	if err != nil {
		return nil, nil, err
	}
	s.Logger = logger
	if opts.CheckpointName == "" {
		opts.CheckpointName = c.CheckpointName
	}
	root, err := s.Survey(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return s, root, nil
}
