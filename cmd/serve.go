package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/browse"
	"github.com/agentic-research/ranger/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve [graph.db]",
	Short: "Serve a stored graph as MCP tools on stdio",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			c.StorePath = args[0]
		}
		r, err := store.OpenReader(c.StorePath, c.StoreCacheSize)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		return server.ServeStdio(browse.NewServer(r, Version))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
