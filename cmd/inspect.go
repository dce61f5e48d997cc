package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/checkpoint"
	"github.com/agentic-research/ranger/internal/tree"
)

var (
	selectExpr   string
	listFiles    string
	listFolders  string
	completePath string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Query a surveyed directory through its checkpoint",
	Long: `path is a surveyed directory or a checkpoint file. Without a query flag
the whole tree is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ckpt := args[0]
		if fi, err := os.Stat(ckpt); err == nil && fi.IsDir() {
			ckpt = filepath.Join(ckpt, c.CheckpointName)
		}
		_, root, err := checkpoint.Load(ckpt)
		if err != nil {
			return err
		}

		var out any
		switch {
		case selectExpr != "":
			out, err = root.Select(selectExpr)
		case cmd.Flags().Changed("files"):
			out, err = root.ListFiles(listFiles)
		case cmd.Flags().Changed("folders"):
			out, err = root.ListFolders(listFolders)
		case cmd.Flags().Changed("complete"):
			out = tree.Complete(root.PathIndex(), completePath)
		default:
			out = root.ToMap()
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&selectExpr, "select", "", "JSONPath over the tree, e.g. $.contents.A.metadata")
	inspectCmd.Flags().StringVar(&listFiles, "files", "", "List files in a folder (relative path, \"\" for the root)")
	inspectCmd.Flags().StringVar(&listFolders, "folders", "", "List folders in a folder with their sizes")
	inspectCmd.Flags().StringVar(&completePath, "complete", "", "Complete a relative path prefix")
	inspectCmd.MarkFlagsMutuallyExclusive("select", "files", "folders", "complete")
	rootCmd.AddCommand(inspectCmd)
}
