package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/stack"
)

var (
	stackExt     string
	stackPattern string
)

var stacksCmd = &cobra.Command{
	Use:   "stacks [dir]",
	Short: "List numbered file stacks in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		stacks, err := stack.Detect(osfs.New(abs), "", stackExt, stackPattern)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, s := range stacks {
			first, last := s.Paths[0], s.Paths[len(s.Paths)-1]
			fmt.Fprintf(w, "%s\t%d\t%s .. %s\n", s.Key(), len(s.Paths), first, last)
		}
		if len(stacks) == 0 {
			fmt.Fprintln(w, "No stacks found.")
		}
		return nil
	},
}

func init() {
	stacksCmd.Flags().StringVar(&stackExt, "ext", "tif", "File extension of the slices")
	stacksCmd.Flags().StringVar(&stackPattern, "pattern", "", "Regexp with (?P<stem>) and (?P<number>) groups")
	rootCmd.AddCommand(stacksCmd)
}
