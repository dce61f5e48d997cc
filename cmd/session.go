package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ranger/internal/session"
)

var (
	sessionFilenames  bool
	sessionAttribute  string
	sessionAttributes bool
	sessionSummarize  bool
	sessionCounts     bool
)

var sessionCmd = &cobra.Command{
	Use:   "session [path] [output.yaml]",
	Short: "Extract the metadata of one imaging file or session directory",
	Long: `path is an imaging file, a directory of imaging files, or a YAML file
saved by a previous run. With output.yaml the metadata is saved there;
otherwise it is printed, or queried with one of the flags.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, closer, err := newLogger(c, "")
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		s, err := session.Open(cmd.Context(), c.Registry(), args[0], logger)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(args) == 2 {
			if err := s.Save(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(w, "Saved metadata of %d files to %s.\n", len(s.Files), args[1])
			return nil
		}

		var out any
		switch {
		case sessionFilenames:
			for _, name := range s.Filenames() {
				fmt.Fprintln(w, name)
			}
			return nil
		case sessionAttribute != "":
			values := s.Attribute(sessionAttribute)
			for _, name := range s.Filenames() {
				v, ok := values[name]
				if !ok {
					v = "attribute not found"
				}
				fmt.Fprintf(w, "%s: %v\n", name, v)
			}
			return nil
		case sessionAttributes:
			for _, attr := range s.Attributes() {
				fmt.Fprintln(w, attr)
			}
			return nil
		case sessionSummarize, sessionCounts:
			out = s.Summarize(sessionCounts)
		default:
			out = s.Files
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	sessionCmd.Flags().BoolVar(&sessionFilenames, "list-filenames", false, "Print the file names")
	sessionCmd.Flags().StringVar(&sessionAttribute, "attribute", "", "Print one attribute per file, as Section.attribute")
	sessionCmd.Flags().BoolVar(&sessionAttributes, "list-attributes", false, "Print every attribute seen in any file")
	sessionCmd.Flags().BoolVar(&sessionSummarize, "summarize", false, "Print the distinct values of each attribute")
	sessionCmd.Flags().BoolVar(&sessionCounts, "summarize-with-counts", false, "Print the distinct values of each attribute with counts")
	sessionCmd.MarkFlagsMutuallyExclusive("list-filenames", "attribute", "list-attributes", "summarize", "summarize-with-counts")
	rootCmd.AddCommand(sessionCmd)
}
