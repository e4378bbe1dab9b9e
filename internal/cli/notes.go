package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notesWrite bool

func init() {
	notesCmd.Flags().BoolVar(&notesWrite, "write", false, "Write the patched line to the release instead of only showing it")
	rootCmd.AddCommand(notesCmd)
}

var notesCmd = &cobra.Command{
	Use:   "notes <package>",
	Short: "Preview or apply the release notes update for a package",
	Long: `Show how the package's line in the release notes would change if it were
published now with the configured build number. With --write the new line
is saved to the release, which repairs the notes after a run that failed
while updating them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		if notesWrite {
			if err := s.cfg.RequireToken(); err != nil {
				return err
			}
		}
		if err := s.cfg.RequireBuildNumber(); err != nil {
			return err
		}
		pkgs, err := s.packages(args)
		if err != nil {
			return err
		}

		change, err := s.publisher().UpdateNotes(cmd.Context(), pkgs[0].Name, notesWrite)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "- %s\n", change.Before)
		fmt.Fprintf(out, "+ %s\n", change.After)
		if change.Written {
			s.printer.OK("Release notes updated for %s (build %s)", pkgs[0].Name, s.cfg.BuildNumber)
		}
		return nil
	},
}
