package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/ruby/setup-msys2-gcc/internal/publish"
	"github.com/ruby/setup-msys2-gcc/internal/release"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [package...]",
	Short: "Show the release assets and notes line of packages",
	Long: `Inspect each package's slot on the release without changing anything: the
live asset, any temporary assets left by an interrupted run, and the package's
line in the release notes. Exits non-zero when a temporary asset is present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		pkgs, err := s.packages(args)
		if err != nil {
			return err
		}

		publisher := s.publisher()
		out := cmd.OutOrStdout()
		stale := 0
		for _, pkg := range pkgs {
			inspection, err := publisher.Inspect(cmd.Context(), pkg)
			if err != nil {
				return err
			}
			printInspection(out, inspection)
			if !inspection.Plan.Consistent() {
				stale++
			}
		}
		if stale > 0 {
			return fmt.Errorf("%d of %d packages have temporary assets on release %s", stale, len(pkgs), s.cfg.Tag)
		}
		return nil
	},
}

func printInspection(w io.Writer, inspection *publish.Inspection) {
	plan := inspection.Plan
	fmt.Fprintf(w, "%s\n", plan.Names.Canonical)
	if plan.HasCanonical() {
		fmt.Fprintf(w, "  live:  %s\n", describeAsset(*plan.Canonical))
	} else {
		fmt.Fprintf(w, "  live:  none\n")
	}
	for _, a := range plan.StaleOld {
		fmt.Fprintf(w, "  stale: %s (%s)\n", a.Name, describeAsset(a))
	}
	for _, a := range plan.StaleNew {
		fmt.Fprintf(w, "  stale: %s (%s)\n", a.Name, describeAsset(a))
	}
	if line, err := inspection.NotesLine(); err == nil {
		fmt.Fprintf(w, "  notes: %s\n", line)
	} else {
		fmt.Fprintf(w, "  notes: %v\n", err)
	}
}

func describeAsset(a release.Asset) string {
	desc := fmt.Sprintf("id %d, %d bytes, uploaded %s", a.ID, a.Size, a.UploadedAt.UTC().Format(time.RFC3339))
	if a.Digest != "" {
		desc += ", " + a.Digest
	}
	if !a.Complete() {
		desc += ", upload incomplete"
	}
	return desc
}
