package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruby/setup-msys2-gcc/internal/branding"
	"github.com/ruby/setup-msys2-gcc/internal/build"
	"github.com/ruby/setup-msys2-gcc/internal/github"
	"github.com/ruby/setup-msys2-gcc/internal/manifest"
	"github.com/ruby/setup-msys2-gcc/internal/publish"
	"github.com/ruby/setup-msys2-gcc/internal/ui"
	"github.com/spf13/cobra"
)

var publishSkipBuild bool

func init() {
	publishCmd.Flags().BoolVar(&publishSkipBuild, "skip-build", false, "Publish the existing package files without running the build commands")
	publishCmd.Flags().Bool("force", false, "Publish even when the live asset already has the same content")
	publishCmd.Flags().Bool("skip-verify", false, "Skip the public download check after publishing")
	publishCmd.Flags().Duration("settle", 0, "Pause between upload and renames (default 5s)")
	rootCmd.AddCommand(publishCmd)
}

var publishCmd = &cobra.Command{
	Use:   "publish [package...]",
	Short: "Build and publish packages to the release",
	Long: `Build each package, then replace its asset on the release with the new file
and update the package's line in the release notes. With no arguments, every
package in the manifest is published, one after another.

A package whose release still holds a temporary _old or _new asset from an
interrupted run is refused until that asset is removed or renamed by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.cfg.RequireToken(); err != nil {
			return err
		}
		if err := s.cfg.RequireBuildNumber(); err != nil {
			return err
		}
		pkgs, err := s.packages(args)
		if err != nil {
			return err
		}

		publisher := s.publisher()
		runner := &build.Runner{
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
			Logger: s.logger,
			Force:  s.cfg.Force,
		}

		// Packages share the release notes, so they are published one at
		// a time.
		failed := 0
		for _, pkg := range pkgs {
			if !publishPackage(cmd.Context(), s, publisher, runner, pkg) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d packages failed to publish", failed, len(pkgs))
		}
		return nil
	},
}

// publishPackage builds and publishes one package and reports whether the
// pipeline should count it as a success.
func publishPackage(ctx context.Context, s *session, publisher *publish.Publisher, runner *build.Runner, pkg manifest.Package) bool {
	s.printer.Group("%s", pkg.FileName())
	defer s.printer.EndGroup()

	if !publishSkipBuild && pkg.Build != nil {
		outcome, err := runner.Run(ctx, pkg.Name, build.Command{
			Args:             pkg.Build.Command,
			Dir:              pkg.Build.Dir,
			NoChangeExitCode: pkg.Build.NoChangeExitCode,
		})
		if err != nil {
			s.printer.Fail("Building "+pkg.Name, err)
			s.metrics.ObserveRun(pkg.Name, publish.Aborted.String())
			return false
		}
		if outcome == build.Unchanged {
			s.printer.OK("%s: no update needed", pkg.Name)
			s.metrics.ObserveRun(pkg.Name, publish.NoChange.String())
			return true
		}
	}

	result := publisher.Run(ctx, pkg, s.cfg.WorkDir)
	if !result.OK() {
		reportFailure(s.printer, result)
		return false
	}
	return true
}

// reportFailure prints which step failed and, for a host error, the raw
// status and body.
func reportFailure(printer *ui.Printer, result publish.Result) {
	cause := result.Err
	var stepErr *publish.StepError
	if errors.As(result.Err, &stepErr) {
		cause = stepErr.Err
	}
	printer.Fail(fmt.Sprintf("%s failed at %s (%s)", result.Package, result.Step, result.Outcome), cause)

	var remote *github.RemoteError
	if errors.As(cause, &remote) {
		printer.Info("HTTP %d from %s %s", remote.StatusCode, remote.Method, remote.URL)
		if remote.Body != "" {
			printer.Info("%s", remote.Body)
		}
	}
	if result.Outcome == publish.PartialFailure {
		printer.Info("the release may hold temporary assets for %s; check with '%s status %s'", result.Package, branding.CLIName(), result.Package)
	}
}
