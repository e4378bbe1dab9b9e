package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/ruby/setup-msys2-gcc/internal/config"
	"github.com/ruby/setup-msys2-gcc/internal/manifest"
	"github.com/ruby/setup-msys2-gcc/internal/publish"
	"github.com/ruby/setup-msys2-gcc/internal/release"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, manifest, and release health",
	Long: `Run diagnostic checks before publishing: settings, the package manifest,
whether the release tag resolves, and whether any package has temporary
assets left on the release by an interrupted run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := &doctorReport{w: cmd.OutOrStdout()}

		fmt.Fprintln(d.w, "Configuration:")
		cfg, err := loadConfig(cmd)
		if err != nil {
			d.fail("%v", err)
			return d.result()
		}
		d.ok("repository %s, release tag %s", cfg.Repo, cfg.Tag)
		if err := cfg.RequireToken(); err != nil {
			d.warn("%v; only read-only commands will work", err)
		} else {
			d.ok("API token set")
		}
		if err := cfg.RequireBuildNumber(); err != nil {
			d.warn("%v", err)
		} else {
			d.ok("build number %s", cfg.BuildNumber)
		}

		fmt.Fprintf(d.w, "Manifest: %s\n", cfg.ManifestPath)
		mf := d.checkManifest(cfg.ManifestPath)

		fmt.Fprintln(d.w, "Release:")
		logger, err := config.NewLogger(cfg.Logging)
		if err != nil {
			d.fail("%v", err)
			return d.result()
		}
		client, err := newClient(cfg, logger, nil)
		if err != nil {
			d.fail("%v", err)
			return d.result()
		}
		publisher := publish.New(client, publish.Config{
			Repo:   repoOf(cfg),
			Tag:    cfg.Tag,
			Logger: logger,
		})
		d.checkRelease(cmd.Context(), release.NewReader(client, repoOf(cfg)), publisher, cfg.Tag, mf)

		return d.result()
	},
}

// doctorReport prints check lines and counts failures.
type doctorReport struct {
	w        io.Writer
	failures int
}

func (d *doctorReport) ok(format string, args ...any) {
	fmt.Fprintf(d.w, "  [ OK ] "+format+"\n", args...)
}

func (d *doctorReport) info(format string, args ...any) {
	fmt.Fprintf(d.w, "  [INFO] "+format+"\n", args...)
}

func (d *doctorReport) warn(format string, args ...any) {
	fmt.Fprintf(d.w, "  [WARN] "+format+"\n", args...)
}

func (d *doctorReport) fail(format string, args ...any) {
	d.failures++
	fmt.Fprintf(d.w, "  [FAIL] "+format+"\n", args...)
}

func (d *doctorReport) result() error {
	if d.failures > 0 {
		return fmt.Errorf("doctor found %d problem(s)", d.failures)
	}
	return nil
}

// checkManifest validates the manifest at path. A missing or invalid
// manifest yields an empty one so the release checks still run.
func (d *doctorReport) checkManifest(path string) *manifest.File {
	mf, err := manifest.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.info("no manifest; packages named on the command line use the defaults")
		return &manifest.File{}
	case err != nil:
		d.fail("%v", err)
		return &manifest.File{}
	}
	d.ok("valid, %d package(s)", len(mf.Packages))
	if err := mf.CheckRequires(buildVersion); err != nil {
		d.fail("%v", err)
	}
	return mf
}

func (d *doctorReport) checkRelease(ctx context.Context, reader *release.Reader, publisher *publish.Publisher, tag string, mf *manifest.File) {
	ref, err := reader.Lookup(ctx, tag)
	if err != nil {
		d.fail("%v", err)
		return
	}
	d.ok("release %s resolves (id %d)", tag, ref.ID)

	for _, name := range mf.Names() {
		pkg, _ := mf.Lookup(name)
		inspection, err := publisher.Inspect(ctx, pkg)
		if err != nil {
			d.fail("%s: %v", name, err)
			continue
		}
		plan := inspection.Plan
		if err := plan.Check(name); err != nil {
			d.fail("%v", err)
			continue
		}
		if plan.HasCanonical() {
			d.ok("%s is live (asset %d)", plan.Names.Canonical, plan.Canonical.ID)
		} else {
			d.info("%s is not published yet", plan.Names.Canonical)
		}
		if _, err := inspection.NotesLine(); err != nil {
			d.warn("%v", err)
		}
	}
}
