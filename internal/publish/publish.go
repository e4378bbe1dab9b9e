// Package publish replaces a package's release asset with a freshly built
// artifact.
//
// The release API has no replace or transaction primitive, so the swap is
// a fixed sequence of single-asset calls driven by a naming convention:
//
//	INSPECT      read the asset list; refuse if <pkg>_old or <pkg>_new exists
//	UPLOAD       upload the artifact as <pkg>_new.<ext>
//	SETTLE       wait a fixed interval for the upload to propagate
//	RENAME-OLD   <pkg>.<ext> -> <pkg>_old.<ext>      (only if it exists)
//	RENAME-NEW   <pkg>_new.<ext> -> <pkg>.<ext>      (new artifact is live)
//	DELETE-OLD   delete <pkg>_old.<ext>              (only if renamed)
//	UPDATE-NOTES rewrite the package's line in the release notes
//	VERIFY       anonymous HEAD on the public download URL, report only
//
// A run interrupted anywhere leaves a temporary name on the release, which
// the next run's INSPECT detects and refuses to touch. Runs are never
// retried as a whole; only individual HTTP calls are retried, by the
// transport.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ruby/setup-msys2-gcc/internal/github"
	"github.com/ruby/setup-msys2-gcc/internal/manifest"
	"github.com/ruby/setup-msys2-gcc/internal/metrics"
	"github.com/ruby/setup-msys2-gcc/internal/notes"
	"github.com/ruby/setup-msys2-gcc/internal/release"
	"go.uber.org/zap"
)

// API is the part of the transport a run uses. *github.Client implements it.
type API interface {
	release.API
	UploadReleaseAsset(ctx context.Context, repo github.Repo, releaseID int64, upload github.Upload) (*github.Asset, error)
	RenameReleaseAsset(ctx context.Context, repo github.Repo, assetID int64, name string) (*github.Asset, error)
	DeleteReleaseAsset(ctx context.Context, repo github.Repo, assetID int64) error
	UpdateReleaseBody(ctx context.Context, repo github.Repo, releaseID int64, body string) (*github.Release, error)
	ProbeDownload(ctx context.Context, repo github.Repo, tag, name string) (int, error)
}

// Reporter receives the one-line status messages of a run. *ui.Printer
// implements it.
type Reporter interface {
	Step(format string, args ...any)
	OK(format string, args ...any)
	Warn(format string, args ...any)
	Info(format string, args ...any)
	Timing(label string, elapsed time.Duration)
}

// Config holds what a Publisher needs for every run.
type Config struct {
	Repo        github.Repo
	Tag         string
	BuildNumber string

	// Settle is the pause between UPLOAD and the renames.
	Settle time.Duration

	// Force publishes even when the live asset has the same content.
	Force bool

	// SkipVerify turns off the download probe for every package.
	SkipVerify bool

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Reporter defaults to discarding status lines.
	Reporter Reporter
}

// Publisher runs the replacement sequence against one release.
type Publisher struct {
	api    API
	reader *release.Reader
	config Config

	logger   *zap.Logger
	metrics  *metrics.Metrics
	reporter Reporter

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a Publisher that talks to the release through api.
func New(api API, config Config) *Publisher {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := config.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Publisher{
		api:      api,
		reader:   release.NewReader(api, config.Repo),
		config:   config,
		logger:   logger,
		metrics:  config.Metrics,
		reporter: reporter,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Result is the outcome of one run.
type Result struct {
	Package string
	RunID   string
	Outcome Outcome

	// Step is the last step reached; for failures, the step that failed.
	Step Step

	// Err is a *StepError when the run failed.
	Err error

	// Plan is what INSPECT found. Zero if INSPECT did not complete.
	Plan Plan

	// AssetID is the id of the newly published asset.
	AssetID int64

	// VerifyStatus is the HTTP status of the download probe, zero if the
	// probe did not run or failed at the network level.
	VerifyStatus int

	// Reason explains a NoChange outcome.
	Reason string
}

// OK reports whether the run ended in a state the pipeline should treat
// as success.
func (r Result) OK() bool {
	return r.Outcome == Success || r.Outcome == NoChange
}

// run carries the state of one execution of the sequence.
type run struct {
	p      *Publisher
	pkg    manifest.Package
	names  release.Names
	logger *zap.Logger
	result Result

	// mutated is set once the first mutating call has been issued.
	mutated bool
}

// Run publishes the artifact <pkg>.<ext> found in dir.
func (p *Publisher) Run(ctx context.Context, pkg manifest.Package, dir string) Result {
	runID := uuid.NewString()
	r := &run{
		p:      p,
		pkg:    pkg,
		names:  release.NamesFor(pkg.Name, pkg.Extension()),
		logger: p.logger.With(zap.String("run_id", runID), zap.String("package", pkg.Name)),
		result: Result{Package: pkg.Name, RunID: runID},
	}

	result := r.execute(ctx, filepath.Join(dir, pkg.FileName()))
	p.metrics.ObserveRun(pkg.Name, result.Outcome.String())
	if result.Err != nil {
		r.logger.Error("run failed",
			zap.Stringer("outcome", result.Outcome),
			zap.Stringer("step", result.Step),
			zap.Error(result.Err),
		)
	} else {
		r.logger.Info("run finished", zap.Stringer("outcome", result.Outcome))
	}
	return result
}

func (r *run) execute(ctx context.Context, path string) Result {
	p := r.p

	artifact, err := openArtifact(path)
	if err != nil {
		return r.fail(StepInspect, err)
	}

	// INSPECT
	r.result.Step = StepInspect
	p.reporter.Step("Inspecting %s on release %s", r.names.Canonical, p.config.Tag)
	var ref release.Ref
	err = r.timed(StepInspect, func() error {
		var err error
		ref, err = p.reader.Lookup(ctx, p.config.Tag)
		if err != nil {
			return err
		}
		assets, err := p.reader.Assets(ctx, ref)
		if err != nil {
			return err
		}
		r.result.Plan = NewPlan(r.names, assets)
		return r.result.Plan.Check(r.pkg.Name)
	})
	if err != nil {
		return r.fail(StepInspect, err)
	}
	plan := r.result.Plan
	if plan.HasCanonical() {
		p.reporter.Info("live asset %s id %d, uploaded %s", r.names.Canonical, plan.Canonical.ID, plan.Canonical.UploadedAt.UTC().Format(time.RFC3339))
		r.logger.Info("live asset found",
			zap.Int64("asset_id", plan.Canonical.ID),
			zap.Time("uploaded_at", plan.Canonical.UploadedAt),
			zap.String("digest", plan.Canonical.Digest),
		)
		if !p.config.Force && plan.Canonical.Digest != "" && plan.Canonical.Digest == artifact.digest {
			r.result.Outcome = NoChange
			r.result.Reason = "live asset already has this content"
			p.reporter.OK("%s is up to date (%s)", r.names.Canonical, artifact.digest)
			return r.result
		}
	} else {
		r.logger.Info("no live asset, first publish")
	}

	// UPLOAD
	r.result.Step = StepUpload
	p.reporter.Step("Uploading %s as %s (%d bytes)", filepath.Base(path), r.names.New, artifact.size)
	r.mutated = true
	start := time.Now()
	var uploaded *github.Asset
	err = r.timed(StepUpload, func() error {
		var err error
		uploaded, err = p.api.UploadReleaseAsset(ctx, p.config.Repo, ref.ID, github.Upload{
			Name:        r.names.New,
			ContentType: r.pkg.MediaType(),
			Size:        artifact.size,
			Open:        func() (io.ReadCloser, error) { return os.Open(path) },
		})
		return err
	})
	if err != nil {
		return r.fail(StepUpload, err)
	}
	p.reporter.Timing("Upload", time.Since(start))
	r.logger.Info("uploaded", zap.Int64("asset_id", uploaded.ID), zap.String("name", uploaded.Name))

	// SETTLE
	r.result.Step = StepSettle
	_ = r.timed(StepSettle, func() error {
		p.sleep(p.config.Settle)
		return nil
	})

	// RENAME-OLD
	start = time.Now()
	if plan.HasCanonical() {
		r.result.Step = StepRenameOld
		err = r.timed(StepRenameOld, func() error {
			_, err := p.api.RenameReleaseAsset(ctx, p.config.Repo, plan.Canonical.ID, r.names.Old)
			return err
		})
		if err != nil {
			return r.fail(StepRenameOld, err)
		}
	}

	// RENAME-NEW
	r.result.Step = StepRenameNew
	err = r.timed(StepRenameNew, func() error {
		_, err := p.api.RenameReleaseAsset(ctx, p.config.Repo, uploaded.ID, r.names.Canonical)
		return err
	})
	if err != nil {
		return r.fail(StepRenameNew, err)
	}
	r.result.AssetID = uploaded.ID
	p.reporter.Timing("Rename", time.Since(start))
	p.reporter.OK("%s is live (asset %d)", r.names.Canonical, uploaded.ID)

	// DELETE-OLD
	if plan.HasCanonical() {
		r.result.Step = StepDeleteOld
		err = r.timed(StepDeleteOld, func() error {
			return p.api.DeleteReleaseAsset(ctx, p.config.Repo, plan.Canonical.ID)
		})
		if err != nil {
			return r.fail(StepDeleteOld, err)
		}
	}

	// UPDATE-NOTES
	r.result.Step = StepUpdateNotes
	err = r.timed(StepUpdateNotes, func() error {
		_, err := p.updateNotes(ctx, ref, r.pkg.Name, true)
		return err
	})
	if err != nil {
		return r.fail(StepUpdateNotes, err)
	}
	p.reporter.OK("Release notes updated for %s (build %s)", r.pkg.Name, p.config.BuildNumber)
	r.result.Outcome = Success

	// VERIFY
	if !p.config.SkipVerify && r.pkg.VerifyEnabled() {
		r.result.Step = StepVerify
		_ = r.timed(StepVerify, func() error {
			status, err := p.probe(ctx, r.names.Canonical)
			r.result.VerifyStatus = status
			return err
		})
	}
	return r.result
}

// fail records err as the failure of step and picks the outcome from
// whether anything was mutated yet.
func (r *run) fail(step Step, err error) Result {
	r.result.Step = step
	r.result.Err = &StepError{Step: step, Err: err}
	if r.mutated {
		r.result.Outcome = PartialFailure
	} else {
		r.result.Outcome = Aborted
	}
	return r.result
}

// timed runs fn as step, logging and recording its duration.
func (r *run) timed(step Step, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.p.metrics.ObserveStep(step.String(), err == nil, elapsed)
	if err != nil {
		r.logger.Warn("step failed", zap.Stringer("step", step), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		r.logger.Info("step done", zap.Stringer("step", step), zap.Duration("elapsed", elapsed))
	}
	return err
}

// NotesChange is the effect of patching one package's notes line.
type NotesChange struct {
	Before string
	After  string
	// Written is set when the patched notes were sent to the host.
	Written bool
}

// UpdateNotes patches the notes line for pkg with the current time and the
// configured build number, and writes it back when write is true.
func (p *Publisher) UpdateNotes(ctx context.Context, pkg string, write bool) (NotesChange, error) {
	ref, err := p.reader.Lookup(ctx, p.config.Tag)
	if err != nil {
		return NotesChange{}, err
	}
	return p.updateNotes(ctx, ref, pkg, write)
}

func (p *Publisher) updateNotes(ctx context.Context, ref release.Ref, pkg string, write bool) (NotesChange, error) {
	body, err := p.reader.Notes(ctx, ref)
	if err != nil {
		return NotesChange{}, err
	}
	patched, err := notes.Patch(body, pkg, notes.FormatTimestamp(p.now()), p.config.BuildNumber)
	if err != nil {
		return NotesChange{}, err
	}
	change := NotesChange{}
	change.Before, _ = notes.Line(body, pkg)
	change.After, _ = notes.Line(patched, pkg)
	if !write {
		return change, nil
	}
	if _, err := p.api.UpdateReleaseBody(ctx, p.config.Repo, ref.ID, patched); err != nil {
		return change, fmt.Errorf("writing release notes: %w", err)
	}
	change.Written = true
	return change, nil
}

// Verify probes the public download URL of pkg's live asset and returns
// the HTTP status. 302 means the asset resolves.
func (p *Publisher) Verify(ctx context.Context, pkg manifest.Package) (int, error) {
	return p.probe(ctx, pkg.FileName())
}

func (p *Publisher) probe(ctx context.Context, name string) (int, error) {
	status, err := p.api.ProbeDownload(ctx, p.config.Repo, p.config.Tag, name)
	switch {
	case err != nil:
		p.reporter.Warn("HEAD %s failed: %v", name, err)
	case status == http.StatusFound:
		p.reporter.OK("HTTP HEAD request %s test - %d %s", name, status, http.StatusText(status))
	default:
		p.reporter.Warn("HTTP HEAD request %s test - %d %s", name, status, http.StatusText(status))
	}
	return status, err
}

// Inspection is a read-only view of one package's slot.
type Inspection struct {
	Package string
	Ref     release.Ref
	Plan    Plan
	Notes   string
}

// NotesLine returns the package's current notes line.
func (i *Inspection) NotesLine() (string, error) {
	return notes.Line(i.Notes, i.Package)
}

// Inspect runs INSPECT without acting on the result. Stale assets are
// reported in the returned plan, not as an error.
func (p *Publisher) Inspect(ctx context.Context, pkg manifest.Package) (*Inspection, error) {
	ref, err := p.reader.Lookup(ctx, p.config.Tag)
	if err != nil {
		return nil, err
	}
	assets, err := p.reader.Assets(ctx, ref)
	if err != nil {
		return nil, err
	}
	body, err := p.reader.Notes(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Package: pkg.Name,
		Ref:     ref,
		Plan:    NewPlan(release.NamesFor(pkg.Name, pkg.Extension()), assets),
		Notes:   body,
	}, nil
}

// artifact is the checked local file.
type artifact struct {
	size   int64
	digest string
}

// openArtifact checks that path is a readable, non-empty regular file and
// returns its size and "sha256:<hex>" digest.
func openArtifact(path string) (artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return artifact{}, &LocalPreconditionError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return artifact{}, &LocalPreconditionError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return artifact{}, &LocalPreconditionError{Path: path, Err: errors.New("not a regular file")}
	}
	if info.Size() == 0 {
		return artifact{}, &LocalPreconditionError{Path: path, Err: errors.New("file is empty")}
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return artifact{}, &LocalPreconditionError{Path: path, Err: err}
	}
	return artifact{
		size:   info.Size(),
		digest: "sha256:" + hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

type nopReporter struct{}

func (nopReporter) Step(string, ...any)          {}
func (nopReporter) OK(string, ...any)            {}
func (nopReporter) Warn(string, ...any)          {}
func (nopReporter) Info(string, ...any)          {}
func (nopReporter) Timing(string, time.Duration) {}
