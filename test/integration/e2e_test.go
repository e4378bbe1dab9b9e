//go:build integration

package integration_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruby/setup-msys2-gcc/internal/github/githubtest"
	"github.com/ruby/setup-msys2-gcc/internal/manifest"
	"github.com/ruby/setup-msys2-gcc/internal/notes"
	"github.com/ruby/setup-msys2-gcc/internal/publish"
	"github.com/ruby/setup-msys2-gcc/internal/release"
)

var (
	mingw64 = manifest.Package{Name: "mingw64"}
	ucrt64  = manifest.Package{Name: "ucrt64"}
	clang64 = manifest.Package{Name: "clang64"}
)

// TestReleaseLifecycle walks a release through several CI runs:
// first publish -> unchanged rebuild -> partial update -> interrupted swap
// -> operator cleanup -> recovery.
func TestReleaseLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	// Run 1: nothing published yet.
	for _, pkg := range []string{"mingw64", "ucrt64", "clang64"} {
		writeFile(t, filepath.Join(env.WorkDir, pkg+".7z"), pkg+" v1")
	}
	results := env.publishAll(t, "10", mingw64, ucrt64, clang64)
	assertOutcomes(t, results, publish.Success, publish.Success, publish.Success)
	assertAssets(t, env, "clang64.7z", "mingw64.7z", "ucrt64.7z")
	assertBuild(t, env, "mingw64", "10")
	assertBuild(t, env, "clang64", "10")

	// Run 2: same files, nothing to do.
	before := len(env.Server.Mutations())
	results = env.publishAll(t, "11", mingw64, ucrt64, clang64)
	assertOutcomes(t, results, publish.NoChange, publish.NoChange, publish.NoChange)
	if after := len(env.Server.Mutations()); after != before {
		t.Errorf("unchanged run issued %d mutations", after-before)
	}
	assertBuild(t, env, "ucrt64", "10")

	// Run 3: only ucrt64 changed.
	writeFile(t, filepath.Join(env.WorkDir, "ucrt64.7z"), "ucrt64 v2")
	results = env.publishAll(t, "12", mingw64, ucrt64, clang64)
	assertOutcomes(t, results, publish.NoChange, publish.Success, publish.NoChange)
	assertContent(t, env, "ucrt64.7z", "ucrt64 v2")
	assertBuild(t, env, "ucrt64", "12")
	assertBuild(t, env, "mingw64", "10")

	// Run 4: the host drops the connection on the delete of the old asset.
	writeFile(t, filepath.Join(env.WorkDir, "mingw64.7z"), "mingw64 v2")
	env.Server.Fail(githubtest.Fault{Method: http.MethodDelete, Drop: true, Times: 3})
	results = env.publishAll(t, "13", mingw64)
	assertOutcomes(t, results, publish.PartialFailure)
	if results[0].Step != publish.StepDeleteOld {
		t.Errorf("failed step = %v, want delete-old", results[0].Step)
	}
	assertAssets(t, env, "clang64.7z", "mingw64.7z", "mingw64_old.7z", "ucrt64.7z")
	assertContent(t, env, "mingw64.7z", "mingw64 v2")

	// Run 5: the leftover blocks mingw64 but not the other packages.
	writeFile(t, filepath.Join(env.WorkDir, "clang64.7z"), "clang64 v2")
	results = env.publishAll(t, "14", mingw64, clang64)
	assertOutcomes(t, results, publish.Aborted, publish.Success)
	var inconsistent *publish.InconsistentStateError
	if !errors.As(results[0].Err, &inconsistent) || inconsistent.Asset != "mingw64_old.7z" {
		t.Fatalf("err = %v, want stale mingw64_old.7z", results[0].Err)
	}

	// The operator removes the leftover by hand.
	reader := release.NewReader(env.Client, env.Server.GitHubRepo())
	ref, err := reader.Lookup(context.Background(), releaseTag)
	if err != nil {
		t.Fatal(err)
	}
	assets, err := reader.Assets(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	stale, ok := release.Find(assets, "mingw64_old.7z")
	if !ok {
		t.Fatal("mingw64_old.7z not listed")
	}
	if err := env.Client.DeleteReleaseAsset(context.Background(), env.Server.GitHubRepo(), stale.ID); err != nil {
		t.Fatal(err)
	}

	// Run 6: the live asset already has the new content; the notes, left
	// behind by the failed run, are repaired with UpdateNotes.
	results = env.publishAll(t, "15", mingw64)
	assertOutcomes(t, results, publish.NoChange)
	assertBuild(t, env, "mingw64", "10")
	if _, err := env.publisher("15").UpdateNotes(context.Background(), "mingw64", true); err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	assertBuild(t, env, "mingw64", "15")

	assertAssets(t, env, "clang64.7z", "mingw64.7z", "ucrt64.7z")
	assertContent(t, env, "clang64.7z", "clang64 v2")
	if !strings.HasPrefix(env.Server.Body(releaseTag), "Toolchain bundles used by setup-ruby on Windows.\n") {
		t.Errorf("notes preamble changed:\n%s", env.Server.Body(releaseTag))
	}
}

// TestInterruptedUploadIsNeverPublished checks that an upload the host never
// finished is reported, not renamed into place.
func TestInterruptedUploadIsNeverPublished(t *testing.T) {
	env := setupTestEnv(t)
	env.Server.AddAsset(releaseTag, "ucrt64.7z", []byte("ucrt64 v1"))
	env.Server.AddAssetState(releaseTag, "ucrt64_new.7z", []byte("ucrt64 v"), "starter")
	writeFile(t, filepath.Join(env.WorkDir, "ucrt64.7z"), "ucrt64 v2")

	results := env.publishAll(t, "20", ucrt64)
	assertOutcomes(t, results, publish.Aborted)
	if !strings.Contains(results[0].Err.Error(), "upload incomplete") {
		t.Errorf("err = %v", results[0].Err)
	}
	assertContent(t, env, "ucrt64.7z", "ucrt64 v1")
	if m := env.Server.Mutations(); len(m) != 0 {
		t.Errorf("mutations = %v, want none", m)
	}
}

// assertBuild fails unless the notes line for pkg carries build.
func assertBuild(t *testing.T, env *testEnv, pkg, build string) {
	t.Helper()
	line, err := notes.Line(env.Server.Body(releaseTag), pkg)
	if err != nil {
		t.Fatalf("notes line for %s: %v", pkg, err)
	}
	if !strings.HasSuffix(line, " "+build+" |") {
		t.Errorf("notes line for %s = %q, want build %s", pkg, line, build)
	}
}
