//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ruby/setup-msys2-gcc/internal/github"
	"github.com/ruby/setup-msys2-gcc/internal/github/githubtest"
	"github.com/ruby/setup-msys2-gcc/internal/manifest"
	"github.com/ruby/setup-msys2-gcc/internal/metrics"
	"github.com/ruby/setup-msys2-gcc/internal/publish"
)

const releaseTag = "msys2-gcc-pkgs"

const releaseNotes = `Toolchain bundles used by setup-ruby on Windows.

| Package | Updated | Build |
|---|---|---|
| **mingw64** | 2023-06-01 08:00:00 UTC |      1 |
| **ucrt64** | 2023-06-01 08:00:00 UTC |      1 |
| **clang64** | 2023-06-01 08:00:00 UTC |      1 |
`

// testEnv is a fake release host plus a work directory holding the built
// package files.
type testEnv struct {
	Server  *githubtest.Server
	Client  *github.Client
	Metrics *metrics.Metrics
	WorkDir string
}

// setupTestEnv starts a fake host seeded with the release and its notes.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	server := githubtest.NewServer(t, "ruby", "setup-msys2-gcc")
	server.AddRelease(releaseTag, releaseNotes)
	return &testEnv{
		Server:  server,
		Client:  server.NewClient(t),
		Metrics: metrics.New(),
		WorkDir: t.TempDir(),
	}
}

// publisher returns a Publisher stamping build into the notes.
func (env *testEnv) publisher(build string) *publish.Publisher {
	return publish.New(env.Client, publish.Config{
		Repo:        env.Server.GitHubRepo(),
		Tag:         releaseTag,
		BuildNumber: build,
		Metrics:     env.Metrics,
	})
}

// publishAll runs each package in order, the way the CLI does.
func (env *testEnv) publishAll(t *testing.T, build string, pkgs ...manifest.Package) []publish.Result {
	t.Helper()
	p := env.publisher(build)
	results := make([]publish.Result, 0, len(pkgs))
	for _, pkg := range pkgs {
		results = append(results, p.Run(context.Background(), pkg, env.WorkDir))
	}
	return results
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertOutcomes fails the test unless each result has the expected outcome.
func assertOutcomes(t *testing.T, results []publish.Result, expected ...publish.Outcome) {
	t.Helper()
	if len(results) != len(expected) {
		t.Fatalf("got %d results, want %d", len(results), len(expected))
	}
	for i, r := range results {
		if r.Outcome != expected[i] {
			t.Errorf("%s: outcome = %v (step %v, err %v), want %v", r.Package, r.Outcome, r.Step, r.Err, expected[i])
		}
	}
}

// assertAssets fails unless the release holds exactly names.
func assertAssets(t *testing.T, env *testEnv, names ...string) {
	t.Helper()
	sort.Strings(names)
	got := env.Server.AssetNames(releaseTag)
	if strings.Join(got, ",") != strings.Join(names, ",") {
		t.Errorf("assets = %v, want %v", got, names)
	}
}

// assertContent fails unless the named asset holds content.
func assertContent(t *testing.T, env *testEnv, name, content string) {
	t.Helper()
	if got := string(env.Server.Content(releaseTag, name)); got != content {
		t.Errorf("%s content = %q, want %q", name, got, content)
	}
}
