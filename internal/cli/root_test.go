package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ruby/setup-msys2-gcc/internal/github/githubtest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testTag = "msys2-gcc-pkgs"

// harness points the CLI at a fake host and an isolated environment.
type harness struct {
	server *githubtest.Server
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	server := githubtest.NewServer(t, "ruby", "setup-msys2-gcc")
	dir := t.TempDir()

	for _, name := range []string{"GITHUB_TOKEN", "GITHUB_REPOSITORY", "GITHUB_RUN_NUMBER", "FORCE_UPDATE"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("MSYS2PKG_HOME", t.TempDir())
	t.Setenv("MSYS2PKG_TOKEN", githubtest.Token)
	t.Setenv("MSYS2PKG_REPO", "ruby/setup-msys2-gcc")
	t.Setenv("MSYS2PKG_BUILD_NUMBER", "42")
	t.Setenv("MSYS2PKG_TAG", testTag)
	t.Setenv("MSYS2PKG_API_URL", server.URL)
	t.Setenv("MSYS2PKG_UPLOAD_URL", server.URL)
	t.Setenv("MSYS2PKG_DOWNLOAD_URL", server.URL)
	t.Setenv("MSYS2PKG_WORK_DIR", dir)
	t.Setenv("MSYS2PKG_MANIFEST", filepath.Join(dir, "packages.yaml"))
	t.Setenv("MSYS2PKG_SETTLE", "0s")
	t.Setenv("MSYS2PKG_RETRY_BACKOFF", "1ms")
	t.Setenv("MSYS2PKG_REQUESTS_PER_SECOND", "0")
	t.Setenv("MSYS2PKG_LOGGING_LEVEL", "error")

	previous := httpClient
	httpClient = server.Client()
	t.Cleanup(func() { httpClient = previous })

	return &harness{server: server, dir: dir}
}

func (h *harness) writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(h.dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the CLI with args and returns what it wrote to stdout and
// stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = Execute("1.2.3", "abc1234", "2026-01-01")
	return outBuf.String(), errBuf.String(), err
}

// resetFlags restores every flag in the command tree to its default, since
// cobra keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestVersion(t *testing.T) {
	newHarness(t)

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"full", []string{"version"}, "msys2pkg version 1.2.3 (commit: abc1234, built: 2026-01-01, " + runtime.Version() + ")\n"},
		{"short", []string{"version", "--short"}, "1.2.3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if stdout != tt.expected {
				t.Errorf("stdout = %q, want %q", stdout, tt.expected)
			}
		})
	}

	stdout, _, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(stdout, `"version": "1.2.3"`) {
		t.Errorf("json output missing version: %s", stdout)
	}
}

func TestConfigSetAndGet(t *testing.T) {
	newHarness(t)

	if _, _, err := execute(t, "config", "set", "logging.format", "json"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	stdout, _, err := execute(t, "config", "get", "logging.format")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if stdout != "json\n" {
		t.Errorf("config get = %q, want %q", stdout, "json\n")
	}

	stdout, _, err = execute(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.HasPrefix(stdout, os.Getenv("MSYS2PKG_HOME")) {
		t.Errorf("config path = %q, want it under MSYS2PKG_HOME", stdout)
	}
}

func TestInvalidConfigIsReported(t *testing.T) {
	newHarness(t)
	t.Setenv("MSYS2PKG_REPO", "not-a-repo")

	_, stderr, err := execute(t, "status", "ucrt64")
	if err == nil {
		t.Fatal("expected an error for a malformed repo")
	}
	if !strings.Contains(stderr, `repo "not-a-repo" must be of the form owner/name`) {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	h := newHarness(t)
	h.server.AddRelease(testTag, "")

	_, _, err := execute(t, "status", "--tag", "other-tag", "ucrt64")
	if err == nil || !strings.Contains(err.Error(), `release "other-tag" not found`) {
		t.Fatalf("err = %v, want release not found for the flag's tag", err)
	}
}

func TestRepeatedExecution(t *testing.T) {
	h := newHarness(t)
	h.server.AddRelease(testTag, "")

	for i := 0; i < 2; i++ {
		if _, _, err := execute(t, "status", "ucrt64"); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}

func TestManifestRequiresNewerVersion(t *testing.T) {
	h := newHarness(t)
	h.server.AddRelease(testTag, "")
	h.writeFile(t, "packages.yaml", "requires: \">= 9.0.0\"\npackages:\n  - name: ucrt64\n")

	_, _, err := execute(t, "status", "ucrt64")
	if err == nil || !strings.Contains(err.Error(), "manifest requires version >= 9.0.0, running 1.2.3") {
		t.Fatalf("err = %v", err)
	}
	if r := h.server.Requests(); len(r) != 0 {
		t.Errorf("requests = %v, want none", r)
	}
}

func TestInvalidPackageName(t *testing.T) {
	newHarness(t)

	_, _, err := execute(t, "status", "../ucrt64")
	if err == nil || !strings.Contains(err.Error(), `invalid package name "../ucrt64"`) {
		t.Fatalf("err = %v", err)
	}
}
