package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears the
// GitHub Actions variables so the host environment cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MSYS2PKG_HOME", dir)
	for _, key := range []string{"GITHUB_TOKEN", "GITHUB_REPOSITORY", "GITHUB_RUN_NUMBER", "MSYS2PKG_TOKEN", "MSYS2PKG_REPO"} {
		t.Setenv(key, "")
	}
	t.Setenv("FORCE_UPDATE", "")
	os.Unsetenv("FORCE_UPDATE")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := FromViper(Load())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}

	if cfg.Owner != "ruby" || cfg.Name != "setup-msys2-gcc" {
		t.Errorf("Owner/Name = %q/%q, want ruby/setup-msys2-gcc", cfg.Owner, cfg.Name)
	}
	if cfg.Tag != "msys2-gcc-pkgs" {
		t.Errorf("Tag = %q", cfg.Tag)
	}
	if cfg.Settle != 5*time.Second {
		t.Errorf("Settle = %s, want 5s", cfg.Settle)
	}
	if cfg.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", cfg.RetryAttempts)
	}
	if cfg.APIURL != "https://api.github.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Force {
		t.Error("Force should default to false")
	}
}

func TestLoad_ActionsEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_TOKEN", "ghs_example")
	t.Setenv("GITHUB_REPOSITORY", "octo/toolchains")
	t.Setenv("GITHUB_RUN_NUMBER", "45")
	t.Setenv("FORCE_UPDATE", "")

	cfg, err := FromViper(Load())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}

	if cfg.Token != "ghs_example" {
		t.Errorf("Token = %q", cfg.Token)
	}
	if cfg.Repo != "octo/toolchains" {
		t.Errorf("Repo = %q", cfg.Repo)
	}
	if cfg.BuildNumber != "45" {
		t.Errorf("BuildNumber = %q", cfg.BuildNumber)
	}
	if !cfg.Force {
		t.Error("FORCE_UPDATE present should set Force")
	}
	if err := cfg.RequireToken(); err != nil {
		t.Errorf("RequireToken: %v", err)
	}
	if err := cfg.RequireBuildNumber(); err != nil {
		t.Errorf("RequireBuildNumber: %v", err)
	}
}

func TestLoad_ForceUpdateOutranksFile(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("force: false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := FromViper(Load())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if cfg.Force {
		t.Error("Force should follow the file without FORCE_UPDATE")
	}

	t.Setenv("FORCE_UPDATE", "")
	cfg, err = FromViper(Load())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if !cfg.Force {
		t.Error("FORCE_UPDATE present should override force: false in the file")
	}
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("MSYS2PKG_SETTLE", "250ms")
	t.Setenv("MSYS2PKG_RETRY_ATTEMPTS", "7")
	t.Setenv("MSYS2PKG_TAG", "nightly")

	cfg, err := FromViper(Load())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if cfg.Settle != 250*time.Millisecond {
		t.Errorf("Settle = %s", cfg.Settle)
	}
	if cfg.RetryAttempts != 7 {
		t.Errorf("RetryAttempts = %d", cfg.RetryAttempts)
	}
	if cfg.Tag != "nightly" {
		t.Errorf("Tag = %q", cfg.Tag)
	}
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr string
	}{
		{"repo without slash", KeyRepo, "justname", "owner/name"},
		{"repo with extra segment", KeyRepo, "a/b/c", "owner/name"},
		{"zero attempts", KeyRetryAttempts, 0, "retry.attempts"},
		{"negative settle", KeySettle, -time.Second, "settle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			v := Load()
			v.Set(tt.key, tt.value)
			_, err := FromViper(v)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequireToken_Missing(t *testing.T) {
	if err := (Config{}).RequireToken(); err == nil {
		t.Error("expected error for empty token")
	}
	if err := (Config{}).RequireBuildNumber(); err == nil {
		t.Error("expected error for empty build number")
	}
}

func TestSetAndGet(t *testing.T) {
	dir := isolate(t)

	v := LoadFile()
	if err := Set(v, KeyTag, "custom-tag"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	reloaded := Load()
	if got := Get(reloaded, KeyTag); got != "custom-tag" {
		t.Errorf("Get(tag) = %q, want %q", got, "custom-tag")
	}
}

func TestSet_DoesNotPersistEnvironment(t *testing.T) {
	dir := isolate(t)
	t.Setenv("MSYS2PKG_TOKEN", "secret-token")

	if err := Set(LoadFile(), KeySettle, "10s"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret-token") {
		t.Errorf("token written to config file:\n%s", data)
	}

	cfg, err := FromViper(Load())
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}
	if cfg.Settle != 10*time.Second {
		t.Errorf("Settle = %v, want 10s", cfg.Settle)
	}
}
