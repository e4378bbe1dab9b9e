// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into
// the binary with //go:embed. Hard defaults cover a missing or empty file.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName     string `yaml:"cli_name"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	HomeDir     string `yaml:"home_dir"`
	EnvPrefix   string `yaml:"env_prefix"`
	GitHubRepo  string `yaml:"github_repo"`
	ReleaseTag  string `yaml:"release_tag"`
}

func load() {
	once.Do(func() {
		defaults = brand{
			CLIName:     "msys2pkg",
			DisplayName: "MSYS2 Package Publisher",
			Description: "Build toolchain bundles and publish them as release assets",
			HomeDir:     ".msys2pkg",
			EnvPrefix:   "MSYS2PKG",
			GitHubRepo:  "ruby/setup-msys2-gcc",
			ReleaseTag:  "msys2-gcc-pkgs",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "msys2pkg").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".msys2pkg").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "MSYS2PKG").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GitHubRepo returns the default "owner/repo" whose releases are managed.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// ReleaseTag returns the default release tag that holds the bundles.
func ReleaseTag() string { load(); return defaults.ReleaseTag }

// UserAgent returns the User-Agent sent on every API request. The repo
// is included so the host can attribute traffic to the publishing project.
func UserAgent(repo string) string {
	load()
	if repo == "" {
		repo = defaults.GitHubRepo
	}
	return repo + "-" + defaults.CLIName
}

// EnvVar returns a fully qualified env var name, e.g., EnvVar("TAG") → "MSYS2PKG_TAG".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
