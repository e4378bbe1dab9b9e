package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruby/setup-msys2-gcc/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Dir returns the path to the config directory (~/.msys2pkg/).
// MSYS2PKG_HOME overrides the location.
func Dir() string {
	if dir := os.Getenv(branding.EnvVar("HOME")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.msys2pkg/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load returns a Viper instance reading the config file and environment,
// with defaults applied. The GitHub Actions variables GITHUB_TOKEN,
// GITHUB_REPOSITORY and GITHUB_RUN_NUMBER are bound alongside the
// MSYS2PKG_* names, and the presence of FORCE_UPDATE turns force on.
func Load() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(FilePath())
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	_ = v.BindEnv(KeyToken, branding.EnvVar("TOKEN"), "GITHUB_TOKEN")
	_ = v.BindEnv(KeyRepo, branding.EnvVar("REPO"), "GITHUB_REPOSITORY")
	_ = v.BindEnv(KeyBuildNumber, branding.EnvVar("BUILD_NUMBER"), "GITHUB_RUN_NUMBER")

	// Ignore error if config file doesn't exist yet.
	_ = v.ReadInConfig()

	// FORCE_UPDATE counts when present, even empty, and outranks the file.
	if _, ok := os.LookupEnv("FORCE_UPDATE"); ok {
		v.Set(KeyForce, true)
	}
	return v
}

// LoadFile returns a Viper instance holding only what the config file
// contains, with no defaults or environment. Use it with Set so values
// from the environment (the API token in particular) are never persisted.
func LoadFile() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(FilePath())
	v.SetConfigType(fileType)
	_ = v.ReadInConfig()
	return v
}

// Get returns a config value by key. Returns empty string if not set.
func Get(v *viper.Viper, key string) string {
	return v.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(v *viper.Viper, key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	v.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
