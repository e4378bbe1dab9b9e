package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruby/setup-msys2-gcc/internal/branding"
	"github.com/spf13/viper"
)

// Keys understood by Load and FromViper.
const (
	KeyRepo              = "repo"
	KeyToken             = "token"
	KeyBuildNumber       = "build_number"
	KeyTag               = "tag"
	KeyAPIURL            = "api_url"
	KeyUploadURL         = "upload_url"
	KeyDownloadURL       = "download_url"
	KeyWorkDir           = "work_dir"
	KeyManifest          = "manifest"
	KeySettle            = "settle"
	KeyRetryAttempts     = "retry.attempts"
	KeyRetryBackoff      = "retry.backoff"
	KeyRequestTimeout    = "timeout.request"
	KeyUploadTimeout     = "timeout.upload"
	KeyRequestsPerSecond = "requests_per_second"
	KeyForce             = "force"
	KeySkipVerify        = "skip_verify"
	KeyMetricsFile       = "metrics_file"
	KeyLogLevel          = "logging.level"
	KeyLogFormat         = "logging.format"
)

// Config is the immutable configuration of one run. It is built once by
// FromViper and handed to every component; nothing below the CLI reads
// the environment.
type Config struct {
	Repo        string // "owner/name"
	Owner       string
	Name        string
	Token       string
	BuildNumber string
	Tag         string

	APIURL      string
	UploadURL   string
	DownloadURL string

	WorkDir      string
	ManifestPath string

	Settle            time.Duration
	RetryAttempts     int
	RetryBackoff      time.Duration
	RequestTimeout    time.Duration
	UploadTimeout     time.Duration
	RequestsPerSecond float64

	Force       bool
	SkipVerify  bool
	MetricsFile string

	Logging LoggingConfig
}

// LoggingConfig selects the zap logger level and encoding.
type LoggingConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRepo, branding.GitHubRepo())
	v.SetDefault(KeyTag, branding.ReleaseTag())
	v.SetDefault(KeyAPIURL, "https://api.github.com")
	v.SetDefault(KeyUploadURL, "https://uploads.github.com")
	v.SetDefault(KeyDownloadURL, "https://github.com")
	v.SetDefault(KeyWorkDir, ".")
	v.SetDefault(KeyManifest, "packages.yaml")
	v.SetDefault(KeySettle, 5*time.Second)
	v.SetDefault(KeyRetryAttempts, 3)
	v.SetDefault(KeyRetryBackoff, 2*time.Second)
	v.SetDefault(KeyRequestTimeout, 60*time.Second)
	v.SetDefault(KeyUploadTimeout, 30*time.Minute)
	v.SetDefault(KeyRequestsPerSecond, 5.0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// FromViper snapshots the resolved settings into a Config and checks the
// settings every command needs.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Repo:              strings.TrimSpace(v.GetString(KeyRepo)),
		Token:             strings.TrimSpace(v.GetString(KeyToken)),
		BuildNumber:       strings.TrimSpace(v.GetString(KeyBuildNumber)),
		Tag:               v.GetString(KeyTag),
		APIURL:            strings.TrimRight(v.GetString(KeyAPIURL), "/"),
		UploadURL:         strings.TrimRight(v.GetString(KeyUploadURL), "/"),
		DownloadURL:       strings.TrimRight(v.GetString(KeyDownloadURL), "/"),
		WorkDir:           v.GetString(KeyWorkDir),
		ManifestPath:      v.GetString(KeyManifest),
		Settle:            v.GetDuration(KeySettle),
		RetryAttempts:     v.GetInt(KeyRetryAttempts),
		RetryBackoff:      v.GetDuration(KeyRetryBackoff),
		RequestTimeout:    v.GetDuration(KeyRequestTimeout),
		UploadTimeout:     v.GetDuration(KeyUploadTimeout),
		RequestsPerSecond: v.GetFloat64(KeyRequestsPerSecond),
		Force:             v.GetBool(KeyForce),
		SkipVerify:        v.GetBool(KeySkipVerify),
		MetricsFile:       v.GetString(KeyMetricsFile),
		Logging: LoggingConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}

	if owner, name, ok := strings.Cut(cfg.Repo, "/"); ok {
		cfg.Owner, cfg.Name = owner, name
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings shared by every command.
func (c Config) Validate() error {
	var errs []error
	if c.Owner == "" || c.Name == "" || strings.Contains(c.Name, "/") {
		errs = append(errs, fmt.Errorf("repo %q must be of the form owner/name", c.Repo))
	}
	if c.Tag == "" {
		errs = append(errs, errors.New("release tag is empty"))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1 (got %d)", c.RetryAttempts))
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff must not be negative (got %s)", c.RetryBackoff))
	}
	if c.Settle < 0 {
		errs = append(errs, fmt.Errorf("settle must not be negative (got %s)", c.Settle))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative (got %g)", c.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

// RequireToken fails when no API token is configured. Read-only commands
// can run without one; anything that mutates the release cannot.
func (c Config) RequireToken() error {
	if c.Token == "" {
		return fmt.Errorf("no API token configured (set GITHUB_TOKEN or %s)", branding.EnvVar("TOKEN"))
	}
	return nil
}

// RequireBuildNumber fails when no build number is configured. The build
// number is written into the release notes.
func (c Config) RequireBuildNumber() error {
	if c.BuildNumber == "" {
		return fmt.Errorf("no build number configured (set GITHUB_RUN_NUMBER or %s)", branding.EnvVar("BUILD_NUMBER"))
	}
	return nil
}
