package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruby/setup-msys2-gcc/internal/branding"
	"github.com/ruby/setup-msys2-gcc/internal/config"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// httpClient carries every request to the release host. Tests point it at
// a fake host.
var httpClient = &http.Client{}

// flagKeys maps each flag that overrides a config key to that key. A
// command binds the entries for the flags it defines.
var flagKeys = map[string]string{
	"repo":          config.KeyRepo,
	"tag":           config.KeyTag,
	"build-number":  config.KeyBuildNumber,
	"work-dir":      config.KeyWorkDir,
	"manifest":      config.KeyManifest,
	"metrics-file":  config.KeyMetricsFile,
	"log-level":     config.KeyLogLevel,
	"log-format":    config.KeyLogFormat,
	"settle":        config.KeySettle,
	"force":         config.KeyForce,
	"skip-verify":   config.KeySkipVerify,
	"retry":         config.KeyRetryAttempts,
	"retry-backoff": config.KeyRetryBackoff,
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` replaces the toolchain bundles attached to a release with freshly
built ones. The release API has no atomic replace, so each package is swapped
through temporary asset names and the release notes line for the package is
rewritten with the publish time and build number.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("repo", "", "Repository holding the release, as owner/name")
	flags.String("tag", "", "Tag of the release holding the packages")
	flags.String("build-number", "", "Build number written to the release notes")
	flags.String("work-dir", "", "Directory holding the built package files")
	flags.String("manifest", "", "Path to the package manifest")
	flags.String("metrics-file", "", "Write Prometheus metrics in text format to this file at exit")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")
	flags.Int("retry", 0, "Attempts per HTTP call on network failures (default 3)")
	flags.Duration("retry-backoff", 0, "Pause between attempts (default 2s)")
}

// Execute runs the root command with build info injected via ldflags.
// An interrupt cancels the running command's context.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// cobra only hands the root context to subcommands that have none, so
	// a command run earlier in the process would keep its cancelled one.
	setContext(ctx, rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func setContext(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(ctx, sub)
	}
}

// loadConfig resolves the run configuration with the command's flags
// taking precedence over the environment and the config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := config.Load()
	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return config.Config{}, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}
	return config.FromViper(v)
}
