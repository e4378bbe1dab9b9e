package cli

import (
	"fmt"
	"os"

	"github.com/ruby/setup-msys2-gcc/internal/branding"
	"github.com/ruby/setup-msys2-gcc/internal/config"
	"github.com/ruby/setup-msys2-gcc/internal/github"
	"github.com/ruby/setup-msys2-gcc/internal/manifest"
	"github.com/ruby/setup-msys2-gcc/internal/metrics"
	"github.com/ruby/setup-msys2-gcc/internal/publish"
	"github.com/ruby/setup-msys2-gcc/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// session is everything a command needs to act on the release.
type session struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	printer  *ui.Printer
	client   *github.Client
	manifest *manifest.File
}

// newSession resolves configuration and builds the logger, metrics,
// transport, and manifest for cmd. Call close when done.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	client, mf, err := openRelease(cfg, logger, m)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		printer:  ui.New(cmd.ErrOrStderr(), os.Getenv("GITHUB_ACTIONS") == "true"),
		client:   client,
		manifest: mf,
	}, nil
}

// openRelease builds the transport and loads the manifest, checking that
// this build satisfies the manifest's version constraint.
func openRelease(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (*github.Client, *manifest.File, error) {
	client, err := newClient(cfg, logger, m)
	if err != nil {
		return nil, nil, err
	}
	mf, err := manifest.LoadOrDefault(cfg.ManifestPath)
	if err != nil {
		return nil, nil, err
	}
	if err := mf.CheckRequires(buildVersion); err != nil {
		return nil, nil, err
	}
	return client, mf, nil
}

// newClient builds the transport for cfg.
func newClient(cfg config.Config, logger *zap.Logger, m *metrics.Metrics) (*github.Client, error) {
	return github.NewClient(github.Config{
		APIURL:            cfg.APIURL,
		UploadURL:         cfg.UploadURL,
		DownloadURL:       cfg.DownloadURL,
		Token:             cfg.Token,
		UserAgent:         branding.UserAgent(cfg.Repo),
		HTTPClient:        httpClient,
		Retry:             github.RetryPolicy{MaxAttempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff},
		RequestTimeout:    cfg.RequestTimeout,
		UploadTimeout:     cfg.UploadTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
		Metrics:           m,
	})
}

func repoOf(cfg config.Config) github.Repo {
	return github.Repo{Owner: cfg.Owner, Name: cfg.Name}
}

func (s *session) publisher() *publish.Publisher {
	return publish.New(s.client, publish.Config{
		Repo:        repoOf(s.cfg),
		Tag:         s.cfg.Tag,
		BuildNumber: s.cfg.BuildNumber,
		Settle:      s.cfg.Settle,
		Force:       s.cfg.Force,
		SkipVerify:  s.cfg.SkipVerify,
		Logger:      s.logger,
		Metrics:     s.metrics,
		Reporter:    s.printer,
	})
}

// packages resolves the named packages against the manifest. No names
// means every package the manifest lists.
func (s *session) packages(names []string) ([]manifest.Package, error) {
	if len(names) == 0 {
		names = s.manifest.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("no packages given and %s lists none", s.cfg.ManifestPath)
		}
	}
	pkgs := make([]manifest.Package, 0, len(names))
	for _, name := range names {
		if !manifest.ValidName(name) {
			return nil, fmt.Errorf("invalid package name %q", name)
		}
		pkg, _ := s.manifest.Lookup(name)
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

// close flushes the logger and writes the metrics textfile if one was
// requested.
func (s *session) close() {
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		s.logger.Warn("writing metrics file", zap.String("path", s.cfg.MetricsFile), zap.Error(err))
	}
	_ = s.logger.Sync()
}
