// Package app wires the components into the operations the CLI exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/auth"
	"github.com/ibeckermayer/tokpost/internal/batch"
	chrome "github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/proxy"
	"github.com/ibeckermayer/tokpost/internal/scheduler"
	"github.com/ibeckermayer/tokpost/internal/store"
	"github.com/ibeckermayer/tokpost/internal/types"
	"github.com/ibeckermayer/tokpost/internal/upload"
)

// ErrNothingToRetry means the last run had no failed videos.
var ErrNothingToRetry = errors.New("last run has no failed videos")

// App holds the configured components. It is safe to reuse across runs but
// runs must not overlap, since each one drives its own browser.
type App struct {
	config   *config.Config
	logger   *zap.Logger
	browser  batch.Browser
	auth     *auth.Manager
	uploader batch.Uploader
	verifier batch.ProxyVerifier
	store    *store.Store
	progress func(types.UploadOutcome)
}

// Option customizes an App.
type Option func(*App)

// WithProgress calls fn after every video of a run.
func WithProgress(fn func(types.UploadOutcome)) Option {
	return func(a *App) { a.progress = fn }
}

// WithStore saves reports to s instead of the cache directory.
func WithStore(s *store.Store) Option {
	return func(a *App) { a.store = s }
}

// New creates an App backed by chromedp.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	launcher := chrome.NewLauncher(cfg.Browser, cfg.Proxy, logger)
	a := &App{
		config: cfg,
		logger: logger,
		browser: batch.LaunchFunc(func(ctx context.Context) (chrome.Session, error) {
			h, err := launcher.Launch(ctx)
			if err != nil {
				return nil, err
			}
			return h, nil
		}),
		auth:     auth.NewManager(cfg, auth.NewStore(logger), logger),
		uploader: upload.New(cfg, logger),
		verifier: proxy.NewVerifier(logger),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		s, err := store.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache dir: %w", err)
		}
		a.store = s
	}
	return a, nil
}

// Location is the zone that manifest and flag schedules without an offset
// are read in.
func (a *App) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.config.Batch.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid batch.timezone %q: %w", a.config.Batch.Timezone, err)
	}
	return loc, nil
}

// Upload publishes a single video.
func (a *App) Upload(ctx context.Context, task types.VideoTask, cred *auth.Credential) (*batch.Report, error) {
	return a.RunBatch(ctx, []types.VideoTask{task}, cred)
}

// RunBatch uploads tasks in order on one browser and saves the report when
// batch.save_reports is set. An interrupted run still saves what it got
// through, so RetryFailed can pick it up.
func (a *App) RunBatch(ctx context.Context, tasks []types.VideoTask, cred *auth.Credential) (*batch.Report, error) {
	runner := batch.New(a.config, batch.Deps{
		Browser:    a.browser,
		Verifier:   a.verifier,
		Auth:       a.auth,
		Uploader:   a.uploader,
		OnComplete: a.progress,
	}, a.logger)

	report, err := runner.Run(ctx, tasks, cred)
	if report == nil {
		return nil, err
	}

	if a.config.Batch.SaveReports {
		if path, err := store.Save(a.store, store.Runs, report); err != nil {
			a.logger.Warn("Failed to save run report", zap.Error(err))
		} else {
			a.logger.Info("Saved run report", zap.String("path", path))
		}
	}
	return report, err
}

// RetryFailed runs the failed videos of the most recent saved report again.
func (a *App) RetryFailed(ctx context.Context, cred *auth.Credential) (*batch.Report, error) {
	last, path, err := store.LoadLatest[batch.Report](a.store, store.Runs)
	if err != nil {
		return nil, err
	}
	if len(last.Failed) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrNothingToRetry, path)
	}

	a.logger.Info("Retrying failed videos",
		zap.String("report", path),
		zap.Int("videos", len(last.Failed)))
	return a.RunBatch(ctx, last.Failed, cred)
}

// LoginResult is the saved summary of one account login. Cookies are only
// written to the account's jar.
type LoginResult struct {
	Username string `json:"username"`
	Jar      string `json:"jar,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LoginAccounts logs in each account on one browser and writes a Netscape
// cookie jar named <username>.txt into outDir for each success.
func (a *App) LoginAccounts(ctx context.Context, accounts []auth.Account, outDir string) ([]LoginResult, error) {
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return nil, err
	}

	session, err := a.browser.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}()

	var results []LoginResult
	for _, r := range a.auth.LoginAccounts(ctx, session, accounts) {
		res := LoginResult{Username: r.Account.Username}
		if r.Err != nil {
			res.Error = r.Err.Error()
			results = append(results, res)
			continue
		}

		jar := auth.NewCookieJar(filepath.Join(outDir, auth.JarFileName(r.Account.Username)))
		if err := jar.Save(r.Cookies); err != nil {
			res.Error = fmt.Sprintf("failed to save cookies: %v", err)
		} else {
			res.Jar = jar.Path()
			a.logger.Info("Saved cookies", zap.String("username", res.Username), zap.String("path", res.Jar))
		}
		results = append(results, res)
	}

	if _, err := store.Save(a.store, store.Logins, results); err != nil {
		a.logger.Warn("Failed to save login summary", zap.Error(err))
	}
	return results, nil
}

// Watch reloads the manifest and runs it as a batch on every tick of the
// cron expression, until ctx is done. Each run gets a fresh browser.
func (a *App) Watch(ctx context.Context, manifest, expr string, cred *auth.Credential) error {
	loc, err := a.Location()
	if err != nil {
		return err
	}
	s, err := scheduler.New(a.config.Batch.Timezone, 0, a.logger)
	if err != nil {
		return err
	}

	watchCtx := ctx
	job := func(ctx context.Context) error {
		// A run in progress stops with the watch.
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(watchCtx, cancel)
		defer stop()

		tasks, err := batch.LoadManifest(manifest, loc)
		if err != nil {
			return err
		}
		report, err := a.RunBatch(ctx, tasks, cred)
		if err != nil {
			return err
		}
		if !report.Succeeded() {
			return fmt.Errorf("%d of %d videos failed", len(report.Failed), len(tasks))
		}
		return nil
	}
	if err := s.AddJob("batch", expr, job); err != nil {
		return err
	}

	s.Start()
	for _, j := range s.ListJobs() {
		a.logger.Info("Watching manifest", zap.String("manifest", manifest), zap.Time("next_run", j.NextRun))
	}
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

// Targets accepted by OpenPath.
const (
	OpenConfig = "config"
	OpenCache  = "cache"
	OpenReport = "report"
)

// OpenPath opens the config file, the cache directory, or the latest run
// report with the OS default handler. A missing config file is created
// with the defaults first.
func (a *App) OpenPath(target string) error {
	var path string
	switch target {
	case OpenConfig:
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			if err := config.Default().Save(p); err != nil {
				return err
			}
			a.logger.Info("Created default config", zap.String("path", p))
		}
		path = p
	case OpenCache:
		dir, err := config.CacheDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		path = dir
	case OpenReport:
		p, err := a.store.LatestFile(store.Runs)
		if err != nil {
			return err
		}
		path = p
	default:
		return fmt.Errorf("unknown target %q (want %s, %s or %s)", target, OpenConfig, OpenCache, OpenReport)
	}

	a.logger.Info("Opening", zap.String("path", path))
	return browser.OpenFile(path)
}
