// Package batch runs a list of uploads on one browser session.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ibeckermayer/tokpost/internal/auth"
	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/schedule"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Browser starts the session a run drives.
type Browser interface {
	Launch(ctx context.Context) (browser.Session, error)
}

// LaunchFunc adapts a function to Browser.
type LaunchFunc func(ctx context.Context) (browser.Session, error)

func (f LaunchFunc) Launch(ctx context.Context) (browser.Session, error) {
	return f(ctx)
}

// ProxyVerifier checks a proxy before any page is loaded through it.
type ProxyVerifier interface {
	Verify(ctx context.Context, p config.ProxyConfig) error
}

// Authenticator establishes the session on a fresh page.
type Authenticator interface {
	Authenticate(ctx context.Context, page browser.Page, cred *auth.Credential) ([]types.CookieRecord, error)
}

// Uploader publishes one task.
type Uploader interface {
	Upload(ctx context.Context, page browser.Page, task types.VideoTask) types.UploadOutcome
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Browser  Browser
	Verifier ProxyVerifier
	Auth     Authenticator
	Uploader Uploader
	// OnComplete, if set, is called after every task.
	OnComplete func(types.UploadOutcome)
}

// Report summarizes a run.
type Report struct {
	RunID      uuid.UUID             `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Outcomes   []types.UploadOutcome `json:"outcomes"`
	// Failed holds the tasks that did not publish, exactly as given.
	Failed []types.VideoTask `json:"failed"`
}

// Succeeded reports whether every task was published.
func (r *Report) Succeeded() bool {
	return len(r.Failed) == 0
}

// Runner uploads tasks one after another on a single browser session.
type Runner struct {
	browserCfg config.BrowserConfig
	proxy      config.ProxyConfig
	upload     config.UploadConfig
	deps       Deps
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a runner. Uploads are paced by batch.uploads_per_minute.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Runner {
	limit := rate.Inf
	if cfg.Batch.UploadsPerMinute > 0 {
		limit = rate.Limit(cfg.Batch.UploadsPerMinute / 60)
	}
	return &Runner{
		browserCfg: cfg.Browser,
		proxy:      cfg.Proxy,
		upload:     cfg.Upload,
		deps:       deps,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.Named("batch"),
		now:        time.Now,
	}
}

// Run launches one browser, verifies the proxy, authenticates once, then
// uploads tasks in order. A failed task never stops the run; browser,
// proxy and authentication failures do, and are returned as errors.
// When ctx ends mid-run, the partial report is returned with ctx's error
// and the tasks never attempted are listed as failed.
func (r *Runner) Run(ctx context.Context, tasks []types.VideoTask, cred *auth.Credential) (*Report, error) {
	report := &Report{RunID: uuid.New(), StartedAt: r.now()}
	logger := r.logger.With(zap.String("run_id", report.RunID.String()))
	logger.Info("Starting batch", zap.Int("videos", len(tasks)))

	session, err := r.deps.Browser.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer r.release(session, logger)

	if r.proxy.Enabled() {
		if err := r.deps.Verifier.Verify(ctx, r.proxy); err != nil {
			logger.Error("Proxy is not working", zap.String("proxy", r.proxy.Address()), zap.Error(err))
			return nil, fmt.Errorf("%w: %w", types.ErrProxyUnreachable, err)
		}
	}

	if _, err := r.deps.Auth.Authenticate(ctx, session, cred); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	for i, task := range tasks {
		if err := r.limiter.Wait(ctx); err != nil {
			return r.interrupted(report, tasks[i:], logger, err)
		}

		outcome := r.runTask(ctx, session, task)
		report.Outcomes = append(report.Outcomes, outcome)
		if !outcome.Succeeded() {
			report.Failed = append(report.Failed, task)
			logger.Error("Video failed",
				zap.Int("index", i),
				zap.String("video", task.Path),
				zap.String("reason", string(outcome.Reason)),
				zap.String("error", outcome.Message))
		}
		if r.deps.OnComplete != nil {
			r.deps.OnComplete(outcome)
		}
		if err := ctx.Err(); err != nil {
			return r.interrupted(report, tasks[i+1:], logger, err)
		}
	}

	report.FinishedAt = r.now()
	logger.Info("Batch finished",
		zap.Int("videos", len(tasks)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("took", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

func (r *Runner) interrupted(report *Report, rest []types.VideoTask, logger *zap.Logger, err error) (*Report, error) {
	report.Failed = append(report.Failed, rest...)
	report.FinishedAt = r.now()
	logger.Warn("Batch interrupted",
		zap.Int("done", len(report.Outcomes)),
		zap.Int("not_attempted", len(rest)),
		zap.Error(err))
	return report, err
}

func (r *Runner) runTask(ctx context.Context, page browser.Page, task types.VideoTask) types.UploadOutcome {
	prepared, err := r.prepare(task)
	if err != nil {
		return types.Failure(task, 0, err)
	}
	return r.deps.Uploader.Upload(ctx, page, prepared)
}

// prepare checks a task before any browser work. It returns a copy with an
// absolute path and a normalized schedule.
func (r *Runner) prepare(task types.VideoTask) (types.VideoTask, error) {
	path, err := homedir.Expand(task.Path)
	if err != nil {
		return task, fmt.Errorf("%w: %w", types.ErrInvalidTask, err)
	}
	if path, err = filepath.Abs(path); err != nil {
		return task, fmt.Errorf("%w: %w", types.ErrInvalidTask, err)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return task, fmt.Errorf("%w: %s is not a video file", types.ErrInvalidTask, path)
	}
	if !r.upload.Supports(filepath.Ext(path)) {
		return task, fmt.Errorf("%w: %s has an unsupported extension (want one of %v)",
			types.ErrInvalidTask, path, r.upload.SupportedFileTypes)
	}
	task.Path = path

	if task.Schedule != nil {
		at := schedule.Normalize(*task.Schedule)
		if err := schedule.Validate(at, r.now()); err != nil {
			return task, fmt.Errorf("%w: %w", types.ErrInvalidTask, err)
		}
		task.Schedule = &at
	}
	return task, nil
}

func (r *Runner) release(session browser.Session, logger *zap.Logger) {
	if r.browserCfg.KeepOpen {
		logger.Info("Leaving browser open")
		return
	}
	if err := session.Close(); err != nil {
		logger.Warn("Failed to close browser", zap.Error(err))
	}
}
