// Package upload drives the upload form for one video at a time.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/resolver"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Controller fills and submits the upload form.
type Controller struct {
	paths     config.PathsConfig
	upload    config.UploadConfig
	timeouts  config.TimeoutsConfig
	selectors config.SelectorsConfig
	logger    *zap.Logger
}

// New creates a new upload controller
func New(cfg *config.Config, logger *zap.Logger) *Controller {
	return &Controller{
		paths:     cfg.Paths,
		upload:    cfg.Upload,
		timeouts:  cfg.Timeouts,
		selectors: cfg.Selectors,
		logger:    logger.Named("upload"),
	}
}

// Upload publishes task on page. The whole form is retried from the top
// up to upload.retries extra times; when every attempt fails the outcome
// carries ErrFailedToUpload wrapping the last error.
func (c *Controller) Upload(ctx context.Context, page browser.Page, task types.VideoTask) types.UploadOutcome {
	attempts := 1 + max(c.upload.Retries, 0)
	logger := c.logger.With(zap.String("video", task.Path))

	var lastErr error
	attempt := 0
	for attempt < attempts {
		attempt++
		f := &form{
			c:      c,
			page:   page,
			r:      resolver.New(page, c.timeouts.PollInterval, c.logger),
			task:   task,
			logger: logger.With(zap.Int("attempt", attempt)),
		}
		err := f.run(ctx)
		if err == nil {
			logger.Info("Video uploaded", zap.Int("attempts", attempt))
			return types.Success(task, attempt)
		}
		lastErr = err
		logger.Warn("Upload attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("of", attempts),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}

	return types.Failure(task, attempt,
		fmt.Errorf("%w after %d attempt(s): %w", types.ErrFailedToUpload, attempt, lastErr))
}

// form is the state of one attempt.
type form struct {
	c      *Controller
	page   browser.Page
	r      *resolver.Resolver
	task   types.VideoTask
	logger *zap.Logger
}

type step struct {
	name string
	run  func(context.Context) error
}

func (f *form) steps() []step {
	steps := []step{
		{"navigate", f.navigateToUpload},
		{"consent banner", f.dismissConsentBanner},
		{"inject file", f.injectFile},
		{"split prompt", f.dismissSplitPrompt},
		{"caption", f.setCaption},
		{"interactivity", f.setInteractivity},
	}
	if f.task.Scheduled() {
		steps = append(steps, step{"schedule", f.setSchedule})
	}
	if f.task.ProductID != "" {
		steps = append(steps, step{"product link", f.addProductLink})
	}
	return append(steps, step{"post", f.submitPost})
}

func (f *form) run(ctx context.Context) error {
	for _, s := range f.steps() {
		f.logger.Debug("Running step", zap.String("step", s.name))
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// skip ends a best-effort step. Only cancellation is passed on.
func skip(ctx context.Context) error {
	return ctx.Err()
}

func (f *form) navigateToUpload(ctx context.Context) error {
	target := f.c.paths.Upload

	current, err := f.page.Location(ctx)
	if err == nil && samePage(current, target) {
		// A native "leave site?" dialog is accepted by the page
		err = f.page.Reload(ctx)
	} else {
		err = f.page.Navigate(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("%w: loading %s: %w", types.ErrNavigationTimeout, target, err)
	}

	if _, err := f.r.Find(ctx, f.c.selectors.Upload.FileInput, resolver.Options{
		Timeout:     f.c.timeouts.Explicit,
		AllowHidden: true,
	}); err != nil {
		return fmt.Errorf("%w: upload form: %w", types.ErrNavigationTimeout, err)
	}
	return nil
}

// samePage compares two URLs ignoring query and trailing slash.
func samePage(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host == ub.Host && strings.TrimSuffix(ua.Path, "/") == strings.TrimSuffix(ub.Path, "/")
}

func (f *form) dismissConsentBanner(ctx context.Context) error {
	return f.clickIfPresent(ctx, "consent banner", f.c.selectors.Upload.CookiesBanner)
}

func (f *form) dismissSplitPrompt(ctx context.Context) error {
	if f.c.upload.SkipSplitWindow {
		return nil
	}
	return f.clickIfPresent(ctx, "split prompt", f.c.selectors.Upload.SplitWindow)
}

// clickIfPresent clicks an optional control. Absence and click failures are
// logged only.
func (f *form) clickIfPresent(ctx context.Context, name string, candidates config.Candidates) error {
	el, err := f.r.Find(ctx, candidates, resolver.Options{Timeout: f.c.timeouts.Implicit, RequireEnabled: true})
	if err != nil {
		f.logger.Debug("Optional control not shown", zap.String("control", name))
		return skip(ctx)
	}
	if err := f.r.Click(ctx, el); err != nil {
		f.logger.Warn("Failed to dismiss", zap.String("control", name), zap.Error(err))
		return skip(ctx)
	}
	f.logger.Debug("Dismissed", zap.String("control", name))
	return nil
}

// injectFile hands the video to the file input and waits for the server to
// finish processing it. The work runs on a worker and the step gives up
// after timeouts.upload_processing even if the worker is still blocked in
// the browser. A worker left behind exits once its page call returns.
func (f *form) injectFile(ctx context.Context) error {
	path, err := filepath.Abs(f.task.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidTask, err)
	}

	wctx, cancel := context.WithTimeout(ctx, f.c.timeouts.UploadProcessing)
	defer cancel()

	g, gctx := errgroup.WithContext(wctx)
	g.Go(func() error {
		return f.sendFile(gctx, path)
	})
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err = <-done:
	case <-wctx.Done():
		err = wctx.Err()
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case wctx.Err() != nil && !errors.Is(err, types.ErrUploadProcessingTimeout):
		return fmt.Errorf("%w: %s: %w", types.ErrUploadProcessingTimeout, f.c.timeouts.UploadProcessing, err)
	default:
		return err
	}
}

func (f *form) sendFile(ctx context.Context, path string) error {
	input, err := f.r.Find(ctx, f.c.selectors.Upload.FileInput, resolver.Options{
		Timeout:     f.c.timeouts.Implicit,
		AllowHidden: true,
	})
	if err != nil {
		return fmt.Errorf("%w: file input: %w", types.ErrNavigationTimeout, err)
	}

	if !input.State.Visible {
		if err := f.page.Reveal(ctx, input); err != nil {
			f.logger.Debug("Could not reveal file input", zap.Error(err))
		}
	}
	if err := f.page.SetFiles(ctx, input, path); err != nil {
		return fmt.Errorf("%w: setting file: %w", types.ErrInteractionFailed, err)
	}
	f.logger.Info("Video file set, waiting for processing")

	started, err := f.r.Exists(ctx, f.c.selectors.Upload.ProcessingIndicator, resolver.Options{Timeout: f.c.timeouts.ProcessingStart})
	if err != nil {
		return err
	}
	if !started {
		// Small files can finish before the indicator is ever drawn
		f.logger.Debug("No processing indicator seen")
	}

	start := time.Now()
	if _, err := f.r.Find(ctx, f.c.selectors.Upload.ReadyIndicator, resolver.Options{
		Timeout:        f.c.timeouts.UploadProcessing,
		RequireEnabled: true,
	}); err != nil {
		return fmt.Errorf("%w: %w", types.ErrUploadProcessingTimeout, err)
	}
	f.logger.Info("Video processed", zap.Duration("took", time.Since(start)))
	return nil
}

func (f *form) setInteractivity(ctx context.Context) error {
	sel := f.c.selectors.Upload
	toggles := []struct {
		name       string
		candidates config.Candidates
		want       bool
	}{
		{"comment", sel.Comment, f.c.upload.Comment},
		{"stitch", sel.Stitch, f.c.upload.Stitch},
		{"duet", sel.Duet, f.c.upload.Duet},
	}

	for _, t := range toggles {
		el, err := f.r.Find(ctx, t.candidates, resolver.Options{Timeout: f.c.timeouts.Implicit, AllowHidden: true})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("Interactivity toggle not found", zap.String("toggle", t.name))
			continue
		}
		if el.State.Checked == t.want {
			continue
		}
		if err := f.r.Click(ctx, el); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("Failed to switch toggle", zap.String("toggle", t.name), zap.Error(err))
			continue
		}
		f.logger.Debug("Switched toggle", zap.String("toggle", t.name), zap.Bool("on", t.want))
	}
	return nil
}

// addProductLink attaches a shop product. Any failure leaves the upload
// going without the link.
func (f *form) addProductLink(ctx context.Context) error {
	if err := f.linkProduct(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("Failed to add product link, continuing without it",
			zap.String("product_id", f.task.ProductID),
			zap.Error(err))
	}
	return nil
}

func (f *form) linkProduct(ctx context.Context) error {
	sel := f.c.selectors.Upload
	wait := f.c.timeouts.Explicit

	if _, err := f.r.FindAndClick(ctx, sel.ProductLinkButton, wait); err != nil {
		return fmt.Errorf("add link button: %w", err)
	}

	// The first "Next" only shows for some accounts
	if _, err := f.r.FindAndClick(ctx, sel.ProductLinkNext, f.c.timeouts.Implicit); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	search, err := f.r.Find(ctx, sel.ProductSearchInput, resolver.Options{Timeout: wait})
	if err != nil {
		return fmt.Errorf("product search: %w", err)
	}
	if err := f.r.Click(ctx, search); err != nil {
		return err
	}
	if err := f.page.Focus(ctx, search); err != nil {
		return err
	}
	if err := f.page.Type(ctx, f.task.ProductID+kb.Enter); err != nil {
		return err
	}

	var row browser.Element
	ok, err := resolver.Poll(ctx, f.c.timeouts.PollInterval, wait, func(ctx context.Context) bool {
		for _, el := range f.r.Snapshot(ctx, sel.ProductResult, resolver.Options{}) {
			if strings.Contains(el.State.Text, f.task.ProductID) {
				row = el
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %s not in search results", f.task.ProductID)
	}
	if err := f.r.Click(ctx, row); err != nil {
		return err
	}

	if _, err := f.r.FindAndClick(ctx, sel.ProductLinkNext, wait); err != nil {
		return fmt.Errorf("next button: %w", err)
	}
	if _, err := f.r.FindAndClick(ctx, sel.ProductConfirm, wait); err != nil {
		return fmt.Errorf("add button: %w", err)
	}
	f.logger.Info("Product link added", zap.String("product_id", f.task.ProductID))
	return nil
}

func (f *form) submitPost(ctx context.Context) error {
	sel := f.c.selectors.Upload

	post, err := f.r.Find(ctx, sel.Post, resolver.Options{Timeout: f.c.timeouts.Implicit})
	if err != nil {
		return fmt.Errorf("%w: post button: %w", types.ErrInteractionFailed, err)
	}
	if err := f.page.ScrollIntoView(ctx, post); err != nil {
		f.logger.Debug("Could not scroll to post button", zap.Error(err))
	}

	if !post.State.Enabled {
		f.logger.Info("Post button disabled, waiting for processing to finish",
			zap.Duration("timeout", f.c.timeouts.PostEnabled))
		if err := resolver.Sleep(ctx, f.c.timeouts.PostEnabled); err != nil {
			return err
		}
		post, err = f.r.Find(ctx, sel.Post, resolver.Options{Timeout: f.c.timeouts.Implicit, RequireEnabled: true})
		if err != nil {
			return fmt.Errorf("%w: post button still disabled: %w", types.ErrUploadProcessingTimeout, err)
		}
	}

	if err := f.r.Click(ctx, post); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Debug("Post click failed, trying fallback button", zap.Error(err))
		if _, ferr := f.r.FindAndClick(ctx, sel.PostFallback, f.c.timeouts.Implicit); ferr != nil {
			return errors.Join(err, ferr)
		}
	}

	confirmed, err := f.confirmPosted(ctx)
	if err != nil {
		return err
	}
	if confirmed {
		return nil
	}
	if f.c.upload.SuccessPolicy == config.SuccessPolicyStrict {
		return fmt.Errorf("%w: nothing confirmed the post within %s", types.ErrFailedToUpload, f.c.timeouts.PostConfirmation)
	}
	f.logger.Warn("No post confirmation seen, presuming success",
		zap.Duration("waited", f.c.timeouts.SuccessIndicator+f.c.timeouts.PostConfirmation))
	return nil
}

// confirmPosted looks for the success indicator first, then for the page
// leaving the upload path or showing an after-post control.
func (f *form) confirmPosted(ctx context.Context) (bool, error) {
	sel := f.c.selectors.Upload

	ok, err := f.r.Exists(ctx, sel.PostConfirmation, resolver.Options{Timeout: f.c.timeouts.SuccessIndicator})
	if err != nil || ok {
		return ok, err
	}

	uploadPath := ""
	if u, err := url.Parse(f.c.paths.Upload); err == nil {
		uploadPath = u.Path
	}
	return resolver.Poll(ctx, f.c.timeouts.PollInterval, f.c.timeouts.PostConfirmation, func(ctx context.Context) bool {
		if loc, err := f.page.Location(ctx); err == nil && loc != "" && uploadPath != "" {
			if u, err := url.Parse(loc); err == nil && !strings.HasPrefix(u.Path, uploadPath) {
				f.logger.Debug("Left the upload page", zap.String("url", loc))
				return true
			}
		}
		if len(f.r.Snapshot(ctx, sel.PostConfirmation, resolver.Options{})) > 0 {
			return true
		}
		return len(f.r.Snapshot(ctx, sel.PostSuccessAffordance, resolver.Options{})) > 0
	})
}
