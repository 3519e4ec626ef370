// Package resolver finds page elements from ordered selector candidates and
// clicks them with fallback strategies.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// ErrNotFound means no candidate matched before the deadline.
var ErrNotFound = errors.New("element not found")

// DefaultInterval is used when no poll interval is configured.
const DefaultInterval = 500 * time.Millisecond

// Options tune one lookup.
type Options struct {
	Timeout time.Duration
	// RequireEnabled skips disabled matches, for click targets.
	RequireEnabled bool
	// AllowHidden accepts matches without a layout box, e.g. file inputs.
	AllowHidden bool
}

// Resolver looks up elements on one page.
type Resolver struct {
	page     browser.Page
	interval time.Duration
	logger   *zap.Logger
}

// New creates a resolver polling page every interval.
func New(page browser.Page, interval time.Duration, logger *zap.Logger) *Resolver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Resolver{page: page, interval: interval, logger: logger.Named("resolver")}
}

func (o Options) accepts(s browser.ElementState) bool {
	return (s.Visible || o.AllowHidden) && (s.Enabled || !o.RequireEnabled)
}

// Find returns the first acceptable match. Each poll round walks the
// candidates in order, so an earlier candidate wins whenever it matches in
// the same round as a later one. Matches from different candidates are
// never combined.
func (r *Resolver) Find(ctx context.Context, candidates config.Candidates, opts Options) (browser.Element, error) {
	var found browser.Element
	ok, err := Poll(ctx, r.interval, opts.Timeout, func(ctx context.Context) bool {
		for _, sel := range candidates {
			states, err := r.page.Inspect(ctx, sel)
			if err != nil {
				r.logger.Debug("Candidate lookup failed", zap.String("selector", sel), zap.Error(err))
				continue
			}
			for i, s := range states {
				if opts.accepts(s) {
					found = browser.Element{Selector: sel, Index: i, State: s}
					return true
				}
			}
		}
		return false
	})
	if err != nil {
		return browser.Element{}, err
	}
	if !ok {
		return browser.Element{}, fmt.Errorf("%w: none of %d candidates matched within %s", ErrNotFound, len(candidates), opts.Timeout)
	}
	return found, nil
}

// Exists reports whether any candidate matches within the timeout.
func (r *Resolver) Exists(ctx context.Context, candidates config.Candidates, opts Options) (bool, error) {
	_, err := r.Find(ctx, candidates, opts)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// FindAll returns every acceptable match of the first candidate that has
// any, in document order.
func (r *Resolver) FindAll(ctx context.Context, candidates config.Candidates, opts Options) ([]browser.Element, error) {
	var found []browser.Element
	ok, err := Poll(ctx, r.interval, opts.Timeout, func(ctx context.Context) bool {
		found = r.Snapshot(ctx, candidates, opts)
		return len(found) > 0
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: none of %d candidates matched within %s", ErrNotFound, len(candidates), opts.Timeout)
	}
	return found, nil
}

// Snapshot is a single FindAll round without waiting. It returns nil when
// nothing matches.
func (r *Resolver) Snapshot(ctx context.Context, candidates config.Candidates, opts Options) []browser.Element {
	for _, sel := range candidates {
		states, err := r.page.Inspect(ctx, sel)
		if err != nil {
			continue
		}
		var found []browser.Element
		for i, s := range states {
			if opts.accepts(s) {
				found = append(found, browser.Element{Selector: sel, Index: i, State: s})
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// Click tries a native click, then a script click, then a pointer move and
// click. A fallback runs only after a recoverable failure, and each
// strategy runs at most once.
func (r *Resolver) Click(ctx context.Context, el browser.Element) error {
	err := r.page.Click(ctx, el)
	if err == nil {
		return nil
	}
	if !browser.Recoverable(err) {
		return fmt.Errorf("%w: %s[%d]: %w", types.ErrInteractionFailed, el.Selector, el.Index, err)
	}
	errs := []error{err}

	r.logger.Debug("Direct click failed, trying script click", zap.String("selector", el.Selector), zap.Error(err))
	if err = r.page.ScriptClick(ctx, el); err == nil {
		return nil
	}
	errs = append(errs, err)

	r.logger.Debug("Script click failed, trying pointer click", zap.String("selector", el.Selector), zap.Error(err))
	if err = r.page.PointerClick(ctx, el); err == nil {
		return nil
	}
	errs = append(errs, err)

	return fmt.Errorf("%w: %s[%d]: %w", types.ErrInteractionFailed, el.Selector, el.Index, errors.Join(errs...))
}

// FindAndClick resolves an enabled element and clicks it.
func (r *Resolver) FindAndClick(ctx context.Context, candidates config.Candidates, timeout time.Duration) (browser.Element, error) {
	el, err := r.Find(ctx, candidates, Options{Timeout: timeout, RequireEnabled: true})
	if err != nil {
		return browser.Element{}, err
	}
	return el, r.Click(ctx, el)
}
