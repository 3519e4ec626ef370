package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Launcher starts chromedp-backed sessions.
type Launcher struct {
	browser config.BrowserConfig
	proxy   config.ProxyConfig
	logger  *zap.Logger
}

// NewLauncher creates a launcher for the given browser and proxy settings.
func NewLauncher(browser config.BrowserConfig, proxy config.ProxyConfig, logger *zap.Logger) *Launcher {
	return &Launcher{browser: browser, proxy: proxy, logger: logger.Named("browser")}
}

// Launch starts a browser, or attaches to one when a remote URL is set, and
// opens a tab. The returned Handle owns both until Close.
func (l *Launcher) Launch(ctx context.Context) (*Handle, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.browser.RemoteURL != "" {
		l.logger.Info("Attaching to running browser", zap.String("url", l.browser.RemoteURL))
		if l.proxy.Enabled() {
			l.logger.Warn("Proxy flags cannot be applied to an attached browser")
		}
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, l.browser.RemoteURL)
	} else {
		b := l.browser
		if b.UserDataDir != "" {
			dir, err := homedir.Expand(b.UserDataDir)
			if err != nil {
				return nil, fmt.Errorf("invalid browser.user_data_dir: %w", err)
			}
			b.UserDataDir = dir
			l.logger.Info("Using browser profile", zap.String("dir", dir))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, Options(b, l.proxy)...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Sugar().Debugf),
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	h := &Handle{
		ctx:    tabCtx,
		logger: l.logger,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}
	h.listen(l.proxy)

	// The first Run starts the browser.
	startup := []chromedp.Action{network.Enable()}
	if l.proxy.Enabled() && l.proxy.HasAuth() {
		startup = append(startup, fetch.Enable().WithHandleAuthRequests(true))
	}
	if err := chromedp.Run(tabCtx, startup...); err != nil {
		h.cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	l.logger.Debug("Browser ready", zap.Bool("headless", l.browser.Headless))
	return h, nil
}

// Handle is a Session driving one chromedp tab.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

var _ Session = (*Handle)(nil)

// listen accepts native dialogs and answers proxy auth challenges.
func (h *Handle) listen(proxy config.ProxyConfig) {
	chromedp.ListenTarget(h.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			h.logger.Debug("Accepting dialog", zap.String("type", string(ev.Type)), zap.String("message", ev.Message))
			go func() {
				if err := chromedp.Run(h.ctx, page.HandleJavaScriptDialog(true)); err != nil {
					h.logger.Debug("Failed to accept dialog", zap.Error(err))
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(h.ctx, fetch.ContinueRequest(ev.RequestID))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				resp := &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.User,
					Password: proxy.Pass,
				}
				_ = chromedp.Run(h.ctx, fetch.ContinueWithAuth(ev.RequestID, resp))
			}()
		}
	})
}

// run executes actions on the tab, bounded by ctx as well as the tab.
func (h *Handle) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// eval runs an element script and decodes its result into res.
func (h *Handle) eval(ctx context.Context, el Element, body string, res any) error {
	js, err := script(el.Selector, el.Index, body)
	if err != nil {
		return err
	}
	return h.run(ctx, chromedp.Evaluate(js, res))
}

// Close releases the tab and the browser.
func (h *Handle) Close() error {
	h.cancel()
	return nil
}

func (h *Handle) Navigate(ctx context.Context, url string) error {
	return h.run(ctx, chromedp.Navigate(url))
}

func (h *Handle) Reload(ctx context.Context) error {
	return h.run(ctx, chromedp.Reload())
}

func (h *Handle) Location(ctx context.Context) (string, error) {
	var url string
	err := h.run(ctx, chromedp.Location(&url))
	return url, err
}

func (h *Handle) Evaluate(ctx context.Context, expression string, res any) error {
	return h.run(ctx, chromedp.Evaluate(expression, res))
}

func (h *Handle) Timezone(ctx context.Context) (*time.Location, error) {
	var name string
	if err := h.Evaluate(ctx, `Intl.DateTimeFormat().resolvedOptions().timeZone`, &name); err != nil {
		return nil, fmt.Errorf("failed to read browser timezone: %w", err)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown browser timezone %q: %w", name, err)
	}
	return loc, nil
}

func (h *Handle) Inspect(ctx context.Context, selector string) ([]ElementState, error) {
	var states []ElementState
	if err := h.eval(ctx, Element{Selector: selector}, inspectBody, &states); err != nil {
		return nil, err
	}
	return states, nil
}

func (h *Handle) Text(ctx context.Context, el Element) (string, error) {
	var text *string
	if err := h.eval(ctx, el, textBody, &text); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("%w: %s[%d]", ErrNotInteractable, el.Selector, el.Index)
	}
	return *text, nil
}

// do runs a body that returns false when the element is gone.
func (h *Handle) do(ctx context.Context, el Element, body string) error {
	var ok bool
	if err := h.eval(ctx, el, body, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s[%d]", ErrNotInteractable, el.Selector, el.Index)
	}
	return nil
}

func (h *Handle) ScrollIntoView(ctx context.Context, el Element) error {
	return h.do(ctx, el, scrollBody)
}

func (h *Handle) Reveal(ctx context.Context, el Element) error {
	return h.do(ctx, el, revealBody)
}

func (h *Handle) Focus(ctx context.Context, el Element) error {
	return h.do(ctx, el, focusBody)
}

func (h *Handle) SelectAll(ctx context.Context, el Element) error {
	return h.do(ctx, el, selectAllBody)
}

func (h *Handle) ScriptClick(ctx context.Context, el Element) error {
	return h.do(ctx, el, scriptClickBody)
}

func (h *Handle) Type(ctx context.Context, keys string) error {
	return h.run(ctx, chromedp.KeyEvent(keys))
}

func (h *Handle) SetFiles(ctx context.Context, el Element, paths ...string) error {
	js, err := script(el.Selector, el.Index, elementBody)
	if err != nil {
		return err
	}
	return h.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(js).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("locating file input: %s", exc.Text)
		}
		if obj == nil || obj.ObjectID == "" {
			return fmt.Errorf("%w: %s[%d]", ErrNotInteractable, el.Selector, el.Index)
		}
		return dom.SetFileInputFiles(paths).WithObjectID(obj.ObjectID).Do(ctx)
	}))
}

type point struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Hit bool    `json:"hit"`
}

func (h *Handle) locate(ctx context.Context, el Element) (point, error) {
	var raw json.RawMessage
	if err := h.eval(ctx, el, pointBody, &raw); err != nil {
		return point{}, err
	}
	if string(raw) == "null" || len(raw) == 0 {
		return point{}, fmt.Errorf("%w: %s[%d]", ErrNotInteractable, el.Selector, el.Index)
	}
	var p point
	if err := json.Unmarshal(raw, &p); err != nil {
		return point{}, err
	}
	return p, nil
}

func (h *Handle) Click(ctx context.Context, el Element) error {
	p, err := h.locate(ctx, el)
	if err != nil {
		return err
	}
	if !p.Hit {
		return fmt.Errorf("%w: %s[%d]", ErrClickIntercepted, el.Selector, el.Index)
	}
	return h.run(ctx, press(p.X, p.Y)...)
}

func (h *Handle) PointerClick(ctx context.Context, el Element) error {
	p, err := h.locate(ctx, el)
	if err != nil {
		return err
	}
	actions := append([]chromedp.Action{
		input.DispatchMouseEvent(input.MouseMoved, p.X, p.Y),
		chromedp.Sleep(50 * time.Millisecond),
	}, press(p.X, p.Y)...)
	return h.run(ctx, actions...)
}

func press(x, y float64) []chromedp.Action {
	return []chromedp.Action{
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1),
	}
}

// SetCookies injects cookies. Records must carry a domain.
func (h *Handle) SetCookies(ctx context.Context, cookies []types.CookieRecord) error {
	return h.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			if c.Domain == "" {
				return fmt.Errorf("cookie %s has no domain", c.Name)
			}
			if err := SetCookieParams(c).Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (h *Handle) Cookies(ctx context.Context) ([]types.CookieRecord, error) {
	var cookies []*network.Cookie
	err := h.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return FromNetworkCookies(cookies), nil
}

func (h *Handle) ClearCookies(ctx context.Context) error {
	return h.run(ctx, storage.ClearCookies())
}

// IsContextError reports whether err came from a cancelled or expired
// context rather than the page.
func IsContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
