package browser

import (
	"context"
	"errors"
	"time"

	"github.com/ibeckermayer/tokpost/internal/types"
)

var (
	// ErrClickIntercepted means another element sits on top of the target.
	ErrClickIntercepted = errors.New("click intercepted")
	// ErrNotInteractable means the element is gone, hidden or has no box.
	ErrNotInteractable = errors.New("element not interactable")
)

// Recoverable reports whether a failed click may succeed with another
// click strategy.
func Recoverable(err error) bool {
	return errors.Is(err, ErrClickIntercepted) || errors.Is(err, ErrNotInteractable)
}

// ElementState is a snapshot of one element matched by a selector.
type ElementState struct {
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Checked bool   `json:"checked"`
	Text    string `json:"text"`
}

// Element addresses the Index-th match of Selector. Pages re-locate it on
// every call, so a stale Element fails instead of touching the wrong node.
type Element struct {
	Selector string
	Index    int
	State    ElementState
}

// Page is the browser capability the upload flow drives. One task at a time
// owns a Page.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Reload refreshes the current page, accepting any native dialog.
	Reload(ctx context.Context) error
	Location(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, expression string, res any) error
	// Timezone returns the browser's local time zone.
	Timezone(ctx context.Context) (*time.Location, error)

	// Inspect returns the state of every element selector matches, in
	// document order.
	Inspect(ctx context.Context, selector string) ([]ElementState, error)
	Text(ctx context.Context, el Element) (string, error)
	ScrollIntoView(ctx context.Context, el Element) error
	// Reveal clears styles that hide el so it can be interacted with.
	Reveal(ctx context.Context, el Element) error
	SetFiles(ctx context.Context, el Element, paths ...string) error
	Focus(ctx context.Context, el Element) error
	// SelectAll focuses el and selects all of its content, across lines.
	SelectAll(ctx context.Context, el Element) error
	// Type sends keys to the focused element. Keys may contain kb runes.
	Type(ctx context.Context, keys string) error

	// Click is a native click at the element's center. It returns
	// ErrClickIntercepted when another element would receive it.
	Click(ctx context.Context, el Element) error
	ScriptClick(ctx context.Context, el Element) error
	// PointerClick moves the pointer onto el before clicking.
	PointerClick(ctx context.Context, el Element) error

	SetCookies(ctx context.Context, cookies []types.CookieRecord) error
	Cookies(ctx context.Context) ([]types.CookieRecord, error)
	ClearCookies(ctx context.Context) error
}

// Session is a Page backed by a browser process the caller must release.
type Session interface {
	Page
	Close() error
}
