// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Action kinds recorded by Page.
const (
	ActNavigate     = "navigate"
	ActReload       = "reload"
	ActClick        = "click"
	ActScriptClick  = "script_click"
	ActPointerClick = "pointer_click"
	ActType         = "type"
	ActFocus        = "focus"
	ActSelectAll    = "select_all"
	ActScroll       = "scroll"
	ActReveal       = "reveal"
	ActSetFiles     = "set_files"
	ActSetCookies   = "set_cookies"
	ActClearCookies = "clear_cookies"
)

// Action is one recorded call.
type Action struct {
	Kind     string
	Selector string
	Index    int
	Value    string
	Err      error
}

// Page is a scriptable browser.Page. Elements are keyed by the exact
// selector string. Hooks run without the lock held, so they may call any
// Page method.
type Page struct {
	mu       sync.Mutex
	url      string
	elements map[string][]browser.ElementState
	cookies  []types.CookieRecord
	actions  []Action
	tz       *time.Location
	closed   bool

	// OnNavigate runs after the URL changes.
	OnNavigate func(p *Page, url string)
	// OnClick decides the result of a click of the given kind. Returning
	// nil lets the default handling run.
	OnClick func(p *Page, kind string, el browser.Element) error
	// OnType runs after keys are recorded. A returned error fails the call.
	OnType func(p *Page, keys string) error
	// OnSetFiles runs after files are set.
	OnSetFiles func(p *Page, paths []string)
	// OnInspect runs before every lookup.
	OnInspect func(p *Page, selector string)
	// EvaluateFunc answers Evaluate calls.
	EvaluateFunc func(expression string, res any) error
}

var _ browser.Session = (*Page)(nil)

// New returns an empty page in UTC.
func New() *Page {
	return &Page{
		elements: make(map[string][]browser.ElementState),
		tz:       time.UTC,
	}
}

// Visible is a visible, enabled element with text.
func Visible(text string) browser.ElementState {
	return browser.ElementState{Visible: true, Enabled: true, Text: text}
}

// Set replaces the matches for selector.
func (p *Page) Set(selector string, states ...browser.ElementState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append([]browser.ElementState(nil), states...)
}

// Remove drops every match for selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// Update mutates one match in place.
func (p *Page) Update(selector string, index int, fn func(*browser.ElementState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if states, ok := p.elements[selector]; ok && index < len(states) {
		fn(&states[index])
	}
}

// State returns the current state of one match.
func (p *Page) State(selector string, index int) (browser.ElementState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	states, ok := p.elements[selector]
	if !ok || index >= len(states) {
		return browser.ElementState{}, false
	}
	return states[index], true
}

// SetURL changes the location without recording a navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// SetTimezone sets what Timezone reports.
func (p *Page) SetTimezone(loc *time.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tz = loc
}

// Actions returns a copy of every recorded call.
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Action(nil), p.actions...)
}

// ActionsOf returns the recorded calls of the given kinds.
func (p *Page) ActionsOf(kinds ...string) []Action {
	var out []Action
	for _, a := range p.Actions() {
		for _, k := range kinds {
			if a.Kind == k {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Clicks returns every click attempt of any kind.
func (p *Page) Clicks() []Action {
	return p.ActionsOf(ActClick, ActScriptClick, ActPointerClick)
}

// Typed returns all keys sent, concatenated.
func (p *Page) Typed() string {
	var b strings.Builder
	for _, a := range p.ActionsOf(ActType) {
		b.WriteString(a.Value)
	}
	return b.String()
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(a Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, a)
}

func (p *Page) lookup(el browser.Element) (browser.ElementState, error) {
	state, ok := p.State(el.Selector, el.Index)
	if !ok {
		return browser.ElementState{}, fmt.Errorf("%w: %s[%d]", browser.ErrNotInteractable, el.Selector, el.Index)
	}
	return state, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SetURL(url)
	p.record(Action{Kind: ActNavigate, Value: url})
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url, _ := p.Location(ctx)
	p.record(Action{Kind: ActReload, Value: url})
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Evaluate(_ context.Context, expression string, res any) error {
	if p.EvaluateFunc == nil {
		return fmt.Errorf("browsertest: no EvaluateFunc for %q", expression)
	}
	return p.EvaluateFunc(expression, res)
}

func (p *Page) Timezone(context.Context) (*time.Location, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tz, nil
}

func (p *Page) Inspect(ctx context.Context, selector string) ([]browser.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.OnInspect != nil {
		p.OnInspect(p, selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.ElementState(nil), p.elements[selector]...), nil
}

func (p *Page) Text(_ context.Context, el browser.Element) (string, error) {
	state, err := p.lookup(el)
	return state.Text, err
}

func (p *Page) simple(kind string, el browser.Element) error {
	_, err := p.lookup(el)
	p.record(Action{Kind: kind, Selector: el.Selector, Index: el.Index, Err: err})
	return err
}

func (p *Page) ScrollIntoView(_ context.Context, el browser.Element) error {
	return p.simple(ActScroll, el)
}

func (p *Page) Reveal(_ context.Context, el browser.Element) error {
	if err := p.simple(ActReveal, el); err != nil {
		return err
	}
	p.Update(el.Selector, el.Index, func(s *browser.ElementState) { s.Visible = true })
	return nil
}

func (p *Page) Focus(_ context.Context, el browser.Element) error {
	return p.simple(ActFocus, el)
}

func (p *Page) SelectAll(_ context.Context, el browser.Element) error {
	return p.simple(ActSelectAll, el)
}

func (p *Page) SetFiles(_ context.Context, el browser.Element, paths ...string) error {
	_, err := p.lookup(el)
	p.record(Action{Kind: ActSetFiles, Selector: el.Selector, Index: el.Index, Value: strings.Join(paths, ","), Err: err})
	if err != nil {
		return err
	}
	if p.OnSetFiles != nil {
		p.OnSetFiles(p, paths)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	if p.OnType != nil {
		err = p.OnType(p, keys)
	}
	p.record(Action{Kind: ActType, Value: keys, Err: err})
	return err
}

// click toggles Checked on success so switches behave like switches.
func (p *Page) click(ctx context.Context, kind string, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := p.lookup(el)
	if err == nil && p.OnClick != nil {
		err = p.OnClick(p, kind, el)
	}
	if err == nil && (!state.Visible && kind != ActScriptClick) {
		err = fmt.Errorf("%w: %s[%d] hidden", browser.ErrNotInteractable, el.Selector, el.Index)
	}
	p.record(Action{Kind: kind, Selector: el.Selector, Index: el.Index, Err: err})
	if err != nil {
		return err
	}
	p.Update(el.Selector, el.Index, func(s *browser.ElementState) { s.Checked = !s.Checked })
	return nil
}

func (p *Page) Click(ctx context.Context, el browser.Element) error {
	return p.click(ctx, ActClick, el)
}

func (p *Page) ScriptClick(ctx context.Context, el browser.Element) error {
	return p.click(ctx, ActScriptClick, el)
}

func (p *Page) PointerClick(ctx context.Context, el browser.Element) error {
	return p.click(ctx, ActPointerClick, el)
}

func (p *Page) SetCookies(_ context.Context, cookies []types.CookieRecord) error {
	p.mu.Lock()
	p.cookies = append(p.cookies, cookies...)
	p.mu.Unlock()
	p.record(Action{Kind: ActSetCookies, Value: fmt.Sprint(len(cookies))})
	return nil
}

func (p *Page) Cookies(context.Context) ([]types.CookieRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.CookieRecord(nil), p.cookies...), nil
}

func (p *Page) ClearCookies(context.Context) error {
	p.mu.Lock()
	p.cookies = nil
	p.mu.Unlock()
	p.record(Action{Kind: ActClearCookies})
	return nil
}

// AddCookie adds a cookie as if the site had set it.
func (p *Page) AddCookie(c types.CookieRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, c)
}
