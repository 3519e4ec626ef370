package auth

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/browser"
	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/resolver"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Manager establishes an authenticated session on a page.
type Manager struct {
	store     *Store
	paths     config.PathsConfig
	auth      config.AuthConfig
	timeouts  config.TimeoutsConfig
	selectors config.LoginSelectors
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager creates a new auth manager
func NewManager(cfg *config.Config, store *Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		paths:     cfg.Paths,
		auth:      cfg.Auth,
		timeouts:  cfg.Timeouts,
		selectors: cfg.Selectors.Login,
		logger:    logger.Named("auth"),
		now:       time.Now,
	}
}

// Authenticate injects cred's cookies into page, or logs in with its
// username and password. It returns the page's cookies afterwards.
func (m *Manager) Authenticate(ctx context.Context, page browser.Page, cred *Credential) ([]types.CookieRecord, error) {
	cookies, err := m.store.Resolve(cred)
	switch {
	case errors.Is(err, ErrInteractiveLoginRequired):
		return m.Login(ctx, page, cred.Username(), cred.Password())
	case err != nil:
		return nil, err
	}
	return m.inject(ctx, page, cookies)
}

func (m *Manager) inject(ctx context.Context, page browser.Page, cookies []types.CookieRecord) ([]types.CookieRecord, error) {
	filled := make([]types.CookieRecord, len(cookies))
	for i, c := range cookies {
		if c.Domain == "" {
			c.Domain = m.auth.CookieDomain
		}
		if c.Path == "" {
			c.Path = "/"
		}
		filled[i] = c
	}

	if err := page.SetCookies(ctx, filled); err != nil {
		return nil, fmt.Errorf("failed to inject cookies: %w", err)
	}
	if err := page.Navigate(ctx, m.paths.Main); err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", types.ErrNavigationTimeout, m.paths.Main, err)
	}

	live, err := page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	if !HasCookie(live, m.auth.CookieOfInterest, m.now()) {
		m.logger.Warn("Injected cookies do not include the session cookie",
			zap.String("cookie", m.auth.CookieOfInterest))
	}
	m.logger.Info("Session cookies injected", zap.Int("count", len(filled)))
	return live, nil
}

// Login fills the login form and waits for the session cookie, giving a
// human the chance to solve any challenge in the window.
func (m *Manager) Login(ctx context.Context, page browser.Page, username, password string) ([]types.CookieRecord, error) {
	if err := page.Navigate(ctx, m.paths.Main); err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", types.ErrNavigationTimeout, m.paths.Main, err)
	}
	existing, err := page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	if HasCookie(existing, m.auth.CookieOfInterest, m.now()) {
		m.logger.Debug("Clearing stale session before login")
		if err := page.ClearCookies(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear cookies: %w", err)
		}
	}

	if err := page.Navigate(ctx, m.paths.Login); err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", types.ErrNavigationTimeout, m.paths.Login, err)
	}

	r := resolver.New(page, m.timeouts.PollInterval, m.logger)
	if err := m.fill(ctx, r, page, m.selectors.UsernameField, username); err != nil {
		return nil, fmt.Errorf("username field: %w", err)
	}
	if err := m.fill(ctx, r, page, m.selectors.PasswordField, password); err != nil {
		return nil, fmt.Errorf("password field: %w", err)
	}
	if _, err := r.FindAndClick(ctx, m.selectors.LoginButton, m.timeouts.Implicit); err != nil {
		return nil, fmt.Errorf("login button: %w", err)
	}

	m.logger.Info("Login submitted, complete any challenge in the browser window",
		zap.String("username", username),
		zap.Duration("timeout", m.timeouts.Login))

	return m.waitForLogin(ctx, page)
}

func (m *Manager) fill(ctx context.Context, r *resolver.Resolver, page browser.Page, candidates config.Candidates, value string) error {
	el, err := r.Find(ctx, candidates, resolver.Options{Timeout: m.timeouts.Explicit})
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrNavigationTimeout, err)
	}
	if err := r.Click(ctx, el); err != nil {
		return err
	}
	if err := page.Focus(ctx, el); err != nil {
		return err
	}
	return page.Type(ctx, value)
}

// waitForLogin polls until the session cookie shows up.
func (m *Manager) waitForLogin(ctx context.Context, page browser.Page) ([]types.CookieRecord, error) {
	var cookies []types.CookieRecord
	ok, err := resolver.Poll(ctx, m.timeouts.PollInterval, m.timeouts.Login, func(ctx context.Context) bool {
		live, err := page.Cookies(ctx)
		if err != nil {
			return false
		}
		if HasCookie(live, m.auth.CookieOfInterest, m.now()) {
			cookies = live
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s cookie did not appear within %s",
			types.ErrInsufficientAuthentication, m.auth.CookieOfInterest, m.timeouts.Login)
	}
	m.logger.Info("Login successful")
	return cookies, nil
}

// Account is one username and password pair for batch login.
type Account struct {
	Username string
	Password string
}

// AccountResult is the outcome of logging in one account.
type AccountResult struct {
	Account Account
	Cookies []types.CookieRecord
	Err     error
}

// LoginAccounts logs in each account in turn on the same page, clearing
// cookies in between. A failed account does not stop the others.
func (m *Manager) LoginAccounts(ctx context.Context, page browser.Page, accounts []Account) []AccountResult {
	results := make([]AccountResult, 0, len(accounts))
	for _, acc := range accounts {
		cookies, err := m.Login(ctx, page, acc.Username, acc.Password)
		if err != nil {
			m.logger.Error("Login failed", zap.String("username", acc.Username), zap.Error(err))
		}
		results = append(results, AccountResult{Account: acc, Cookies: cookies, Err: err})

		if ctx.Err() != nil {
			break
		}
		if err := page.ClearCookies(ctx); err != nil {
			m.logger.Warn("Failed to clear cookies between accounts", zap.Error(err))
		}
	}
	return results
}

// ReadAccounts parses "username,password" rows. With header set, the first
// row is skipped.
func ReadAccounts(r io.Reader, header bool) ([]Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	if header && len(rows) > 0 {
		rows = rows[1:]
	}

	var accounts []Account
	for i, row := range rows {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < 2 || row[0] == "" || row[1] == "" {
			return nil, fmt.Errorf("accounts row %d: want username,password", i+1)
		}
		accounts = append(accounts, Account{Username: strings.TrimSpace(row[0]), Password: row[1]})
	}
	return accounts, nil
}
