package auth

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/types"
)

// SessionCookieName is the cookie synthesized from a bare session id.
const SessionCookieName = "sessionid"

// Store turns credentials into cookie records.
type Store struct {
	logger *zap.Logger
}

// NewStore creates a store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger.Named("session")}
}

// Resolve returns the cookies to inject for cred. A session id becomes a
// single cookie with no domain, path or expiry, for the caller to fill in.
// A username and password return ErrInteractiveLoginRequired.
func (s *Store) Resolve(cred *Credential) ([]types.CookieRecord, error) {
	switch cred.Kind() {
	case KindSessionID:
		return []types.CookieRecord{{Name: SessionCookieName, Value: cred.sessionID}}, nil
	case KindPassword:
		return nil, ErrInteractiveLoginRequired
	case KindCookies:
		return s.parse(cred)
	default:
		return nil, fmt.Errorf("%w: empty credential", types.ErrInsufficientAuthentication)
	}
}

func (s *Store) parse(cred *Credential) ([]types.CookieRecord, error) {
	text, source := cred.cookieText, "cookie text"
	if cred.cookieFile != "" {
		path, err := homedir.Expand(cred.cookieFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrInsufficientAuthentication, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading cookie file: %w", types.ErrInsufficientAuthentication, err)
		}
		text, source = string(data), path
	}

	res := ParseCookies(text)
	for _, line := range res.Skipped {
		s.logger.Warn("Skipping malformed cookie line", zap.String("source", source), zap.Int("line", line))
	}
	if len(res.Cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies in %s", types.ErrInsufficientAuthentication, source)
	}

	s.logger.Debug("Parsed cookies",
		zap.String("source", source),
		zap.Int("count", len(res.Cookies)),
		zap.Bool("json", res.JSON),
	)
	return res.Cookies, nil
}
