package auth

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/tokpost/internal/types"
)

// ErrInteractiveLoginRequired means the credential holds a username and
// password, so cookies only exist after a login in the browser.
var ErrInteractiveLoginRequired = errors.New("interactive login required")

// CredentialKind is the populated variant of a Credential.
type CredentialKind int

const (
	KindSessionID CredentialKind = iota + 1
	KindCookies
	KindPassword
)

func (k CredentialKind) String() string {
	switch k {
	case KindSessionID:
		return "session id"
	case KindCookies:
		return "cookies"
	case KindPassword:
		return "username and password"
	default:
		return "none"
	}
}

// CredentialOptions are the raw inputs a Credential is built from.
type CredentialOptions struct {
	SessionID  string
	CookieFile string
	CookieText string
	Username   string
	Password   string
}

// Credential is a validated login source with exactly one variant set.
type Credential struct {
	kind       CredentialKind
	sessionID  string
	cookieFile string
	cookieText string
	username   string
	password   string
}

// NewCredential validates opts. Exactly one of a session id, a cookie
// source, or a username with its password must be given.
func NewCredential(opts CredentialOptions) (*Credential, error) {
	if (opts.Username == "") != (opts.Password == "") {
		return nil, fmt.Errorf("%w: username and password must be given together", types.ErrInsufficientAuthentication)
	}
	if opts.CookieFile != "" && opts.CookieText != "" {
		return nil, fmt.Errorf("%w: give either a cookie file or cookie text, not both", types.ErrInsufficientAuthentication)
	}

	var kinds []CredentialKind
	if opts.SessionID != "" {
		kinds = append(kinds, KindSessionID)
	}
	if opts.CookieFile != "" || opts.CookieText != "" {
		kinds = append(kinds, KindCookies)
	}
	if opts.Username != "" {
		kinds = append(kinds, KindPassword)
	}

	switch len(kinds) {
	case 0:
		return nil, fmt.Errorf("%w: give a session id, a cookie file, or a username and password", types.ErrInsufficientAuthentication)
	case 1:
	default:
		return nil, fmt.Errorf("%w: give only one of %v", types.ErrInsufficientAuthentication, kinds)
	}

	return &Credential{
		kind:       kinds[0],
		sessionID:  opts.SessionID,
		cookieFile: opts.CookieFile,
		cookieText: opts.CookieText,
		username:   opts.Username,
		password:   opts.Password,
	}, nil
}

func (c *Credential) Kind() CredentialKind { return c.kind }
func (c *Credential) Username() string     { return c.username }
func (c *Credential) Password() string     { return c.password }
