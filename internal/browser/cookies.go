package browser

import (
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/tokpost/internal/types"
)

// SetCookieParams builds the CDP call that injects c.
func SetCookieParams(c types.CookieRecord) *network.SetCookieParams {
	p := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	if c.Expiry != nil {
		exp := cdp.TimeSinceEpoch(*c.Expiry)
		p = p.WithExpires(&exp)
	}
	return p
}

// FromNetworkCookies converts browser cookies into records. Session cookies
// get no expiry.
func FromNetworkCookies(cookies []*network.Cookie) []types.CookieRecord {
	out := make([]types.CookieRecord, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		r := types.CookieRecord{
			Domain:   c.Domain,
			Path:     c.Path,
			Name:     c.Name,
			Value:    c.Value,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			exp := time.Unix(int64(c.Expires), 0).UTC()
			r.Expiry = &exp
		}
		out = append(out, r)
	}
	return out
}
