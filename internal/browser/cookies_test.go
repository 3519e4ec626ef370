package browser

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/types"
)

func TestSetCookieParams(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	p := SetCookieParams(types.CookieRecord{
		Domain: ".tiktok.com", Path: "/", Name: "sessionid", Value: "abc",
		Secure: true, HTTPOnly: true, Expiry: &exp,
	})

	assert.Equal(t, "sessionid", p.Name)
	assert.Equal(t, "abc", p.Value)
	assert.Equal(t, ".tiktok.com", p.Domain)
	assert.True(t, p.Secure)
	assert.True(t, p.HTTPOnly)
	require.NotNil(t, p.Expires)
	assert.True(t, exp.Equal(p.Expires.Time()))

	noExp := SetCookieParams(types.CookieRecord{Domain: "x", Name: "a", Value: "b"})
	assert.Nil(t, noExp.Expires)
}

func TestFromNetworkCookies(t *testing.T) {
	got := FromNetworkCookies([]*network.Cookie{
		{Name: "sessionid", Value: "v", Domain: ".tiktok.com", Path: "/", Expires: 1900000000, Secure: true},
		{Name: "tt_csrf", Value: "c", Domain: "www.tiktok.com", Path: "/", Session: true, Expires: -1},
		nil,
	})

	require.Len(t, got, 2)
	assert.Equal(t, "sessionid", got[0].Name)
	require.NotNil(t, got[0].Expiry)
	assert.Equal(t, int64(1900000000), got[0].Expiry.Unix())
	assert.True(t, got[0].Secure)
	assert.Nil(t, got[1].Expiry)
}

func TestOptions(t *testing.T) {
	base := len(Options(config.BrowserConfig{}, config.ProxyConfig{}))

	headless := Options(config.BrowserConfig{Headless: true}, config.ProxyConfig{})
	assert.Len(t, headless, base+1)

	profile := Options(config.BrowserConfig{UserDataDir: "/tmp/profile"}, config.ProxyConfig{})
	assert.Len(t, profile, base+1)

	proxied := Options(config.BrowserConfig{}, config.ProxyConfig{Host: "127.0.0.1", Port: "3128"})
	assert.Len(t, proxied, base+1)

	// Options must not alias chromedp's defaults.
	assert.Greater(t, base, len(chromedp.DefaultExecAllocatorOptions))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(ErrClickIntercepted))
	assert.True(t, Recoverable(ErrNotInteractable))
	assert.False(t, Recoverable(assert.AnError))
}
