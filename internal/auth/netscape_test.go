package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/tokpost/internal/types"
)

const jar = "# Netscape HTTP Cookie File\n" +
	"\n" +
	".tiktok.com\tTRUE\t/\tTRUE\t1900000000\tsessionid\tabc123\n" +
	"www.tiktok.com\tFALSE\t/foo\tFALSE\t0\ttt_csrf\txyz\n" +
	"#HttpOnly_.tiktok.com\tTRUE\t/\ttrue\t1900000000\tsid_tt\tq\n" +
	"broken line without tabs\n" +
	"a\tb\tc\n" +
	".tiktok.com\tTRUE\t/\tTRUE\tnever\tmsToken\tm\tn\n"

func TestParseCookiesNetscape(t *testing.T) {
	res := ParseCookies(jar)

	require.Len(t, res.Cookies, 4)
	assert.False(t, res.JSON)
	assert.Equal(t, []int{6, 7}, res.Skipped)

	s := res.Cookies[0]
	assert.Equal(t, ".tiktok.com", s.Domain)
	assert.Equal(t, "/", s.Path)
	assert.Equal(t, "sessionid", s.Name)
	assert.Equal(t, "abc123", s.Value)
	assert.True(t, s.Secure)
	require.NotNil(t, s.Expiry)
	assert.Equal(t, int64(1900000000), s.Expiry.Unix())

	c := res.Cookies[1]
	assert.Equal(t, "/foo", c.Path)
	assert.False(t, c.Secure)
	assert.Nil(t, c.Expiry)

	// Only the exact literal TRUE marks a cookie secure.
	h := res.Cookies[2]
	assert.True(t, h.HTTPOnly)
	assert.False(t, h.Secure)

	// Values keep embedded tabs and bad expiries mean no expiry.
	m := res.Cookies[3]
	assert.Equal(t, "m\tn", m.Value)
	assert.Nil(t, m.Expiry)
}

func TestParseCookiesJSONFallback(t *testing.T) {
	text := `[
		{"name": "sessionid", "value": "abc", "domain": ".tiktok.com", "path": "/", "secure": true, "httpOnly": true, "expirationDate": 1900000000.5},
		{"name": "tt_csrf", "value": "x", "domain": ".tiktok.com", "expires": 1900000001},
		{"value": "nameless"}
	]`
	res := ParseCookies(text)

	assert.True(t, res.JSON)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Cookies, 2)
	assert.Equal(t, "sessionid", res.Cookies[0].Name)
	assert.True(t, res.Cookies[0].HTTPOnly)
	require.NotNil(t, res.Cookies[0].Expiry)
	assert.Equal(t, int64(1900000000), res.Cookies[0].Expiry.Unix())
	assert.Equal(t, int64(1900000001), res.Cookies[1].Expiry.Unix())
}

func TestParseCookiesNothing(t *testing.T) {
	for _, text := range []string{"", "# only a comment\n\n", "not json", "[]", "a\tb"} {
		res := ParseCookies(text)
		assert.Empty(t, res.Cookies, text)
	}
}

func TestWriteNetscapeRoundTrip(t *testing.T) {
	exp := time.Unix(1900000000, 0).UTC()
	in := []types.CookieRecord{
		{Domain: ".tiktok.com", Path: "/", Name: "sessionid", Value: "abc", Secure: true, HTTPOnly: true, Expiry: &exp},
		{Domain: "www.tiktok.com", Name: "tt_csrf", Value: "x"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteNetscape(&buf, in))
	assert.Contains(t, buf.String(), "#HttpOnly_.tiktok.com\tTRUE\t/\tTRUE\t1900000000\tsessionid\tabc\n")
	assert.Contains(t, buf.String(), "www.tiktok.com\tFALSE\t/\tFALSE\t0\ttt_csrf\tx\n")

	out := ParseCookies(buf.String()).Cookies
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, "/", out[1].Path)
	assert.Nil(t, out[1].Expiry)
}
