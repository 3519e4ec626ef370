package auth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ibeckermayer/tokpost/internal/types"
)

// httpOnlyPrefix marks HttpOnly rows in curl-style jars. Such rows look
// like comments but carry a cookie.
const httpOnlyPrefix = "#HttpOnly_"

// ParseResult is the outcome of ParseCookies.
type ParseResult struct {
	Cookies []types.CookieRecord
	// Skipped lists the 1-based line numbers of malformed rows.
	Skipped []int
	// JSON is set when the records came from the JSON fallback.
	JSON bool
}

// ParseCookies reads a Netscape cookie jar: tab-separated domain,
// include-subdomains flag, path, secure flag, expiry, name and value.
// Comment and blank lines are ignored and malformed rows are skipped. When
// no row parses, text is tried as a JSON array of cookie objects.
func ParseCookies(text string) ParseResult {
	var res ParseResult
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		c, ok := parseNetscapeRow(line)
		if !ok {
			res.Skipped = append(res.Skipped, i+1)
			continue
		}
		c.HTTPOnly = httpOnly
		res.Cookies = append(res.Cookies, c)
	}

	if len(res.Cookies) == 0 {
		if cookies, err := parseJSONCookies(text); err == nil && len(cookies) > 0 {
			res.Cookies = cookies
			res.Skipped = nil
			res.JSON = true
		}
	}
	return res
}

func parseNetscapeRow(line string) (types.CookieRecord, bool) {
	fields := strings.SplitN(line, "\t", 7)
	if len(fields) < 7 {
		return types.CookieRecord{}, false
	}
	c := types.CookieRecord{
		Domain: fields[0],
		Path:   fields[2],
		Secure: fields[3] == "TRUE",
		Name:   fields[5],
		Value:  fields[6],
	}
	if c.Domain == "" || c.Name == "" {
		return types.CookieRecord{}, false
	}
	c.Expiry = parseExpiry(fields[4])
	return c, true
}

// parseExpiry returns nil for session cookies and unparsable values.
func parseExpiry(s string) *time.Time {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	t := time.Unix(int64(v), 0).UTC()
	return &t
}

// jsonCookie accepts the field spellings used by common browser exporters.
type jsonCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	Secure         bool     `json:"secure"`
	HTTPOnly       bool     `json:"httpOnly"`
	Expiry         *float64 `json:"expiry"`
	Expires        *float64 `json:"expires"`
	ExpirationDate *float64 `json:"expirationDate"`
}

func parseJSONCookies(text string) ([]types.CookieRecord, error) {
	var raw []jsonCookie
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}
	var out []types.CookieRecord
	for _, j := range raw {
		if j.Name == "" {
			continue
		}
		c := types.CookieRecord{
			Domain:   j.Domain,
			Path:     j.Path,
			Name:     j.Name,
			Value:    j.Value,
			Secure:   j.Secure,
			HTTPOnly: j.HTTPOnly,
		}
		for _, e := range []*float64{j.Expiry, j.Expires, j.ExpirationDate} {
			if e != nil {
				c.Expiry = parseExpiry(strconv.FormatFloat(*e, 'f', -1, 64))
				break
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// WriteNetscape writes cookies as a Netscape cookie jar.
func WriteNetscape(w io.Writer, cookies []types.CookieRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Netscape HTTP Cookie File")
	for _, c := range cookies {
		prefix := ""
		if c.HTTPOnly {
			prefix = httpOnlyPrefix
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		var expiry int64
		if c.Expiry != nil {
			expiry = c.Expiry.Unix()
		}
		fmt.Fprintf(bw, "%s%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			prefix, c.Domain, boolField(strings.HasPrefix(c.Domain, ".")), path,
			boolField(c.Secure), expiry, c.Name, c.Value)
	}
	return bw.Flush()
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
