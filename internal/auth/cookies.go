package auth

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ibeckermayer/tokpost/internal/config"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// CookieJar persists session cookies as a Netscape cookie file.
type CookieJar struct {
	path string
}

// NewCookieJar creates a jar at the given path
func NewCookieJar(path string) *CookieJar {
	return &CookieJar{path: path}
}

// DefaultCookieJarPath returns the default path for the cookie jar
func DefaultCookieJarPath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.txt"), nil
}

// JarFileName returns the cookie file name for an account. Characters that
// are not safe in a file name become underscores, so the result never
// leaves the directory it is joined to.
func JarFileName(username string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, username)
	if strings.Trim(name, ".") == "" {
		name = strings.Repeat("_", len(name)+1)
	}
	if r := []rune(name); len(r) > 250 {
		name = string(r[:250])
	}
	return name + ".txt"
}

// Path returns the jar's file path.
func (j *CookieJar) Path() string {
	return j.path
}

// Save persists cookies to disk, readable by the owner only.
func (j *CookieJar) Save(cookies []types.CookieRecord) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := WriteNetscape(&buf, cookies); err != nil {
		return err
	}
	return os.WriteFile(j.path, buf.Bytes(), 0600)
}

// Load retrieves cookies from disk
func (j *CookieJar) Load() ([]types.CookieRecord, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil, err
	}
	return ParseCookies(string(data)).Cookies, nil
}

// IsValid checks that the jar holds an unexpired cookie named name.
func (j *CookieJar) IsValid(name string, now time.Time) bool {
	cookies, err := j.Load()
	if err != nil {
		return false
	}
	return HasCookie(cookies, name, now)
}

// Clear removes the jar
func (j *CookieJar) Clear() error {
	return os.Remove(j.path)
}

// HasCookie reports whether cookies contain an unexpired, non-empty cookie
// named name.
func HasCookie(cookies []types.CookieRecord, name string, now time.Time) bool {
	for _, c := range cookies {
		if c.Name == name && c.Value != "" && !c.Expired(now) {
			return true
		}
	}
	return false
}
