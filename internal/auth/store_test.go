package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/tokpost/internal/types"
)

func TestNewCredential(t *testing.T) {
	tests := []struct {
		name    string
		opts    CredentialOptions
		want    CredentialKind
		wantErr bool
	}{
		{"none", CredentialOptions{}, 0, true},
		{"session id", CredentialOptions{SessionID: "abc"}, KindSessionID, false},
		{"cookie file", CredentialOptions{CookieFile: "c.txt"}, KindCookies, false},
		{"cookie text", CredentialOptions{CookieText: "x"}, KindCookies, false},
		{"username and password", CredentialOptions{Username: "u", Password: "p"}, KindPassword, false},
		{"username only", CredentialOptions{Username: "u"}, 0, true},
		{"password only", CredentialOptions{Password: "p"}, 0, true},
		{"session id and cookies", CredentialOptions{SessionID: "a", CookieFile: "c.txt"}, 0, true},
		{"cookies and password", CredentialOptions{CookieText: "x", Username: "u", Password: "p"}, 0, true},
		{"file and text", CredentialOptions{CookieFile: "c.txt", CookieText: "x"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewCredential(tt.opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInsufficientAuthentication)
				assert.Nil(t, cred)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred.Kind())
		})
	}
}

func TestStoreResolve(t *testing.T) {
	s := NewStore(zap.NewNop())

	t.Run("session id", func(t *testing.T) {
		cred, err := NewCredential(CredentialOptions{SessionID: "abc"})
		require.NoError(t, err)
		cookies, err := s.Resolve(cred)
		require.NoError(t, err)
		assert.Equal(t, []types.CookieRecord{{Name: "sessionid", Value: "abc"}}, cookies)
	})

	t.Run("password defers to login", func(t *testing.T) {
		cred, err := NewCredential(CredentialOptions{Username: "u", Password: "p"})
		require.NoError(t, err)
		_, err = s.Resolve(cred)
		assert.ErrorIs(t, err, ErrInteractiveLoginRequired)
	})

	t.Run("cookie file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cookies.txt")
		require.NoError(t, os.WriteFile(path, []byte(jar), 0600))
		cred, err := NewCredential(CredentialOptions{CookieFile: path})
		require.NoError(t, err)
		cookies, err := s.Resolve(cred)
		require.NoError(t, err)
		assert.Len(t, cookies, 4)
	})

	t.Run("missing cookie file", func(t *testing.T) {
		cred, err := NewCredential(CredentialOptions{CookieFile: filepath.Join(t.TempDir(), "nope.txt")})
		require.NoError(t, err)
		_, err = s.Resolve(cred)
		assert.ErrorIs(t, err, types.ErrInsufficientAuthentication)
	})

	t.Run("cookie text with no cookies", func(t *testing.T) {
		cred, err := NewCredential(CredentialOptions{CookieText: "# nothing here\n"})
		require.NoError(t, err)
		_, err = s.Resolve(cred)
		assert.ErrorIs(t, err, types.ErrInsufficientAuthentication)
	})
}

func TestCookieJar(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	j := NewCookieJar(filepath.Join(t.TempDir(), "nested", "alice.txt"))
	assert.False(t, j.IsValid("sessionid", now))

	require.NoError(t, j.Save([]types.CookieRecord{
		{Domain: ".tiktok.com", Path: "/", Name: "sessionid", Value: "abc", Expiry: &future},
	}))
	info, err := os.Stat(j.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.True(t, j.IsValid("sessionid", now))
	assert.False(t, j.IsValid("other", now))

	require.NoError(t, j.Save([]types.CookieRecord{
		{Domain: ".tiktok.com", Path: "/", Name: "sessionid", Value: "abc", Expiry: &past},
	}))
	assert.False(t, j.IsValid("sessionid", now))

	require.NoError(t, j.Clear())
	_, err = j.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJarFileName(t *testing.T) {
	tests := []struct {
		username, want string
	}{
		{"alice", "alice.txt"},
		{"a/b", "a_b.txt"},
		{"../x", ".._x.txt"},
		{`..\x`, ".._x.txt"},
		{"..", "___.txt"},
		{"", "_.txt"},
		{"bob:1?", "bob_1_.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			got := JarFileName(tt.username)
			assert.Equal(t, tt.want, got)
			dir := t.TempDir()
			assert.Equal(t, dir, filepath.Dir(filepath.Join(dir, got)))
		})
	}
	assert.Len(t, []rune(JarFileName(strings.Repeat("é", 300))), 254)
}
