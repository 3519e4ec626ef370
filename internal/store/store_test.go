package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveAndLoadLatest(t *testing.T) {
	s := New(t.TempDir())
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := Save(s, Runs, summary{Name: "first", Count: 1})
	require.NoError(t, err)
	second, err := Save(s, Runs, summary{Name: "second", Count: 2})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, s.Dir(Runs), filepath.Dir(second))

	info, err := os.Stat(second)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, path, err := LoadLatest[summary](s, Runs)
	require.NoError(t, err)
	assert.Equal(t, second, path)
	assert.Equal(t, summary{Name: "second", Count: 2}, got)

	old, err := Load[summary](first)
	require.NoError(t, err)
	assert.Equal(t, "first", old.Name)
}

func TestLatestFile(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.LatestFile(Runs)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.MkdirAll(filepath.Join(s.Dir(Runs), "nested"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(Runs), "notes.txt"), nil, 0600))
	_, err = s.LatestFile(Runs)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Save(s, Logins, summary{Name: "x"})
	require.NoError(t, err)
	_, err = s.LatestFile(Runs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	_, err := Load[summary](path)
	assert.Error(t, err)
}
