package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"

	"github.com/ibeckermayer/tokpost/internal/schedule"
	"github.com/ibeckermayer/tokpost/internal/types"
)

// Accepted manifest keys, first one preferred.
var (
	pathKeys     = []string{"path", "filename", "video", "file"}
	captionKeys  = []string{"description", "caption", "desc", "title"}
	scheduleKeys = []string{"schedule"}
	productKeys  = []string{"product_id", "product"}
)

// ErrEmptyManifest means a manifest lists no videos.
var ErrEmptyManifest = errors.New("no videos to upload")

// LoadManifest reads video entries from a JSON or TOML file. JSON may be a
// list of objects or {"videos": [...]}; TOML uses [[videos]] tables.
// Relative video paths are resolved against the manifest's directory.
// Schedules without a zone are read in loc.
func LoadManifest(path string, loc *time.Location) ([]types.VideoTask, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []map[string]any
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var doc struct {
			Videos []map[string]any `toml:"videos"`
		}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
		entries = doc.Videos
	} else {
		if entries, err = decodeJSON(data); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
	}

	tasks, err := ParseEntries(entries, loc)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range tasks {
		if p := tasks[i].Path; !filepath.IsAbs(p) && !strings.HasPrefix(p, "~") {
			tasks[i].Path = filepath.Join(dir, p)
		}
	}
	return tasks, nil
}

// decodeJSON keeps numbers as json.Number so numeric product ids print as
// written.
func decodeJSON(data []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := unmarshalJSON(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Videos []map[string]any `json:"videos"`
	}
	if err := unmarshalJSON(data, &doc); err != nil {
		return nil, err
	}
	return doc.Videos, nil
}

func unmarshalJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// ParseEntries turns loosely keyed video entries into tasks. Keys are
// matched case-insensitively and may use any accepted alias.
func ParseEntries(entries []map[string]any, loc *time.Location) ([]types.VideoTask, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyManifest
	}

	tasks := make([]types.VideoTask, 0, len(entries))
	for i, raw := range entries {
		entry := make(map[string]any, len(raw))
		for k, v := range raw {
			entry[strings.ToLower(strings.TrimSpace(k))] = v
		}

		path, _ := lookup(entry, pathKeys).(string)
		if path == "" {
			return nil, fmt.Errorf("video %d: no path (use one of %v)", i+1, pathKeys)
		}
		task := types.VideoTask{Path: path}
		task.Caption, _ = lookup(entry, captionKeys).(string)
		task.ProductID = fmt.Sprint(valueOr(lookup(entry, productKeys), ""))

		switch v := lookup(entry, scheduleKeys).(type) {
		case nil:
		case time.Time:
			task.Schedule = &v
		case string:
			if v == "" {
				break
			}
			at, err := schedule.Parse(v, loc)
			if err != nil {
				return nil, fmt.Errorf("video %d: %w", i+1, err)
			}
			task.Schedule = &at
		default:
			return nil, fmt.Errorf("video %d: schedule must be a string or datetime, got %T", i+1, v)
		}

		tasks = append(tasks, task)
	}
	return tasks, nil
}

func lookup(entry map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := entry[k]; ok {
			return v
		}
	}
	return nil
}

func valueOr(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}
