package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lydakis/blenderbridge/internal/paths"
)

type entry struct {
	Result  json.RawMessage `json:"result"`
	Created time.Time       `json:"created"`
	Expires time.Time       `json:"expires"`
}

// Get looks up a cached command result and its age. Returns ok=false when
// the entry is missing, corrupt, or expired; corrupt and expired files are
// removed on the way out.
func Get(command string, args map[string]any) (json.RawMessage, time.Duration, bool) {
	path := entryPath(command, args)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return nil, 0, false
	}
	if time.Now().After(e.Expires) {
		_ = os.Remove(path)
		return nil, 0, false
	}

	created := e.Created
	if created.IsZero() {
		if st, err := os.Stat(path); err == nil {
			created = st.ModTime()
		}
	}
	age := time.Since(created)
	if age < 0 {
		age = 0
	}

	return e.Result, age, true
}

// Put stores a command result until ttl elapses.
func Put(command string, args map[string]any, result json.RawMessage, ttl time.Duration) error {
	dir := cacheDir()
	if err := paths.EnsureDir(dir); err != nil {
		return err
	}

	now := time.Now()
	e := entry{
		Result:  result,
		Created: now,
		Expires: now.Add(ttl),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return os.WriteFile(entryPath(command, args), data, 0600)
}

// entryPath derives a stable file name for a command and its arguments.
// encoding/json writes map keys in sorted order, so equal argument maps
// hash identically.
func entryPath(command string, args map[string]any) string {
	blob, _ := json.Marshal(args)
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s", command, blob)
	key := hex.EncodeToString(h.Sum(nil))[:32]
	return filepath.Join(cacheDir(), key+".json")
}

func cacheDir() string {
	return filepath.Join(paths.CacheDir(), "responses")
}
