// Package blobstore provides the durable key-value cache that survives
// between CI runs. Entries hold the contents of a fixed set of files and are
// addressed by key; restores match keys by prefix and pick the newest entry.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrEntryExists is returned by Save when the key is already taken.
var ErrEntryExists = errors.New("cache entry already exists")

// Store is a durable cache. Implementations must be safe for sequential use
// from a single goroutine; nothing here coordinates concurrent writers.
type Store interface {
	// Save captures the files at paths under key.
	Save(ctx context.Context, paths []string, key string) error
	// Restore writes back the files of the newest entry whose key starts with
	// primaryKey, or failing that with each of restoreKeys in order. It
	// returns the matched key, or "" on a miss. Empty prefixes are skipped.
	Restore(ctx context.Context, paths []string, primaryKey string, restoreKeys ...string) (string, error)
}

// Entry is one cached snapshot.
type Entry struct {
	Key       string            `json:"key"`
	Version   string            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Files     map[string][]byte `json:"files"`
}

// Version identifies a set of paths. Entries only restore into the same set
// of paths they were saved from.
func Version(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])[:16]
}

func prefixes(primaryKey string, restoreKeys []string) []string {
	out := make([]string, 0, len(restoreKeys)+1)
	for _, k := range append([]string{primaryKey}, restoreKeys...) {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func readFiles(paths []string) (map[string][]byte, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to save")
	}
	files := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files[p] = data
	}
	return files, nil
}

func writeFiles(files map[string][]byte) error {
	for p, data := range files {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}

// Nop is a Store that never hits and drops every save.
type Nop struct{}

func (Nop) Save(context.Context, []string, string) error { return nil }

func (Nop) Restore(context.Context, []string, string, ...string) (string, error) {
	return "", nil
}

var _ Store = Nop{}
