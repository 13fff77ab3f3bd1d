// Package tokencache persists the ReSim access token between CI runs. The
// token lives in a local file while a run is in flight; the durable copy is
// kept in a blobstore under a fresh key per save, and restores pick the
// newest key by prefix.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/resim-ai/launch/internal/blobstore"
	"github.com/resim-ai/launch/internal/logging"
)

const (
	// KeyPrefix starts every key this package saves.
	KeyPrefix = "resim-token-"
	// LegacyKeyPrefix matches keys written before the dash-separated scheme.
	LegacyKeyPrefix = "resim-token"
	// DefaultPath is the local token file, relative to the working directory.
	DefaultPath = ".resimtoken"
)

// TokenCache couples the local token file to a durable store.
type TokenCache struct {
	store  blobstore.Store
	path   string
	newKey func() string
	logger *slog.Logger
}

// Option configures a TokenCache.
type Option func(*TokenCache)

// WithPath overrides the local token file location.
func WithPath(path string) Option {
	return func(c *TokenCache) { c.path = path }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *TokenCache) { c.logger = logging.OrDiscard(l) }
}

// WithKeyFunc overrides key generation.
func WithKeyFunc(fn func() string) Option {
	return func(c *TokenCache) { c.newKey = fn }
}

// New creates a TokenCache over store.
func New(store blobstore.Store, opts ...Option) *TokenCache {
	c := &TokenCache{
		store:  store,
		path:   DefaultPath,
		newKey: func() string { return KeyPrefix + uuid.NewString() },
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the local token file path.
func (c *TokenCache) Path() string {
	return c.path
}

// Restore pulls the newest cached token into the local file. It reports
// whether an entry was found; a miss is not an error.
func (c *TokenCache) Restore(ctx context.Context) (bool, error) {
	key, err := c.store.Restore(ctx, []string{c.path}, KeyPrefix, LegacyKeyPrefix)
	if err != nil {
		return false, fmt.Errorf("restore token cache: %w", err)
	}
	if key == "" {
		c.logger.DebugContext(ctx, "token cache miss")
		return false, nil
	}
	c.logger.DebugContext(ctx, "token cache hit", "key", key)
	return true, nil
}

// Read returns the token in the local file, trimmed of surrounding space.
func (c *TokenCache) Read() (string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the local file with token.
func (c *TokenCache) Write(token string) error {
	if err := os.WriteFile(c.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Save stores the local file under a fresh key and returns that key. Older
// entries are left in place.
func (c *TokenCache) Save(ctx context.Context) (string, error) {
	key := c.newKey()
	if err := c.store.Save(ctx, []string{c.path}, key); err != nil {
		return "", fmt.Errorf("save token cache: %w", err)
	}
	c.logger.DebugContext(ctx, "token cache saved", "key", key)
	return key, nil
}

// Remove deletes the local file. A missing file is not an error.
func (c *TokenCache) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
