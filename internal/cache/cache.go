// Package cache memoizes computed layouts.
//
// Callers own a Cache value and pass it where it is needed; there is no
// package-level instance. Implementations are safe for concurrent use.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for caching operations.
var (
	// ErrCacheMiss is returned by GetJSON when the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Cache stores opaque byte payloads under string keys with a TTL.
type Cache interface {
	// Get returns the data and true on a hit, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Prefix namespaces every key written to a shared backend.
	Prefix string
}

// Open builds the cache described by opts. An empty backend means memory.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendNone:
		return NewNull(), nil
	case BackendRedis:
		return NewRedis(ctx, opts)
	default:
		return nil, fmt.Errorf("cache: %w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Key derives a cache key as prefix:sha256(json(parts)).
func Key(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// GetJSON loads and decodes a JSON value, returning ErrCacheMiss on a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v as JSON and stores it.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
