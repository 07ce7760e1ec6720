// Package cache provides byte-level caching for expensive pipeline stages:
// computed layouts and rendered artifacts. Backends share a small Cache
// interface; key construction is centralized in Keyer so layout and artifact
// entries invalidate correctly when their inputs change.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/kintree/pkg/observability"
)

// Default TTLs per entry kind. Layouts are cheap to recompute, artifacts
// less so; neither needs to live forever.
const (
	TTLLayout   = 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is the interface all cache backends implement.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with an optional TTL (0 means no expiration).
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// keyType extracts the namespace prefix from a key ("layout:abc" -> "layout")
// for observability labels.
func keyType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "raw"
}

func observeGet(key string, hit bool) {
	if hit {
		observability.Cache().OnCacheHit(keyType(key))
	} else {
		observability.Cache().OnCacheMiss(keyType(key))
	}
}

func observeSet(key string, size int) {
	observability.Cache().OnCacheSet(keyType(key), size)
}
