// Package cache provides byte-level caching of registry responses.
//
// Backends implement [Cache]:
//   - [FileCache]: one JSON file per entry, used by the CLI and TUI
//   - [RedisCache]: shared cache for `curator serve` deployments
//   - [MongoCache]: document-store cache with a TTL index
//   - [NullCache]: never stores anything (--no-cache, tests)
//
// Keys are built by a [Keyer] so that every backend sees the same layout.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache stores opaque byte payloads under string keys with a per-entry TTL.
// A TTL of 0 means the entry does not expire.
type Cache interface {
	// Get returns the payload for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// HTTPKey generates a key for a raw registry response.
	HTTPKey(namespace, key string) string

	// PackageKey generates a key for one package at one version.
	// An empty version stands for the registry's latest tag.
	PackageKey(registry, name, version string) string
}

// DefaultKeyer is the standard Keyer.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// PackageKey hashes the package coordinates so scoped names and odd version
// strings never leak into backend key syntax.
func (DefaultKeyer) PackageKey(registry, name, version string) string {
	if version == "" {
		version = "latest"
	}
	return hashKey("pkg", registry, name, version)
}

// NullCache never stores anything; every Get is a miss.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }

// Hash returns the hex SHA-256 of data (64 characters).
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey returns "prefix:" followed by the SHA-256 of the JSON-encoded parts.
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return prefix + ":" + Hash(data)
}
