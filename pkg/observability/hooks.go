// Package observability lets curator report what it is doing without
// depending on a metrics backend.
//
// Library packages emit events through the hooks returned by [Curation],
// [Cache] and [HTTP]. Until something is registered those are no-ops.
// `curator serve` installs the Prometheus implementation from the
// prometheus subpackage:
//
//	promhooks.New(reg).Register()
//
// Emitting an event from library code:
//
//	start := time.Now()
//	rec, err := fetcher.Fetch(ctx, name, version)
//	observability.Curation().OnFetchComplete(ctx, name, version, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Curation Hooks
// =============================================================================

// CurationHooks receives events from the search, import and working-set code.
type CurationHooks interface {
	// Metadata fetches
	OnFetchComplete(ctx context.Context, name, version string, duration time.Duration, err error)

	// Search events. generation is the orchestrator's batch counter.
	OnSearchCommitted(ctx context.Context, query string, generation uint64)
	OnSearchComplete(ctx context.Context, query string, generation uint64, candidates, records int, duration time.Duration, err error)
	OnSearchDiscarded(ctx context.Context, query string, generation uint64)

	// Manifest imports
	OnImportComplete(ctx context.Context, entries, records int, duration time.Duration, err error)

	// Working set changes
	OnInsert(ctx context.Context, added, dropped int)
	OnStatusChange(ctx context.Context, name, status string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives registry response cache events. keyType is the
// client's cache namespace, "npm" for registry responses.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives outgoing registry request events. OnError covers
// transport failures only; non-2xx responses arrive through OnResponse.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Hooks
// =============================================================================

// NoopCurationHooks discards curation events.
type NoopCurationHooks struct{}

func (NoopCurationHooks) OnFetchComplete(context.Context, string, string, time.Duration, error) {}
func (NoopCurationHooks) OnSearchCommitted(context.Context, string, uint64)                     {}
func (NoopCurationHooks) OnSearchComplete(context.Context, string, uint64, int, int, time.Duration, error) {
}
func (NoopCurationHooks) OnSearchDiscarded(context.Context, string, uint64)                {}
func (NoopCurationHooks) OnImportComplete(context.Context, int, int, time.Duration, error) {}
func (NoopCurationHooks) OnInsert(context.Context, int, int)                               {}
func (NoopCurationHooks) OnStatusChange(context.Context, string, string)                   {}

// NoopCacheHooks discards cache events.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks discards HTTP events.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Registration
// =============================================================================

// slot holds one registered hook implementation.
type slot[T any] struct {
	mu   sync.RWMutex
	h    T
	noop T
}

func (s *slot[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

func (s *slot[T]) set(h T) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

func (s *slot[T]) reset() { s.set(s.noop) }

func newSlot[T any](noop T) *slot[T] {
	return &slot[T]{h: noop, noop: noop}
}

var (
	curationSlot = newSlot[CurationHooks](NoopCurationHooks{})
	cacheSlot    = newSlot[CacheHooks](NoopCacheHooks{})
	httpSlot     = newSlot[HTTPHooks](NoopHTTPHooks{})
)

// SetCurationHooks installs h. A nil h is ignored.
func SetCurationHooks(h CurationHooks) {
	if h != nil {
		curationSlot.set(h)
	}
}

// SetCacheHooks installs h. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		cacheSlot.set(h)
	}
}

// SetHTTPHooks installs h. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		httpSlot.set(h)
	}
}

// Curation returns the installed curation hooks.
func Curation() CurationHooks { return curationSlot.get() }

// Cache returns the installed cache hooks.
func Cache() CacheHooks { return cacheSlot.get() }

// HTTP returns the installed HTTP hooks.
func HTTP() HTTPHooks { return httpSlot.get() }

// Reset reinstalls the no-op hooks.
func Reset() {
	curationSlot.reset()
	cacheSlot.reset()
	httpSlot.reset()
}
