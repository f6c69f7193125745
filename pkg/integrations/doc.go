// Package integrations provides the shared HTTP client for registry APIs.
//
// # Overview
//
// The [Client] type wraps net/http with the behaviour every registry client
// needs:
//
//   - JSON decoding of GET responses
//   - Response caching through any [cache.Cache] backend
//   - Optional retries for transient failures (5xx, 429, transport errors)
//   - Optional client-side rate limiting
//   - HTTP events reported to [observability.HTTP]
//
// Status codes map onto two sentinels: [ErrNotFound] for 404 and
// [ErrNetwork] for everything else that is not a 200.
//
// # Registries
//
// The npm registry client lives in the [npm] subpackage:
//
//	c := npm.NewClient(fileCache, 24*time.Hour)
//	pkg, err := c.FetchPackage(ctx, "express", "", false)
//
// [npm]: github.com/matzehuels/curator/pkg/integrations/npm
// [cache.Cache]: github.com/matzehuels/curator/pkg/cache.Cache
// [observability.HTTP]: github.com/matzehuels/curator/pkg/observability.HTTP
package integrations
