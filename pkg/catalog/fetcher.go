package catalog

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/curator/pkg/errors"
	"github.com/matzehuels/curator/pkg/integrations/npm"
	"github.com/matzehuels/curator/pkg/observability"
)

// Fetcher retrieves the record of one package.
//
// An empty version asks for the registry's latest version; otherwise version
// is forwarded to the registry as given. The returned record always carries
// the concrete version and StatusPending.
//
// Every failure (unknown package, unknown version, network error, timeout,
// undecodable response) is reported as an error with code
// errors.ErrCodeFetchFailed. Fetch must be safe for concurrent use.
type Fetcher interface {
	Fetch(ctx context.Context, name, version string) (Record, error)
}

// Searcher returns candidate package names for a query, best match first.
type Searcher interface {
	Search(ctx context.Context, query string, size int) ([]string, error)
}

// Registry is a Fetcher that can also search.
type Registry interface {
	Fetcher
	Searcher
}

// RegistryFetcher adapts an npm client to Registry.
type RegistryFetcher struct {
	client  *npm.Client
	refresh bool
}

// NewRegistryFetcher wraps client. With refresh set, every fetch bypasses
// the response cache.
func NewRegistryFetcher(client *npm.Client, refresh bool) *RegistryFetcher {
	return &RegistryFetcher{client: client, refresh: refresh}
}

// Fetch implements Fetcher.
func (f *RegistryFetcher) Fetch(ctx context.Context, name, version string) (Record, error) {
	name = strings.TrimSpace(name)
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return Record{}, errors.Wrap(errors.ErrCodeFetchFailed, err, "fetch %q", name)
	}
	if err := errors.ValidateVersion(version); err != nil {
		return Record{}, errors.Wrap(errors.ErrCodeFetchFailed, err, "fetch %s@%s", name, version)
	}

	start := time.Now()
	info, err := f.client.FetchPackage(ctx, name, version, f.refresh)
	observability.Curation().OnFetchComplete(ctx, name, version, time.Since(start), err)
	if err != nil {
		if version == "" {
			return Record{}, errors.Wrap(errors.ErrCodeFetchFailed, err, "fetch %s", name)
		}
		return Record{}, errors.Wrap(errors.ErrCodeFetchFailed, err, "fetch %s@%s", name, version)
	}
	return NewRecord(info.Name, info.Version, info.Repository, info.Tarball, info.License, info.Author, info.Description), nil
}

// Search implements Searcher.
func (f *RegistryFetcher) Search(ctx context.Context, query string, size int) ([]string, error) {
	return f.client.Search(ctx, query, size)
}

// Request names one fetch in a batch.
type Request struct {
	Name    string
	Version string
}

// Outcome is the result of one request in a batch.
type Outcome struct {
	Request Request
	Record  Record
	Err     error
}

// FetchEach issues one fetch per request, at most limit at a time (limit <= 0
// means no bound), and returns one Outcome per request in request order.
func FetchEach(ctx context.Context, f Fetcher, reqs []Request, limit int) []Outcome {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]Outcome, len(reqs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			rec, err := f.Fetch(ctx, req.Name, req.Version)
			out[i] = Outcome{Request: req, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// FetchAll is FetchEach keeping only the successful records, still in
// request order. Failures are logged at debug level and dropped; FetchAll
// never fails. A nil logger discards output.
func FetchAll(ctx context.Context, f Fetcher, reqs []Request, limit int, logger *log.Logger) []Record {
	if len(reqs) == 0 {
		return nil
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	records := make([]Record, 0, len(reqs))
	for _, o := range FetchEach(ctx, f, reqs, limit) {
		if o.Err != nil {
			logger.Debug("fetch failed", "package", o.Request.Name, "version", o.Request.Version, "error", o.Err)
			continue
		}
		records = append(records, o.Record)
	}
	return records
}
