package manifest

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/observability"
)

// DefaultConcurrency bounds the number of registry fetches one import runs
// at a time.
const DefaultConcurrency = 8

// Options configures an Importer.
type Options struct {
	Concurrency int         // parallel fetches, DefaultConcurrency if <= 0
	IncludeDev  bool        // also import devDependencies
	Logger      *log.Logger // nil discards
}

// Result is the outcome of one import. Records holds the fetched records in
// entry order; Failed holds the entries whose fetch failed.
type Result struct {
	Entries []catalog.Entry
	Records []catalog.Record
	Failed  []catalog.Entry
}

// Importer turns a package.json document into package records.
type Importer struct {
	fetcher catalog.Fetcher
	opts    Options
}

// NewImporter returns an Importer fetching through f.
func NewImporter(f catalog.Fetcher, opts Options) *Importer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Importer{fetcher: f, opts: opts}
}

// Parse extracts the entries of doc. See the package-level Parse.
func (im *Importer) Parse(doc Document) ([]catalog.Entry, error) {
	return Parse(doc, im.opts.IncludeDev)
}

// Import parses doc and fetches every entry exactly once, at the version
// given by its caret-stripped spec. A parse error fails the import before
// any fetch; fetch failures are absorbed and reported in Result.Failed.
func (im *Importer) Import(ctx context.Context, doc Document) (Result, error) {
	start := time.Now()
	hooks := observability.Curation()

	entries, err := im.Parse(doc)
	if err != nil {
		im.opts.Logger.Debug("manifest rejected", "file", doc.Name, "error", err)
		hooks.OnImportComplete(ctx, 0, 0, time.Since(start), err)
		return Result{}, err
	}

	reqs := make([]catalog.Request, len(entries))
	for i, e := range entries {
		reqs[i] = catalog.Request{Name: e.Name, Version: e.VersionHint()}
	}

	res := Result{Entries: entries, Records: make([]catalog.Record, 0, len(entries))}
	for i, o := range catalog.FetchEach(ctx, im.fetcher, reqs, im.opts.Concurrency) {
		if o.Err != nil {
			im.opts.Logger.Debug("fetch failed", "package", o.Request.Name, "version", o.Request.Version, "error", o.Err)
			res.Failed = append(res.Failed, entries[i])
			continue
		}
		res.Records = append(res.Records, o.Record)
	}

	im.opts.Logger.Info("imported manifest",
		"file", doc.Name,
		"entries", len(entries),
		"records", len(res.Records),
		"failed", len(res.Failed),
		"duration", time.Since(start))
	hooks.OnImportComplete(ctx, len(entries), len(res.Records), time.Since(start), nil)
	return res, nil
}
