// Package curate ties search, manifest import and the working set together
// behind one object, the Curator, that an interactive shell drives.
//
//	c := curate.New(registry, curate.Options{})
//	defer c.Close()
//
//	c.Input("lod")          // debounced
//	c.Input("lodash")
//	snap := c.Search()      // loading until the search lands
//	c.AddSelected(ctx, "lodash", "")
//	c.Accept("lodash")
package curate

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/manifest"
	"github.com/matzehuels/curator/pkg/search"
	"github.com/matzehuels/curator/pkg/workingset"
)

// Options configures a Curator. Zero values select the package defaults.
type Options struct {
	Debounce          time.Duration
	SearchSize        int
	SearchConcurrency int
	ImportConcurrency int
	IncludeDev        bool
	Logger            *log.Logger
}

// ImportResult reports one manifest import.
type ImportResult struct {
	manifest.Result
	Added int // records actually inserted; the rest were already present
}

// Curator is one curation session: a search box and a working set.
// All methods are safe for concurrent use.
type Curator struct {
	registry catalog.Registry
	search   *search.Orchestrator
	input    *search.Debouncer
	importer *manifest.Importer
	table    *workingset.WorkingSet
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	mu     sync.RWMutex // read-held while a search is started
	closed bool
}

// New returns a Curator backed by reg with an empty working set.
func New(reg catalog.Registry, opts Options) *Curator {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Curator{
		registry: reg,
		search: search.NewOrchestrator(reg, search.Options{
			Size:        opts.SearchSize,
			Concurrency: opts.SearchConcurrency,
			Logger:      logger,
		}),
		importer: manifest.NewImporter(reg, manifest.Options{
			Concurrency: opts.ImportConcurrency,
			IncludeDev:  opts.IncludeDev,
			Logger:      logger,
		}),
		table:  workingset.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	c.input = search.NewDebouncer(opts.Debounce, func(q string) { c.commit(q) })
	return c
}

// Input feeds the current search box text. The query is committed once
// typing pauses; clearing the box commits immediately.
// Input is ignored after Close.
func (c *Curator) Input(text string) {
	if c.isClosed() {
		return
	}
	c.input.Input(text)
}

// CommitQuery searches for q now, dropping any pending keystrokes. After
// Close it starts nothing and returns the last snapshot.
func (c *Curator) CommitQuery(q string) search.Session {
	c.input.Stop()
	if s, ok := c.commit(q); ok {
		return s
	}
	return c.search.Current()
}

// commit starts a search unless the Curator is closed. Close takes the
// write lock before waiting, so every started search is waited for.
func (c *Curator) commit(q string) (search.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return search.Session{}, false
	}
	return c.search.Commit(c.ctx, q), true
}

func (c *Curator) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Search returns the latest search snapshot.
func (c *Curator) Search() search.Session {
	return c.search.Current()
}

// OnSearchUpdate registers fn to be called with every published search
// snapshot. fn must not call back into the Curator's search methods.
func (c *Curator) OnSearchUpdate(fn func(search.Session)) {
	c.search.OnUpdate(fn)
}

// AddSelected fetches name at version (latest if empty) and adds the
// record to the working set. The version may differ from the one shown in
// the search results. A failed fetch leaves the working set untouched and
// is returned as is. added is false when the name was already present.
func (c *Curator) AddSelected(ctx context.Context, name, version string) (rec catalog.Record, added bool, err error) {
	rec, err = c.registry.Fetch(ctx, name, version)
	if err != nil {
		c.logger.Debug("add failed", "package", name, "version", version, "error", err)
		return catalog.Record{}, false, err
	}
	added = c.table.Insert(rec)
	if !added {
		rec, _ = c.table.Get(rec.Name)
	}
	c.logger.Debug("add selected", "package", rec.Name, "version", rec.Version, "added", added)
	return rec, added, nil
}

// Import parses doc, fetches its dependencies and inserts them into the
// working set in manifest order. Parse errors leave the working set
// untouched.
func (c *Curator) Import(ctx context.Context, doc manifest.Document) (ImportResult, error) {
	res, err := c.importer.Import(ctx, doc)
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Result: res, Added: c.table.InsertBatch(res.Records)}, nil
}

// Accept marks name as accepted.
func (c *Curator) Accept(name string) error {
	return c.table.Accept(name)
}

// Reject marks name as rejected.
func (c *Curator) Reject(name string) error {
	return c.table.Reject(name)
}

// SetStatus sets the status of name from its string form.
func (c *Curator) SetStatus(name, status string) error {
	s, err := catalog.ParseStatus(status)
	if err != nil {
		return err
	}
	return c.table.SetStatus(name, s)
}

// Table returns the working set in insertion order.
func (c *Curator) Table() []catalog.Record {
	return c.table.Records()
}

// Counts returns the number of working set records per status.
func (c *Curator) Counts() map[catalog.Status]int {
	return c.table.Counts()
}

// Close drops pending keystrokes, cancels in-flight searches and waits for
// them to finish. The working set stays readable.
func (c *Curator) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.input.Stop()
		c.cancel()
		c.search.Wait()
	})
}
