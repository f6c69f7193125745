package search

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/curator/pkg/catalog"
	"github.com/matzehuels/curator/pkg/integrations/npm"
	"github.com/matzehuels/curator/pkg/observability"
)

// Result is the outcome of one search.
type Result struct {
	Candidates []string         `json:"candidates"`
	Records    []catalog.Record `json:"records"`
}

// Session is a snapshot of the search shown to the user. Sessions are
// immutable; each commit and each completion publishes a new value.
type Session struct {
	ID         uuid.UUID        `json:"id"`
	Query      string           `json:"query"`
	Generation uint64           `json:"generation"`
	Candidates []string         `json:"candidates"`
	Records    []catalog.Record `json:"records"`
	Loading    bool             `json:"loading"`
	Err        error            `json:"-"`
}

// Select returns the displayed record called name.
func (s Session) Select(name string) (catalog.Record, bool) {
	for _, r := range s.Records {
		if r.Name == name {
			return r, true
		}
	}
	return catalog.Record{}, false
}

// Options configures an Orchestrator.
type Options struct {
	Size        int         // candidates per search, capped at npm.MaxSearchSize
	Concurrency int         // parallel metadata fetches per search, 0 = one per candidate
	Logger      *log.Logger // nil discards
}

// Orchestrator runs committed queries against a registry and keeps the
// newest result. Every commit gets a generation number; a search that
// finishes after a newer commit is discarded instead of published.
type Orchestrator struct {
	registry catalog.Registry
	size     int
	limit    int
	logger   *log.Logger

	gen atomic.Uint64
	wg  sync.WaitGroup

	notifyMu  sync.Mutex // serializes publish and listener calls
	mu        sync.RWMutex
	current   Session
	listeners []func(Session)
}

// NewOrchestrator returns an Orchestrator searching reg.
func NewOrchestrator(reg catalog.Registry, opts Options) *Orchestrator {
	size := opts.Size
	if size <= 0 || size > npm.MaxSearchSize {
		size = npm.MaxSearchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Orchestrator{
		registry: reg,
		size:     size,
		limit:    opts.Concurrency,
		logger:   logger,
		current:  Session{ID: uuid.New()},
	}
}

// Search runs query synchronously: one registry search, then one metadata
// fetch per candidate. Failed fetches are dropped; records keep candidate
// order. An empty query returns an empty result without any network call.
// If the search endpoint fails, the result is empty and the error returned.
func (o *Orchestrator) Search(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, nil
	}

	names, err := o.registry.Search(ctx, query, o.size)
	if err != nil {
		o.logger.Warn("search failed", "query", query, "error", err)
		return Result{}, err
	}
	if len(names) > o.size {
		names = names[:o.size]
	}

	reqs := make([]catalog.Request, len(names))
	for i, n := range names {
		reqs[i] = catalog.Request{Name: n}
	}
	records := catalog.FetchAll(ctx, o.registry, reqs, o.limit, o.logger)
	o.logger.Debug("search complete", "query", query, "candidates", len(names), "records", len(records))
	return Result{Candidates: names, Records: records}, nil
}

// Commit starts a search for query and returns the session it published.
// Non-empty queries publish a loading session immediately and the result
// once the search completes, unless a newer commit happened in between.
// Empty queries publish an empty, idle session and touch no network.
//
// The search runs under ctx; cancel it to abandon in-flight requests.
func (o *Orchestrator) Commit(ctx context.Context, query string) Session {
	gen := o.gen.Add(1)
	observability.Curation().OnSearchCommitted(ctx, query, gen)

	s := Session{
		ID:         uuid.New(),
		Query:      query,
		Generation: gen,
		Loading:    strings.TrimSpace(query) != "",
	}
	o.publish(s)
	if !s.Loading {
		return s
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		start := time.Now()
		res, err := o.Search(ctx, query)
		observability.Curation().OnSearchComplete(ctx, query, gen, len(res.Candidates), len(res.Records), time.Since(start), err)

		done := s
		done.Candidates = res.Candidates
		done.Records = res.Records
		done.Loading = false
		done.Err = err
		if !o.publish(done) {
			o.logger.Debug("discarding stale search", "query", query, "generation", gen)
			observability.Curation().OnSearchDiscarded(ctx, query, gen)
		}
	}()
	return s
}

// publish installs s if it belongs to the newest commit, then notifies
// listeners in publication order. It reports whether s was installed.
func (o *Orchestrator) publish(s Session) bool {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if s.Generation != o.gen.Load() {
		o.mu.Unlock()
		return false
	}
	o.current = s
	listeners := o.listeners
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	return true
}

// Current returns a copy of the latest published session.
func (o *Orchestrator) Current() Session {
	o.mu.RLock()
	s := o.current
	o.mu.RUnlock()
	s.Candidates = slices.Clone(s.Candidates)
	s.Records = slices.Clone(s.Records)
	return s
}

// Select returns the currently displayed record called name.
func (o *Orchestrator) Select(name string) (catalog.Record, bool) {
	return o.Current().Select(name)
}

// OnUpdate registers fn to be called with every published session. fn runs
// on the publishing goroutine and must not call Commit.
func (o *Orchestrator) OnUpdate(fn func(Session)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Wait blocks until every started search has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
