// Package prometheus implements the observability hooks with Prometheus
// collectors. `curator serve` registers it and exposes /metrics.
package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/curator/pkg/observability"
)

// Hooks holds all collectors. It implements CurationHooks, CacheHooks and
// HTTPHooks.
type Hooks struct {
	// Registry metrics
	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram

	// Search metrics
	SearchesCommitted prometheus.Counter
	SearchesDiscarded prometheus.Counter
	SearchDuration    prometheus.Histogram
	SearchResults     prometheus.Histogram

	// Import metrics
	Imports        *prometheus.CounterVec
	ImportedTotal  prometheus.Counter
	ImportDuration prometheus.Histogram

	// Working set metrics
	Inserted      *prometheus.CounterVec
	StatusChanges *prometheus.CounterVec

	// Cache and HTTP metrics
	CacheEvents  *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Hooks {
	f := promauto.With(reg)
	return &Hooks{
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_fetches_total",
			Help: "Package metadata fetches by outcome",
		}, []string{"outcome"}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_fetch_duration_seconds",
			Help:    "Package metadata fetch duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		SearchesCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "curator_searches_committed_total",
			Help: "Committed search queries",
		}),
		SearchesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "curator_searches_discarded_total",
			Help: "Search batches superseded before they completed",
		}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_search_duration_seconds",
			Help:    "Search batch duration including metadata fan-out",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_search_records",
			Help:    "Records returned per search batch",
			Buckets: []float64{0, 1, 2, 5, 8, 10},
		}),

		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_imports_total",
			Help: "Manifest imports by outcome",
		}, []string{"outcome"}),
		ImportedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "curator_imported_records_total",
			Help: "Records fetched by manifest imports",
		}),
		ImportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "curator_import_duration_seconds",
			Help:    "Manifest import duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),

		Inserted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_working_set_inserts_total",
			Help: "Records offered to the working set by result",
		}, []string{"result"}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_status_changes_total",
			Help: "Working set status transitions",
		}, []string{"status"}),

		CacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_cache_events_total",
			Help: "Cache hits, misses and writes",
		}, []string{"event", "key_type"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "curator_registry_requests_total",
			Help: "Registry HTTP requests by host and status",
		}, []string{"host", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curator_registry_request_duration_seconds",
			Help:    "Registry HTTP request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"host"}),
	}
}

// Register installs h as the global curation, cache and HTTP hooks.
func (h *Hooks) Register() {
	observability.SetCurationHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (h *Hooks) OnFetchComplete(_ context.Context, _, _ string, d time.Duration, err error) {
	h.Fetches.WithLabelValues(outcome(err)).Inc()
	h.FetchDuration.Observe(d.Seconds())
}

func (h *Hooks) OnSearchCommitted(context.Context, string, uint64) {
	h.SearchesCommitted.Inc()
}

func (h *Hooks) OnSearchComplete(_ context.Context, _ string, _ uint64, _, records int, d time.Duration, _ error) {
	h.SearchDuration.Observe(d.Seconds())
	h.SearchResults.Observe(float64(records))
}

func (h *Hooks) OnSearchDiscarded(context.Context, string, uint64) {
	h.SearchesDiscarded.Inc()
}

func (h *Hooks) OnImportComplete(_ context.Context, _, records int, d time.Duration, err error) {
	h.Imports.WithLabelValues(outcome(err)).Inc()
	h.ImportedTotal.Add(float64(records))
	h.ImportDuration.Observe(d.Seconds())
}

func (h *Hooks) OnInsert(_ context.Context, added, dropped int) {
	h.Inserted.WithLabelValues("added").Add(float64(added))
	h.Inserted.WithLabelValues("duplicate").Add(float64(dropped))
}

func (h *Hooks) OnStatusChange(_ context.Context, _, status string) {
	h.StatusChanges.WithLabelValues(status).Inc()
}

func (h *Hooks) OnCacheHit(_ context.Context, keyType string) {
	h.CacheEvents.WithLabelValues("hit", keyType).Inc()
}

func (h *Hooks) OnCacheMiss(_ context.Context, keyType string) {
	h.CacheEvents.WithLabelValues("miss", keyType).Inc()
}

func (h *Hooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.CacheEvents.WithLabelValues("set", keyType).Inc()
}

func (h *Hooks) OnRequest(context.Context, string, string, string) {}

func (h *Hooks) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	h.HTTPRequests.WithLabelValues(host, statusClass(status)).Inc()
	h.HTTPDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (h *Hooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.HTTPRequests.WithLabelValues(host, "error").Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var (
	_ observability.CurationHooks = (*Hooks)(nil)
	_ observability.CacheHooks    = (*Hooks)(nil)
	_ observability.HTTPHooks     = (*Hooks)(nil)
)
