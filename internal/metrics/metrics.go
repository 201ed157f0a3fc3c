// Package metrics exposes Prometheus counters for filter compilation, sync
// attempts and cache lookups.
//
// A Recorder owns its own registry. It satisfies compiler.Observer and
// syncer.Recorder, so it is passed directly to both.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/restbridge/internal/cache"
	"github.com/roach88/restbridge/internal/reconcile"
	"github.com/roach88/restbridge/internal/store"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "restbridge"

// Recorder holds the metric vectors.
type Recorder struct {
	registry *prometheus.Registry

	Compilations *prometheus.CounterVec
	SyncAttempts *prometheus.CounterVec
	Instructions *prometheus.CounterVec

	caches *cacheCollector
}

// New creates a Recorder with a private registry. An empty namespace
// means DefaultNamespace.
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		Compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_compilations_total",
			Help:      "Total number of compiled filters.",
		}, []string{"resource", "target"}),
		SyncAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_attempts_total",
			Help:      "Total number of sync procedure calls by outcome.",
		}, []string{"procedure", "status"}),
		Instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_instructions_total",
			Help:      "Total number of create, update and delete instructions sent.",
		}, []string{"kind"}),
		caches: &cacheCollector{
			lookups: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "cache_lookups_total"),
				"Total number of cache lookups by result.",
				[]string{"cache", "result"}, nil),
			evictions: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "cache_evictions_total"),
				"Total number of entries evicted for capacity.",
				[]string{"cache"}, nil),
		},
	}

	reg.MustRegister(r.Compilations, r.SyncAttempts, r.Instructions, r.caches)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveCompilation counts one compiled filter.
func (r *Recorder) ObserveCompilation(resource, target string) {
	r.Compilations.WithLabelValues(resource, target).Inc()
}

// ObserveSync counts one finished sync attempt and the instructions it
// carried.
func (r *Recorder) ObserveSync(procedure string, status store.Status, d reconcile.Diff) {
	r.SyncAttempts.WithLabelValues(procedure, string(status)).Inc()
	r.Instructions.WithLabelValues("create").Add(float64(len(d.Creates)))
	r.Instructions.WithLabelValues("update").Add(float64(len(d.Updates)))
	r.Instructions.WithLabelValues("delete").Add(float64(len(d.Deletes)))
}

// WriteTextfile writes all metrics to path in the text exposition format,
// for the node exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// StatsFunc returns a snapshot of cache counters.
type StatsFunc func() cache.Stats

// WatchCache reports the counters of a cache at scrape time. Watching the
// same name twice replaces the earlier source.
func (r *Recorder) WatchCache(name string, stats StatsFunc) {
	r.caches.mu.Lock()
	defer r.caches.mu.Unlock()
	if r.caches.sources == nil {
		r.caches.sources = make(map[string]StatsFunc)
	}
	r.caches.sources[name] = stats
}

// cacheCollector turns cache counters into const metrics on each scrape.
type cacheCollector struct {
	lookups   *prometheus.Desc
	evictions *prometheus.Desc

	mu      sync.Mutex
	sources map[string]StatsFunc
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lookups
	ch <- c.evictions
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, stats := range c.sources {
		s := stats()
		ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(s.Hits), name, "hit")
		ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(s.Misses), name, "miss")
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
	}
}
