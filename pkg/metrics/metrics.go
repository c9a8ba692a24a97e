// Package metrics exposes the Prometheus instrumentation for the
// daemon's collection, the IPC transport, and the provider's cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vitaliisemenov/configd/internal/cderrors"
)

const namespace = "configd"

// Collection tracks the daemon's ParameterSetCollection (A/B).
type Collection struct {
	ParameterSets  prometheus.Gauge
	InsertsTotal   *prometheus.CounterVec
	UpdatesTotal   *prometheus.CounterVec
	UpdateErrors   *prometheus.CounterVec
}

// NewCollection registers Collection metrics against reg. The
// executables pass one prometheus.NewRegistry() per process; tests pass
// a fresh registry each to avoid duplicate registration panics across
// test cases.
func NewCollection(reg prometheus.Registerer) *Collection {
	factory := promauto.With(reg)
	return &Collection{
		ParameterSets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "parameter_sets_total",
			Help:      "Current number of ParameterSets held by the daemon.",
		}),
		InsertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "inserts_total",
			Help:      "Total number of successful parameter inserts, by set.",
		}, []string{"set"}),
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "updates_total",
			Help:      "Total number of successful parameter set updates, by set.",
		}, []string{"set"}),
		UpdateErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collection",
			Name:      "update_errors_total",
			Help:      "Total number of failed parameter set updates, by set and error kind.",
		}, []string{"set", "kind"}),
	}
}

// ObserveParameterSetsTotal sets the current collection size gauge.
// Implements paramset.CollectionMetrics.
func (c *Collection) ObserveParameterSetsTotal(n int) {
	c.ParameterSets.Set(float64(n))
}

// ObserveInsert records a successful Insert into setName. Implements
// paramset.CollectionMetrics.
func (c *Collection) ObserveInsert(setName string) {
	c.InsertsTotal.WithLabelValues(setName).Inc()
}

// ObserveUpdate records an UpdateParameterSet outcome for setName.
// Implements paramset.CollectionMetrics.
func (c *Collection) ObserveUpdate(setName string, err error) {
	if err != nil {
		kind, _ := cderrors.KindOf(err)
		c.UpdateErrors.WithLabelValues(setName, kind.String()).Inc()
		return
	}
	c.UpdatesTotal.WithLabelValues(setName).Inc()
}

// IPC tracks the wire transport (C/E).
type IPC struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
	SubscribersGauge prometheus.Gauge
	DroppedSamples  prometheus.Counter
}

// NewIPC registers IPC metrics against reg.
func NewIPC(reg prometheus.Registerer) *IPC {
	factory := promauto.With(reg)
	return &IPC{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "requests_total",
			Help:      "Total number of GetParameterSet requests, by outcome.",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "request_duration_seconds",
			Help:      "Duration of GetParameterSet requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"outcome"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "events_published_total",
			Help:      "Total number of LastUpdatedParameterSet events published.",
		}, []string{"set"}),
		SubscribersGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "subscribers_active",
			Help:      "Current number of active LastUpdatedParameterSet event subscribers.",
		}),
		DroppedSamples: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      "dropped_samples_total",
			Help:      "Total number of event samples dropped due to a full queue.",
		}),
	}
}

// Provider tracks the client-side cache coordinator (F/G).
type Provider struct {
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CachedSetsGauge  prometheus.Gauge
	RefreshesTotal   *prometheus.CounterVec
	PersistencyErrors *prometheus.CounterVec
	ProxyConnected   prometheus.Gauge
}

// NewProvider registers Provider metrics against reg.
func NewProvider(reg prometheus.Registerer) *Provider {
	factory := promauto.With(reg)
	return &Provider{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cache_hits_total",
			Help:      "Total number of GetParameterSet calls served from cache.",
		}, []string{"set"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cache_misses_total",
			Help:      "Total number of GetParameterSet calls that fetched via the proxy.",
		}, []string{"set"}),
		CachedSetsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "cached_sets_total",
			Help:      "Current number of ParameterSets held in the provider's cache.",
		}),
		RefreshesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "refreshes_total",
			Help:      "Total number of sets refreshed via OnLastUpdatedReceive, by outcome.",
		}, []string{"outcome"}),
		PersistencyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "persistency_errors_total",
			Help:      "Total number of persistency operation failures, by operation.",
		}, []string{"operation"}),
		ProxyConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "proxy_connected",
			Help:      "1 if the proxy is currently connected, 0 otherwise.",
		}),
	}
}
