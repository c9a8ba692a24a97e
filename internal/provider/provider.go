// Package provider implements the client-side cache coordinator (F)
// and its persistency-backed construction sequence, described in
// §4.F. It is the library a consumer process links in to read
// ParameterSets without talking to the daemon's wire protocol
// directly.
package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaliisemenov/configd/internal/cderrors"
	"github.com/vitaliisemenov/configd/internal/ipc"
	"github.com/vitaliisemenov/configd/internal/paramset"
	"github.com/vitaliisemenov/configd/internal/provider/persistency"
	"github.com/vitaliisemenov/configd/pkg/metrics"
)

// kDefaultResponseTimeout bounds every on-demand proxy round-trip the
// provider makes on a caller's behalf (refetch-on-connect, fetch on
// cache miss, OnLastUpdatedReceive's refetch).
const kDefaultResponseTimeout = 1000 * time.Millisecond

// OnChangedCallback is invoked with the freshly fetched snapshot
// whenever the provider observes setName change. It is invoked while
// the provider's lock is held (see OnLastUpdatedReceive) and must not
// call back into the Provider.
type OnChangedCallback func(snapshot *CachedSet)

// ProxyFactory produces a connected ipc.ProviderProxy, blocking until
// the proxy is available or ctx is cancelled. It plays the role of the
// spec's "proxy future".
type ProxyFactory func(ctx context.Context) (ipc.ProviderProxy, error)

// Options configures the provider's polling worker and optional
// connect notification.
type Options struct {
	MaxSamplesLimit      *int
	PollingCycleInterval *time.Duration
	// OnAvailable, if set, is invoked once the proxy connects and the
	// construction sequence in §4.F completes.
	OnAvailable func()
	// Metrics, if set, records cache hit/miss and connectivity gauges.
	Metrics *metrics.Provider
}

type callbackSlot struct {
	empty bool
	cb    OnChangedCallback
}

// Provider is the client-side cache coordinator described in §4.F.
type Provider struct {
	mu        sync.Mutex
	cache     map[string]*CachedSet
	callbacks map[string]*callbackSlot
	qualifier paramset.InitialQualifierState
	proxy     ipc.ProviderProxy

	persistency persistency.Persistency
	opts        Options
	logger      *slog.Logger

	proxyReadyCh   chan struct{}
	proxyReadyOnce sync.Once

	waitCancel context.CancelFunc
	waitWG     sync.WaitGroup
}

// New runs the construction sequence in §4.F: it synchronously seeds
// cache from persistency, then spawns the proxy-wait worker that calls
// proxyFactory in the background. ctx is the provider's stop token —
// cancelling it unblocks the proxy-wait worker even if the proxy never
// connects (see invariant 10).
func New(ctx context.Context, store persistency.Persistency, proxyFactory ProxyFactory, opts Options, logger *slog.Logger) (*Provider, error) {
	p := &Provider{
		cache:        make(map[string]*CachedSet),
		callbacks:    make(map[string]*callbackSlot),
		persistency:  store,
		opts:         opts,
		logger:       logger,
		proxyReadyCh: make(chan struct{}),
	}

	entries, err := store.ReadCachedParameterSets(ctx)
	if err != nil {
		return nil, cderrors.Wrap(cderrors.KindUnableToSaveToPersistency, "failed to seed cache from persistency", err)
	}
	for _, entry := range entries {
		cs, err := NewCachedSet(entry.Name, entry.JSON)
		if err != nil {
			logger.Warn("discarding malformed persisted parameter set", "name", entry.Name, "error", err)
			continue
		}
		p.cache[entry.Name] = cs
	}

	waitCtx, cancel := context.WithCancel(ctx)
	p.waitCancel = cancel
	p.waitWG.Add(1)
	go func() {
		defer p.waitWG.Done()
		proxy, err := proxyFactory(waitCtx)
		if err != nil {
			if waitCtx.Err() == nil {
				logger.Error("proxy factory failed", "error", err)
			}
			return
		}
		p.onProxyConnected(waitCtx, proxy)
	}()

	return p, nil
}

func (p *Provider) onProxyConnected(ctx context.Context, proxy ipc.ProviderProxy) {
	if ok := proxy.TrySubscribeToLastUpdatedParameterSetEvent(ctx, func(name string) { p.OnLastUpdatedReceive(ctx, name) }); !ok {
		p.logger.Warn("failed to subscribe to last-updated events; provider remains read-only from persistency")
		return
	}

	p.mu.Lock()
	names := make([]string, 0, len(p.cache))
	for name := range p.cache {
		names = append(names, name)
	}
	p.mu.Unlock()

	for _, name := range names {
		raw, err := proxy.GetParameterSet(ctx, name, kDefaultResponseTimeout)
		if err != nil {
			p.logger.Warn("failed to refetch cached parameter set on connect", "name", name, "error", err)
			continue
		}
		cs, err := NewCachedSet(name, raw)
		if err != nil {
			p.logger.Warn("refetched parameter set failed to parse", "name", name, "error", err)
			continue
		}
		if err := p.persistency.CacheParameterSet(ctx, persistency.Entry{Name: name, JSON: raw}, false); err != nil {
			p.logger.Warn("failed to persist refetched parameter set", "name", name, "error", err)
		}
		p.mu.Lock()
		p.cache[name] = cs
		p.mu.Unlock()
	}
	if err := p.persistency.SyncToStorage(ctx); err != nil {
		p.logger.Warn("failed to sync persistency after refetch", "error", err)
	}

	if state := proxy.GetInitialQualifierState(ctx, kDefaultResponseTimeout); state.IsTerminal() {
		p.mu.Lock()
		p.qualifier = state
		p.mu.Unlock()
	}

	p.mu.Lock()
	for name := range p.cache {
		if _, ok := p.callbacks[name]; !ok {
			p.callbacks[name] = &callbackSlot{empty: true}
		}
	}
	p.proxy = proxy
	p.mu.Unlock()

	if err := proxy.StartParameterSetUpdatePollingRoutine(p.opts.MaxSamplesLimit, p.opts.PollingCycleInterval); err != nil {
		p.logger.Error("failed to start polling routine", "error", err)
	}

	if p.opts.Metrics != nil {
		p.opts.Metrics.ProxyConnected.Set(1)
	}

	p.proxyReadyOnce.Do(func() { close(p.proxyReadyCh) })
	if p.opts.OnAvailable != nil {
		p.opts.OnAvailable()
	}
}

// GetParameterSet returns the cached snapshot for name, fetching it
// via the proxy on a cache miss.
func (p *Provider) GetParameterSet(ctx context.Context, name string, timeout time.Duration) (*CachedSet, error) {
	p.mu.Lock()
	if cs, ok := p.cache[name]; ok {
		p.mu.Unlock()
		if p.opts.Metrics != nil {
			p.opts.Metrics.CacheHits.WithLabelValues(name).Inc()
		}
		return cs, nil
	}
	proxy := p.proxy
	p.mu.Unlock()

	if p.opts.Metrics != nil {
		p.opts.Metrics.CacheMisses.WithLabelValues(name).Inc()
	}

	if proxy == nil {
		return nil, cderrors.New(cderrors.KindProxyNotReady, name)
	}

	raw, err := proxy.GetParameterSet(ctx, name, timeout)
	if err != nil {
		return nil, err
	}
	cs, err := NewCachedSet(name, raw)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, ok := p.callbacks[name]; !ok {
		p.callbacks[name] = &callbackSlot{empty: true}
	}
	p.cache[name] = cs
	cacheSize := len(p.cache)
	p.mu.Unlock()
	if p.opts.Metrics != nil {
		p.opts.Metrics.CachedSetsGauge.Set(float64(cacheSize))
	}

	if err := p.persistency.CacheParameterSet(ctx, persistency.Entry{Name: name, JSON: raw}, true); err != nil {
		p.logger.Warn("failed to persist fetched parameter set", "name", name, "error", err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.PersistencyErrors.WithLabelValues("cache_parameter_set").Inc()
		}
	}
	return cs, nil
}

// NameResult pairs a fetch outcome with the set name it belongs to,
// for use by GetParameterSetsByNameList.
type NameResult struct {
	Name     string
	Snapshot *CachedSet
	Err      error
}

// GetParameterSetsByNameList fetches every name in names, the same way
// GetParameterSet does, then flushes persistency exactly once.
func (p *Provider) GetParameterSetsByNameList(ctx context.Context, names []string, timeout time.Duration) []NameResult {
	results := make([]NameResult, len(names))
	for i, name := range names {
		cs, err := p.GetParameterSet(ctx, name, timeout)
		results[i] = NameResult{Name: name, Snapshot: cs, Err: err}
	}
	if err := p.persistency.SyncToStorage(ctx); err != nil {
		p.logger.Warn("failed to sync persistency after batch fetch", "error", err)
	}
	return results
}

// OnChangedParameterSet installs callback for name. It fails with
// EmptyCallbackProvided if callback is nil, or CallbackAlreadySet if a
// non-empty callback is already installed.
func (p *Provider) OnChangedParameterSet(name string, callback OnChangedCallback) error {
	if callback == nil {
		return cderrors.New(cderrors.KindEmptyCallbackProvided, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.callbacks[name]
	if !ok || slot.empty {
		p.callbacks[name] = &callbackSlot{empty: false, cb: callback}
		return nil
	}
	return cderrors.New(cderrors.KindCallbackAlreadySet, name)
}

// OnChangedParameterSetCbk is a convenience alias for OnChangedParameterSet.
func (p *Provider) OnChangedParameterSetCbk(name string, callback OnChangedCallback) error {
	return p.OnChangedParameterSet(name, callback)
}

// GetInitialQualifierState returns the cached terminal qualifier state
// if present; otherwise, when a proxy is available, it queries the
// proxy and caches the result if terminal.
func (p *Provider) GetInitialQualifierState(ctx context.Context, timeout time.Duration) paramset.InitialQualifierState {
	p.mu.Lock()
	if p.qualifier.IsTerminal() {
		state := p.qualifier
		p.mu.Unlock()
		return state
	}
	proxy := p.proxy
	p.mu.Unlock()

	if proxy == nil {
		return paramset.InitialQualifierUndefined
	}

	state := proxy.GetInitialQualifierState(ctx, timeout)
	if state.IsTerminal() {
		p.mu.Lock()
		p.qualifier = state
		p.mu.Unlock()
	}
	return state
}

// CheckParameterSetUpdates wakes the proxy's polling worker immediately.
func (p *Provider) CheckParameterSetUpdates() error {
	p.mu.Lock()
	proxy := p.proxy
	p.mu.Unlock()

	if proxy == nil {
		return cderrors.New(cderrors.KindProxyNotReady, "")
	}
	proxy.CheckParameterSetUpdates()
	return nil
}

// WaitUntilConnected blocks until the proxy becomes available, ctx is
// cancelled, or timeout elapses, returning true only in the first case.
func (p *Provider) WaitUntilConnected(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.proxyReadyCh:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

// GetCachedParameterSetsCount returns the number of sets currently held
// in cache.
func (p *Provider) GetCachedParameterSetsCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// OnLastUpdatedReceive is invoked by the proxy's polling worker for
// each drained, deduplicated set name. Per §9 open question 3, the
// callback is invoked while still holding the provider lock: this is
// load-bearing for the "at most once per update" property (invariant
// 8), but it means a callback must never call back into Provider.
func (p *Provider) OnLastUpdatedReceive(ctx context.Context, name string) {
	p.mu.Lock()
	slot, tracked := p.callbacks[name]
	proxy := p.proxy
	p.mu.Unlock()
	if !tracked {
		return
	}
	if proxy == nil {
		return
	}

	raw, err := proxy.GetParameterSet(ctx, name, kDefaultResponseTimeout)
	if err != nil {
		p.logger.Warn("failed to refetch updated parameter set, keeping prior snapshot", "name", name, "error", err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		}
		return
	}
	cs, err := NewCachedSet(name, raw)
	if err != nil {
		p.logger.Warn("updated parameter set failed to parse, keeping prior snapshot", "name", name, "error", err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.RefreshesTotal.WithLabelValues("error").Inc()
		}
		return
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	}

	if err := p.persistency.CacheParameterSet(ctx, persistency.Entry{Name: name, JSON: raw}, true); err != nil {
		p.logger.Warn("failed to persist updated parameter set", "name", name, "error", err)
		if p.opts.Metrics != nil {
			p.opts.Metrics.PersistencyErrors.WithLabelValues("cache_parameter_set").Inc()
		}
	}

	p.mu.Lock()
	p.cache[name] = cs
	slot = p.callbacks[name]
	if slot != nil && !slot.empty && slot.cb != nil {
		slot.cb(cs)
	}
	p.mu.Unlock()
}

// Close implements the strict destruction order in §4.F: cancel the
// proxy-wait worker, join it, stop the proxy's polling routine, drop
// the proxy, then release persistency. The polling routine is stopped
// while p.proxy is still set, so a callback still in flight from
// OnLastUpdatedReceive (which reads p.proxy under the lock) observes
// either the live proxy or nil — never a torn half-destroyed one.
func (p *Provider) Close() error {
	p.waitCancel()
	p.waitWG.Wait()

	p.mu.Lock()
	proxy := p.proxy
	p.mu.Unlock()

	if proxy != nil {
		proxy.StopParameterSetUpdatePollingRoutine()
		_ = proxy.Close()
		if p.opts.Metrics != nil {
			p.opts.Metrics.ProxyConnected.Set(0)
		}
	}

	p.mu.Lock()
	p.proxy = nil
	p.mu.Unlock()

	return p.persistency.Close()
}
