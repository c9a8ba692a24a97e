package provider

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/configd/internal/cderrors"
	"github.com/vitaliisemenov/configd/internal/ipc"
	"github.com/vitaliisemenov/configd/internal/paramset"
	"github.com/vitaliisemenov/configd/internal/provider/persistency"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory Persistency double used where tests need to
// observe what was written, which persistency.Noop discards.
type memStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemStore() *memStore { return &memStore{entries: make(map[string]string)} }

func (m *memStore) ReadCachedParameterSets(context.Context) ([]persistency.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]persistency.Entry, 0, len(m.entries))
	for name, raw := range m.entries {
		out = append(out, persistency.Entry{Name: name, JSON: raw})
	}
	return out, nil
}

func (m *memStore) CacheParameterSet(_ context.Context, entry persistency.Entry, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Name] = entry.JSON
	return nil
}

func (m *memStore) SyncToStorage(context.Context) error { return nil }
func (m *memStore) Close() error                        { return nil }

func newTestDaemon(t *testing.T) (*ipc.Server, *httptest.Server, *paramset.Collection) {
	t.Helper()
	collection := paramset.NewCollection()
	server := ipc.NewServer("", "test-service", collection, testLogger())
	ts := httptest.NewServer(server.HTTPHandler())
	t.Cleanup(ts.Close)
	return server, ts, collection
}

func newConnectedProxyFactory(ts *httptest.Server) ProxyFactory {
	return DialProxyFactory(ts.URL, "test-service", func() *ipc.Client {
		return ipc.NewClient(ts.URL, "test-service", testLogger())
	})
}

// TestScenarioS4EventDrivenRefresh: a daemon-side update followed by the
// last-updated event must cause the provider's registered callback to
// fire exactly once with the refreshed snapshot, within one polling cycle.
func TestScenarioS4EventDrivenRefresh(t *testing.T) {
	server, ts, collection := newTestDaemon(t)
	require.NoError(t, collection.Insert("setA", "foo", paramset.NewValue(int64(1))))
	require.True(t, collection.SetCalibratable("setA", true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore()
	fastCycle := 50 * time.Millisecond
	ready := make(chan struct{})
	p, err := New(ctx, store, newConnectedProxyFactory(ts), Options{
		PollingCycleInterval: &fastCycle,
		OnAvailable:          func() { close(ready) },
	}, testLogger())
	require.NoError(t, err)
	defer p.Close()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("provider never connected")
	}

	// Prime the cache so a callback slot exists for setA.
	_, err = p.GetParameterSet(ctx, "setA", time.Second)
	require.NoError(t, err)

	received := make(chan *CachedSet, 4)
	require.NoError(t, p.OnChangedParameterSet("setA", func(snapshot *CachedSet) {
		received <- snapshot
	}))

	require.NoError(t, collection.UpdateParameterSet("setA", `{"foo":2}`))
	require.NoError(t, server.PublishLastUpdatedParameterSet("setA"))

	select {
	case snapshot := <-received:
		v, err := snapshot.GetParameter("foo")
		require.NoError(t, err)
		n, err := v.Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for refresh callback")
	}

	select {
	case snapshot := <-received:
		t.Fatalf("callback fired a second time unexpectedly: %v", snapshot)
	case <-time.After(200 * time.Millisecond):
	}
}

// TestScenarioS5NoProxyNoPersistence exercises a provider whose proxy
// factory never returns (simulating a daemon that never appears) and
// whose persistency is Noop.
func TestScenarioS5NoProxyNoPersistence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	neverConnect := func(ctx context.Context) (ipc.ProviderProxy, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p, err := New(ctx, persistency.NewNoop(), neverConnect, Options{}, testLogger())
	require.NoError(t, err)

	_, err = p.GetParameterSet(ctx, "setA", 100*time.Millisecond)
	require.Error(t, err)
	kind, ok := cderrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cderrors.KindProxyNotReady, kind)

	err = p.CheckParameterSetUpdates()
	require.Error(t, err)
	kind, ok = cderrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cderrors.KindProxyNotReady, kind)

	assert.Equal(t, paramset.InitialQualifierUndefined, p.GetInitialQualifierState(ctx, 100*time.Millisecond))

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked indefinitely with a never-connecting proxy")
	}
}

// TestScenarioS6DuplicateCallbackRegistration mirrors the three-way
// contract: first registration succeeds, a second real callback is
// rejected, and a nil callback is rejected regardless of slot state.
func TestScenarioS6DuplicateCallbackRegistration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	neverConnect := func(ctx context.Context) (ipc.ProviderProxy, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p, err := New(ctx, persistency.NewNoop(), neverConnect, Options{}, testLogger())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.OnChangedParameterSet("setA", func(*CachedSet) {}))

	err = p.OnChangedParameterSet("setA", func(*CachedSet) {})
	require.Error(t, err)
	kind, ok := cderrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cderrors.KindCallbackAlreadySet, kind)

	err = p.OnChangedParameterSet("setA", nil)
	require.Error(t, err)
	kind, ok = cderrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cderrors.KindEmptyCallbackProvided, kind)
}

func TestOnChangedParameterSetReplacesEmptySentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	neverConnect := func(ctx context.Context) (ipc.ProviderProxy, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p, err := New(ctx, persistency.NewNoop(), neverConnect, Options{}, testLogger())
	require.NoError(t, err)
	defer p.Close()

	p.mu.Lock()
	p.callbacks["setA"] = &callbackSlot{empty: true}
	p.mu.Unlock()

	require.NoError(t, p.OnChangedParameterSet("setA", func(*CachedSet) {}))
}

func TestQualifierCachedOnlyWhenTerminal(t *testing.T) {
	server, ts, _ := newTestDaemon(t)
	_ = server

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	p, err := New(ctx, persistency.NewNoop(), newConnectedProxyFactory(ts), Options{
		OnAvailable: func() { close(ready) },
	}, testLogger())
	require.NoError(t, err)
	defer p.Close()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("provider never connected")
	}

	// Daemon default qualifier state is Undefined (non-terminal), so the
	// provider must not have cached it: GetInitialQualifierState falls
	// through to a live proxy query every time.
	assert.Equal(t, paramset.InitialQualifierUndefined, p.GetInitialQualifierState(ctx, time.Second))

	require.NoError(t, server.SetInitialQualifierState(paramset.InitialQualifierQualified))
	require.Eventually(t, func() bool {
		return p.GetInitialQualifierState(ctx, time.Second) == paramset.InitialQualifierQualified
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetParameterSetsByNameListReportsPerNameErrors(t *testing.T) {
	_, ts, collection := newTestDaemon(t)
	require.NoError(t, collection.Insert("setA", "foo", paramset.NewValue(int64(1))))
	require.True(t, collection.SetCalibratable("setA", true))
	require.NoError(t, collection.Insert("setB", "bar", paramset.NewValue(int64(2))))
	require.True(t, collection.SetCalibratable("setB", true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	p, err := New(ctx, persistency.NewNoop(), newConnectedProxyFactory(ts), Options{
		OnAvailable: func() { close(ready) },
	}, testLogger())
	require.NoError(t, err)
	defer p.Close()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("provider never connected")
	}

	results := p.GetParameterSetsByNameList(ctx, []string{"setA", "setB", "missing"}, time.Second)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Error(t, results[2].Err)
}
