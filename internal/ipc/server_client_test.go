package ipc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/configd/internal/paramset"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, collection *paramset.Collection) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer("", "test-service", collection, testLogger())
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestClientGetParameterSet(t *testing.T) {
	collection := paramset.NewCollection()
	require.NoError(t, collection.Insert("setA", "foo", paramset.NewValue(int64(42))))
	require.True(t, collection.SetCalibratable("setA", true))

	_, ts := newTestServer(t, collection)

	client := NewClient(ts.URL, "test-service", testLogger())
	got, err := client.GetParameterSet(context.Background(), "setA", time.Second)
	require.NoError(t, err)
	assert.Contains(t, got, `"foo"`)
}

func TestClientGetParameterSetNotFound(t *testing.T) {
	collection := paramset.NewCollection()
	_, ts := newTestServer(t, collection)

	client := NewClient(ts.URL, "test-service", testLogger())
	_, err := client.GetParameterSet(context.Background(), "missing", time.Second)
	require.Error(t, err)
}

func TestClientSubscribeAndPollDeduplicates(t *testing.T) {
	collection := paramset.NewCollection()
	require.NoError(t, collection.Insert("setA", "foo", paramset.NewValue(int64(1))))
	require.True(t, collection.SetCalibratable("setA", true))

	server, ts := newTestServer(t, collection)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	client := NewClient(ts.URL, "test-service", testLogger())
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	received := make(chan string, 10)
	ok := client.TrySubscribeToLastUpdatedParameterSetEvent(context.Background(), func(name string) {
		received <- name
	})
	require.True(t, ok)

	fastCycle := 50 * time.Millisecond
	require.NoError(t, client.StartParameterSetUpdatePollingRoutine(nil, &fastCycle))
	t.Cleanup(client.StopParameterSetUpdatePollingRoutine)

	require.NoError(t, server.PublishLastUpdatedParameterSet("setA"))
	require.NoError(t, server.PublishLastUpdatedParameterSet("setA"))
	require.NoError(t, server.PublishLastUpdatedParameterSet("setA"))

	select {
	case name := <-received:
		assert.Equal(t, "setA", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deduplicated callback")
	}

	select {
	case name := <-received:
		t.Fatalf("expected exactly one callback for the batch, got a second: %q", name)
	case <-time.After(200 * time.Millisecond):
	}

	_ = wsURL
}

func TestClientQualifierField(t *testing.T) {
	collection := paramset.NewCollection()
	server, ts := newTestServer(t, collection)

	client := NewClient(ts.URL, "test-service", testLogger())
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, paramset.InitialQualifierUndefined, client.GetInitialQualifierState(context.Background(), time.Second))

	require.NoError(t, server.SetInitialQualifierState(paramset.InitialQualifierQualified))

	require.Eventually(t, func() bool {
		return client.GetInitialQualifierState(context.Background(), time.Second) == paramset.InitialQualifierQualified
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNetDialSanity(t *testing.T) {
	// Sanity check that loopback networking works in this sandbox
	// before trusting the WebSocket tests above.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
}
