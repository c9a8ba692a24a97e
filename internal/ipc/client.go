package ipc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vitaliisemenov/configd/internal/cderrors"
	"github.com/vitaliisemenov/configd/internal/paramset"
)

const (
	defaultMaxSamplesLimit      = 500
	defaultPollingCycleInterval = 5 * time.Second
)

// Client is the concrete HTTP+WebSocket ProviderProxy: it satisfies
// ipc.ProviderProxy by talking to a Server over the wire form in §6.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu            sync.Mutex
	eventsConn    *websocket.Conn
	qualifierConn *websocket.Conn
	connected     bool

	qualifier atomic.Int32 // paramset.InitialQualifierState, Undefined=0 by zero value

	callbackMu sync.Mutex
	callback   SubscribeCallback

	incoming chan string // drained-raw event names, read by the polling worker

	pollMu        sync.Mutex
	polling       bool
	stopPolling   chan struct{}
	wake          chan struct{}
	pollWG        sync.WaitGroup
	maxSamples    int
	cycleInterval time.Duration
}

// NewClient builds a Client targeting baseURL (e.g.
// "http://127.0.0.1:8443") and serviceID, the opaque identifier shared
// with the daemon.
func NewClient(baseURL, serviceID string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL + "/" + serviceID,
		httpClient: &http.Client{},
		logger:     logger,
		incoming:   make(chan string, 1024),
	}
}

// Connect dials both WebSocket surfaces and starts their reader
// goroutines. It must succeed before TrySubscribeToLastUpdatedParameterSetEvent
// or the polling routine can do useful work.
func (c *Client) Connect(ctx context.Context) error {
	eventsURL, err := toWebsocketURL(c.baseURL + "/v1/events/last-updated")
	if err != nil {
		return cderrors.Wrap(cderrors.KindFailedToSubscribe, "invalid events URL", err)
	}
	qualifierURL, err := toWebsocketURL(c.baseURL + "/v1/fields/initial-qualifier-state")
	if err != nil {
		return cderrors.Wrap(cderrors.KindFailedToSubscribe, "invalid qualifier URL", err)
	}

	eventsConn, _, err := websocket.DefaultDialer.DialContext(ctx, eventsURL, nil)
	if err != nil {
		return cderrors.Wrap(cderrors.KindFailedToSubscribe, "dial events stream failed", err)
	}
	qualifierConn, _, err := websocket.DefaultDialer.DialContext(ctx, qualifierURL, nil)
	if err != nil {
		_ = eventsConn.Close()
		return cderrors.Wrap(cderrors.KindFailedToSubscribe, "dial qualifier stream failed", err)
	}

	c.mu.Lock()
	c.eventsConn = eventsConn
	c.qualifierConn = qualifierConn
	c.connected = true
	c.mu.Unlock()

	go c.readEvents(eventsConn)
	go c.readQualifier(qualifierConn)
	return nil
}

func toWebsocketURL(httpURL string) (string, error) {
	u, err := url.Parse(httpURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

func (c *Client) readEvents(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) != EventNameWidth {
			c.logger.Warn("discarding malformed event frame", "length", len(data))
			continue
		}
		var buf [EventNameWidth]byte
		copy(buf[:], data)
		select {
		case c.incoming <- DecodeEventName(buf):
		default:
			c.logger.Warn("event queue full, dropping sample")
		}
	}
}

func (c *Client) readQualifier(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) != 1 {
			continue
		}
		c.qualifier.Store(int32(data[0]))
	}
}

// GetParameterSet issues GET /v1/parameter-sets/{name}, bounded by timeout.
func (c *Client) GetParameterSet(ctx context.Context, name string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/parameter-sets/"+url.PathEscape(name), nil)
	if err != nil {
		return "", cderrors.Wrap(cderrors.KindProxyReturnedNoResult, "failed to build request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", cderrors.New(cderrors.KindProxyAccessTimeout, name)
		}
		return "", cderrors.Wrap(cderrors.KindProxyReturnedNoResult, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", cderrors.Wrap(cderrors.KindProxyReturnedNoResult, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", cderrors.New(cderrors.KindProxyReturnedNoResult, fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}
	return string(body), nil
}

// TrySubscribeToLastUpdatedParameterSetEvent registers callback to be
// invoked (by the polling worker, not synchronously here) for each
// drained event name. Requires Connect to have already succeeded.
func (c *Client) TrySubscribeToLastUpdatedParameterSetEvent(_ context.Context, callback SubscribeCallback) bool {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return false
	}

	c.callbackMu.Lock()
	c.callback = callback
	c.callbackMu.Unlock()
	return true
}

// GetInitialQualifierState returns the latest value observed via the
// qualifier stream. The subscription in Connect keeps this field
// continuously fresh, so no network round-trip is needed here; timeout
// is accepted for interface symmetry with GetParameterSet.
func (c *Client) GetInitialQualifierState(_ context.Context, _ time.Duration) paramset.InitialQualifierState {
	return paramset.InitialQualifierState(c.qualifier.Load())
}

// StartParameterSetUpdatePollingRoutine spawns the single polling
// worker described in §4.E.
func (c *Client) StartParameterSetUpdatePollingRoutine(maxSamplesLimit *int, pollingCycleInterval *time.Duration) error {
	maxSamples := defaultMaxSamplesLimit
	if maxSamplesLimit != nil {
		if *maxSamplesLimit <= 0 {
			return cderrors.New(cderrors.KindMethodNotSupported, "maxSamplesLimit must be strictly positive")
		}
		maxSamples = *maxSamplesLimit
	}
	cycle := defaultPollingCycleInterval
	if pollingCycleInterval != nil {
		if *pollingCycleInterval <= 0 {
			return cderrors.New(cderrors.KindMethodNotSupported, "pollingCycleInterval must be strictly positive")
		}
		cycle = *pollingCycleInterval
	}

	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if c.polling {
		return cderrors.New(cderrors.KindMethodNotSupported, "polling routine already started")
	}
	c.maxSamples = maxSamples
	c.cycleInterval = cycle
	c.stopPolling = make(chan struct{})
	c.wake = make(chan struct{}, 1)
	c.polling = true

	c.pollWG.Add(1)
	go c.pollLoop()
	return nil
}

func (c *Client) pollLoop() {
	defer c.pollWG.Done()
	timer := time.NewTimer(c.cycleInterval)
	defer timer.Stop()

	for {
		c.drainAndDispatch()

		select {
		case <-c.stopPolling:
			return
		case <-c.wake:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.cycleInterval)

		select {
		case <-c.stopPolling:
			return
		default:
		}
	}
}

func (c *Client) drainAndDispatch() {
	dedup := make(map[string]struct{})
	for drained := 0; drained < c.maxSamples; drained++ {
		select {
		case name := <-c.incoming:
			dedup[name] = struct{}{}
		default:
			goto dispatch
		}
	}
dispatch:
	if len(dedup) == 0 {
		return
	}
	c.callbackMu.Lock()
	cb := c.callback
	c.callbackMu.Unlock()
	if cb == nil {
		return
	}
	for name := range dedup {
		cb(name)
	}
}

// StopParameterSetUpdatePollingRoutine requests the worker to stop and
// blocks until it has joined.
func (c *Client) StopParameterSetUpdatePollingRoutine() {
	c.pollMu.Lock()
	if !c.polling {
		c.pollMu.Unlock()
		return
	}
	close(c.stopPolling)
	c.pollMu.Unlock()

	c.pollWG.Wait()

	c.pollMu.Lock()
	c.polling = false
	c.pollMu.Unlock()
}

// CheckParameterSetUpdates wakes the polling worker immediately.
func (c *Client) CheckParameterSetUpdates() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close releases both WebSocket connections. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	var firstErr error
	if err := c.eventsConn.Close(); err != nil {
		firstErr = err
	}
	if err := c.qualifierConn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
