package ipc

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// hub fans a stream of binary frames out to every connected WebSocket
// subscriber. It is the daemon-side building block shared by the
// LastUpdatedParameterSet event surface and the InitialQualifierState
// field surface: both are "publish one small payload to every current
// subscriber", differing only in payload shape. Both replay their
// latest frame to a subscriber that connects after it was published.
//
// The broadcast loop never blocks on a slow subscriber: each
// subscriber has its own bounded outbox, and a full outbox drops the
// new frame rather than stall the publisher.
type hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	publish     chan []byte
	stopChan    chan struct{}
	wg          sync.WaitGroup
	logger      *slog.Logger

	// last, when non-nil, is replayed to every newly added subscriber,
	// so a (re)connecting client of either hub observes the latest frame
	// without waiting for the next publish.
	mu2  sync.Mutex
	last []byte

	// onSubscriberCountChange, if set, is invoked with the current
	// subscriber count whenever a subscriber connects or disconnects.
	onSubscriberCountChange func(count int)
}

type subscriber struct {
	conn   *websocket.Conn
	outbox chan []byte
}

func newHub(logger *slog.Logger) *hub {
	h := &hub{
		subscribers: make(map[*subscriber]struct{}),
		publish:     make(chan []byte, 1000),
		stopChan:    make(chan struct{}),
		logger:      logger,
	}
	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

func (h *hub) broadcastLoop() {
	defer h.wg.Done()
	for {
		select {
		case frame := <-h.publish:
			h.mu2.Lock()
			h.last = frame
			h.mu2.Unlock()

			h.mu.RLock()
			for sub := range h.subscribers {
				select {
				case sub.outbox <- frame:
				default:
					h.logger.Warn("subscriber outbox full, dropping frame")
				}
			}
			h.mu.RUnlock()
		case <-h.stopChan:
			return
		}
	}
}

// Publish enqueues frame for broadcast, returning immediately. A full
// publish channel drops the frame and logs — publishers must never
// block on subscriber behavior.
func (h *hub) Publish(frame []byte) {
	select {
	case h.publish <- frame:
	default:
		h.logger.Warn("event publish channel full, dropping frame")
	}
}

// Add registers conn as a subscriber and starts its per-connection
// writer goroutine. If a replay value is present, it is sent first.
func (h *hub) Add(conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn, outbox: make(chan []byte, 16)}

	h.mu2.Lock()
	last := h.last
	h.mu2.Unlock()
	if last != nil {
		sub.outbox <- last
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()
	if h.onSubscriberCountChange != nil {
		h.onSubscriberCountChange(count)
	}

	h.wg.Add(1)
	go h.writeLoop(sub)
	return sub
}

func (h *hub) writeLoop(sub *subscriber) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		count := len(h.subscribers)
		h.mu.Unlock()
		if h.onSubscriberCountChange != nil {
			h.onSubscriberCountChange(count)
		}
	}()
	for {
		select {
		case frame := <-sub.outbox:
			if err := sub.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-h.stopChan:
			return
		}
	}
}

// Close stops the broadcast loop and every subscriber's writer,
// joining all of them before returning.
func (h *hub) Close() {
	close(h.stopChan)
	h.wg.Wait()
}
