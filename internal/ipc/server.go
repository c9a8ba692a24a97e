package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vitaliisemenov/configd/internal/cderrors"
	"github.com/vitaliisemenov/configd/internal/paramset"
	"github.com/vitaliisemenov/configd/pkg/metrics"
)

// Server is the concrete, HTTP+WebSocket realization of DaemonService.
// ServiceID is the opaque identifier both sides agree on out of band
// (e.g. "ConfigDaemon/ConfigDaemon_RootSwc/InternalConfigProviderAppPPort");
// here it doubles as the HTTP path prefix.
type Server struct {
	mu    sync.RWMutex
	state ServiceState

	serviceID  string
	collection *paramset.Collection

	eventsHub    *hub
	qualifierHub *hub

	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.IPC
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer builds a Server bound to addr (e.g. ":8443"), backed by
// collection, identified by serviceID.
func NewServer(addr, serviceID string, collection *paramset.Collection, logger *slog.Logger) *Server {
	s := &Server{
		state:        ServiceConstructed,
		serviceID:    serviceID,
		collection:   collection,
		eventsHub:    newHub(logger),
		qualifierHub: newHub(logger),
		logger:       logger,
	}

	router := mux.NewRouter()
	prefix := router.PathPrefix("/" + serviceID).Subrouter()
	prefix.HandleFunc("/v1/parameter-sets/{name}", s.handleGetParameterSet).Methods(http.MethodGet)
	prefix.HandleFunc("/v1/events/last-updated", s.handleLastUpdatedWS)
	prefix.HandleFunc("/v1/fields/initial-qualifier-state", s.handleQualifierWS)

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// SetMetrics attaches m so subsequent publishes and subscriber
// connect/disconnect events are recorded. Must be called before Offer;
// nil-safe if never called.
func (s *Server) SetMetrics(m *metrics.IPC) {
	s.metrics = m
	s.eventsHub.onSubscriberCountChange = func(count int) {
		if s.metrics != nil {
			s.metrics.SubscribersGauge.Set(float64(count))
		}
	}
}

// HTTPHandler exposes the underlying router, for tests that want to
// drive the server via httptest.NewServer without a real listener.
func (s *Server) HTTPHandler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Offer starts the HTTP listener in the background and transitions to
// Offered. Calling Offer twice is rejected with MethodNotSupported.
func (s *Server) Offer() error {
	s.mu.Lock()
	if s.state != ServiceConstructed {
		s.mu.Unlock()
		return cderrors.New(cderrors.KindMethodNotSupported, "service already offered or stopped")
	}
	s.state = ServiceOffered
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ipc server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// StopOfferService transitions to Stopped and shuts the HTTP server
// down. Idempotent.
func (s *Server) StopOfferService() error {
	s.mu.Lock()
	if s.state == ServiceStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = ServiceStopped
	s.mu.Unlock()

	s.eventsHub.Close()
	s.qualifierHub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetParameterSet(_ context.Context, name string) (string, error) {
	return s.collection.GetParameterSet(name)
}

func (s *Server) PublishLastUpdatedParameterSet(name string) error {
	frame := EncodeEventName(name)
	s.eventsHub.Publish(frame[:])
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(name).Inc()
	}
	return nil
}

func (s *Server) SetInitialQualifierState(state paramset.InitialQualifierState) error {
	s.qualifierHub.Publish([]byte{byte(state)})
	return nil
}

func (s *Server) handleGetParameterSet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := mux.Vars(r)["name"]
	body, err := s.GetParameterSet(r.Context(), name)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.RequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleLastUpdatedWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.eventsHub.Add(conn)
}

func (s *Server) handleQualifierWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.qualifierHub.Add(conn)
}
