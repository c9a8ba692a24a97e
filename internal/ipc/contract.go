package ipc

import (
	"context"
	"time"

	"github.com/vitaliisemenov/configd/internal/paramset"
)

// ServiceState tracks the daemon-side service's lifecycle. Offered is
// the only state in which clients may discover and connect.
type ServiceState int

const (
	ServiceConstructed ServiceState = iota
	ServiceOffered
	ServiceStopped
)

func (s ServiceState) String() string {
	switch s {
	case ServiceConstructed:
		return "Constructed"
	case ServiceOffered:
		return "Offered"
	case ServiceStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// DaemonService is the daemon's IPC surface: one request, one event
// stream, one field. Implementations are free to choose any transport;
// Server in this package realizes it over HTTP + WebSocket.
type DaemonService interface {
	// State reports the current lifecycle state.
	State() ServiceState
	// Offer transitions Constructed → Offered, making the service
	// discoverable. Calling Offer twice is an error.
	Offer() error
	// StopOfferService transitions to Stopped. Idempotent.
	StopOfferService() error

	// GetParameterSet answers the request surface directly from the
	// backing collection.
	GetParameterSet(ctx context.Context, name string) (string, error)

	// PublishLastUpdatedParameterSet emits the event surface. It is
	// called by plugins through the LastUpdatedSender bound in App.Run;
	// the collection does not call it, so an UpdateParameterSet emits no
	// event unless the caller publishes one.
	PublishLastUpdatedParameterSet(name string) error

	// SetInitialQualifierState writes the field surface. Writes that
	// leave the value unchanged are still republished so a
	// newly-(re)connected subscriber observes the latest value.
	SetInitialQualifierState(state paramset.InitialQualifierState) error
}

// SubscribeCallback is invoked once per drained, deduplicated set name.
type SubscribeCallback func(name string)

// ProviderProxy is the client-side abstraction of DaemonService: it
// requests sets, subscribes to update events, reads the qualifier
// field, and runs a polling worker that drains queued events in
// bounded batches.
type ProviderProxy interface {
	// GetParameterSet fetches the named set's canonical JSON within
	// timeout.
	GetParameterSet(ctx context.Context, name string, timeout time.Duration) (string, error)

	// TrySubscribeToLastUpdatedParameterSetEvent asks the transport to
	// subscribe with a queue depth of at least 2 samples and registers
	// callback to be invoked for each drained name. Returns false on
	// transport subscription failure.
	TrySubscribeToLastUpdatedParameterSetEvent(ctx context.Context, callback SubscribeCallback) bool

	// GetInitialQualifierState returns the latest observed field value,
	// or Undefined if none has been observed yet.
	GetInitialQualifierState(ctx context.Context, timeout time.Duration) paramset.InitialQualifierState

	// StartParameterSetUpdatePollingRoutine spawns the single polling
	// worker. A nil maxSamplesLimit selects the 500-sample default; a
	// nil pollingCycleInterval selects the 5-second default. A
	// non-nil, non-positive value for either aborts with
	// cderrors.KindMethodNotSupported.
	StartParameterSetUpdatePollingRoutine(maxSamplesLimit *int, pollingCycleInterval *time.Duration) error

	// StopParameterSetUpdatePollingRoutine requests the worker to stop
	// and blocks until it has joined.
	StopParameterSetUpdatePollingRoutine()

	// CheckParameterSetUpdates wakes the polling worker immediately.
	CheckParameterSetUpdates()

	// Close releases the underlying transport connection. Safe to call
	// multiple times.
	Close() error
}
