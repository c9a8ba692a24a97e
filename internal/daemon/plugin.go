package daemon

import (
	"context"

	"github.com/vitaliisemenov/configd/internal/paramset"
)

// LastUpdatedSender is bound to the daemon's service and handed to
// each plugin's Run so the plugin can announce its own writes without
// holding a reference to the service itself.
type LastUpdatedSender func(name string) error

// QualifierSender is the field-surface counterpart of LastUpdatedSender.
type QualifierSender func(state paramset.InitialQualifierState) error

// Plugin is a pluggable data producer loaded into the daemon. The
// daemon owns Initialize/Run/Deinitialize sequencing; a Plugin owns
// whatever threads it starts inside Run.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize prepares the plugin. A non-nil error aborts the
	// daemon's startup sequence (see App.Run step 3).
	Initialize(ctx context.Context, collection *paramset.Collection) error

	// Run drives the plugin's data-production loop until ctx is
	// cancelled. lastUpdated and qualifier let it announce changes it
	// makes to collection; a non-zero return aborts further plugin Runs.
	Run(ctx context.Context, collection *paramset.Collection, lastUpdated LastUpdatedSender, qualifier QualifierSender) error

	// Deinitialize releases whatever Initialize acquired. Called
	// exactly once per successfully-initialized plugin, on every Run
	// exit path.
	Deinitialize(ctx context.Context) error
}

// PluginCollector produces the ordered list of plugins the daemon
// should load. A collector failure aborts App.Run before any plugin is
// touched.
type PluginCollector interface {
	CollectPlugins(ctx context.Context) ([]Plugin, error)
}
