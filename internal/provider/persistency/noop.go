package persistency

import "context"

// Noop is the mandatory default Persistency: it seeds nothing and
// drops every write. Used by providers that do not need state to
// survive a process restart.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (n *Noop) ReadCachedParameterSets(_ context.Context) ([]Entry, error) {
	return nil, nil
}

func (n *Noop) CacheParameterSet(_ context.Context, _ Entry, _ bool) error {
	return nil
}

func (n *Noop) SyncToStorage(_ context.Context) error {
	return nil
}

func (n *Noop) Close() error {
	return nil
}
