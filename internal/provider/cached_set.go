package provider

import (
	"github.com/vitaliisemenov/configd/internal/cderrors"
	"github.com/vitaliisemenov/configd/internal/paramset"
)

// CachedSet is the provider-side read-only snapshot of a
// ParameterSet's canonical JSON. Go's garbage collector plays the role
// the spec assigns to reference counting: the cache map holds one
// strong reference, user code may hold any number of others via the
// pointer returned from GetParameterSet, and a CachedSet is collected
// once nothing references it — never mutated in place, so concurrent
// holders of an older snapshot are unaffected by a newer one replacing
// the cache entry.
type CachedSet struct {
	name    string
	rawJSON string
	set     *paramset.Set
}

// NewCachedSet parses rawJSON (the canonical wire form) into an
// immutable snapshot named name.
func NewCachedSet(name, rawJSON string) (*CachedSet, error) {
	set, err := paramset.ParseSet(name, rawJSON)
	if err != nil {
		return nil, err
	}
	return &CachedSet{name: name, rawJSON: rawJSON, set: set}, nil
}

// Name returns the set's name.
func (c *CachedSet) Name() string { return c.name }

// JSON returns the canonical JSON this snapshot was built from.
func (c *CachedSet) JSON() string { return c.rawJSON }

// Qualifier returns the snapshot's qualifier.
func (c *CachedSet) Qualifier() paramset.Qualifier { return c.set.GetQualifier() }

// GetParameter reads a single parameter out of the snapshot.
func (c *CachedSet) GetParameter(name string) (paramset.Value, error) {
	v, err := c.set.GetParameter(name)
	if err != nil {
		return paramset.Value{}, cderrors.New(cderrors.KindParameterMissedError, name)
	}
	return v, nil
}
