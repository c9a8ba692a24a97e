package paramset

import (
	"sync"

	"github.com/vitaliisemenov/configd/internal/cderrors"
)

// CollectionMetrics receives instrumentation events from a Collection.
// Satisfied by *metrics.Collection; kept as an interface here so this
// package does not depend on the metrics package.
type CollectionMetrics interface {
	ObserveParameterSetsTotal(n int)
	ObserveInsert(setName string)
	ObserveUpdate(setName string, err error)
}

// Collection is the daemon's thread-safe owner of every ParameterSet,
// keyed by name. All public methods acquire mu and hold it only for
// the duration of the in-memory mutation — never across IPC or I/O, so
// that concurrent callers are only ever blocked briefly.
type Collection struct {
	mu      sync.Mutex
	sets    map[string]*Set
	metrics CollectionMetrics
}

// NewCollection returns an empty collection, ready to accept Inserts.
func NewCollection() *Collection {
	return &Collection{sets: make(map[string]*Set)}
}

// SetMetrics installs the instrumentation sink used by Insert and
// UpdateParameterSet. Not safe to call concurrently with other methods.
func (c *Collection) SetMetrics(m CollectionMetrics) {
	c.metrics = m
}

// Insert adds a single (paramName, value) pair to setName, creating
// the set if this is its first parameter. It never overwrites an
// existing parameter.
func (c *Collection) Insert(setName, paramName string, value Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		set = NewSet(setName)
		c.sets[setName] = set
	}
	err := set.Add(paramName, value)
	if c.metrics != nil {
		if err == nil {
			c.metrics.ObserveInsert(setName)
		}
		c.metrics.ObserveParameterSetsTotal(len(c.sets))
	}
	return err
}

// UpdateParameterSet parses rawJSON as a JSON object of name→value
// pairs and applies it to setName as an atomic, all-or-nothing update.
func (c *Collection) UpdateParameterSet(setName, rawJSON string) error {
	updates, err := ParseUpdateObject(rawJSON)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		err := cderrors.New(cderrors.KindParameterSetNotFound, "Parameter set is not found")
		if c.metrics != nil {
			c.metrics.ObserveUpdate(setName, err)
		}
		return err
	}
	err = set.Update(updates)
	if c.metrics != nil {
		c.metrics.ObserveUpdate(setName, err)
	}
	return err
}

// GetParameterSet returns the canonical JSON form of setName.
func (c *Collection) GetParameterSet(setName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		return "", cderrors.New(cderrors.KindParameterSetNotFound, setName)
	}
	return set.GetParameterSetAsString()
}

// GetParameterFromSet reads a single parameter's value out of setName.
func (c *Collection) GetParameterFromSet(setName, paramName string) (Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		return Value{}, cderrors.New(cderrors.KindParameterSetNotFound, setName)
	}
	return set.GetParameter(paramName)
}

// SetCalibratable toggles setName's calibratable flag, reporting
// whether the set existed.
func (c *Collection) SetCalibratable(setName string, calibratable bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		return false
	}
	set.SetCalibratable(calibratable)
	return true
}

// GetParameterSetQualifier reads setName's current qualifier.
func (c *Collection) GetParameterSetQualifier(setName string) (Qualifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		return 0, cderrors.New(cderrors.KindParameterSetNotFound, setName)
	}
	return set.GetQualifier(), nil
}

// SetParameterSetQualifier overwrites setName's qualifier.
func (c *Collection) SetParameterSetQualifier(setName string, q Qualifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		return cderrors.New(cderrors.KindParameterSetNotFound, setName)
	}
	set.SetQualifier(q)
	return nil
}

// Names returns every set name currently in the collection. Intended
// for plugins/tests; not part of the IPC-facing surface.
func (c *Collection) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.sets))
	for name := range c.sets {
		names = append(names, name)
	}
	return names
}

// Snapshot returns a deep-enough copy of setName for callers that need
// a point-in-time view outside the collection lock.
func (c *Collection) Snapshot(setName string) (*Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[setName]
	if !ok {
		return nil, cderrors.New(cderrors.KindParameterSetNotFound, setName)
	}
	return set.clone(), nil
}
