package paramset

import (
	"encoding/json"
	"sort"

	"github.com/vitaliisemenov/configd/internal/cderrors"
)

// Set is a named, typed collection of parameters with a qualification
// state. It has no internal locking of its own: every Set is reachable
// only through a Collection, whose single mutex serializes all access
// (see internal/paramset.Collection). Calling Set methods outside that
// lock is a bug in the caller, not in Set.
type Set struct {
	name         string
	parameters   map[string]Value
	qualifier    Qualifier
	calibratable bool
}

// NewSet returns an empty, non-calibratable set named name with
// qualifier Unqualified — the state B creates on first Insert for a
// new set name.
func NewSet(name string) *Set {
	return &Set{
		name:       name,
		parameters: make(map[string]Value),
	}
}

// Name returns the set's name.
func (s *Set) Name() string { return s.name }

// Add inserts a new parameter. It never overwrites: a second Add for
// the same name fails with ParameterAlreadyExists regardless of
// calibratable.
func (s *Set) Add(name string, value Value) error {
	if _, exists := s.parameters[name]; exists {
		return cderrors.New(cderrors.KindParameterAlreadyExists, name)
	}
	s.parameters[name] = value
	return nil
}

// Update applies a two-phase update: every name in updates must exist
// or the whole call fails with ParametersNotFound and mutates nothing.
// If the set is not calibratable, it fails immediately with
// ParameterSetNotCalibratable without inspecting updates at all.
func (s *Set) Update(updates map[string]Value) error {
	if !s.calibratable {
		return cderrors.New(cderrors.KindParameterSetNotCalibratable, s.name)
	}
	for name := range updates {
		if _, exists := s.parameters[name]; !exists {
			return cderrors.New(cderrors.KindParametersNotFound, name)
		}
	}
	for name, value := range updates {
		s.parameters[name] = value
	}
	return nil
}

// GetParameter returns a copy of the named parameter's value.
func (s *Set) GetParameter(name string) (Value, error) {
	v, ok := s.parameters[name]
	if !ok {
		return Value{}, cderrors.New(cderrors.KindParameterMissedError, name)
	}
	return v, nil
}

// SetCalibratable toggles whether Update is permitted.
func (s *Set) SetCalibratable(calibratable bool) {
	s.calibratable = calibratable
}

// Calibratable reports the current calibratable flag.
func (s *Set) Calibratable() bool { return s.calibratable }

// SetQualifier overwrites the set's qualifier.
func (s *Set) SetQualifier(q Qualifier) {
	s.qualifier = q
}

// GetQualifier returns the set's current qualifier.
func (s *Set) GetQualifier() Qualifier {
	return s.qualifier
}

type wireForm struct {
	Parameters map[string]Value `json:"parameters"`
	Qualifier  Qualifier         `json:"qualifier"`
}

// GetParameterSetAsString returns the canonical JSON form: an object
// with a lexicographically sorted "parameters" map and a "qualifier"
// byte. Go's encoding/json sorts string map keys during Marshal, which
// is what makes this the sorted form without any extra bookkeeping.
func (s *Set) GetParameterSetAsString() (string, error) {
	data, err := json.Marshal(wireForm{Parameters: s.parameters, Qualifier: s.qualifier})
	if err != nil {
		return "", cderrors.Wrap(cderrors.KindConvertingError, "failed to marshal parameter set", err)
	}
	return string(data), nil
}

// ParseSet reconstructs a Set named name from its canonical JSON form.
// Used by the provider to build a CachedSet from a fetched or persisted
// snapshot, and by round-trip tests.
func ParseSet(name string, rawJSON string) (*Set, error) {
	var decoded struct {
		Parameters map[string]json.RawMessage `json:"parameters"`
		Qualifier  Qualifier                  `json:"qualifier"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &decoded); err != nil {
		return nil, cderrors.Wrap(cderrors.KindParsingError, "Can't parse input set data as json format", err)
	}
	set := NewSet(name)
	set.qualifier = decoded.Qualifier
	set.calibratable = true
	for k, raw := range decoded.Parameters {
		v, err := decodeJSON(raw)
		if err != nil {
			return nil, cderrors.Wrap(cderrors.KindParsingError, "Can't parse parameter value as json format", err)
		}
		set.parameters[k] = NewValue(v)
	}
	return set, nil
}

// ParseUpdateObject parses a raw JSON object of name → value pairs for
// use with Update. It requires the top-level value to be an object.
func ParseUpdateObject(rawJSON string) (map[string]Value, error) {
	generic, err := decodeJSON([]byte(rawJSON))
	if err != nil {
		return nil, cderrors.Wrap(cderrors.KindParsingError, "Can't parse input set data as json format", err)
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, cderrors.New(cderrors.KindParsingError, "Set data expected to be object json formatted")
	}
	out := make(map[string]Value, len(obj))
	for k, v := range obj {
		out[k] = NewValue(normalizeDecoded(v))
	}
	return out, nil
}

// ContainsSameContent compares the parameters object (qualifier
// ignored) of two sets for structural equality.
func (s *Set) ContainsSameContent(other *Set) bool {
	if other == nil {
		return false
	}
	if len(s.parameters) != len(other.parameters) {
		return false
	}
	for name, v := range s.parameters {
		ov, ok := other.parameters[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ParameterNames returns the set's parameter names in sorted order,
// useful for tests and diagnostics.
func (s *Set) ParameterNames() []string {
	names := make([]string, 0, len(s.parameters))
	for name := range s.parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// clone returns a deep-enough copy of s for Collection.Snapshot: a new
// parameters map with the same Value entries (Values are treated as
// immutable once constructed).
func (s *Set) clone() *Set {
	cp := NewSet(s.name)
	cp.qualifier = s.qualifier
	cp.calibratable = s.calibratable
	for k, v := range s.parameters {
		cp.parameters[k] = v
	}
	return cp
}
