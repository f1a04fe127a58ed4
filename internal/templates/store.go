package templates

import (
	"bytes"
	"encoding/json"
)

// Store is an immutable ordered mapping of variable names to values.
// Operations return a new Store; the zero value is an empty store.
type Store struct {
	names  []string
	values map[string]string
}

// NewStore builds a store over names, taking values from the given map.
// Duplicate names are collapsed, first occurrence wins.
func NewStore(names []string, values map[string]string) Store {
	s := Store{
		names:  make([]string, 0, len(names)),
		values: make(map[string]string, len(names)),
	}
	for _, name := range names {
		if _, dup := s.values[name]; dup {
			continue
		}
		s.names = append(s.names, name)
		s.values[name] = values[name]
	}
	return s
}

// Reconcile builds the store for a freshly extracted set of names. Values of
// names still present are kept, new names start empty and names no longer
// extracted are dropped.
func Reconcile(extracted []string, previous Store) Store {
	return NewStore(extracted, previous.values)
}

// Names returns the variable names in order.
func (s Store) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of variables.
func (s Store) Len() int {
	return len(s.names)
}

// Has reports whether name is a variable of the store.
func (s Store) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Get returns the value of name.
func (s Store) Get(name string) (string, bool) {
	value, ok := s.values[name]
	return value, ok
}

// Value returns the value of name, or "" when unknown.
func (s Store) Value(name string) string {
	return s.values[name]
}

// With returns a store where name holds value. Names outside the key set are
// ignored so a late value edit cannot resurrect a dropped variable.
func (s Store) With(name, value string) Store {
	if !s.Has(name) || s.values[name] == value {
		return s
	}
	next := s.clone()
	next.values[name] = value
	return next
}

// Cleared returns a store with the same names and every value empty.
func (s Store) Cleared() Store {
	return NewStore(s.names, nil)
}

// Map returns a copy of the values keyed by name.
func (s Store) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both stores hold the same names, order and values.
func (s Store) Equal(other Store) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for i, name := range s.names {
		if other.names[i] != name || other.values[name] != s.values[name] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the store as an object with keys in variable order.
func (s Store) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s Store) clone() Store {
	next := Store{
		names:  s.names,
		values: make(map[string]string, len(s.values)),
	}
	for k, v := range s.values {
		next.values[k] = v
	}
	return next
}
