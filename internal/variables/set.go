// Package variables holds ordered variable sets and the {{name}} template
// substitution applied to request fields.
package variables

import "sort"

// Set is an ordered key/value mapping. Keys keep the order in which they were
// first added; overwriting a key keeps its original position.
// The zero value is an empty set ready to use.
type Set struct {
	keys   []string
	values map[string]string
}

// FromMap builds a set from an unordered map. Keys are sorted so the result is
// deterministic.
func FromMap(m map[string]string) Set {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s Set
	for _, k := range keys {
		s.Put(k, m[k])
	}
	return s
}

// Put stores value under key.
func (s *Set) Put(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value stored under key.
func (s Set) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s Set) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s Set) Len() int {
	return len(s.keys)
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := Set{keys: make([]string, len(s.keys)), values: make(map[string]string, len(s.values))}
	copy(out.keys, s.keys)
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}

// Overlay returns a new set holding s with each layer applied on top, in order.
// Later layers win; keys first seen in a layer are appended after existing ones.
func (s Set) Overlay(layers ...Set) Set {
	out := s.Clone()
	for _, layer := range layers {
		for _, k := range layer.keys {
			out.Put(k, layer.values[k])
		}
	}
	return out
}

// Map returns a copy of the values as a plain map.
func (s Set) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
