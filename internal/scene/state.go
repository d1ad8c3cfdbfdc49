// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scenio Contributors

// Package scene holds the scene-state value threaded through a strategy's
// stages. The state's document format is externally defined; the core never
// interprets its fields, it only carries them, so the API is limited to
// opaque key access, copy-on-write derivation, and JSON round-tripping.
package scene

import (
	"encoding/json"
	"maps"
	"sort"
)

// State is an immutable snapshot of the in-progress scene document. Stages
// receive a state and derive a new one via With/WithAll; the instance they
// received is never modified. A nil *State behaves like Empty().
type State struct {
	doc map[string]any
}

// Empty returns a state with no fields.
func Empty() *State {
	return &State{doc: map[string]any{}}
}

// FromMap builds a state from an existing document. The top-level map is
// copied; nested values are shared, so callers must not mutate them after
// handing the map over.
func FromMap(doc map[string]any) *State {
	s := Empty()
	maps.Copy(s.doc, doc)
	return s
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.doc[key]
	return v, ok
}

// With returns a new state with key set to value. The receiver is unchanged.
func (s *State) With(key string, value any) *State {
	next := s.clone()
	next.doc[key] = value
	return next
}

// WithAll returns a new state with every entry of fields set.
func (s *State) WithAll(fields map[string]any) *State {
	next := s.clone()
	maps.Copy(next.doc, fields)
	return next
}

// Without returns a new state with key removed.
func (s *State) Without(key string) *State {
	next := s.clone()
	delete(next.doc, key)
	return next
}

// Keys returns the state's field names, sorted.
func (s *State) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.doc))
	for k := range s.doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of top-level fields.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.doc)
}

// ToMap returns a copy of the state's document.
func (s *State) ToMap() map[string]any {
	out := map[string]any{}
	if s != nil {
		maps.Copy(out, s.doc)
	}
	return out
}

// MarshalJSON serializes the state document for persistence round-tripping.
func (s *State) MarshalJSON() ([]byte, error) {
	if s == nil || s.doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.doc)
}

// UnmarshalJSON restores a persisted state document.
func (s *State) UnmarshalJSON(data []byte) error {
	doc := map[string]any{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

func (s *State) clone() *State {
	next := Empty()
	if s != nil {
		maps.Copy(next.doc, s.doc)
	}
	return next
}
