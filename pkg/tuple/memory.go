// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package tuple

import (
	"context"
	"sort"
	"sync"
)

// InMemoryTuples is a deterministic, indexed Store implementation. It backs
// the in-memory replicator in tests and any caller that wants to run the
// grouped-query operations over a snapshot of remote tuples.
type InMemoryTuples struct {
	mu sync.RWMutex

	// byKey is the authoritative set, keyed by the full tuple key.
	byKey map[string]Tuple

	// byResource indexes tuple keys by resource, so resource-scoped reads
	// do not scan the full set.
	byResource map[GroupKey]map[string]struct{}
}

var _ Store = (*InMemoryTuples)(nil)

// NewInMemoryTuples returns an empty store seeded with the given tuples.
func NewInMemoryTuples(tuples ...Tuple) *InMemoryTuples {
	s := &InMemoryTuples{
		byKey:      make(map[string]Tuple),
		byResource: make(map[GroupKey]map[string]struct{}),
	}
	for _, t := range tuples {
		s.put(t)
	}
	return s
}

func (s *InMemoryTuples) put(t Tuple) {
	key := t.Key()
	if _, ok := s.byKey[key]; ok {
		return
	}
	s.byKey[key] = t
	rk := ResourceKey(t)
	if s.byResource[rk] == nil {
		s.byResource[rk] = make(map[string]struct{})
	}
	s.byResource[rk][key] = struct{}{}
}

func (s *InMemoryTuples) remove(t Tuple) {
	key := t.Key()
	if _, ok := s.byKey[key]; !ok {
		return
	}
	delete(s.byKey, key)
	rk := ResourceKey(t)
	delete(s.byResource[rk], key)
	if len(s.byResource[rk]) == 0 {
		delete(s.byResource, rk)
	}
}

// Write implements Store.
func (s *InMemoryTuples) Write(_ context.Context, tuples []Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tuples {
		s.put(t)
	}
	return nil
}

// Delete implements Store.
func (s *InMemoryTuples) Delete(_ context.Context, tuples []Tuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tuples {
		s.remove(t)
	}
	return nil
}

// Count returns the number of tuples in the set.
func (s *InMemoryTuples) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Contains reports whether the exact tuple is present.
func (s *InMemoryTuples) Contains(t Tuple) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[t.Key()]
	return ok
}

// ResourceTuples returns all tuples against the given resource, sorted by
// key for deterministic iteration.
func (s *InMemoryTuples) ResourceTuples(key GroupKey) []Tuple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.byResource[key]
	out := make([]Tuple, 0, len(keys))
	for k := range keys {
		out = append(out, s.byKey[k])
	}
	sortTuples(out)
	return out
}

// Find implements Store.
func (s *InMemoryTuples) Find(_ context.Context, predicate Predicate) ([]Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Tuple
	for _, t := range s.byKey {
		if predicate.Matches(t) {
			out = append(out, t)
		}
	}
	sortTuples(out)
	return out, nil
}

// FindTuplesGrouped implements Store.
func (s *InMemoryTuples) FindTuplesGrouped(
	_ context.Context,
	predicate Predicate,
	groupBy func(Tuple) GroupKey,
) (map[GroupKey][]Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make(map[GroupKey][]Tuple)
	for _, t := range s.byKey {
		if predicate.Matches(t) {
			key := groupBy(t)
			groups[key] = append(groups[key], t)
		}
	}
	for _, tuples := range groups {
		sortTuples(tuples)
	}
	return groups, nil
}

// FindGroupWithTuples implements Store.
func (s *InMemoryTuples) FindGroupWithTuples(
	_ context.Context,
	predicates []Predicate,
	groupBy func(Tuple) GroupKey,
	groupFilter func(GroupKey) bool,
	requireFullMatch bool,
) (map[GroupKey][]Tuple, map[GroupKey][]Tuple, error) {
	s.mu.RLock()
	groups := make(map[GroupKey][]Tuple)
	for _, t := range s.byKey {
		key := groupBy(t)
		if groupFilter != nil && !groupFilter(key) {
			continue
		}
		groups[key] = append(groups[key], t)
	}
	s.mu.RUnlock()

	matched := make(map[GroupKey][]Tuple)
	unmatched := make(map[GroupKey][]Tuple)
	for key, tuples := range groups {
		sortTuples(tuples)
		satisfied := 0
		for _, p := range predicates {
			for _, t := range tuples {
				if p.Matches(t) {
					satisfied++
					break
				}
			}
		}
		ok := satisfied == len(predicates)
		if !requireFullMatch {
			ok = satisfied > 0
		}
		if ok {
			matched[key] = tuples
		} else {
			unmatched[key] = tuples
		}
	}
	return matched, unmatched, nil
}

func sortTuples(tuples []Tuple) {
	sort.Slice(tuples, func(i, j int) bool {
		return tuples[i].Key() < tuples[j].Key()
	})
}
