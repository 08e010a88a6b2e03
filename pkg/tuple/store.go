// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package tuple

import "context"

// GroupKey identifies one partition of a grouped query: a namespaced type
// plus an ID, taken from either the resource or the subject side of a tuple.
type GroupKey struct {
	Namespace string
	Type      string
	ID        string
}

// ResourceKey groups tuples by their resource.
func ResourceKey(t Tuple) GroupKey {
	return GroupKey{Namespace: t.ResourceTypeNamespace, Type: t.ResourceTypeName, ID: t.ResourceID}
}

// SubjectKey groups tuples by their subject.
func SubjectKey(t Tuple) GroupKey {
	return GroupKey{Namespace: t.SubjectTypeNamespace, Type: t.SubjectTypeName, ID: t.SubjectID}
}

// Store is a set of relation tuples. Writes and deletes have set semantics:
// writing a tuple that is already present, or deleting one that is absent, is
// a no-op rather than an error, which makes any batch of mutations safe to
// re-apply.
type Store interface {
	// Write adds the tuples to the set.
	Write(ctx context.Context, tuples []Tuple) error

	// Delete removes the tuples from the set.
	Delete(ctx context.Context, tuples []Tuple) error

	// Find returns all tuples matching the predicate.
	Find(ctx context.Context, predicate Predicate) ([]Tuple, error)

	// FindTuplesGrouped returns all tuples matching the predicate,
	// partitioned by the group key function.
	FindTuplesGrouped(ctx context.Context, predicate Predicate, groupBy func(Tuple) GroupKey) (map[GroupKey][]Tuple, error)

	// FindGroupWithTuples partitions the full tuple set by the group key
	// function, keeps the groups passing groupFilter, and tests every
	// predicate against each kept group ("does some tuple in the group
	// satisfy it"). With requireFullMatch, only groups satisfying every
	// predicate are returned as matched; otherwise groups satisfying at
	// least one predicate are. The second return value holds the kept
	// groups that failed, for diagnostic reporting.
	FindGroupWithTuples(
		ctx context.Context,
		predicates []Predicate,
		groupBy func(Tuple) GroupKey,
		groupFilter func(GroupKey) bool,
		requireFullMatch bool,
	) (matched map[GroupKey][]Tuple, unmatched map[GroupKey][]Tuple, err error)
}
