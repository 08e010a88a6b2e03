// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package tuple

// Field identifies one of the seven tuple fields a predicate can test.
type Field int

// Tuple fields addressable by predicates.
const (
	FieldResourceTypeNamespace Field = iota
	FieldResourceTypeName
	FieldResourceID
	FieldRelation
	FieldSubjectTypeNamespace
	FieldSubjectTypeName
	FieldSubjectID
)

func (t Tuple) field(f Field) string {
	switch f {
	case FieldResourceTypeNamespace:
		return t.ResourceTypeNamespace
	case FieldResourceTypeName:
		return t.ResourceTypeName
	case FieldResourceID:
		return t.ResourceID
	case FieldRelation:
		return t.Relation
	case FieldSubjectTypeNamespace:
		return t.SubjectTypeNamespace
	case FieldSubjectTypeName:
		return t.SubjectTypeName
	case FieldSubjectID:
		return t.SubjectID
	}
	return ""
}

type predicateOp int

const (
	opEquals predicateOp = iota
	opIn
	opAnd
	opOr
)

// Predicate is a composable matcher over tuples. It is a tagged-variant tree
// (and / or / field-equals / field-in) evaluated by a single matcher, so
// matching is total: every predicate either matches a tuple or it does not.
type Predicate struct {
	op       predicateOp
	field    Field
	value    string
	values   map[string]struct{}
	children []Predicate
}

// Matches reports whether the tuple satisfies the predicate.
func (p Predicate) Matches(t Tuple) bool {
	switch p.op {
	case opEquals:
		return t.field(p.field) == p.value
	case opIn:
		_, ok := p.values[t.field(p.field)]
		return ok
	case opAnd:
		for _, child := range p.children {
			if !child.Matches(t) {
				return false
			}
		}
		return true
	case opOr:
		for _, child := range p.children {
			if child.Matches(t) {
				return true
			}
		}
		return false
	}
	return false
}

// FieldEquals matches tuples whose field equals the literal value.
func FieldEquals(f Field, value string) Predicate {
	return Predicate{op: opEquals, field: f, value: value}
}

// FieldIn matches tuples whose field equals any of the literal values.
func FieldIn(f Field, values ...string) Predicate {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Predicate{op: opIn, field: f, values: set}
}

// AllOf is the boolean AND of the given predicates. With no arguments it
// matches every tuple.
func AllOf(predicates ...Predicate) Predicate {
	return Predicate{op: opAnd, children: predicates}
}

// OneOf is the boolean OR of the given predicates. With no arguments it
// matches no tuple.
func OneOf(predicates ...Predicate) Predicate {
	return Predicate{op: opOr, children: predicates}
}

// ResourceType matches tuples whose resource is of the given namespaced type.
func ResourceType(namespace, name string) Predicate {
	return AllOf(
		FieldEquals(FieldResourceTypeNamespace, namespace),
		FieldEquals(FieldResourceTypeName, name),
	)
}

// ResourceID matches tuples with the given resource ID, regardless of type.
func ResourceID(id string) Predicate {
	return FieldEquals(FieldResourceID, id)
}

// Resource matches tuples against a fully-qualified resource.
func Resource(namespace, name, id string) Predicate {
	return AllOf(ResourceType(namespace, name), ResourceID(id))
}

// Relation matches tuples with the given relation.
func Relation(name string) Predicate {
	return FieldEquals(FieldRelation, name)
}

// SubjectType matches tuples whose subject is of the given namespaced type.
func SubjectType(namespace, name string) Predicate {
	return AllOf(
		FieldEquals(FieldSubjectTypeNamespace, namespace),
		FieldEquals(FieldSubjectTypeName, name),
	)
}

// Subject matches tuples against a fully-qualified subject.
func Subject(namespace, name, id string) Predicate {
	return AllOf(SubjectType(namespace, name), FieldEquals(FieldSubjectID, id))
}
