// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

// Package tuple models relation tuples and the predicate algebra used to
// query sets of them.
package tuple

import (
	"fmt"
	"strings"
)

// Tuple is one immutable fact in the relation graph: a resource, a relation,
// and a subject. Identity is the full seven-field value; there is no separate
// surrogate key.
type Tuple struct {
	ResourceTypeNamespace string
	ResourceTypeName      string
	ResourceID            string
	Relation              string
	SubjectTypeNamespace  string
	SubjectTypeName       string
	SubjectID             string
}

// New builds a tuple from its seven wire fields.
func New(resourceNS, resourceType, resourceID, relation, subjectNS, subjectType, subjectID string) Tuple {
	return Tuple{
		ResourceTypeNamespace: resourceNS,
		ResourceTypeName:      resourceType,
		ResourceID:            resourceID,
		Relation:              relation,
		SubjectTypeNamespace:  subjectNS,
		SubjectTypeName:       subjectType,
		SubjectID:             subjectID,
	}
}

// ObjectString renders the resource side as "namespace/type:id", the form the
// OpenFGA-backed store uses for object fields.
func (t Tuple) ObjectString() string {
	return t.ResourceTypeNamespace + "/" + t.ResourceTypeName + ":" + t.ResourceID
}

// SubjectString renders the subject side as "namespace/type:id".
func (t Tuple) SubjectString() string {
	return t.SubjectTypeNamespace + "/" + t.SubjectTypeName + ":" + t.SubjectID
}

// Key returns the composite "object#relation@subject" key. The relation store
// uses the same form for its tuple keys, so no content escaping is needed.
func (t Tuple) Key() string {
	return t.ObjectString() + "#" + t.Relation + "@" + t.SubjectString()
}

// String implements fmt.Stringer.
func (t Tuple) String() string {
	return t.Key()
}

// ParseRef parses a "namespace/type:id" reference into its parts.
func ParseRef(ref string) (namespace, typeName, id string, err error) {
	nsPart, idPart, found := strings.Cut(ref, ":")
	if !found {
		return "", "", "", fmt.Errorf("invalid reference %q: missing id separator", ref)
	}
	namespace, typeName, found = strings.Cut(nsPart, "/")
	if !found {
		return "", "", "", fmt.Errorf("invalid reference %q: missing namespace separator", ref)
	}
	if namespace == "" || typeName == "" || idPart == "" {
		return "", "", "", fmt.Errorf("invalid reference %q: empty component", ref)
	}
	return namespace, typeName, idPart, nil
}

// FromStrings rebuilds a tuple from the wire forms used by the remote store:
// an object reference, a relation, and a subject reference.
func FromStrings(object, relation, subject string) (Tuple, error) {
	rns, rt, rid, err := ParseRef(object)
	if err != nil {
		return Tuple{}, err
	}
	sns, st, sid, err := ParseRef(subject)
	if err != nil {
		return Tuple{}, err
	}
	if relation == "" {
		return Tuple{}, fmt.Errorf("invalid tuple %q#%q@%q: empty relation", object, relation, subject)
	}
	return New(rns, rt, rid, relation, sns, st, sid), nil
}
