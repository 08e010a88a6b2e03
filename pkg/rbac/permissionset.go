// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package rbac

import (
	"sort"
	"strings"
)

// PermissionSet is a canonical, order-independent set of permission strings.
// It is the identity key for v2 roles: two grants with equal sets map to the
// same v2 role.
type PermissionSet struct {
	perms map[string]struct{}
}

// NewPermissionSet builds a set from the given permissions, deduplicating.
func NewPermissionSet(permissions ...string) PermissionSet {
	set := PermissionSet{perms: make(map[string]struct{}, len(permissions))}
	for _, p := range permissions {
		set.perms[p] = struct{}{}
	}
	return set
}

// Len returns the number of distinct permissions.
func (s PermissionSet) Len() int {
	return len(s.perms)
}

// Contains reports whether the permission is in the set.
func (s PermissionSet) Contains(permission string) bool {
	_, ok := s.perms[permission]
	return ok
}

// Slice returns the permissions in sorted order.
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Relations returns the graph relation names for the permissions, sorted.
func (s PermissionSet) Relations() []string {
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, PermissionRelation(p))
	}
	sort.Strings(out)
	return out
}

// Key returns a canonical string form usable as a map key.
func (s PermissionSet) Key() string {
	return strings.Join(s.Slice(), "\n")
}

// Equal reports whether both sets hold the same permissions.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s.perms) != len(other.perms) {
		return false
	}
	for p := range s.perms {
		if _, ok := other.perms[p]; !ok {
			return false
		}
	}
	return true
}
