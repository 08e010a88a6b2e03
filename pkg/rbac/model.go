// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

// Package rbac holds read-only value objects for the permission-list model:
// roles, access entries, groups, and policies as materialized by the
// relational layer. The types here carry no deferred evaluation; a Role value
// is the full state the diff engine needs.
package rbac

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rbac-platform/relations-sync/pkg/constants"
)

// Tenant is the owning tenant of custom roles and groups. OrgID doubles as
// the ID of the tenant's default workspace in the relation graph.
type Tenant struct {
	ID    string
	Name  string
	OrgID string
}

// ResourceDefinition is an attribute filter restricting an access entry to a
// named workspace.
type ResourceDefinition struct {
	Key       string
	Operation string
	Value     string
}

// Access is one permission grant within a role, optionally scoped by an
// attribute filter. A nil ResourceDefinition means the grant applies to the
// tenant's default workspace.
type Access struct {
	Permission         string
	ResourceDefinition *ResourceDefinition
}

// Scope resolves the access entry's resource scope as a sum type, so
// grouping logic can be exhaustive instead of testing a nullable field.
func (a Access) Scope() (Scope, error) {
	rd := a.ResourceDefinition
	if rd == nil {
		return DefaultScope(), nil
	}
	if rd.Key != constants.AttributeFilterKey || rd.Operation != constants.OperationEqual || rd.Value == "" {
		return Scope{}, fmt.Errorf(
			"access %q has unresolvable attribute filter {key: %q, operation: %q, value: %q}",
			a.Permission, rd.Key, rd.Operation, rd.Value,
		)
	}
	return WorkspaceScope(rd.Value), nil
}

// Role is a permission-model role with its full access state.
type Role struct {
	ID       uuid.UUID
	Name     string
	System   bool
	TenantID string
	Access   []Access
}

// Group is a named collection of principals within a tenant.
type Group struct {
	ID         uuid.UUID
	Name       string
	TenantID   string
	Principals []string
}

// Policy binds one group to one or more roles within a tenant.
type Policy struct {
	ID       uuid.UUID
	Name     string
	TenantID string
	GroupID  uuid.UUID
	RoleIDs  []uuid.UUID
}

// Scope is the resource scope of an access entry: either the tenant's
// default workspace or a named workspace from an attribute filter.
type Scope struct {
	workspace string
}

// DefaultScope is the tenant's default workspace scope.
func DefaultScope() Scope {
	return Scope{}
}

// WorkspaceScope is the scope of the named workspace.
func WorkspaceScope(id string) Scope {
	return Scope{workspace: id}
}

// IsDefault reports whether this is the default workspace scope.
func (s Scope) IsDefault() bool {
	return s.workspace == ""
}

// WorkspaceID resolves the scope to a concrete workspace ID given the
// tenant's default workspace.
func (s Scope) WorkspaceID(defaultWorkspace string) string {
	if s.IsDefault() {
		return defaultWorkspace
	}
	return s.workspace
}

func (s Scope) String() string {
	if s.IsDefault() {
		return "default"
	}
	return "workspace:" + s.workspace
}

// ValidatePermission checks the app:resource_type:verb shape of a permission
// string.
func ValidatePermission(permission string) error {
	parts := strings.Split(permission, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return fmt.Errorf("permission %q is not of the form app:resource_type:verb", permission)
	}
	return nil
}

// PermissionRelation converts a permission string to its relation name in
// the graph schema.
func PermissionRelation(permission string) string {
	return strings.ReplaceAll(permission, ":", "_")
}
