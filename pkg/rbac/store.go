// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by store reads for absent records.
var ErrNotFound = errors.New("rbac: not found")

// BindingMapping records the graph identities a (role, workspace) pair
// currently owns: the role binding, the v2 role it grants, and the groups
// bound as subjects. It is persisted in the relational store within the same
// transaction as the primary write, because the graph alone cannot attribute
// a binding on a shared workspace to the permission-model role that produced
// it.
type BindingMapping struct {
	RoleID    uuid.UUID
	Workspace string
	V2RoleID  string
	BindingID string
	Groups    []string
}

// Store is the relational read layer the replication engine depends on, plus
// maintenance of the binding mappings it owns. All reads return
// fully-materialized value objects.
type Store interface {
	// UpsertRole creates or replaces a role and its access state.
	UpsertRole(ctx context.Context, role Role) error

	// GetRole returns the role with the given ID, or ErrNotFound.
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)

	// DeleteRole removes a role. Binding mappings are removed separately by
	// the replication engine once the graph deletion has been issued.
	DeleteRole(ctx context.Context, id uuid.UUID) error

	// UpsertGroup creates or replaces a group and its membership.
	UpsertGroup(ctx context.Context, group Group) error

	// GetGroup returns the group with the given ID, or ErrNotFound.
	GetGroup(ctx context.Context, id uuid.UUID) (Group, error)

	// UpsertPolicy creates or replaces a policy.
	UpsertPolicy(ctx context.Context, policy Policy) error

	// GroupsForRole returns the groups bound to the role through policies.
	GroupsForRole(ctx context.Context, roleID uuid.UUID) ([]Group, error)

	// BindingMappings returns all binding mappings for the role, across
	// every workspace (for system roles, across every tenant).
	BindingMappings(ctx context.Context, roleID uuid.UUID) ([]BindingMapping, error)

	// PutBindingMapping upserts the mapping keyed by (role, workspace).
	PutBindingMapping(ctx context.Context, mapping BindingMapping) error

	// DeleteBindingMapping removes the mapping for (role, workspace). Absent
	// mappings are a no-op.
	DeleteBindingMapping(ctx context.Context, roleID uuid.UUID, workspace string) error
}
