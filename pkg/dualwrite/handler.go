// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package dualwrite

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/rbac-platform/relations-sync/pkg/rbac"
	"github.com/rbac-platform/relations-sync/pkg/tuple"
)

// workspaceState is the snapshot of one workspace's graph slice before the
// mutation being replicated: its effective permission set (from the
// pre-update role state) and its binding mapping, if one exists.
type workspaceState struct {
	permissions rbac.PermissionSet
	hasScope    bool
	mapping     rbac.BindingMapping
	hasMapping  bool
}

// RelationHandler translates one permission-model role mutation into the
// minimal equivalent set of relation-tuple mutations. A handler is a single
// sequential unit of work: construct it with the role's pre-mutation state,
// optionally call PrepareForUpdate, then call exactly one Replicate method.
// The handler assumes the caller serializes mutations per role (for example
// with a row lock); it never races itself over the same role.
type RelationHandler struct {
	role       rbac.Role
	tenant     rbac.Tenant
	eventType  ReplicationEventType
	replicator Replicator
	store      rbac.Store

	// systemRole switches v2 role identity to a deterministic derivation so
	// one system role shares one v2 role across every tenant.
	systemRole bool

	prepared   bool
	current    map[string]workspaceState
	outOfScope []rbac.BindingMapping
}

// NewRelationHandler builds a handler for a custom role event. For update
// events, role must be the role's pre-update state.
func NewRelationHandler(
	role rbac.Role,
	tenant rbac.Tenant,
	eventType ReplicationEventType,
	replicator Replicator,
	store rbac.Store,
) *RelationHandler {
	return &RelationHandler{
		role:       role,
		tenant:     tenant,
		eventType:  eventType,
		replicator: replicator,
		store:      store,
	}
}

// ForSystemRoleEvent builds a handler for a system role event within one
// tenant. System roles are shared across tenants: their v2 role identity is
// derived from the role itself, and only the given tenant's bindings are in
// scope for this handler.
func ForSystemRoleEvent(
	role rbac.Role,
	tenant rbac.Tenant,
	eventType ReplicationEventType,
	replicator Replicator,
	store rbac.Store,
) *RelationHandler {
	h := NewRelationHandler(role, tenant, eventType, replicator, store)
	h.systemRole = true
	return h
}

func (h *RelationHandler) defaultWorkspace() string {
	return h.tenant.OrgID
}

// inScope reports whether a mapping belongs to this handler's unit of work.
// Custom roles own all their mappings; a system role handler only touches
// its own tenant's default workspace.
func (h *RelationHandler) inScope(mapping rbac.BindingMapping) bool {
	if !h.systemRole {
		return true
	}
	return mapping.Workspace == h.defaultWorkspace()
}

// snapshot captures the pre-mutation workspace states: permission sets from
// the role state held since construction, binding identities from the
// mapping store.
func (h *RelationHandler) snapshot(ctx context.Context) error {
	oldScopes, err := PermissionsByScope(h.role, h.defaultWorkspace())
	if err != nil {
		return err
	}
	if err := h.checkSystemScopes(oldScopes); err != nil {
		return err
	}

	mappings, err := h.store.BindingMappings(ctx, h.role.ID)
	if err != nil {
		return &DiffComputationError{Reason: "loading binding mappings for role " + h.role.ID.String(), Err: err}
	}

	h.current = make(map[string]workspaceState)
	h.outOfScope = nil
	for workspace, set := range oldScopes {
		h.current[workspace] = workspaceState{permissions: set, hasScope: true}
	}
	for _, mapping := range mappings {
		if !h.inScope(mapping) {
			h.outOfScope = append(h.outOfScope, mapping)
			continue
		}
		state := h.current[mapping.Workspace]
		state.mapping = mapping
		state.hasMapping = true
		h.current[mapping.Workspace] = state
	}
	return nil
}

// checkSystemScopes rejects resource-scoped access on system roles: a named
// workspace scope on a tenant-shared role would collide across tenants.
func (h *RelationHandler) checkSystemScopes(scopes map[string]rbac.PermissionSet) error {
	if !h.systemRole {
		return nil
	}
	for workspace := range scopes {
		if workspace != h.defaultWorkspace() {
			return &DiffComputationError{
				Reason: "system role " + h.role.ID.String() + " has resource-scoped access for workspace " + workspace,
			}
		}
	}
	return nil
}

// PrepareForUpdate snapshots the role's current workspace states before the
// caller mutates the permission model. It must be called exactly once before
// the corresponding ReplicateNewOrUpdatedRole for an update event.
func (h *RelationHandler) PrepareForUpdate(ctx context.Context) error {
	if h.prepared {
		return &StateInvariantViolation{Msg: "PrepareForUpdate called twice without an intervening replicate"}
	}
	if err := h.snapshot(ctx); err != nil {
		return err
	}
	h.prepared = true
	return nil
}

// newV2RoleID mints the identity for a v2 role backing the given permission
// set. Custom roles get a random identity. System roles derive it from the
// role UUID and the set, so every tenant's seeding resolves the same shared
// v2 role and re-seeding is idempotent.
func (h *RelationHandler) newV2RoleID(set rbac.PermissionSet) string {
	if h.systemRole {
		return uuid.NewSHA1(h.role.ID, []byte(set.Key())).String()
	}
	return uuid.NewString()
}

// ReplicateNewOrUpdatedRole diffs the given (new) role state against the
// snapshot and issues the minimal tuple mutations: untouched workspaces
// produce no mutations at all, changed workspaces get their binding replaced
// with bound groups carried forward, removed workspaces lose their binding,
// and v2 roles no longer referenced by any binding are deleted.
func (h *RelationHandler) ReplicateNewOrUpdatedRole(ctx context.Context, role rbac.Role) error {
	switch h.eventType {
	case UpdateCustomRole:
		if !h.prepared {
			return &StateInvariantViolation{Msg: "update replicated without a prior PrepareForUpdate"}
		}
	default:
		if !h.prepared {
			if err := h.snapshot(ctx); err != nil {
				return err
			}
		}
	}

	newScopes, err := PermissionsByScope(role, h.defaultWorkspace())
	if err != nil {
		return err
	}
	if err := h.checkSystemScopes(newScopes); err != nil {
		return err
	}

	// Groups currently bound to this role through policies, used for
	// bindings on workspaces the role did not cover before.
	roleGroups, err := h.boundGroupIDs(ctx)
	if err != nil {
		return err
	}

	// Pool of v2 roles resolvable by permission set. Existing identities
	// are seeded first so an update that converges two workspaces onto one
	// set reuses the surviving v2 role instead of minting a duplicate.
	pool := make(map[string]string)
	for _, state := range h.current {
		if state.hasMapping && state.hasScope {
			pool[state.permissions.Key()] = state.mapping.V2RoleID
		}
	}

	var adds, removes []tuple.Tuple
	kept := make(map[string]rbac.BindingMapping)
	var putMappings []rbac.BindingMapping
	var dropWorkspaces []string

	for _, workspace := range sortedKeys(newScopes) {
		newSet := newScopes[workspace]
		state := h.current[workspace]

		if state.hasMapping && state.hasScope && state.permissions.Equal(newSet) {
			// Untouched workspace: same permission set before and after, no
			// tuple mutation of any kind.
			kept[workspace] = state.mapping
			continue
		}

		v2RoleID, ok := pool[newSet.Key()]
		if !ok {
			v2RoleID = h.newV2RoleID(newSet)
			pool[newSet.Key()] = v2RoleID
			adds = append(adds, v2RoleTuples(v2RoleID, newSet)...)
		}

		groups := roleGroups
		if state.hasMapping {
			// The binding identity changes but the bound group set is
			// carried forward from the previous binding.
			groups = state.mapping.Groups
			removes = append(removes, bindingTuples(
				state.mapping.BindingID, workspace, state.mapping.V2RoleID, state.mapping.Groups)...)
		}

		bindingID := uuid.NewString()
		adds = append(adds, bindingTuples(bindingID, workspace, v2RoleID, groups)...)
		mapping := rbac.BindingMapping{
			RoleID:    h.role.ID,
			Workspace: workspace,
			V2RoleID:  v2RoleID,
			BindingID: bindingID,
			Groups:    groups,
		}
		kept[workspace] = mapping
		putMappings = append(putMappings, mapping)
	}

	// Workspaces dropped from the role's mapping entirely: delete the
	// binding, create no replacement.
	for _, workspace := range sortedKeys(h.current) {
		state := h.current[workspace]
		if _, stillPresent := newScopes[workspace]; stillPresent || !state.hasMapping {
			continue
		}
		removes = append(removes, bindingTuples(
			state.mapping.BindingID, workspace, state.mapping.V2RoleID, state.mapping.Groups)...)
		dropWorkspaces = append(dropWorkspaces, workspace)
	}

	removes = append(removes, h.orphanedV2RoleTuples(kept)...)

	event := ReplicationEvent{
		Type:         h.eventType,
		PartitionKey: RolePartitionKey(h.role.ID.String()),
		Add:          adds,
		Remove:       removes,
	}
	if !event.Empty() {
		if err := h.replicate(ctx, event); err != nil {
			return err
		}
	}

	for _, mapping := range putMappings {
		if err := h.store.PutBindingMapping(ctx, mapping); err != nil {
			return &DiffComputationError{Reason: "persisting binding mapping", Err: err}
		}
	}
	for _, workspace := range dropWorkspaces {
		if err := h.store.DeleteBindingMapping(ctx, h.role.ID, workspace); err != nil {
			return &DiffComputationError{Reason: "removing binding mapping", Err: err}
		}
	}

	h.role = role
	h.prepared = false
	h.current = nil
	h.outOfScope = nil
	return nil
}

// ReplicateDeletedRole deletes every role binding this role owns in scope
// and every v2 role no longer referenced by any remaining binding. Bindings
// and v2 roles of other roles are untouched even when their permission sets
// are identical.
func (h *RelationHandler) ReplicateDeletedRole(ctx context.Context) error {
	if !h.prepared {
		if err := h.snapshot(ctx); err != nil {
			return err
		}
	}

	var removes []tuple.Tuple
	var dropWorkspaces []string
	for _, workspace := range sortedKeys(h.current) {
		state := h.current[workspace]
		if !state.hasMapping {
			continue
		}
		removes = append(removes, bindingTuples(
			state.mapping.BindingID, workspace, state.mapping.V2RoleID, state.mapping.Groups)...)
		dropWorkspaces = append(dropWorkspaces, workspace)
	}
	removes = append(removes, h.orphanedV2RoleTuples(nil)...)

	event := ReplicationEvent{
		Type:         h.eventType,
		PartitionKey: RolePartitionKey(h.role.ID.String()),
		Remove:       removes,
	}
	if !event.Empty() {
		if err := h.replicate(ctx, event); err != nil {
			return err
		}
	}

	for _, workspace := range dropWorkspaces {
		if err := h.store.DeleteBindingMapping(ctx, h.role.ID, workspace); err != nil {
			return &DiffComputationError{Reason: "removing binding mapping", Err: err}
		}
	}

	h.prepared = false
	h.current = nil
	h.outOfScope = nil
	return nil
}

// orphanedV2RoleTuples returns the permission tuples of v2 roles from the
// snapshot that no kept or out-of-scope binding references anymore.
func (h *RelationHandler) orphanedV2RoleTuples(kept map[string]rbac.BindingMapping) []tuple.Tuple {
	referenced := make(map[string]struct{})
	for _, mapping := range kept {
		referenced[mapping.V2RoleID] = struct{}{}
	}
	for _, mapping := range h.outOfScope {
		referenced[mapping.V2RoleID] = struct{}{}
	}

	var out []tuple.Tuple
	deleted := make(map[string]struct{})
	for _, workspace := range sortedKeys(h.current) {
		state := h.current[workspace]
		if !state.hasMapping || !state.hasScope {
			continue
		}
		id := state.mapping.V2RoleID
		if _, ok := referenced[id]; ok {
			continue
		}
		if _, ok := deleted[id]; ok {
			continue
		}
		deleted[id] = struct{}{}
		out = append(out, v2RoleTuples(id, state.permissions)...)
	}
	return out
}

// boundGroupIDs returns the IDs of groups bound to this role through
// policies, sorted for deterministic tuple output.
func (h *RelationHandler) boundGroupIDs(ctx context.Context) ([]string, error) {
	groups, err := h.store.GroupsForRole(ctx, h.role.ID)
	if err != nil {
		return nil, &DiffComputationError{Reason: "loading groups for role " + h.role.ID.String(), Err: err}
	}
	out := make([]string, 0, len(groups))
	for _, group := range groups {
		out = append(out, group.ID.String())
	}
	sort.Strings(out)
	return out, nil
}

func (h *RelationHandler) replicate(ctx context.Context, event ReplicationEvent) error {
	err := h.replicator.Replicate(ctx, event)
	if err == nil {
		return nil
	}
	if _, ok := err.(*ReplicationError); ok {
		return err
	}
	return &ReplicationError{EventType: event.Type, Err: err}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
