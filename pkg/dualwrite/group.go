// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package dualwrite

import (
	"context"
	"sort"

	"github.com/rbac-platform/relations-sync/pkg/rbac"
)

// GroupRelationHandler translates group membership changes and role-to-group
// policy changes into tuple mutations. Group events never touch v2 role or
// permission-set tuples; they only move member and subject edges.
type GroupRelationHandler struct {
	group      rbac.Group
	replicator Replicator
	store      rbac.Store
}

// NewGroupRelationHandler builds a handler for events about the given group.
func NewGroupRelationHandler(group rbac.Group, replicator Replicator, store rbac.Store) *GroupRelationHandler {
	return &GroupRelationHandler{group: group, replicator: replicator, store: store}
}

// ReplicateMembershipChange attaches and detaches member principals on the
// group resource.
func (h *GroupRelationHandler) ReplicateMembershipChange(ctx context.Context, added, removed []string) error {
	groupID := h.group.ID.String()
	event := ReplicationEvent{
		Type:         GroupMembershipChanged,
		PartitionKey: GroupPartitionKey(groupID),
	}
	for _, principal := range sortedCopy(added) {
		event.Add = append(event.Add, groupMemberTuple(groupID, principal))
	}
	for _, principal := range sortedCopy(removed) {
		event.Remove = append(event.Remove, groupMemberTuple(groupID, principal))
	}
	if event.Empty() {
		return nil
	}
	return h.replicate(ctx, event)
}

// ReplicateRoleAssignment attaches or detaches the group as subject on every
// role binding the given roles currently own, and records the change on the
// binding mappings so later binding replacements carry it forward.
func (h *GroupRelationHandler) ReplicateRoleAssignment(ctx context.Context, addedRoles, removedRoles []rbac.Role) error {
	groupID := h.group.ID.String()
	event := ReplicationEvent{
		Type:         PolicyBindingChanged,
		PartitionKey: GroupPartitionKey(groupID),
	}

	var updated []rbac.BindingMapping
	for _, role := range addedRoles {
		mappings, err := h.store.BindingMappings(ctx, role.ID)
		if err != nil {
			return &DiffComputationError{Reason: "loading binding mappings for role " + role.ID.String(), Err: err}
		}
		for _, mapping := range mappings {
			if containsString(mapping.Groups, groupID) {
				continue
			}
			event.Add = append(event.Add, bindingSubjectTuple(mapping.BindingID, groupID))
			mapping.Groups = append(mapping.Groups, groupID)
			sort.Strings(mapping.Groups)
			updated = append(updated, mapping)
		}
	}
	for _, role := range removedRoles {
		mappings, err := h.store.BindingMappings(ctx, role.ID)
		if err != nil {
			return &DiffComputationError{Reason: "loading binding mappings for role " + role.ID.String(), Err: err}
		}
		for _, mapping := range mappings {
			if !containsString(mapping.Groups, groupID) {
				continue
			}
			event.Remove = append(event.Remove, bindingSubjectTuple(mapping.BindingID, groupID))
			mapping.Groups = removeString(mapping.Groups, groupID)
			updated = append(updated, mapping)
		}
	}

	if event.Empty() {
		return nil
	}
	if err := h.replicate(ctx, event); err != nil {
		return err
	}
	for _, mapping := range updated {
		if err := h.store.PutBindingMapping(ctx, mapping); err != nil {
			return &DiffComputationError{Reason: "persisting binding mapping", Err: err}
		}
	}
	return nil
}

func (h *GroupRelationHandler) replicate(ctx context.Context, event ReplicationEvent) error {
	err := h.replicator.Replicate(ctx, event)
	if err == nil {
		return nil
	}
	if _, ok := err.(*ReplicationError); ok {
		return err
	}
	return &ReplicationError{EventType: event.Type, Err: err}
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func removeString(values []string, value string) []string {
	out := values[:0]
	for _, v := range values {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
