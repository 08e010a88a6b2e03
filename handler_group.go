// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rbac-platform/relations-sync/pkg/dualwrite"
	"github.com/rbac-platform/relations-sync/pkg/rbac"
)

type groupStub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupEvent struct {
	Tenant         tenantStub `json:"tenant"`
	Group          groupStub  `json:"group"`
	AddedMembers   []string   `json:"added_members"`
	RemovedMembers []string   `json:"removed_members"`
}

type policyEvent struct {
	Tenant       tenantStub `json:"tenant"`
	Group        groupStub  `json:"group"`
	AddedRoles   []roleStub `json:"added_roles"`
	RemovedRoles []roleStub `json:"removed_roles"`
}

func (g groupStub) toGroup(tenantID string) (rbac.Group, error) {
	id, err := uuid.Parse(g.ID)
	if err != nil {
		return rbac.Group{}, fmt.Errorf("invalid group id %q: %w", g.ID, err)
	}
	return rbac.Group{ID: id, Name: g.Name, TenantID: tenantID}, nil
}

// groupMembershipHandler handles principal add/remove events for a group.
func (h *HandlerService) groupMembershipHandler(message INatsMsg) error {
	ctx := context.TODO()

	logger.With("message", string(message.Data())).InfoContext(ctx, "handling group membership event")

	event := new(groupEvent)
	if err := json.Unmarshal(message.Data(), event); err != nil {
		return h.replyError(ctx, message, "group event parse error", err)
	}

	group, err := event.Group.toGroup(event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "group event parse error", err)
	}

	handler := dualwrite.NewGroupRelationHandler(group, h.fgaService, h.rbacStore)
	if err := handler.ReplicateMembershipChange(ctx, event.AddedMembers, event.RemovedMembers); err != nil {
		return h.replyError(ctx, message, "failed to replicate group membership", err)
	}

	return h.replyOK(ctx, message, "replicated group membership event")
}

// policyBindingHandler handles policy changes that attach or detach a group
// from roles.
func (h *HandlerService) policyBindingHandler(message INatsMsg) error {
	ctx := context.TODO()

	logger.With("message", string(message.Data())).InfoContext(ctx, "handling policy binding event")

	event := new(policyEvent)
	if err := json.Unmarshal(message.Data(), event); err != nil {
		return h.replyError(ctx, message, "policy event parse error", err)
	}

	group, err := event.Group.toGroup(event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "policy event parse error", err)
	}

	added, err := rolesFromStubs(event.AddedRoles, event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "policy event parse error", err)
	}
	removed, err := rolesFromStubs(event.RemovedRoles, event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "policy event parse error", err)
	}

	handler := dualwrite.NewGroupRelationHandler(group, h.fgaService, h.rbacStore)
	if err := handler.ReplicateRoleAssignment(ctx, added, removed); err != nil {
		return h.replyError(ctx, message, "failed to replicate policy binding", err)
	}

	return h.replyOK(ctx, message, "replicated policy binding event")
}

func rolesFromStubs(stubs []roleStub, tenantID string) ([]rbac.Role, error) {
	var roles []rbac.Role
	for _, stub := range stubs {
		role, err := stub.toRole(tenantID)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}
