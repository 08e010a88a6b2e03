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

// Event payload stubs. Role events carry the full before/after
// permission-model state so the engine can diff without re-querying the
// relational layer.

type tenantStub struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	OrgID string `json:"org_id"`
}

type resourceDefinitionStub struct {
	Key       string `json:"key"`
	Operation string `json:"operation"`
	Value     string `json:"value"`
}

type accessStub struct {
	Permission         string                  `json:"permission"`
	ResourceDefinition *resourceDefinitionStub `json:"resource_definition,omitempty"`
}

type roleStub struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	System bool         `json:"system"`
	Access []accessStub `json:"access"`
}

type roleEvent struct {
	Tenant   tenantStub `json:"tenant"`
	Role     roleStub   `json:"role"`
	Previous *roleStub  `json:"previous,omitempty"`
}

func (t tenantStub) toTenant() rbac.Tenant {
	return rbac.Tenant{ID: t.ID, Name: t.Name, OrgID: t.OrgID}
}

func (r roleStub) toRole(tenantID string) (rbac.Role, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return rbac.Role{}, fmt.Errorf("invalid role id %q: %w", r.ID, err)
	}
	role := rbac.Role{
		ID:       id,
		Name:     r.Name,
		System:   r.System,
		TenantID: tenantID,
	}
	for _, access := range r.Access {
		entry := rbac.Access{Permission: access.Permission}
		if rd := access.ResourceDefinition; rd != nil {
			entry.ResourceDefinition = &rbac.ResourceDefinition{
				Key:       rd.Key,
				Operation: rd.Operation,
				Value:     rd.Value,
			}
		}
		role.Access = append(role.Access, entry)
	}
	return role, nil
}

// parseRoleEvent decodes and validates a role event payload.
func parseRoleEvent(data []byte) (*roleEvent, error) {
	event := new(roleEvent)
	if err := json.Unmarshal(data, event); err != nil {
		return nil, err
	}
	if event.Role.ID == "" {
		return nil, fmt.Errorf("role event without role id")
	}
	if event.Tenant.OrgID == "" {
		return nil, fmt.Errorf("role event without tenant org id")
	}
	return event, nil
}

// relationHandlerFor builds the dual-write handler for the event's role,
// using the system entry point for system roles.
func (h *HandlerService) relationHandlerFor(
	role rbac.Role,
	tenant rbac.Tenant,
	eventType dualwrite.ReplicationEventType,
) *dualwrite.RelationHandler {
	if role.System {
		return dualwrite.ForSystemRoleEvent(role, tenant, eventType, h.fgaService, h.rbacStore)
	}
	return dualwrite.NewRelationHandler(role, tenant, eventType, h.fgaService, h.rbacStore)
}

// roleCreatedHandler handles custom and system role creation events.
func (h *HandlerService) roleCreatedHandler(message INatsMsg) error {
	ctx := context.TODO()

	logger.With("message", string(message.Data())).InfoContext(ctx, "handling role created event")

	event, err := parseRoleEvent(message.Data())
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}

	role, err := event.Role.toRole(event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}

	eventType := dualwrite.CreateCustomRole
	if role.System {
		eventType = dualwrite.CreateSystemRole
	}
	handler := h.relationHandlerFor(role, event.Tenant.toTenant(), eventType)
	if err := handler.ReplicateNewOrUpdatedRole(ctx, role); err != nil {
		return h.replyError(ctx, message, "failed to replicate role", err)
	}

	return h.replyOK(ctx, message, "replicated role created event")
}

// roleUpdatedHandler handles custom role update events. The payload carries
// the pre-update role state, which seeds the diff snapshot.
func (h *HandlerService) roleUpdatedHandler(message INatsMsg) error {
	ctx := context.TODO()

	logger.With("message", string(message.Data())).InfoContext(ctx, "handling role updated event")

	event, err := parseRoleEvent(message.Data())
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}
	if event.Previous == nil {
		return h.replyError(ctx, message, "role event parse error",
			fmt.Errorf("update event without previous role state"))
	}

	previous, err := event.Previous.toRole(event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}
	role, err := event.Role.toRole(event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}

	handler := h.relationHandlerFor(previous, event.Tenant.toTenant(), dualwrite.UpdateCustomRole)
	if err := handler.PrepareForUpdate(ctx); err != nil {
		return h.replyError(ctx, message, "failed to replicate role", err)
	}
	if err := handler.ReplicateNewOrUpdatedRole(ctx, role); err != nil {
		return h.replyError(ctx, message, "failed to replicate role", err)
	}

	return h.replyOK(ctx, message, "replicated role updated event")
}

// roleDeletedHandler handles custom role deletion events.
func (h *HandlerService) roleDeletedHandler(message INatsMsg) error {
	ctx := context.TODO()

	logger.With("message", string(message.Data())).InfoContext(ctx, "handling role deleted event")

	event, err := parseRoleEvent(message.Data())
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}

	role, err := event.Role.toRole(event.Tenant.ID)
	if err != nil {
		return h.replyError(ctx, message, "role event parse error", err)
	}

	handler := h.relationHandlerFor(role, event.Tenant.toTenant(), dualwrite.DeleteCustomRole)
	if err := handler.ReplicateDeletedRole(ctx); err != nil {
		return h.replyError(ctx, message, "failed to replicate role", err)
	}

	return h.replyOK(ctx, message, "replicated role deleted event")
}

// replyError logs the error and sends an error reply if an inbox was
// provided. The original error is returned so queue-level accounting sees
// the failure.
func (h *HandlerService) replyError(ctx context.Context, message INatsMsg, errText string, err error) error {
	logger.With(errKey, err).ErrorContext(ctx, errText)
	if message.Reply() != "" {
		if errRespond := message.Respond([]byte(errText)); errRespond != nil {
			logger.With(errKey, errRespond).WarnContext(ctx, "failed to send reply")
		}
	}
	return err
}

// replyOK sends an OK reply if an inbox was provided.
func (h *HandlerService) replyOK(ctx context.Context, message INatsMsg, logText string) error {
	if message.Reply() != "" {
		if err := message.Respond([]byte("OK")); err != nil {
			logger.With(errKey, err).WarnContext(ctx, "failed to send reply")
			return err
		}
	}
	logger.With("subject", message.Subject()).InfoContext(ctx, logText)
	return nil
}
