// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

// Package dualwrite translates permission-model mutations into minimal,
// idempotent relation-tuple mutations and ships them through a Replicator.
package dualwrite

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/rbac-platform/relations-sync/pkg/tuple"
)

// ReplicationEventType tags what changed at the permission-model layer.
type ReplicationEventType string

// Replication event types.
const (
	CreateCustomRole       ReplicationEventType = "create_custom_role"
	UpdateCustomRole       ReplicationEventType = "update_custom_role"
	DeleteCustomRole       ReplicationEventType = "delete_custom_role"
	CreateSystemRole       ReplicationEventType = "create_system_role"
	CreateTenantSystemRole ReplicationEventType = "create_tenant_system_role"
	GroupMembershipChanged ReplicationEventType = "group_membership_changed"
	PolicyBindingChanged   ReplicationEventType = "policy_binding_changed"
)

// PartitionKey orders events: events sharing a partition key must be applied
// in the order their relational mutations occurred.
type PartitionKey string

// RolePartitionKey partitions by role ID.
func RolePartitionKey(roleID string) PartitionKey {
	return PartitionKey("role:" + roleID)
}

// GroupPartitionKey partitions by group ID.
func GroupPartitionKey(groupID string) PartitionKey {
	return PartitionKey("group:" + groupID)
}

// ReplicationEvent is one all-or-nothing batch of tuple mutations derived
// from a single permission-model change.
type ReplicationEvent struct {
	Type         ReplicationEventType
	PartitionKey PartitionKey
	Add          []tuple.Tuple
	Remove       []tuple.Tuple
}

// Empty reports whether the event carries no mutations.
func (e ReplicationEvent) Empty() bool {
	return len(e.Add) == 0 && len(e.Remove) == 0
}

// IdempotencyKey derives a stable key from the event content. Two deliveries
// of the same logical event hash identically regardless of tuple order, so a
// transport can detect and drop duplicates.
func (e ReplicationEvent) IdempotencyKey() string {
	h := sha256.New()
	h.Write([]byte(e.Type))
	h.Write([]byte{0})
	h.Write([]byte(e.PartitionKey))
	for _, section := range [][]tuple.Tuple{e.Add, e.Remove} {
		h.Write([]byte{0})
		keys := make([]string, len(section))
		for i, t := range section {
			keys[i] = t.Key()
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{'\n'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
