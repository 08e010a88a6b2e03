// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package constants

// NATS Key-Value store bucket names.
const (
	// KVBucketNameSyncCache is the name of the KV bucket holding the
	// access-list cache invalidation marker.
	KVBucketNameSyncCache = "relations-sync-cache"
)

// NATS subjects that the relations-sync service handles messages about.
// Subjects are prefixed with the environment name at subscription time.
const (
	// RoleCreatedSubject carries custom role creation events.
	// The subject is of the form: rbac.replicate.role_created
	RoleCreatedSubject = "rbac.replicate.role_created"

	// RoleUpdatedSubject carries custom role update events, including the
	// pre-update role state for diffing.
	// The subject is of the form: rbac.replicate.role_updated
	RoleUpdatedSubject = "rbac.replicate.role_updated"

	// RoleDeletedSubject carries custom role deletion events.
	// The subject is of the form: rbac.replicate.role_deleted
	RoleDeletedSubject = "rbac.replicate.role_deleted"

	// GroupMembershipSubject carries group membership change events.
	// The subject is of the form: rbac.replicate.group_membership
	GroupMembershipSubject = "rbac.replicate.group_membership"

	// PolicyBindingSubject carries role-to-group assignment events.
	// The subject is of the form: rbac.replicate.policy_binding
	PolicyBindingSubject = "rbac.replicate.policy_binding"
)

// NATS queue names.
const (
	// RelationsSyncQueue is the queue group name for the replication
	// subscriptions, so events for a subject are delivered to one replica.
	RelationsSyncQueue = "rbac.relations-sync.queue"
)
