// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package constants

// Relation graph schema constants. These names are shared with the
// relationship-check engine that consumes the graph and must not change
// without a coordinated schema migration.
const (
	// NamespaceRBAC is the namespace of every type this engine writes.
	NamespaceRBAC = "rbac"

	// Resource and subject types.
	ResourceTypeRole        = "role"
	ResourceTypeRoleBinding = "role_binding"
	ResourceTypeWorkspace   = "workspace"
	ResourceTypeGroup       = "group"
	ResourceTypePrincipal   = "principal"

	// RelationGranted points from a role binding to the v2 role it grants.
	RelationGranted = "granted"
	// RelationSubject points from a role binding to a bound group.
	RelationSubject = "subject"
	// RelationUserGrant points from a workspace to a role binding applying
	// to it.
	RelationUserGrant = "user_grant"
	// RelationMember points from a group to a member principal.
	RelationMember = "member"

	// SubjectWildcard grants a role permission to every principal; which
	// principals actually hold the permission is decided by the binding
	// chain, not the role resource itself.
	SubjectWildcard = "*"
)

// Permission-model attribute filter constants. An access row scoped to a
// workspace carries an attribute filter of this key and operation; anything
// else is unresolvable and aborts the diff.
const (
	AttributeFilterKey = "group.id"
	OperationEqual     = "equal"
)
