// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package dualwrite

import (
	"github.com/rbac-platform/relations-sync/pkg/constants"
	"github.com/rbac-platform/relations-sync/pkg/rbac"
	"github.com/rbac-platform/relations-sync/pkg/tuple"
)

// PermissionsByScope groups a role's access entries into per-workspace
// permission sets. Access entries without an attribute filter land on the
// tenant's default workspace. A role may resolve to zero, one, or many
// workspaces.
func PermissionsByScope(role rbac.Role, defaultWorkspace string) (map[string]rbac.PermissionSet, error) {
	scopes := make(map[string]rbac.PermissionSet)
	for _, access := range role.Access {
		if err := rbac.ValidatePermission(access.Permission); err != nil {
			return nil, &DiffComputationError{Reason: "invalid permission in role " + role.ID.String(), Err: err}
		}
		scope, err := access.Scope()
		if err != nil {
			return nil, &DiffComputationError{Reason: "unresolvable scope in role " + role.ID.String(), Err: err}
		}
		if scope.IsDefault() && defaultWorkspace == "" {
			return nil, &DiffComputationError{
				Reason: "role " + role.ID.String() + " grants default-workspace access but the tenant has no org ID",
			}
		}
		workspace := scope.WorkspaceID(defaultWorkspace)
		set, ok := scopes[workspace]
		if !ok {
			set = rbac.NewPermissionSet()
		}
		set = rbac.NewPermissionSet(append(set.Slice(), access.Permission)...)
		scopes[workspace] = set
	}
	return scopes, nil
}

// v2RoleTuples is the tuple encoding of one v2 role: one relation per
// permission, granted to the principal wildcard. Which principals actually
// hold the permission is decided by the binding chain.
func v2RoleTuples(v2RoleID string, permissions rbac.PermissionSet) []tuple.Tuple {
	relations := permissions.Relations()
	out := make([]tuple.Tuple, 0, len(relations))
	for _, relation := range relations {
		out = append(out, tuple.New(
			constants.NamespaceRBAC, constants.ResourceTypeRole, v2RoleID,
			relation,
			constants.NamespaceRBAC, constants.ResourceTypePrincipal, constants.SubjectWildcard,
		))
	}
	return out
}

// bindingTuples is the tuple encoding of one role binding: the workspace
// grant pointing at the binding, the granted v2 role, and one subject tuple
// per bound group.
func bindingTuples(bindingID, workspace, v2RoleID string, groups []string) []tuple.Tuple {
	out := make([]tuple.Tuple, 0, 2+len(groups))
	out = append(out, tuple.New(
		constants.NamespaceRBAC, constants.ResourceTypeWorkspace, workspace,
		constants.RelationUserGrant,
		constants.NamespaceRBAC, constants.ResourceTypeRoleBinding, bindingID,
	))
	out = append(out, tuple.New(
		constants.NamespaceRBAC, constants.ResourceTypeRoleBinding, bindingID,
		constants.RelationGranted,
		constants.NamespaceRBAC, constants.ResourceTypeRole, v2RoleID,
	))
	for _, groupID := range groups {
		out = append(out, tuple.New(
			constants.NamespaceRBAC, constants.ResourceTypeRoleBinding, bindingID,
			constants.RelationSubject,
			constants.NamespaceRBAC, constants.ResourceTypeGroup, groupID,
		))
	}
	return out
}

// groupMemberTuple encodes one group membership fact.
func groupMemberTuple(groupID, principal string) tuple.Tuple {
	return tuple.New(
		constants.NamespaceRBAC, constants.ResourceTypeGroup, groupID,
		constants.RelationMember,
		constants.NamespaceRBAC, constants.ResourceTypePrincipal, principal,
	)
}

// bindingSubjectTuple encodes one group bound as subject on a role binding.
func bindingSubjectTuple(bindingID, groupID string) tuple.Tuple {
	return tuple.New(
		constants.NamespaceRBAC, constants.ResourceTypeRoleBinding, bindingID,
		constants.RelationSubject,
		constants.NamespaceRBAC, constants.ResourceTypeGroup, groupID,
	)
}
