// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package rbac

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreTests runs the Store contract tests against both implementations,
// so the sqlite store cannot drift from the in-memory fixture behavior.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	t.Run("role round trip", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		role := Role{
			ID:       uuid.New(),
			Name:     "platform admin",
			TenantID: "tenant-1",
			Access: []Access{
				{Permission: "app:hosts:read"},
				{
					Permission:         "app:hosts:write",
					ResourceDefinition: &ResourceDefinition{Key: "group.id", Operation: "equal", Value: "ws-2"},
				},
			},
		}
		require.NoError(t, store.UpsertRole(ctx, role))

		got, err := store.GetRole(ctx, role.ID)
		require.NoError(t, err)
		assert.Equal(t, role, got)

		// Upsert replaces the full access state.
		role.Access = role.Access[:1]
		role.Name = "platform reader"
		require.NoError(t, store.UpsertRole(ctx, role))
		got, err = store.GetRole(ctx, role.ID)
		require.NoError(t, err)
		assert.Equal(t, role, got)

		require.NoError(t, store.DeleteRole(ctx, role.ID))
		_, err = store.GetRole(ctx, role.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("group round trip", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		group := Group{
			ID:         uuid.New(),
			Name:       "operators",
			TenantID:   "tenant-1",
			Principals: []string{"user-1", "user-2"},
		}
		require.NoError(t, store.UpsertGroup(ctx, group))

		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, group, got)

		_, err = store.GetGroup(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("groups for role joins policies", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		roleID := uuid.New()
		otherRoleID := uuid.New()
		groupA := Group{ID: uuid.New(), Name: "a", TenantID: "tenant-1"}
		groupB := Group{ID: uuid.New(), Name: "b", TenantID: "tenant-1"}
		groupC := Group{ID: uuid.New(), Name: "c", TenantID: "tenant-1"}
		for _, g := range []Group{groupA, groupB, groupC} {
			require.NoError(t, store.UpsertGroup(ctx, g))
		}

		policies := []Policy{
			{ID: uuid.New(), TenantID: "tenant-1", GroupID: groupA.ID, RoleIDs: []uuid.UUID{roleID}},
			{ID: uuid.New(), TenantID: "tenant-1", GroupID: groupB.ID, RoleIDs: []uuid.UUID{otherRoleID, roleID}},
			{ID: uuid.New(), TenantID: "tenant-1", GroupID: groupC.ID, RoleIDs: []uuid.UUID{otherRoleID}},
			// A second policy binding group A to the same role must not
			// produce a duplicate.
			{ID: uuid.New(), TenantID: "tenant-1", GroupID: groupA.ID, RoleIDs: []uuid.UUID{roleID}},
		}
		for _, p := range policies {
			require.NoError(t, store.UpsertPolicy(ctx, p))
		}

		groups, err := store.GroupsForRole(ctx, roleID)
		require.NoError(t, err)
		require.Len(t, groups, 2)

		ids := []string{groups[0].ID.String(), groups[1].ID.String()}
		assert.Contains(t, ids, groupA.ID.String())
		assert.Contains(t, ids, groupB.ID.String())
		assert.Less(t, ids[0], ids[1], "results are ordered by group ID")
	})

	t.Run("binding mappings", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		roleID := uuid.New()
		mappingDefault := BindingMapping{
			RoleID:    roleID,
			Workspace: "org-default",
			V2RoleID:  uuid.NewString(),
			BindingID: uuid.NewString(),
			Groups:    []string{"g-1"},
		}
		mappingScoped := BindingMapping{
			RoleID:    roleID,
			Workspace: "ws-2",
			V2RoleID:  uuid.NewString(),
			BindingID: uuid.NewString(),
			Groups:    []string{"g-3"},
		}
		require.NoError(t, store.PutBindingMapping(ctx, mappingDefault))
		require.NoError(t, store.PutBindingMapping(ctx, mappingScoped))

		mappings, err := store.BindingMappings(ctx, roleID)
		require.NoError(t, err)
		require.Len(t, mappings, 2)
		assert.Equal(t, mappingDefault, mappings[0])
		assert.Equal(t, mappingScoped, mappings[1])

		// (role, workspace) is the identity: a put for the same workspace
		// replaces the binding.
		mappingDefault.BindingID = uuid.NewString()
		mappingDefault.Groups = []string{"g-1", "g-2"}
		require.NoError(t, store.PutBindingMapping(ctx, mappingDefault))
		mappings, err = store.BindingMappings(ctx, roleID)
		require.NoError(t, err)
		require.Len(t, mappings, 2)
		assert.Equal(t, mappingDefault, mappings[0])

		require.NoError(t, store.DeleteBindingMapping(ctx, roleID, "ws-2"))
		mappings, err = store.BindingMappings(ctx, roleID)
		require.NoError(t, err)
		require.Len(t, mappings, 1)

		// Mappings are partitioned by role.
		other, err := store.BindingMappings(ctx, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		store, err := OpenSQLStore(filepath.Join(t.TempDir(), "rbac.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	role := Role{
		ID:     uuid.New(),
		Name:   "viewer",
		Access: []Access{{Permission: "app:hosts:read"}},
	}
	require.NoError(t, store.UpsertRole(ctx, role))

	got, err := store.GetRole(ctx, role.ID)
	require.NoError(t, err)
	got.Access[0].Permission = "app:hosts:write"

	again, err := store.GetRole(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "app:hosts:read", again.Access[0].Permission, "returned values are copies")
}
