// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLStore is a sqlite-backed Store. Access lists, principal lists, and
// bound-group lists are persisted as JSON columns: the engine only ever
// reads them fully materialized, so there is nothing to gain from
// normalizing them into child tables here.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// OpenSQLStore opens (and if needed creates) the store at the given path.
// Use ":memory:" for an ephemeral store.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := &SQLStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *SQLStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS roles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		system INTEGER NOT NULL DEFAULT 0,
		tenant_id TEXT NOT NULL,
		access TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		principals TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		role_ids TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS binding_mappings (
		role_id TEXT NOT NULL,
		workspace TEXT NOT NULL,
		v2_role_id TEXT NOT NULL,
		binding_id TEXT NOT NULL,
		groups TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (role_id, workspace)
	);

	CREATE INDEX IF NOT EXISTS idx_roles_tenant ON roles(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_groups_tenant ON groups(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_policies_group ON policies(group_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// UpsertRole implements Store.
func (s *SQLStore) UpsertRole(ctx context.Context, role Role) error {
	access, err := json.Marshal(role.Access)
	if err != nil {
		return fmt.Errorf("marshal access: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, system, tenant_id, access)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			system = excluded.system,
			tenant_id = excluded.tenant_id,
			access = excluded.access`,
		role.ID.String(), role.Name, role.System, role.TenantID, string(access))
	return err
}

// GetRole implements Store.
func (s *SQLStore) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	var role Role
	var idStr, access string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, system, tenant_id, access FROM roles WHERE id = ?`, id.String())
	if err := row.Scan(&idStr, &role.Name, &role.System, &role.TenantID, &access); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return Role{}, fmt.Errorf("parse role id: %w", err)
	}
	role.ID = parsed
	if err := json.Unmarshal([]byte(access), &role.Access); err != nil {
		return Role{}, fmt.Errorf("unmarshal access: %w", err)
	}
	return role, nil
}

// DeleteRole implements Store.
func (s *SQLStore) DeleteRole(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id.String())
	return err
}

// UpsertGroup implements Store.
func (s *SQLStore) UpsertGroup(ctx context.Context, group Group) error {
	principals, err := json.Marshal(group.Principals)
	if err != nil {
		return fmt.Errorf("marshal principals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, tenant_id, principals)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			tenant_id = excluded.tenant_id,
			principals = excluded.principals`,
		group.ID.String(), group.Name, group.TenantID, string(principals))
	return err
}

// GetGroup implements Store.
func (s *SQLStore) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	var group Group
	var idStr, principals string
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, tenant_id, principals FROM groups WHERE id = ?`, id.String())
	if err := row.Scan(&idStr, &group.Name, &group.TenantID, &principals); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Group{}, ErrNotFound
		}
		return Group{}, err
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return Group{}, fmt.Errorf("parse group id: %w", err)
	}
	group.ID = parsed
	if err := json.Unmarshal([]byte(principals), &group.Principals); err != nil {
		return Group{}, fmt.Errorf("unmarshal principals: %w", err)
	}
	return group, nil
}

// UpsertPolicy implements Store.
func (s *SQLStore) UpsertPolicy(ctx context.Context, policy Policy) error {
	roleIDs := make([]string, len(policy.RoleIDs))
	for i, id := range policy.RoleIDs {
		roleIDs[i] = id.String()
	}
	encoded, err := json.Marshal(roleIDs)
	if err != nil {
		return fmt.Errorf("marshal role ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policies (id, name, tenant_id, group_id, role_ids)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			tenant_id = excluded.tenant_id,
			group_id = excluded.group_id,
			role_ids = excluded.role_ids`,
		policy.ID.String(), policy.Name, policy.TenantID, policy.GroupID.String(), string(encoded))
	return err
}

// GroupsForRole implements Store.
func (s *SQLStore) GroupsForRole(ctx context.Context, roleID uuid.UUID) ([]Group, error) {
	// role_ids is a small JSON list; EXISTS over json_each keeps this a
	// single round trip.
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT g.id, g.name, g.tenant_id, g.principals
		FROM groups g
		JOIN policies p ON p.group_id = g.id
		WHERE EXISTS (SELECT 1 FROM json_each(p.role_ids) WHERE json_each.value = ?)
		ORDER BY g.id`,
		roleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var group Group
		var idStr, principals string
		if err := rows.Scan(&idStr, &group.Name, &group.TenantID, &principals); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse group id: %w", err)
		}
		group.ID = parsed
		if err := json.Unmarshal([]byte(principals), &group.Principals); err != nil {
			return nil, fmt.Errorf("unmarshal principals: %w", err)
		}
		out = append(out, group)
	}
	return out, rows.Err()
}

// BindingMappings implements Store.
func (s *SQLStore) BindingMappings(ctx context.Context, roleID uuid.UUID) ([]BindingMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role_id, workspace, v2_role_id, binding_id, groups
		FROM binding_mappings WHERE role_id = ? ORDER BY workspace`,
		roleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BindingMapping
	for rows.Next() {
		var m BindingMapping
		var idStr, groups string
		if err := rows.Scan(&idStr, &m.Workspace, &m.V2RoleID, &m.BindingID, &groups); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse role id: %w", err)
		}
		m.RoleID = parsed
		if err := json.Unmarshal([]byte(groups), &m.Groups); err != nil {
			return nil, fmt.Errorf("unmarshal groups: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PutBindingMapping implements Store.
func (s *SQLStore) PutBindingMapping(ctx context.Context, mapping BindingMapping) error {
	groups, err := json.Marshal(mapping.Groups)
	if err != nil {
		return fmt.Errorf("marshal groups: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO binding_mappings (role_id, workspace, v2_role_id, binding_id, groups)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (role_id, workspace) DO UPDATE SET
			v2_role_id = excluded.v2_role_id,
			binding_id = excluded.binding_id,
			groups = excluded.groups`,
		mapping.RoleID.String(), mapping.Workspace, mapping.V2RoleID, mapping.BindingID, string(groups))
	return err
}

// DeleteBindingMapping implements Store.
func (s *SQLStore) DeleteBindingMapping(ctx context.Context, roleID uuid.UUID, workspace string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM binding_mappings WHERE role_id = ? AND workspace = ?`,
		roleID.String(), workspace)
	return err
}
