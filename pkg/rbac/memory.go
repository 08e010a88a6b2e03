// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for deterministic tests and fixtures.
type MemoryStore struct {
	mu       sync.RWMutex
	roles    map[uuid.UUID]Role
	groups   map[uuid.UUID]Group
	policies map[uuid.UUID]Policy
	mappings map[uuid.UUID]map[string]BindingMapping
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:    make(map[uuid.UUID]Role),
		groups:   make(map[uuid.UUID]Group),
		policies: make(map[uuid.UUID]Policy),
		mappings: make(map[uuid.UUID]map[string]BindingMapping),
	}
}

// UpsertRole implements Store.
func (s *MemoryStore) UpsertRole(_ context.Context, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = cloneRole(role)
	return nil
}

// GetRole implements Store.
func (s *MemoryStore) GetRole(_ context.Context, id uuid.UUID) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return cloneRole(role), nil
}

// DeleteRole implements Store.
func (s *MemoryStore) DeleteRole(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, id)
	return nil
}

// UpsertGroup implements Store.
func (s *MemoryStore) UpsertGroup(_ context.Context, group Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = cloneGroup(group)
	return nil
}

// GetGroup implements Store.
func (s *MemoryStore) GetGroup(_ context.Context, id uuid.UUID) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return cloneGroup(group), nil
}

// UpsertPolicy implements Store.
func (s *MemoryStore) UpsertPolicy(_ context.Context, policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := policy
	p.RoleIDs = append([]uuid.UUID(nil), policy.RoleIDs...)
	s.policies[policy.ID] = p
	return nil
}

// GroupsForRole implements Store.
func (s *MemoryStore) GroupsForRole(_ context.Context, roleID uuid.UUID) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	var out []Group
	for _, policy := range s.policies {
		for _, id := range policy.RoleIDs {
			if id != roleID {
				continue
			}
			if _, ok := seen[policy.GroupID]; ok {
				continue
			}
			seen[policy.GroupID] = struct{}{}
			if group, ok := s.groups[policy.GroupID]; ok {
				out = append(out, cloneGroup(group))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// BindingMappings implements Store.
func (s *MemoryStore) BindingMappings(_ context.Context, roleID uuid.UUID) ([]BindingMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byWorkspace := s.mappings[roleID]
	out := make([]BindingMapping, 0, len(byWorkspace))
	for _, m := range byWorkspace {
		out = append(out, cloneMapping(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Workspace < out[j].Workspace })
	return out, nil
}

// PutBindingMapping implements Store.
func (s *MemoryStore) PutBindingMapping(_ context.Context, mapping BindingMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mappings[mapping.RoleID] == nil {
		s.mappings[mapping.RoleID] = make(map[string]BindingMapping)
	}
	s.mappings[mapping.RoleID][mapping.Workspace] = cloneMapping(mapping)
	return nil
}

// DeleteBindingMapping implements Store.
func (s *MemoryStore) DeleteBindingMapping(_ context.Context, roleID uuid.UUID, workspace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings[roleID], workspace)
	if len(s.mappings[roleID]) == 0 {
		delete(s.mappings, roleID)
	}
	return nil
}

func cloneRole(role Role) Role {
	out := role
	out.Access = make([]Access, len(role.Access))
	for i, a := range role.Access {
		out.Access[i] = a
		if a.ResourceDefinition != nil {
			rd := *a.ResourceDefinition
			out.Access[i].ResourceDefinition = &rd
		}
	}
	return out
}

func cloneGroup(group Group) Group {
	out := group
	out.Principals = append([]string(nil), group.Principals...)
	return out
}

func cloneMapping(m BindingMapping) BindingMapping {
	out := m
	out.Groups = append([]string(nil), m.Groups...)
	return out
}
