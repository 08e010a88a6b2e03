// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

// Package seeds rebuilds the default system roles and groups for every
// tenant, replicating the resulting graph state through the dual-write
// engine. It runs at deploy time and must be safe to re-run: a tenant whose
// seeded state is already current produces no tuple mutations.
package seeds

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/rbac-platform/relations-sync/pkg/dualwrite"
	"github.com/rbac-platform/relations-sync/pkg/rbac"
)

// Seed UUID namespaces derive stable identities from seed names, so the same
// seeded role or group keeps its identity across deploys and replicas.
var (
	roleSeedNamespace  = uuid.MustParse("a2b45a5c-e3b2-4ddf-9a36-6c9b86e0a9d1")
	groupSeedNamespace = uuid.MustParse("7c20e1d4-4f6b-4f4a-93d8-2f3a8f1d5c72")
)

// SystemRoleSeed describes one system role to materialize for every tenant.
type SystemRoleSeed struct {
	Name        string
	Permissions []string
}

// RoleID returns the stable UUID for the seeded role.
func (s SystemRoleSeed) RoleID() uuid.UUID {
	return uuid.NewSHA1(roleSeedNamespace, []byte(s.Name))
}

// SystemGroupSeed describes one default group to materialize for every
// tenant. Unlike system roles, seeded groups are tenant-owned.
type SystemGroupSeed struct {
	Name       string
	Principals []string
}

// GroupID returns the stable UUID for the seeded group within the tenant.
func (s SystemGroupSeed) GroupID(tenant rbac.Tenant) uuid.UUID {
	return uuid.NewSHA1(groupSeedNamespace, []byte(tenant.ID+"/"+s.Name))
}

// Seeds is the full set of defaults applied to every tenant.
type Seeds struct {
	Roles  []SystemRoleSeed
	Groups []SystemGroupSeed
}

// Seeder applies system role seeds across tenants with bounded concurrency.
type Seeder struct {
	store      rbac.Store
	replicator dualwrite.Replicator
	logger     *slog.Logger

	// Concurrency bounds the number of tenants seeded in parallel. Zero or
	// negative means sequential.
	Concurrency int

	// OnTenantDone, when set, is invoked once per tenant after its seeding
	// task has fully completed or failed.
	OnTenantDone func(tenant rbac.Tenant, err error)
}

// NewSeeder builds a Seeder over the given store and replicator.
func NewSeeder(store rbac.Store, replicator dualwrite.Replicator, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:       store,
		replicator:  replicator,
		logger:      logger,
		Concurrency: 1,
	}
}

// Run seeds every tenant in the explicit task list. Tenants are independent
// units of work: a failure in one does not stop the others, and the joined
// error reports every failed tenant.
func (s *Seeder) Run(ctx context.Context, tenants []rbac.Tenant, seeds Seeds) error {
	concurrency := s.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	tasks := pool.New().WithMaxGoroutines(concurrency).WithErrors().WithContext(ctx)
	for _, tenant := range tenants {
		tenant := tenant
		tasks.Go(func(ctx context.Context) error {
			err := s.seedTenant(ctx, tenant, seeds)
			if s.OnTenantDone != nil {
				s.OnTenantDone(tenant, err)
			}
			if err != nil {
				return fmt.Errorf("seeding tenant %s: %w", tenant.OrgID, err)
			}
			return nil
		})
	}
	return tasks.Wait()
}

func (s *Seeder) seedTenant(ctx context.Context, tenant rbac.Tenant, seeds Seeds) error {
	for _, seed := range seeds.Roles {
		role := rbac.Role{
			ID:     seed.RoleID(),
			Name:   seed.Name,
			System: true,
		}
		for _, permission := range seed.Permissions {
			role.Access = append(role.Access, rbac.Access{Permission: permission})
		}

		if err := s.store.UpsertRole(ctx, role); err != nil {
			return fmt.Errorf("upsert system role %q: %w", seed.Name, err)
		}

		handler := dualwrite.ForSystemRoleEvent(
			role, tenant, dualwrite.CreateTenantSystemRole, s.replicator, s.store)
		if err := handler.ReplicateNewOrUpdatedRole(ctx, role); err != nil {
			return fmt.Errorf("replicate system role %q: %w", seed.Name, err)
		}

		s.logger.With("tenant", tenant.OrgID, "role", seed.Name).DebugContext(ctx, "seeded system role")
	}

	for _, seed := range seeds.Groups {
		group := rbac.Group{
			ID:         seed.GroupID(tenant),
			Name:       seed.Name,
			TenantID:   tenant.ID,
			Principals: seed.Principals,
		}
		if err := s.store.UpsertGroup(ctx, group); err != nil {
			return fmt.Errorf("upsert default group %q: %w", seed.Name, err)
		}

		handler := dualwrite.NewGroupRelationHandler(group, s.replicator, s.store)
		if err := handler.ReplicateMembershipChange(ctx, seed.Principals, nil); err != nil {
			return fmt.Errorf("replicate default group %q: %w", seed.Name, err)
		}

		s.logger.With("tenant", tenant.OrgID, "group", seed.Name).DebugContext(ctx, "seeded default group")
	}
	return nil
}
