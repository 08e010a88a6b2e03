// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package dualwrite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbac-platform/relations-sync/pkg/tuple"
)

func TestInMemoryReplicatorAppliesEvents(t *testing.T) {
	ctx := context.Background()
	tuples := tuple.NewInMemoryTuples(
		tuple.New("rbac", "group", "g-1", "member", "rbac", "principal", "user-1"),
	)
	replicator := NewInMemoryReplicator(tuples)

	event := ReplicationEvent{
		Type:         GroupMembershipChanged,
		PartitionKey: GroupPartitionKey("g-1"),
		Add: []tuple.Tuple{
			tuple.New("rbac", "group", "g-1", "member", "rbac", "principal", "user-2"),
		},
		Remove: []tuple.Tuple{
			tuple.New("rbac", "group", "g-1", "member", "rbac", "principal", "user-1"),
		},
	}
	require.NoError(t, replicator.Replicate(ctx, event))

	assert.Equal(t, 1, tuples.Count())
	assert.True(t, tuples.Contains(event.Add[0]))
	assert.False(t, tuples.Contains(event.Remove[0]))

	// Redelivery of the same event is a no-op under set semantics.
	require.NoError(t, replicator.Replicate(ctx, event))
	assert.Equal(t, 1, tuples.Count())
}

// failingReplicator fails the first n deliveries.
type failingReplicator struct {
	next     Replicator
	failures int
	seen     []ReplicationEventType
}

func (r *failingReplicator) Replicate(ctx context.Context, event ReplicationEvent) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("transport down")
	}
	r.seen = append(r.seen, event.Type)
	return r.next.Replicate(ctx, event)
}

func TestOnCommitReplicatorBuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	tuples := tuple.NewInMemoryTuples()
	downstream := &failingReplicator{next: NewInMemoryReplicator(tuples)}
	replicator := NewOnCommitReplicator(downstream)

	first := ReplicationEvent{
		Type: CreateCustomRole,
		Add:  []tuple.Tuple{tuple.New("rbac", "role", "r-1", "app_hosts_read", "rbac", "principal", "*")},
	}
	second := ReplicationEvent{
		Type: UpdateCustomRole,
		Add:  []tuple.Tuple{tuple.New("rbac", "role", "r-2", "app_hosts_read", "rbac", "principal", "*")},
	}
	require.NoError(t, replicator.Replicate(ctx, first))
	require.NoError(t, replicator.Replicate(ctx, second))

	// Nothing reaches the store before commit.
	assert.Zero(t, tuples.Count())
	assert.Equal(t, 2, replicator.Pending())

	require.NoError(t, replicator.Commit(ctx))
	assert.Equal(t, 2, tuples.Count())
	assert.Zero(t, replicator.Pending())
	assert.Equal(t, []ReplicationEventType{CreateCustomRole, UpdateCustomRole}, downstream.seen)
}

func TestOnCommitReplicatorRetainsEventsOnFailure(t *testing.T) {
	ctx := context.Background()
	tuples := tuple.NewInMemoryTuples()
	downstream := &failingReplicator{next: NewInMemoryReplicator(tuples), failures: 1}
	replicator := NewOnCommitReplicator(downstream)

	event := ReplicationEvent{
		Type: CreateCustomRole,
		Add:  []tuple.Tuple{tuple.New("rbac", "role", "r-1", "app_hosts_read", "rbac", "principal", "*")},
	}
	require.NoError(t, replicator.Replicate(ctx, event))

	require.Error(t, replicator.Commit(ctx))
	assert.Equal(t, 1, replicator.Pending(), "failed event stays buffered")

	// A retry after the transport recovers delivers the retained event.
	require.NoError(t, replicator.Commit(ctx))
	assert.Zero(t, replicator.Pending())
	assert.Equal(t, 1, tuples.Count())
}

func TestOnCommitReplicatorRollback(t *testing.T) {
	ctx := context.Background()
	tuples := tuple.NewInMemoryTuples()
	replicator := NewOnCommitReplicator(NewInMemoryReplicator(tuples))

	require.NoError(t, replicator.Replicate(ctx, ReplicationEvent{
		Type: CreateCustomRole,
		Add:  []tuple.Tuple{tuple.New("rbac", "role", "r-1", "app_hosts_read", "rbac", "principal", "*")},
	}))
	replicator.Rollback()

	assert.Zero(t, replicator.Pending())
	require.NoError(t, replicator.Commit(ctx))
	assert.Zero(t, tuples.Count())
}
