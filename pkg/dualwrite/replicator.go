// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package dualwrite

import (
	"context"
	"sync"

	"github.com/rbac-platform/relations-sync/pkg/tuple"
)

// Replicator ships a replication event to the relation-tuple store. An
// implementation applies the event all-or-nothing and must be idempotent
// under retry: duplicate delivery must not double-apply tuples.
type Replicator interface {
	Replicate(ctx context.Context, event ReplicationEvent) error
}

// InMemoryReplicator applies events directly and synchronously to an
// in-memory tuple store. Set semantics on the store make re-application a
// no-op, which is the idempotence contract production transports provide via
// the event's idempotency key.
type InMemoryReplicator struct {
	tuples *tuple.InMemoryTuples
}

var _ Replicator = (*InMemoryReplicator)(nil)

// NewInMemoryReplicator wraps the given store.
func NewInMemoryReplicator(tuples *tuple.InMemoryTuples) *InMemoryReplicator {
	return &InMemoryReplicator{tuples: tuples}
}

// Replicate implements Replicator.
func (r *InMemoryReplicator) Replicate(ctx context.Context, event ReplicationEvent) error {
	if err := r.tuples.Write(ctx, event.Add); err != nil {
		return &ReplicationError{EventType: event.Type, Err: err}
	}
	if err := r.tuples.Delete(ctx, event.Remove); err != nil {
		return &ReplicationError{EventType: event.Type, Err: err}
	}
	return nil
}

// OnCommitReplicator buffers events until the enclosing relational
// transaction is known to have committed, then forwards them in order. This
// is the seam for transports that cannot participate in the relational
// transaction: the diff is still computed inside the transaction, the
// network send happens after commit.
type OnCommitReplicator struct {
	next Replicator

	mu      sync.Mutex
	pending []ReplicationEvent
}

var _ Replicator = (*OnCommitReplicator)(nil)

// NewOnCommitReplicator wraps the given downstream replicator.
func NewOnCommitReplicator(next Replicator) *OnCommitReplicator {
	return &OnCommitReplicator{next: next}
}

// Replicate implements Replicator by buffering the event.
func (r *OnCommitReplicator) Replicate(_ context.Context, event ReplicationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, event)
	return nil
}

// Commit forwards the buffered events in order. The first failure stops
// delivery and leaves the remaining events buffered so the caller can retry
// or hand them to a reconciliation path.
func (r *OnCommitReplicator) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.pending) > 0 {
		if err := r.next.Replicate(ctx, r.pending[0]); err != nil {
			return err
		}
		r.pending = r.pending[1:]
	}
	return nil
}

// Rollback discards the buffered events after the enclosing transaction was
// rolled back.
func (r *OnCommitReplicator) Rollback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

// Pending returns the number of buffered events.
func (r *OnCommitReplicator) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
