// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

// The relations-sync service.
package main

import (
	"context"
	"os"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/rbac-platform/relations-sync/pkg/dualwrite"
	"github.com/rbac-platform/relations-sync/pkg/tuple"

	. "github.com/openfga/go-sdk/client"
)

// Note: all OpenFGA SDK calls are kept in the same file due to the namespace
// pollution which is the recommended way of using this SDK.

// INatsKeyValue is the NATS KV interface needed for the cache invalidation
// marker.
type INatsKeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
}

// FgaService is the production replicator: it ships replication events to
// the remote OpenFGA store and exposes read access to the live graph slice
// of a single object.
type FgaService struct {
	client      IFgaClient
	cacheBucket INatsKeyValue
}

var _ dualwrite.Replicator = FgaService{}

// connectFga initializes an OpenFGA client from the environment.
func connectFga() (IFgaClient, error) {
	fgaClient, err := NewSdkClient(&ClientConfiguration{
		ApiUrl:               os.Getenv("FGA_API_URL"),
		StoreId:              os.Getenv("FGA_STORE_ID"),
		AuthorizationModelId: os.Getenv("FGA_MODEL_ID"),
	})
	if err != nil {
		return nil, err
	}
	return FgaAdapter{OpenFgaClient: *fgaClient}, nil
}

// ObjectTuples is a pagination helper to fetch all direct relationships
// (_no_ transitive evaluations) defined against a given object, converted to
// the engine's tuple type.
func (s FgaService) ObjectTuples(ctx context.Context, object string) ([]tuple.Tuple, error) {
	req := ClientReadRequest{
		Object: &object,
	}
	options := ClientReadOptions{}
	var tuples []tuple.Tuple
	for {
		resp, err := s.client.Read(ctx, req, options)
		if err != nil {
			return nil, err
		}
		for _, t := range resp.Tuples {
			converted, err := tuple.FromStrings(t.Key.Object, t.Key.Relation, t.Key.User)
			if err != nil {
				return nil, err
			}
			tuples = append(tuples, converted)
		}
		if resp.ContinuationToken == "" {
			break
		}
		token := resp.ContinuationToken
		options.ContinuationToken = &token
	}

	return tuples, nil
}

// SnapshotObject loads the live tuples of one object into an in-memory store
// so callers can run the grouped-query operations against remote state. This
// is the read path for consistency checks.
func (s FgaService) SnapshotObject(ctx context.Context, object string) (*tuple.InMemoryTuples, error) {
	tuples, err := s.ObjectTuples(ctx, object)
	if err != nil {
		return nil, err
	}
	return tuple.NewInMemoryTuples(tuples...), nil
}

// Replicate implements [dualwrite.Replicator]. The event is applied as one
// batch write. To stay idempotent under redelivery, the event's tuples are
// first filtered against the live graph: writes already present and deletes
// already absent are dropped, so re-applying a delivered event is a no-op
// rather than a duplicate-write error from the store.
func (s FgaService) Replicate(ctx context.Context, event dualwrite.ReplicationEvent) error {
	wrap := func(err error) error {
		return &dualwrite.ReplicationError{EventType: event.Type, Err: err}
	}

	// Collect the live tuple keys of every object the event touches.
	objects := make(map[string]struct{})
	for _, t := range event.Add {
		objects[t.ObjectString()] = struct{}{}
	}
	for _, t := range event.Remove {
		objects[t.ObjectString()] = struct{}{}
	}
	live := make(map[string]struct{})
	for object := range objects {
		tuples, err := s.ObjectTuples(ctx, object)
		if err != nil {
			return wrap(err)
		}
		for _, t := range tuples {
			live[t.Key()] = struct{}{}
		}
	}

	var writes []ClientTupleKey
	var deletes []ClientTupleKeyWithoutCondition
	for _, t := range event.Add {
		if _, present := live[t.Key()]; present {
			continue
		}
		logger.With(
			"user", t.SubjectString(),
			"relation", t.Relation,
			"object", t.ObjectString(),
		).DebugContext(ctx, "will add relation in batch write")
		writes = append(writes, ClientTupleKey{
			User:     t.SubjectString(),
			Relation: t.Relation,
			Object:   t.ObjectString(),
		})
	}
	for _, t := range event.Remove {
		if _, present := live[t.Key()]; !present {
			continue
		}
		logger.With(
			"user", t.SubjectString(),
			"relation", t.Relation,
			"object", t.ObjectString(),
		).DebugContext(ctx, "will delete relation in batch write")
		deletes = append(deletes, ClientTupleKeyWithoutCondition{
			User:     t.SubjectString(),
			Relation: t.Relation,
			Object:   t.ObjectString(),
		})
	}

	// Escape early if the event was already fully applied.
	if len(writes) == 0 && len(deletes) == 0 {
		return nil
	}

	req := ClientWriteRequest{
		Writes:  writes,
		Deletes: deletes,
	}
	if _, err := s.client.Write(ctx, req); err != nil {
		return wrap(err)
	}

	// Invalidate the materialized access-list caches. Any value will work,
	// since it is the native timestamp of the record that is checked, not
	// its value.
	if _, err := s.cacheBucket.Put(ctx, "inv", []byte("1")); err != nil {
		logger.With(errKey, err).ErrorContext(ctx, "failed to write cache invalidation marker")
	}

	return nil
}
