// Copyright The RBAC Platform Authors.
// SPDX-License-Identifier: MIT

package dualwrite

import "fmt"

// DiffComputationError means the role or workspace state handed to the
// engine is malformed (for example an access entry with no resolvable
// workspace scope). It is fatal to the enclosing write and is raised before
// any tuple mutation is issued.
type DiffComputationError struct {
	Reason string
	Err    error
}

func (e *DiffComputationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diff computation failed: %s: %v", e.Reason, e.Err)
	}
	return "diff computation failed: " + e.Reason
}

func (e *DiffComputationError) Unwrap() error {
	return e.Err
}

// ReplicationError means the transport failed to deliver a replication
// event. It is propagated to the caller so the enclosing transaction can
// roll back the primary-store change: consistency is preferred over
// availability.
type ReplicationError struct {
	EventType ReplicationEventType
	Err       error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication of %s event failed: %v", e.EventType, e.Err)
}

func (e *ReplicationError) Unwrap() error {
	return e.Err
}

// StateInvariantViolation is a programming-contract violation: a
// prepare/replicate pairing misuse, or a diff that would corrupt binding
// ownership. It must not be retried.
type StateInvariantViolation struct {
	Msg string
}

func (e *StateInvariantViolation) Error() string {
	return "state invariant violation: " + e.Msg
}
