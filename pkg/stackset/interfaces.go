package stackset

import (
	"context"

	"github.com/stackfan/stackfan/pkg/catalog"
)

// Client is the remote access contract for a stack-set-like resource.
// Implementations classify every remote failure into an *Error at the
// point of call; no raw transport error crosses this boundary.
//
// All calls are synchronous from the caller's perspective. The resource
// enforces a single-writer constraint: mutating calls issued while another
// operation is non-terminal fail with KindWriteConflict.
type Client interface {
	// DescribeResource reports whether the named stack set exists.
	// Returns nil if present and a KindNotFound error if absent.
	DescribeResource(ctx context.Context, name string) error

	// DefineResource creates the stack set from a definition. The returned
	// operation id may be empty when the define completes synchronously
	// with nothing to await.
	DefineResource(ctx context.Context, name string, def Definition) (string, error)

	// RedefineResource replaces the stack set's definition (full-body
	// replace) and returns the operation id to await.
	RedefineResource(ctx context.Context, name string, def Definition) (string, error)

	// ListProvisionedTargets returns the set of target ids currently
	// provisioned under the stack set. Fails with KindTransientRead on any
	// remote error; callers decide per call site whether to retry or fall
	// back to an empty set.
	ListProvisionedTargets(ctx context.Context, name string) (map[string]struct{}, error)

	// LatestOperation returns the most recently started operation, or nil
	// if no operation has ever run against the stack set.
	LatestOperation(ctx context.Context, name string) (*Operation, error)

	// DescribeOperation returns the current status of an operation.
	// Fails with KindNotFound if the id is stale or unknown.
	DescribeOperation(ctx context.Context, name, operationID string) (*Operation, error)

	// CreateInstances provisions instances for one target across all of its
	// declared regions with its parameter overrides, atomically. Returns
	// the operation id to await.
	CreateInstances(ctx context.Context, name string, target catalog.Target) (string, error)

	// UpdateInstances updates the provisioned instances for one target.
	// Parameter overrides are pushed only when includeOverrides is set.
	UpdateInstances(ctx context.Context, name string, target catalog.Target, includeOverrides bool) (string, error)
}
