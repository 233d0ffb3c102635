package engine

import (
	"context"
	"fmt"

	"github.com/stackfan/stackfan/pkg/stackset"
	"github.com/stackfan/stackfan/pkg/telemetry"
)

// SyncDefinition makes the remote stack set's definition match def: it
// defines the stack set if absent and replaces its definition (full-body,
// never a merge) if present, then awaits the resulting operation.
//
// This runs to completion or an explicit terminal failure before any
// instance-level planning, because instance operations implicitly depend
// on the resource's current definition. The flow is idempotent.
func SyncDefinition(ctx context.Context, client stackset.Client, poller *Poller, resource string, def stackset.Definition) error {
	logger := telemetry.FromContext(ctx).WithStackSet(resource)

	var (
		operationID string
		kind        stackset.OperationKind
	)

	err := client.DescribeResource(ctx, resource)
	switch {
	case err == nil:
		kind = stackset.OperationRedefine
		operationID, err = client.RedefineResource(ctx, resource, def)
		if err != nil {
			return err
		}
		logger.Info("definition replaced")
	case stackset.IsNotFound(err):
		kind = stackset.OperationDefine
		operationID, err = client.DefineResource(ctx, resource, def)
		if err != nil {
			return err
		}
		logger.Info("stack set defined")
	default:
		return err
	}

	// Some remotes complete a define synchronously and return no operation.
	if operationID == "" {
		return nil
	}

	op, err := poller.AwaitTerminal(ctx, resource, operationID, kind)
	if err != nil {
		return err
	}
	if op.Status != stackset.OperationStatusSucceeded {
		return stackset.NewOperationFailed(
			fmt.Sprintf("%s operation %s", kind, op.Status), op.Status)
	}

	logger.WithOperationID(operationID).Infof("%s succeeded", kind)
	return nil
}
