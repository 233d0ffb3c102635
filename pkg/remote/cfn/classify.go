package cfn

import (
	"errors"

	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/stackfan/stackfan/pkg/stackset"
)

// classify converts an SDK failure into a classified taxonomy error.
//
// The single-writer constraint surfaces as OperationInProgressException on
// mutating calls; that is a retry signal, not a fatal condition. A missing
// stack set or operation is not_found. Everything else is treated as a
// read-path failure: the call's true effect is unknown and re-running the
// step against a fresh read is always safe.
func classify(op string, err error) error {
	var inProgress *cfntypes.OperationInProgressException
	if errors.As(err, &inProgress) {
		return stackset.NewWriteConflict("another operation is in progress", err).WithOp(op)
	}

	var stackSetNotFound *cfntypes.StackSetNotFoundException
	if errors.As(err, &stackSetNotFound) {
		return stackset.NewNotFound("stack set does not exist", err).WithOp(op)
	}

	var operationNotFound *cfntypes.OperationNotFoundException
	if errors.As(err, &operationNotFound) {
		return stackset.NewNotFound("operation does not exist", err).WithOp(op)
	}

	return stackset.NewTransientRead("remote call failed", err).WithOp(op)
}
