package cfn

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/stackfan/stackfan/pkg/stackset"
)

func TestClassify_OperationInProgress(t *testing.T) {
	err := classify("create-stack-instances", &cfntypes.OperationInProgressException{
		Message: aws.String("another operation is currently in progress"),
	})
	if !stackset.IsWriteConflict(err) {
		t.Fatalf("Expected write_conflict, got: %v", err)
	}
}

func TestClassify_StackSetNotFound(t *testing.T) {
	err := classify("describe-stack-set", &cfntypes.StackSetNotFoundException{})
	if !stackset.IsNotFound(err) {
		t.Fatalf("Expected not_found, got: %v", err)
	}
}

func TestClassify_OperationNotFound(t *testing.T) {
	err := classify("describe-stack-set-operation", &cfntypes.OperationNotFoundException{})
	if !stackset.IsNotFound(err) {
		t.Fatalf("Expected not_found, got: %v", err)
	}
}

func TestClassify_WrappedSDKError(t *testing.T) {
	// The SDK reports operation failures wrapped in smithy.OperationError.
	wrapped := &smithy.OperationError{
		ServiceID:     "CloudFormation",
		OperationName: "CreateStackInstances",
		Err:           &cfntypes.OperationInProgressException{},
	}
	if !stackset.IsWriteConflict(classify("create-stack-instances", wrapped)) {
		t.Fatal("Expected classification to see through smithy.OperationError")
	}
}

func TestClassify_UnknownErrorIsTransient(t *testing.T) {
	err := classify("list-stack-instances", errors.New("connection reset by peer"))
	if !stackset.IsTransientRead(err) {
		t.Fatalf("Expected transient_read for an unrecognized error, got: %v", err)
	}
	if !stackset.IsRetryable(err) {
		t.Error("Unrecognized remote errors must stay retryable")
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   cfntypes.StackSetOperationStatus
		want stackset.OperationStatus
	}{
		{cfntypes.StackSetOperationStatusQueued, stackset.OperationStatusQueued},
		{cfntypes.StackSetOperationStatusRunning, stackset.OperationStatusRunning},
		{cfntypes.StackSetOperationStatusStopping, stackset.OperationStatusStopping},
		{cfntypes.StackSetOperationStatusStopped, stackset.OperationStatusStopped},
		{cfntypes.StackSetOperationStatusSucceeded, stackset.OperationStatusSucceeded},
		{cfntypes.StackSetOperationStatusFailed, stackset.OperationStatusFailed},
		{cfntypes.StackSetOperationStatus("SOMETHING_NEW"), stackset.OperationStatusUnknown},
	}

	for _, tt := range tests {
		if got := mapStatus(tt.in); got != tt.want {
			t.Errorf("mapStatus(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
