package engine

import (
	"context"
	"testing"

	"github.com/stackfan/stackfan/pkg/stackset"
)

func TestSyncDefinition_DefinesWhenAbsent(t *testing.T) {
	client := newMockClient()
	client.resourceExists = false

	def := stackset.Definition{TemplateBody: "{}", Capabilities: []string{"CAPABILITY_NAMED_IAM"}}
	if err := SyncDefinition(context.Background(), client, testPoller(client), "test-set", def); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if client.defineCalls != 1 {
		t.Errorf("Expected one define, got %d", client.defineCalls)
	}
	if client.redefineCalls != 0 {
		t.Errorf("Expected no redefine, got %d", client.redefineCalls)
	}
	if client.lastDefinition.TemplateBody != "{}" {
		t.Errorf("Expected the template body to be passed through, got %q", client.lastDefinition.TemplateBody)
	}
	// A synchronous define returns no operation; nothing is polled.
	if client.opCalls != 0 {
		t.Errorf("Expected no polls for a synchronous define, got %d", client.opCalls)
	}
}

func TestSyncDefinition_RedefinesWhenPresent(t *testing.T) {
	client := newMockClient()
	client.resourceExists = true
	client.redefineOpID = "op-redef"
	client.opStatuses = []stackset.OperationStatus{
		stackset.OperationStatusRunning,
		stackset.OperationStatusSucceeded,
	}

	def := stackset.Definition{TemplateBody: "{}"}
	if err := SyncDefinition(context.Background(), client, testPoller(client), "test-set", def); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if client.redefineCalls != 1 {
		t.Errorf("Expected one redefine, got %d", client.redefineCalls)
	}
	if client.defineCalls != 0 {
		t.Errorf("Expected no define, got %d", client.defineCalls)
	}
	if client.opCalls != 2 {
		t.Errorf("Expected the redefine operation to be awaited, got %d polls", client.opCalls)
	}
}

func TestSyncDefinition_RedefineTerminalFailure(t *testing.T) {
	client := newMockClient()
	client.resourceExists = true
	client.redefineOpID = "op-redef"
	client.opStatuses = []stackset.OperationStatus{stackset.OperationStatusStopped}

	err := SyncDefinition(context.Background(), client, testPoller(client), "test-set", stackset.Definition{TemplateBody: "{}"})
	if !stackset.IsOperationFailed(err) {
		t.Fatalf("Expected an operation_failed error, got: %v", err)
	}
}

func TestSyncDefinition_AwaitsDefineOperationWhenReturned(t *testing.T) {
	client := newMockClient()
	client.resourceExists = false
	client.defineOpID = "op-def"
	client.opStatuses = []stackset.OperationStatus{stackset.OperationStatusSucceeded}

	if err := SyncDefinition(context.Background(), client, testPoller(client), "test-set", stackset.Definition{TemplateBody: "{}"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if client.opCalls != 1 {
		t.Errorf("Expected the define operation to be awaited, got %d polls", client.opCalls)
	}
}
