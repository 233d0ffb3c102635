package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stackfan/stackfan/pkg/stackset"
)

func TestPoller_AwaitTerminal_ImmediateSuccess(t *testing.T) {
	client := newMockClient()
	client.opStatuses = []stackset.OperationStatus{stackset.OperationStatusSucceeded}
	p := testPoller(client)

	op, err := p.AwaitTerminal(context.Background(), "test-set", "op-1", stackset.OperationCreateInstances)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if op.Status != stackset.OperationStatusSucceeded {
		t.Errorf("Expected SUCCEEDED, got %s", op.Status)
	}
	if client.opCalls != 1 {
		t.Errorf("Expected a single poll, got %d", client.opCalls)
	}
}

func TestPoller_AwaitTerminal_PollsUntilTerminal(t *testing.T) {
	client := newMockClient()
	client.opStatuses = []stackset.OperationStatus{
		stackset.OperationStatusQueued,
		stackset.OperationStatusRunning,
		stackset.OperationStatusRunning,
		stackset.OperationStatusSucceeded,
	}
	p := testPoller(client)

	op, err := p.AwaitTerminal(context.Background(), "test-set", "op-1", stackset.OperationCreateInstances)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if op.Status != stackset.OperationStatusSucceeded {
		t.Errorf("Expected SUCCEEDED, got %s", op.Status)
	}
	if client.opCalls != 4 {
		t.Errorf("Expected 4 polls, got %d", client.opCalls)
	}
}

func TestPoller_AwaitTerminal_FailedStatusIsNotAnError(t *testing.T) {
	client := newMockClient()
	client.opStatuses = []stackset.OperationStatus{stackset.OperationStatusFailed}
	p := testPoller(client)

	op, err := p.AwaitTerminal(context.Background(), "test-set", "op-1", stackset.OperationCreateInstances)
	if err != nil {
		t.Fatalf("FAILED is a terminal status, not a wait error; got: %v", err)
	}
	if op.Status != stackset.OperationStatusFailed {
		t.Errorf("Expected FAILED, got %s", op.Status)
	}
}

func TestPoller_AwaitTerminal_TimeoutCarriesLastStatus(t *testing.T) {
	client := newMockClient()
	client.opStatuses = nil // always RUNNING
	p := &Poller{Client: client, Interval: time.Millisecond, MaxAttempts: 3}

	op, err := p.AwaitTerminal(context.Background(), "test-set", "op-1", stackset.OperationCreateInstances)
	if !stackset.IsWaitTimeout(err) {
		t.Fatalf("Expected a wait_timeout error, got: %v", err)
	}
	if op.Status != stackset.OperationStatusRunning {
		t.Errorf("Expected last observed status RUNNING, got %s", op.Status)
	}
	if client.opCalls != 3 {
		t.Errorf("Expected exactly MaxAttempts polls, got %d", client.opCalls)
	}

	var serr *stackset.Error
	if !errors.As(err, &serr) || serr.Status != stackset.OperationStatusRunning {
		t.Errorf("Expected error to carry status RUNNING, got %+v", serr)
	}
}

func TestPoller_AwaitTerminal_PollErrorAbortsEarly(t *testing.T) {
	client := newMockClient()
	client.opStatuses = []stackset.OperationStatus{stackset.OperationStatusRunning}
	client.opErr = stackset.NewTransientRead("describe failed", nil)
	p := &Poller{Client: client, Interval: time.Millisecond, MaxAttempts: 10}

	op, err := p.AwaitTerminal(context.Background(), "test-set", "op-1", stackset.OperationCreateInstances)
	if !stackset.IsWaitTimeout(err) {
		t.Fatalf("Expected a wait_timeout error, got: %v", err)
	}
	if op.Status != stackset.OperationStatusRunning {
		t.Errorf("Expected last-known status RUNNING, got %s", op.Status)
	}
	if client.opCalls != 2 {
		t.Errorf("Expected the wait to abort on the failing poll, got %d polls", client.opCalls)
	}
	// The read failure rides along for diagnostics.
	if !stackset.IsTransientRead(errors.Unwrap(err)) {
		t.Errorf("Expected the poll error to be wrapped, got: %v", errors.Unwrap(err))
	}
}

func TestPoller_AwaitTerminal_Cancellation(t *testing.T) {
	client := newMockClient()
	client.opStatuses = nil // always RUNNING
	p := &Poller{Client: client, Interval: time.Hour, MaxAttempts: 10}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op, err := p.AwaitTerminal(ctx, "test-set", "op-1", stackset.OperationCreateInstances)
	if !stackset.IsWaitTimeout(err) {
		t.Fatalf("Expected a wait_timeout error on cancellation, got: %v", err)
	}
	if op.Status != stackset.OperationStatusRunning {
		t.Errorf("Expected last-known status RUNNING, got %s", op.Status)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in the chain, got: %v", err)
	}
}
