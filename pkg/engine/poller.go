package engine

import (
	"context"
	"time"

	"github.com/stackfan/stackfan/pkg/stackset"
	"github.com/stackfan/stackfan/pkg/telemetry"
)

// Default poll intervals. Instance operations take longer than definition
// operations, so they are polled less eagerly.
const (
	DefaultInstancePollInterval   = 15 * time.Second
	DefaultDefinitionPollInterval = 10 * time.Second

	// DefaultMaxPollAttempts bounds a single wait. At the default instance
	// interval this is a ten-minute budget, matching the original deployer.
	DefaultMaxPollAttempts = 40
)

// Poller drives a just-started operation to a terminal state without
// busy-looping the remote resource. It polls on a fixed interval and never
// faster, suspending via a timed wait between polls.
type Poller struct {
	// Client reads operation status.
	Client stackset.Client

	// Interval is the fixed delay between polls.
	Interval time.Duration

	// MaxAttempts bounds the number of polls before the wait gives up.
	MaxAttempts int

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// NewPoller creates a poller with defaulted interval and attempt budget.
func NewPoller(client stackset.Client) *Poller {
	return &Poller{
		Client:      client,
		Interval:    DefaultInstancePollInterval,
		MaxAttempts: DefaultMaxPollAttempts,
	}
}

// AwaitTerminal polls the operation until it reaches a terminal status or
// the attempt budget runs out. The returned Operation always carries the
// last observed status.
//
// A KindWaitTimeout error is a verdict on the wait, never on the operation:
// the operation may still be running remotely, and the next step's fresh
// read reconciles it. A poll call that itself errors aborts the wait early
// and surfaces the last-known non-terminal status the same way, because
// read-path errors are orthogonal to the operation's own outcome.
func (p *Poller) AwaitTerminal(ctx context.Context, resource, operationID string, kind stackset.OperationKind) (stackset.Operation, error) {
	logger := telemetry.FromContext(ctx).WithOperationID(operationID)

	last := stackset.Operation{
		ID:     operationID,
		Kind:   kind,
		Status: stackset.OperationStatusUnknown,
	}

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPollAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if p.Metrics != nil {
			p.Metrics.RecordPollAttempt()
		}

		op, err := p.Client.DescribeOperation(ctx, resource, operationID)
		if err != nil {
			logger.WithError(err).Warn("poll failed, abandoning wait")
			return last, stackset.NewWaitTimeout(
				"wait aborted by poll error", last.Status, err)
		}

		last = *op
		if last.Kind == "" {
			last.Kind = kind
		}

		if last.Status.IsTerminal() {
			return last, nil
		}

		logger.Debugf("operation status: %s", last.Status)

		select {
		case <-time.After(p.Interval):
		case <-ctx.Done():
			return last, stackset.NewWaitTimeout(
				"wait cancelled", last.Status, ctx.Err())
		}
	}

	return last, stackset.NewWaitTimeout(
		"poll attempt budget exhausted", last.Status, nil)
}
