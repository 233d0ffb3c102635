package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/stackfan/stackfan/pkg/telemetry"
)

// Observed cadence of the original deployer: 30s back-off while another
// writer holds the resource, 10s pause between productive steps.
const (
	DefaultConflictBackoff = 30 * time.Second
	DefaultStepPause       = 10 * time.Second
)

// Driver consumes the reconciler in one of two modes: a continuous
// convergence loop, or a single operator-paced step.
type Driver struct {
	// Reconciler is the underlying state machine.
	Reconciler *Reconciler

	// ConflictBackoff is the delay after a Blocked or Waiting step.
	ConflictBackoff time.Duration

	// StepPause is the delay between productive steps.
	StepPause time.Duration

	// Logger and Metrics are optional.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
}

// NewDriver creates a driver with the observed default cadence.
func NewDriver(r *Reconciler, logger *telemetry.Logger, metrics *telemetry.Metrics) *Driver {
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	}
	return &Driver{
		Reconciler:      r,
		ConflictBackoff: DefaultConflictBackoff,
		StepPause:       DefaultStepPause,
		Logger:          logger,
		Metrics:         metrics,
	}
}

// Converge repeatedly steps the reconciler until no work remains or a
// fatal condition stops the run. Blocked and Waiting steps back off and
// re-plan; terminal operation failures are reported and the loop continues.
//
// Cancellation takes effect between steps only. A mutating call that has
// already reached the remote resource is never retracted locally; its
// operation is allowed to finish or be investigated separately.
func (d *Driver) Converge(ctx context.Context) error {
	d.Logger.Info("starting convergence loop")

	for {
		res := d.step(ctx)

		switch res.Outcome {
		case OutcomeDone:
			d.Logger.Info("desired set fully satisfied")
			return nil

		case OutcomeFatal:
			return fmt.Errorf("convergence stopped: %w", res.Err)

		case OutcomeBlocked, OutcomeWaiting:
			if err := d.pause(ctx, d.backoff()); err != nil {
				return err
			}

		case OutcomeProgressed, OutcomeFailed:
			if err := d.pause(ctx, d.interStep()); err != nil {
				return err
			}
		}
	}
}

// StepOnce performs exactly one reconciliation step and returns the
// outcome, leaving remaining work for subsequent invocations.
func (d *Driver) StepOnce(ctx context.Context) StepResult {
	res := d.step(ctx)

	switch res.Outcome {
	case OutcomeDone:
		d.Logger.Info("all targets have been reconciled")
	case OutcomeProgressed:
		if res.Remaining > 0 {
			d.Logger.Infof("run again to reconcile the remaining %d target(s)", res.Remaining)
		} else {
			d.Logger.Info("all targets have been reconciled")
		}
	}

	return res
}

// step runs one reconciler step and records its telemetry.
func (d *Driver) step(ctx context.Context) StepResult {
	start := time.Now()
	res := d.Reconciler.Step(ctx)
	if d.Metrics != nil {
		d.Metrics.RecordStep(string(res.Outcome), time.Since(start))
	}
	d.report(res)
	return res
}

// report emits the per-step human-readable status line. The loop never
// exits silently: every step produces exactly one of these.
func (d *Driver) report(res StepResult) {
	logger := d.Logger
	if res.Target != nil {
		logger = logger.WithTarget(res.Target.AccountID, "")
	}

	switch res.Outcome {
	case OutcomeDone:
		logger.Info("status: no work remaining")
	case OutcomeBlocked:
		logger.Infof("status: blocked (%s)", res.Reason)
	case OutcomeWaiting:
		logger.Infof("status: waiting (%s)", res.Reason)
	case OutcomeProgressed:
		logger.Infof("status: progressed, %d target(s) remaining", res.Remaining)
	case OutcomeFailed:
		logger.WithError(res.Err).Info("status: failed, run continues")
	case OutcomeFatal:
		logger.WithError(res.Err).Error("status: fatal")
	}
}

// pause sleeps for the given duration, returning early on cancellation.
func (d *Driver) pause(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) backoff() time.Duration {
	if d.ConflictBackoff > 0 {
		return d.ConflictBackoff
	}
	return DefaultConflictBackoff
}

func (d *Driver) interStep() time.Duration {
	if d.StepPause > 0 {
		return d.StepPause
	}
	return DefaultStepPause
}
