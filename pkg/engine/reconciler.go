package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stackfan/stackfan/pkg/catalog"
	"github.com/stackfan/stackfan/pkg/stackset"
	"github.com/stackfan/stackfan/pkg/telemetry"
)

// Action selects which instance-level mutation the reconciler performs.
type Action string

const (
	// ActionCreate provisions instances for targets absent from the remote set.
	ActionCreate Action = "create"

	// ActionUpdate pushes the current definition (and optionally parameter
	// overrides) to targets already provisioned.
	ActionUpdate Action = "update"
)

// Outcome classifies the result of one reconciliation step.
type Outcome string

const (
	// OutcomeDone indicates no work remains for the desired set.
	OutcomeDone Outcome = "done"

	// OutcomeBlocked indicates the step gave way to another writer or an
	// unreadable remote state; the caller backs off and re-plans.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeWaiting indicates a wait budget ran out with the operation's
	// true status still unknown; the next step's fresh read reconciles it.
	OutcomeWaiting Outcome = "waiting"

	// OutcomeProgressed indicates one target reached SUCCEEDED.
	OutcomeProgressed Outcome = "progressed"

	// OutcomeFailed indicates the step's operation terminally failed for one
	// target. The run continues; the next step re-plans.
	OutcomeFailed Outcome = "failed"

	// OutcomeFatal indicates a condition no retry can fix; the run stops.
	OutcomeFatal Outcome = "fatal"
)

// StepResult is the outcome of one reconciliation step.
type StepResult struct {
	// Outcome classifies the step.
	Outcome Outcome

	// Target is the target the step acted on, if any.
	Target *catalog.Target

	// Status is the terminal (or last observed) operation status, if any.
	Status stackset.OperationStatus

	// Remaining is the number of pending targets left after this step.
	Remaining int

	// Reason is a human-readable explanation for Blocked/Waiting outcomes.
	Reason string

	// Err carries the classified error for Failed/Fatal/Waiting outcomes.
	Err error
}

// DefaultMaxReadFallbacks bounds how many consecutive times create-mode may
// substitute an empty provisioned set for a failed read before the run is
// declared fatal. An unbounded fallback would retry duplicate creates
// forever against a persistently broken read path.
const DefaultMaxReadFallbacks = 10

// Options configures a Reconciler.
type Options struct {
	// Action selects create or update semantics. Defaults to ActionCreate.
	Action Action

	// TargetFilter scopes planning to one explicit account id, bypassing
	// catalog-order selection. Empty means the whole catalog.
	TargetFilter string

	// IncludeOverrides pushes parameter overrides on update calls.
	IncludeOverrides bool

	// MaxReadFallbacks caps consecutive create-mode empty-set fallbacks.
	MaxReadFallbacks int

	// Logger, Metrics and Tracer are optional.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Reconciler computes the diff between the desired catalog and the remote
// instance set and converges it one mutating operation at a time, honoring
// the resource's single-writer constraint.
//
// All remote state is re-read at the start of every step; nothing observed
// in one step carries into the next except the per-run processed set used
// by update mode.
type Reconciler struct {
	client   stackset.Client
	poller   *Poller
	catalog  *catalog.Catalog
	resource string

	action           Action
	targetFilter     string
	includeOverrides bool
	maxReadFallbacks int

	// readFallbacks counts consecutive create-mode reads answered with an
	// empty set. Reset by any successful read.
	readFallbacks int

	// processed tracks targets already updated this run. Update mode needs
	// it because a successful update does not change the provisioned set.
	processed map[string]struct{}

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewReconciler creates a reconciler for one stack set and one catalog.
func NewReconciler(client stackset.Client, poller *Poller, cat *catalog.Catalog, resource string, opts Options) *Reconciler {
	action := opts.Action
	if action == "" {
		action = ActionCreate
	}

	maxFallbacks := opts.MaxReadFallbacks
	if maxFallbacks <= 0 {
		maxFallbacks = DefaultMaxReadFallbacks
	}

	logger := opts.Logger
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	}

	return &Reconciler{
		client:           client,
		poller:           poller,
		catalog:          cat,
		resource:         resource,
		action:           action,
		targetFilter:     opts.TargetFilter,
		includeOverrides: opts.IncludeOverrides,
		maxReadFallbacks: maxFallbacks,
		processed:        make(map[string]struct{}),
		logger:           logger.WithStackSet(resource),
		metrics:          opts.Metrics,
		tracer:           opts.Tracer,
	}
}

// Step performs exactly one reconciliation step: check for a conflicting
// writer, read the provisioned set fresh, plan, issue at most one mutating
// call, and await its operation to terminal status.
func (r *Reconciler) Step(ctx context.Context) StepResult {
	stepID := uuid.New().String()
	logger := r.logger.WithStepID(stepID)
	ctx = logger.WithContext(ctx)

	if r.tracer != nil {
		spanCtx, span := r.tracer.StartStepSpan(ctx, stepID, r.resource)
		defer span.End()
		ctx = spanCtx
	}

	// CheckingConflict: respect the single-writer constraint without a lock.
	latest, err := r.client.LatestOperation(ctx, r.resource)
	if err != nil {
		return r.blocked(logger, "cannot determine writer state", err)
	}
	if latest != nil && latest.Status.InProgress() {
		logger.WithOperationID(latest.ID).
			Infof("operation is %s, backing off", latest.Status)
		return r.blocked(logger, "operation in progress", nil)
	}

	// Reading: a fresh provisioned set every step, never a cache.
	provisioned, err := r.client.ListProvisionedTargets(ctx, r.resource)
	if err != nil {
		if stackset.IsNotFound(err) {
			return r.fatal(logger, err)
		}
		switch r.action {
		case ActionUpdate:
			// Updating into a falsely-empty set would silently skip all
			// work, so update mode never substitutes one.
			return r.blocked(logger, "provisioned set unreadable", err)
		default:
			r.readFallbacks++
			if r.readFallbacks >= r.maxReadFallbacks {
				return r.fatal(logger, stackset.NewTransientRead(
					fmt.Sprintf("provisioned set unreadable %d consecutive times", r.readFallbacks), err))
			}
			logger.WithError(err).Warn("read failed, planning against empty provisioned set")
			provisioned = map[string]struct{}{}
		}
	} else {
		r.readFallbacks = 0
	}

	// Planning: pick exactly one pending target in catalog order.
	pending := r.plan(provisioned)
	if r.metrics != nil {
		r.metrics.SetTargetsRemaining(float64(len(pending)))
	}
	if len(pending) == 0 {
		logger.Info("all targets reconciled, no work remaining")
		return StepResult{Outcome: OutcomeDone}
	}

	target := pending[0]
	remaining := len(pending) - 1
	logger = logger.WithTarget(target.AccountID, target.DisplayName(r.catalog.DisplayNameKey))
	ctx = logger.WithContext(ctx)

	// Mutating: one call, one target, all of its regions atomically.
	operationID, kind, err := r.mutate(ctx, target)
	if err != nil {
		switch {
		case stackset.IsWriteConflict(err):
			if r.metrics != nil {
				r.metrics.RecordWriteConflict()
			}
			return r.blocked(logger, "another operation won the write", err)
		case stackset.IsNotFound(err):
			return r.fatal(logger, err)
		default:
			logger.WithError(err).Error("mutating call failed")
			return StepResult{Outcome: OutcomeFailed, Target: &target, Remaining: len(pending), Err: err}
		}
	}
	if r.metrics != nil {
		r.metrics.RecordMutatingCall(string(kind))
	}
	logger.WithOperationID(operationID).Infof("%s initiated", kind)

	// Awaiting: drive the operation to terminal status.
	op, err := r.await(ctx, operationID, kind)
	if err != nil {
		logger.WithError(err).Warnf("operation still %s after wait budget", op.Status)
		return StepResult{
			Outcome: OutcomeWaiting,
			Target:  &target,
			Status:  op.Status,
			Reason:  "operation did not reach terminal status in time",
			Err:     err,
		}
	}

	if r.action == ActionUpdate {
		// The provisioned set does not shrink on update, so the run tracks
		// completion itself. Failed updates are not retried this run.
		r.processed[target.AccountID] = struct{}{}
	}

	if op.Status == stackset.OperationStatusSucceeded {
		logger.Infof("target reconciled, %d remaining", remaining)
		return StepResult{
			Outcome:   OutcomeProgressed,
			Target:    &target,
			Status:    op.Status,
			Remaining: remaining,
		}
	}

	failure := stackset.NewOperationFailed(
		fmt.Sprintf("operation %s for target %s", op.Status, target.AccountID), op.Status)
	if r.metrics != nil {
		r.metrics.RecordError(string(stackset.KindOperationFailed))
	}
	logger.Errorf("operation %s", op.Status)
	return StepResult{
		Outcome:   OutcomeFailed,
		Target:    &target,
		Status:    op.Status,
		Remaining: remaining,
		Err:       failure,
	}
}

// plan computes the ordered pending set for the configured action.
func (r *Reconciler) plan(provisioned map[string]struct{}) []catalog.Target {
	var pending []catalog.Target
	for _, t := range r.catalog.Targets {
		if r.targetFilter != "" && t.AccountID != r.targetFilter {
			continue
		}

		_, exists := provisioned[t.AccountID]
		switch r.action {
		case ActionUpdate:
			if _, done := r.processed[t.AccountID]; done {
				continue
			}
			if exists {
				pending = append(pending, t)
			}
		default:
			if !exists {
				pending = append(pending, t)
			}
		}
	}
	return pending
}

// mutate issues the single mutating call for the chosen target.
func (r *Reconciler) mutate(ctx context.Context, target catalog.Target) (string, stackset.OperationKind, error) {
	if r.action == ActionUpdate {
		id, err := r.client.UpdateInstances(ctx, r.resource, target, r.includeOverrides)
		return id, stackset.OperationUpdateInstances, err
	}
	id, err := r.client.CreateInstances(ctx, r.resource, target)
	return id, stackset.OperationCreateInstances, err
}

// await delegates to the poller, wrapping the wait in a span when tracing.
func (r *Reconciler) await(ctx context.Context, operationID string, kind stackset.OperationKind) (stackset.Operation, error) {
	start := time.Now()

	var (
		op  stackset.Operation
		err error
	)
	if r.tracer != nil {
		spanCtx, span := r.tracer.StartOperationSpan(ctx, operationID, string(kind))
		op, err = r.poller.AwaitTerminal(spanCtx, r.resource, operationID, kind)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()
	} else {
		op, err = r.poller.AwaitTerminal(ctx, r.resource, operationID, kind)
	}

	if r.metrics != nil {
		r.metrics.RecordOperation(string(kind), string(op.Status), time.Since(start))
	}
	return op, err
}

func (r *Reconciler) blocked(logger *telemetry.Logger, reason string, err error) StepResult {
	if err != nil {
		logger.WithError(err).Warn(reason)
		if r.metrics != nil {
			if k := classifiedKind(err); k != "" {
				r.metrics.RecordError(k)
			}
		}
	}
	return StepResult{Outcome: OutcomeBlocked, Reason: reason, Err: err}
}

func (r *Reconciler) fatal(logger *telemetry.Logger, err error) StepResult {
	logger.WithError(err).Error("fatal condition, stopping run")
	return StepResult{Outcome: OutcomeFatal, Err: err}
}

func classifiedKind(err error) string {
	switch {
	case stackset.IsTransientRead(err):
		return string(stackset.KindTransientRead)
	case stackset.IsWriteConflict(err):
		return string(stackset.KindWriteConflict)
	case stackset.IsNotFound(err):
		return string(stackset.KindNotFound)
	case stackset.IsWaitTimeout(err):
		return string(stackset.KindWaitTimeout)
	default:
		return ""
	}
}
