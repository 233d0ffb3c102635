// Package engine implements the reconciliation state machine that converges
// a declared target catalog toward the live state of a stack-set-like
// resource, one mutating operation at a time.
//
// # Step state machine
//
// Every step runs the same phases:
//
//	CheckingConflict -> Reading -> Planning -> Mutating -> Awaiting
//
//   - CheckingConflict inspects the latest remote operation; a non-terminal
//     one blocks the step. This is how the resource's single-writer
//     constraint is respected without a distributed lock.
//   - Reading re-derives the provisioned set from a fresh remote read; no
//     state is cached across steps.
//   - Planning subtracts (create) or intersects (update) the provisioned set
//     against the catalog and selects exactly the first pending target in
//     catalog order. Targets are never batched; the regions within one
//     target are, because they form a single logical deployment unit.
//   - Mutating issues exactly one create-instances or update-instances call.
//   - Awaiting polls the resulting operation to a terminal status under a
//     bounded attempt budget.
//
// # Modes
//
// Driver.Converge loops steps until no work remains, backing off on write
// conflicts and pausing briefly between productive steps. Driver.StepOnce
// performs a single step and reports the remaining work, for operator-paced
// progress. Both run strictly sequentially: the backing resource rejects
// concurrent mutating operations, so there is no internal parallelism.
//
// # Failure policy
//
// Write conflicts and read failures are retryable and never end a run; a
// missing stack set is fatal and ends it immediately; a terminally failed
// operation is reported and the loop re-plans. An exhausted wait budget is
// a verdict on the wait, not the operation.
package engine
