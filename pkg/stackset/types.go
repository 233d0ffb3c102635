package stackset

import "fmt"

// OperationStatus represents the remote status of an asynchronous
// stack set operation.
type OperationStatus string

const (
	// OperationStatusQueued indicates the operation is accepted but not started.
	OperationStatusQueued OperationStatus = "QUEUED"

	// OperationStatusPending indicates the operation has not started executing.
	OperationStatusPending OperationStatus = "PENDING"

	// OperationStatusRunning indicates the operation is executing.
	OperationStatusRunning OperationStatus = "RUNNING"

	// OperationStatusStopping indicates the operation is being cancelled remotely.
	OperationStatusStopping OperationStatus = "STOPPING"

	// OperationStatusSucceeded indicates the operation completed successfully.
	OperationStatusSucceeded OperationStatus = "SUCCEEDED"

	// OperationStatusFailed indicates the operation completed with errors.
	OperationStatusFailed OperationStatus = "FAILED"

	// OperationStatusStopped indicates the operation was cancelled remotely.
	OperationStatusStopped OperationStatus = "STOPPED"

	// OperationStatusUnknown is reported when no status has been observed yet.
	OperationStatusUnknown OperationStatus = "UNKNOWN"
)

// IsTerminal returns true if the status represents a final state.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusSucceeded || s == OperationStatusFailed ||
		s == OperationStatusStopped
}

// InProgress returns true if the status blocks other mutating operations.
// The remote resource admits one non-terminal operation at a time.
func (s OperationStatus) InProgress() bool {
	return s == OperationStatusQueued || s == OperationStatusPending ||
		s == OperationStatusRunning || s == OperationStatusStopping
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case OperationStatusQueued, OperationStatusPending, OperationStatusRunning,
		OperationStatusStopping, OperationStatusSucceeded, OperationStatusFailed,
		OperationStatusStopped, OperationStatusUnknown:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// OperationKind represents the type of mutating call that produced an operation.
type OperationKind string

const (
	// OperationDefine creates the stack set itself.
	OperationDefine OperationKind = "define"

	// OperationRedefine replaces the stack set's definition (full-body replace).
	OperationRedefine OperationKind = "redefine"

	// OperationCreateInstances provisions instances for one target.
	OperationCreateInstances OperationKind = "create-instances"

	// OperationUpdateInstances updates provisioned instances for one target.
	OperationUpdateInstances OperationKind = "update-instances"
)

// Operation is an asynchronous remote unit of work tracked by id.
// Operations become irrelevant once terminal; no history is kept locally.
type Operation struct {
	// ID is the remote operation identifier.
	ID string `json:"id"`

	// Kind is the mutating call that started the operation.
	Kind OperationKind `json:"kind,omitempty"`

	// Status is the last observed remote status.
	Status OperationStatus `json:"status"`
}

// Definition is the stack set's template body plus the capability flags
// the remote resource requires to act on it. Redefining is a versioned
// full-body replace, never a merge.
type Definition struct {
	// TemplateBody is the opaque definition blob. Its size and syntax are
	// validated by the remote resource, not by this system.
	TemplateBody string `json:"template_body"`

	// Capabilities are the capability flags required by the template.
	Capabilities []string `json:"capabilities,omitempty"`
}
