package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by lifecycle operations. Match with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrFetch             = errors.New("fetch failure")
	ErrBuild             = errors.New("build failure")
	ErrActivation        = errors.New("activation failure")
	ErrSupervision       = errors.New("supervision failure")
	ErrNoBackupAvailable = errors.New("no backup available")

	ErrJobRunning  = errors.New("another job is running")
	ErrJobNotFound = errors.New("job not found")
)

// Stage names the step of an operation that failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageFetch     Stage = "fetch"
	StageBuild     Stage = "build"
	StageActivate  Stage = "activate"
	StageSupervise Stage = "supervise"
	StageRevert    Stage = "revert"
)

// OperationError is the terminal failure of a lifecycle operation.
type OperationError struct {
	Op    Action
	Stage Stage
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", e.Op, e.Stage, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// NewOperationError wraps err for op and stage, adding kind to the chain
// when err does not already match it.
func NewOperationError(op Action, stage Stage, kind, err error) *OperationError {
	if kind != nil && !errors.Is(err, kind) {
		err = fmt.Errorf("%w: %w", kind, err)
	}
	return &OperationError{Op: op, Stage: stage, Err: err}
}

// StageOf returns the failed stage carried by err, or "" when err is not an
// *OperationError.
func StageOf(err error) Stage {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Stage
	}
	return ""
}
