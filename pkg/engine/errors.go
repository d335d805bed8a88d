package engine

import (
	"errors"
	"fmt"
)

var (
	ErrExecutionNotFound         = errors.New("workflow execution not found")
	ErrSignalOnTerminalExecution = errors.New("signal sent to a terminal workflow execution")
	ErrUnknownSignal             = errors.New("unknown signal")
	ErrUnknownKind               = errors.New("unknown workflow kind")
	ErrInvalidTransition         = errors.New("invalid workflow status transition")
	ErrResultPending             = errors.New("workflow result is not available yet")
	ErrExecutionFailed           = errors.New("workflow execution failed")
	ErrExecutionCancelled        = errors.New("workflow execution was cancelled")
	ErrEngineStopped             = errors.New("workflow engine stopped")
	ErrInvalidDefinition         = errors.New("invalid workflow definition")
)

// ExecutionError ties an engine failure to the operation and execution it happened in.
type ExecutionError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(op, workflowID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, WorkflowID: workflowID, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

func IsTerminal(err error) bool {
	return errors.Is(err, ErrSignalOnTerminalExecution)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the step fails on its first occurrence.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError

	return errors.As(err, &p)
}
