// Package models defines the domain records persisted by the workflow engine, the session tracker
// and the error detection workflows.
package models

import (
	"encoding/json"
	"slices"
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionScheduled ExecutionStatus = "scheduled"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// StepOutcome records how a step attempt sequence ended.
type StepOutcome string

const (
	StepSucceeded StepOutcome = "succeeded"
	StepFailed    StepOutcome = "failed"
	StepSkipped   StepOutcome = "skipped"
	StepSignaled  StepOutcome = "signaled"
	StepTimedOut  StepOutcome = "timed_out"
)

type StepRecord struct {
	Name        string      `json:"name"`
	Iteration   int         `json:"iteration"`
	Attempts    int         `json:"attempts"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	Outcome     StepOutcome `json:"outcome"`
	Error       string      `json:"error,omitempty"`
	Detail      string      `json:"detail,omitempty"`
}

// Suspension is the durable record of an execution parked at a wait point.
type Suspension struct {
	Step    string    `json:"step"`
	Signals []string  `json:"signals,omitempty"`
	DueAt   time.Time `json:"due_at"`
	Since   time.Time `json:"since"`
}

// WorkflowExecution is owned by the engine; only its step executor mutates it.
type WorkflowExecution struct {
	ID              string                     `json:"id"`
	Kind            string                     `json:"kind"`
	Status          ExecutionStatus            `json:"status"`
	Input           json.RawMessage            `json:"input,omitempty"`
	Cursor          int                        `json:"cursor"`
	Iteration       int                        `json:"iteration"`
	State           map[string]json.RawMessage `json:"state,omitempty"`
	History         []StepRecord               `json:"history"`
	Suspension      *Suspension                `json:"suspension,omitempty"`
	ConsumedSignals []string                   `json:"consumed_signals,omitempty"`
	Result          json.RawMessage            `json:"result,omitempty"`
	Error           string                     `json:"error,omitempty"`
	Version         int64                      `json:"version"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	CompletedAt     *time.Time                 `json:"completed_at,omitempty"`
}

func (e *WorkflowExecution) HasConsumed(signalID string) bool {
	return slices.Contains(e.ConsumedSignals, signalID)
}

// LastStep returns the most recent history record, if any.
func (e *WorkflowExecution) LastStep() (StepRecord, bool) {
	if len(e.History) == 0 {
		return StepRecord{}, false
	}

	return e.History[len(e.History)-1], true
}

// ExecutionSummary is the listing view of an execution.
type ExecutionSummary struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    ExecutionStatus `json:"status"`
	Iteration int             `json:"iteration"`
	Waiting   string          `json:"waiting,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (e *WorkflowExecution) Summary() ExecutionSummary {
	s := ExecutionSummary{
		ID:        e.ID,
		Kind:      e.Kind,
		Status:    e.Status,
		Iteration: e.Iteration,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Suspension != nil {
		s.Waiting = e.Suspension.Step
	}

	return s
}
