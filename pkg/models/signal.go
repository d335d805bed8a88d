package models

import (
	"encoding/json"
	"time"
)

const (
	SignalResolveError   = "resolve_error"
	SignalIgnoreError    = "ignore_error"
	SignalStopMonitoring = "stop_monitoring"
)

// KnownSignal reports whether name is one of the signals a workflow can listen for.
func KnownSignal(name string) bool {
	switch name {
	case SignalResolveError, SignalIgnoreError, SignalStopMonitoring:
		return true
	default:
		return false
	}
}

// Signal is an external event queued durably for one execution. IDs sort in arrival order.
type Signal struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ResolutionPayload is the payload of resolve_error and ignore_error. An empty ErrorID targets
// every open error of the execution.
type ResolutionPayload struct {
	ErrorID string `json:"error_id,omitempty"`
	Note    string `json:"note,omitempty"`
}
