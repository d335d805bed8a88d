// Package web provides the HTTP API of the evaluation workflows.
package web

import (
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
)

// StartWorkflowResponse is returned when an execution is accepted.
type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Kind       string `json:"kind"`
}

type SignalResponse struct {
	WorkflowID string `json:"workflow_id"`
	SignalID   string `json:"signal_id"`
	Signal     string `json:"signal"`
}

type ListActiveResponse struct {
	Workflows []models.ExecutionSummary `json:"workflows"`
	Count     int                       `json:"count"`
}

type ErrorLogsResponse struct {
	WorkflowID string            `json:"workflow_id"`
	Errors     []models.ErrorLog `json:"errors"`
	CacheHit   bool              `json:"cache_hit"`
}

type ListErrorsResponse struct {
	Errors []models.ErrorLog `json:"errors"`
	Count  int               `json:"count"`
	Skip   int               `json:"skip"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Checkers  map[string]string `json:"checkers"`
	Timestamp time.Time         `json:"timestamp"`
}
