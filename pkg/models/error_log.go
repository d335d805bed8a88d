package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownSeverity = errors.New("unknown severity")

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}

	return sev, nil
}

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int { return severityRank[s] }

func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

type ErrorStatus string

const (
	ErrorOpen     ErrorStatus = "open"
	ErrorResolved ErrorStatus = "resolved"
	ErrorIgnored  ErrorStatus = "ignored"
)

// ErrorLog is created by the save step and afterwards only status-transitioned.
type ErrorLog struct {
	ID         string      `json:"error_id"`
	Message    string      `json:"message"`
	Severity   Severity    `json:"severity"`
	Status     ErrorStatus `json:"status"`
	Source     string      `json:"source"`
	WorkflowID string      `json:"workflow_id"`
	Step       string      `json:"step,omitempty"`
	ErrorType  string      `json:"error_type,omitempty"`
	Resolution string      `json:"resolution,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// Transition moves an open log to status. It reports false when the log was not open.
func (l *ErrorLog) Transition(status ErrorStatus, resolution string, at time.Time) bool {
	if l.Status != ErrorOpen || status == ErrorOpen {
		return false
	}

	l.Status = status
	l.Resolution = resolution
	l.UpdatedAt = at
	l.ResolvedAt = &at

	return true
}

// Finding is one error reported by a scan, before it is persisted as an ErrorLog.
type Finding struct {
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Step      string   `json:"step,omitempty"`
	ErrorType string   `json:"error_type,omitempty"`
}

// Key identifies a finding across monitoring iterations.
func (f Finding) Key() string {
	return strings.Join([]string{f.ErrorType, f.Step, strings.ToLower(f.Message)}, "|")
}

// MaxSeverity returns the highest severity among findings, or "" when there are none.
func MaxSeverity(findings []Finding) Severity {
	var out Severity
	for _, f := range findings {
		if f.Severity.Rank() > out.Rank() {
			out = f.Severity
		}
	}

	return out
}
