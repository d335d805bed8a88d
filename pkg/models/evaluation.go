package models

import "time"

// ScoreError is one error identified by the scoring oracle.
type ScoreError struct {
	Step        string `json:"step,omitempty"`
	ErrorType   string `json:"error_type,omitempty"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
}

// Evaluation is the persisted outcome of one grading run.
type Evaluation struct {
	ID          string       `json:"evaluation_id"`
	WorkflowID  string       `json:"workflow_id"`
	SocketID    string       `json:"socket_id,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	QuestionURL string       `json:"question_url"`
	SolutionURL string       `json:"solution_url"`
	Region      *BoundingBox `json:"region,omitempty"`
	Score       float64      `json:"correctness_score"`
	Errors      []ScoreError `json:"errors_found"`
	Feedback    string       `json:"feedback"`
	CreatedAt   time.Time    `json:"created_at"`
}
