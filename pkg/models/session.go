package models

import "time"

// AttemptRecord is one graded submission inside a session.
type AttemptRecord struct {
	QuestionRef string      `json:"question_ref"`
	SolutionRef string      `json:"solution_ref"`
	Region      BoundingBox `json:"region"`
	ResultRef   string      `json:"result_ref,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// SessionState is the cumulative state of one socket session. CumulativeRegion is always the
// union of every region in AttemptHistory and is only recomputed on append.
type SessionState struct {
	SocketID         string          `json:"socket_id"`
	TotalAttempts    int64           `json:"total_attempts"`
	CumulativeRegion BoundingBox     `json:"cumulative_region"`
	AttemptHistory   []AttemptRecord `json:"attempt_history"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SessionStats summarizes a session for the stats endpoint.
type SessionStats struct {
	SocketID         string        `json:"socket_id"`
	TotalAttempts    int64         `json:"total_attempts"`
	CumulativeRegion BoundingBox   `json:"cumulative_bounding_box"`
	Area             float64       `json:"area"`
	Center           Point         `json:"center"`
	FirstAttemptAt   time.Time     `json:"first_attempt_at"`
	LastAttemptAt    time.Time     `json:"last_attempt_at"`
	Duration         time.Duration `json:"duration_ns"`
}
