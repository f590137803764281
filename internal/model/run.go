package model

import "time"

// RunStatus represents the current state of a query run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// QueryRun records a single answered question for audit and the runs command.
type QueryRun struct {
	ID         string         `json:"id"`
	Question   string         `json:"question"`
	Agent      string         `json:"agent"`
	Status     RunStatus      `json:"status"`
	Payload    *AnswerPayload `json:"payload,omitempty"`
	Confidence float64        `json:"confidence"`
	Retrieved  int            `json:"retrieved"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
