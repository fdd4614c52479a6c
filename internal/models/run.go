package models

import "time"

// RunStatus is the terminal status of a processing pass.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
	RunFailed    RunStatus = "failed"
)

// Run records an audit trail of each processing pass.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Model      string     `json:"model,omitempty"`
	Candidates int        `json:"candidates"`
	Attempted  int        `json:"attempted"`
	Written    int        `json:"written"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
}
