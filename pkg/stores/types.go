package stores

import (
	"time"
)

// RunStatus represents the status of a provisioning run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one invocation of the CLI against a catalog.
type Run struct {
	ID          string     `json:"id"`
	Catalog     string     `json:"catalog"`
	Units       []string   `json:"units"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Duration returns the wall time of a completed run, or zero.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TargetResult is the recorded outcome of one leaf unit.
type TargetResult struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"run_id"`
	Unit      string        `json:"unit"`
	Target    string        `json:"target"`
	Action    string        `json:"action"`
	Outcome   string        `json:"outcome"`
	Error     *string       `json:"error,omitempty"`
	ErrorKind *string       `json:"error_kind,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
