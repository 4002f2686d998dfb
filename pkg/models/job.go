package models

import "time"

const (
	JobStatusProcessing = "processing"
	JobStatusSuccess    = "success"
	JobStatusFailure    = "failure"
)

// SolverJob tracks one plate-solve attempt inside the solver service.
// POST /upload returns a job_id; clients poll GET /jobs/{job_id} until
// status is success or failure. A job transitions out of processing at
// most once and never changes again.
type SolverJob struct {
	ID          string       `json:"job_id"`
	Status      string       `json:"status"`
	Filename    string       `json:"filename"`
	StartTime   time.Time    `json:"start_time"`
	SolveTime   float64      `json:"solve_time,omitempty"`
	Calibration *Calibration `json:"calibration,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *SolverJob) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusFailure
}

// JobInfo is the terminal-shaped payload of GET /jobs/{job_id}/info.
type JobInfo struct {
	Status      string       `json:"status"`
	Calibration *Calibration `json:"calibration,omitempty"`
	SolveTime   float64      `json:"solve_time,omitempty"`
	Error       string       `json:"error,omitempty"`
	Message     string       `json:"message,omitempty"`
}
