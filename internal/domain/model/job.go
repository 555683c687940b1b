package model

import "time"

// JobStatus is the state of a job.
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Job is one execution of a lifecycle operation.
type Job struct {
	ID         string     `json:"id"`
	Action     Action     `json:"action"`
	Repo       string     `json:"repo,omitempty"`
	Ref        string     `json:"ref,omitempty"`
	Status     JobStatus  `json:"status"`
	Stage      Stage      `json:"stage,omitempty"`
	Commit     string     `json:"commit,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Error      string     `json:"error,omitempty"`
	LogPath    string     `json:"log_path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the job ran, or has been running.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt == nil {
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// JobLog is a slice of a job's log starting at an offset.
type JobLog struct {
	Job        *Job
	Lines      []string
	NextOffset int
}
