package model

import "time"

// ImportResult summarises one bulk import.
type ImportResult struct {
	Success  bool     `json:"success"`
	Imported int      `json:"imported"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors"`
}

// JobStatus is the lifecycle state of an asynchronous import.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// ImportJob is a queued import and, once finished, its result.
type ImportJob struct {
	ID          string        `json:"id"`
	Actor       string        `json:"actor,omitempty"`
	Format      string        `json:"format"`
	Status      JobStatus     `json:"status"`
	Result      *ImportResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	SubmittedAt time.Time     `json:"submittedAt"`
	FinishedAt  *time.Time    `json:"finishedAt,omitempty"`

	Data        []byte `json:"-"`
	Fingerprint string `json:"-"`
}
