package domain

import "strings"

// JobState is the state of an asynchronous upstream conversion job.
type JobState string

const (
	JobStateSubmitted  JobState = "submitted"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Terminal returns true once the job cannot change state any more.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// ParseJobState maps the status strings upstream converters report onto
// a JobState. Unknown statuses count as still processing.
func ParseJobState(status string) JobState {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.TrimRight(s, ".")
	switch s {
	case "completed", "complete", "done", "finished", "success", "ok", "ready":
		return JobStateCompleted
	case "error", "failed", "failure", "fail":
		return JobStateFailed
	case "submitted", "queued", "pending":
		return JobStateSubmitted
	}
	return JobStateProcessing
}
