package domain

import "time"

// JobStatus is the lifecycle state of a Job. Terminal statuses (Completed,
// Failed, Cancelled) are absorbing: once set, a Job never transitions again.
type JobStatus string

const (
	JobSubmitted JobStatus = "SUBMITTED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether status is one of the three absorbing states.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is one client submission fanned out into one or more Units.
type Job struct {
	ID           string
	JobKey       string
	Status       JobStatus
	TotalInputs  int
	RequestedAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
}

// JobCounts is the single-query aggregate projection used by both the
// JobFinalizer's guard predicates and the GET /jobs/{jobId} response.
type JobCounts struct {
	Total         int
	Pending       int
	Running       int
	RetryWait     int
	Done          int // SUCCEEDED
	DLQ           int
	FilesGenerated int
	FilesReused    int
}

// ReportingStatus is the externally-rendered status, which synthesizes an
// IN_PROGRESS view on top of the stored SUBMITTED/RUNNING states once at
// least one unit has left PENDING.
func ReportingStatus(j Job, counts JobCounts) string {
	if j.Status == JobSubmitted || j.Status == JobRunning {
		if counts.Pending < counts.Total {
			return "IN_PROGRESS"
		}
	}
	return string(j.Status)
}

// JobDetail is the full Job + Unit projection returned by GET /jobs/{jobId}
// and by the internal Admin surface.
type JobDetail struct {
	Job    Job
	Counts JobCounts
	Units  []Unit
}
