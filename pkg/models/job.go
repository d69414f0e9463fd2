package models

// JobStatus is the lifecycle state of an asynchronous vendor log job.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobActive  JobStatus = "ACTIVE"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
	JobTimeout JobStatus = "TIMEOUT"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobTimeout
}

// Job is a vendor-issued handle for one submitted query.
type Job struct {
	ID     string
	Status JobStatus
}

// Observe moves the job to the polled status. Terminal jobs ignore further
// observations and report false.
func (j *Job) Observe(s JobStatus) bool {
	if j.Status.Terminal() {
		return false
	}
	j.Status = s
	return true
}
