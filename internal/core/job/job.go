package job

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a pipeline job. Processing and failed are
// universal; the remaining states vary in meaning per category (a derivative's
// draft is a manual-regeneration parking state, a suggestion's ready means it
// will be picked up automatically).
type Status string

const (
	StatusDraft      Status = "draft"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDiscarded  Status = "discarded"
)

// MaxRetries is the hard cap on user-initiated retry attempts per job.
const MaxRetries = 3

var (
	ErrNotFound = errors.New("job not found")
	// ErrStale is returned by guarded transition writes when the row no
	// longer holds the status the transition expected.
	ErrStale = errors.New("job state changed concurrently")
)

// Job is one persisted unit of external processing: an idea, brief, content
// item, derivative, or general-content entry waiting on the workflow system.
type Job struct {
	ID                  string
	OwnerID             string
	Category            Category
	Title               string
	Status              Status
	RetryCount          int
	ProcessingStartedAt *time.Time
	ProcessingTimeoutAt *time.Time
	LastErrorMessage    string
	ParentID            string
	SubmissionID        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Retryable reports whether a retry attempt is currently permitted.
func (j *Job) Retryable() bool {
	return j.Status == StatusFailed && j.RetryCount < MaxRetries
}
