package event

import (
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
)

type Type string

const (
	// Job lifecycle
	TypeJobCreated   Type = "job.created"
	TypeJobRetried   Type = "job.retried"
	TypeJobCompleted Type = "job.completed"
	TypeJobFailed    Type = "job.failed"
	TypeJobTimedOut  Type = "job.timed_out"
)

type Event struct {
	Type      Type
	Timestamp time.Time
	Payload   any
}

// JobEvent is the payload for all job lifecycle events.
type JobEvent struct {
	JobID        string
	OwnerID      string
	Category     job.Category
	Title        string
	Status       job.Status
	RetryAttempt int
	Error        string
}
