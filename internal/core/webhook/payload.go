package webhook

import (
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
)

// Payload is the JSON body POSTed to the workflow system. CallbackData is
// echoed back verbatim on the callback endpoint so the handler can route the
// result without re-deriving context.
type Payload struct {
	Type         string         `json:"type"`
	JobID        string         `json:"job_id"`
	UserID       string         `json:"user_id"`
	Title        string         `json:"title,omitempty"`
	RetryAttempt int            `json:"retry_attempt,omitempty"`
	Timestamp    string         `json:"timestamp"`
	CallbackURL  string         `json:"callback_url"`
	CallbackData *CallbackData  `json:"callback_data,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// CallbackData identifies the job a callback finalizes.
type CallbackData struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`
}

// NewPayload builds the standard payload for a job.
func NewPayload(j *job.Job, callbackURL string, retryAttempt int) Payload {
	return Payload{
		Type:         string(j.Category),
		JobID:        j.ID,
		UserID:       j.OwnerID,
		Title:        j.Title,
		RetryAttempt: retryAttempt,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		CallbackURL:  callbackURL,
		CallbackData: &CallbackData{
			Type:  string(j.Category),
			JobID: j.ID,
		},
	}
}
