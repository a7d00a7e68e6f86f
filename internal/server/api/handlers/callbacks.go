package handlers

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/event"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/danielgtaylor/huma/v2"
)

// CallbacksHandler receives the workflow system's completion reports and
// finalizes job status. Notifications for both outcomes flow through the
// event bus so they share the emitter's formatting and idempotency rules.
type CallbacksHandler struct {
	store *database.Store
	bus   event.Bus
	token string
}

func NewCallbacksHandler(store *database.Store, bus event.Bus, token string) *CallbacksHandler {
	return &CallbacksHandler{store: store, bus: bus, token: token}
}

type JobCallbackInput struct {
	Token string `header:"X-Callback-Token" doc:"Shared callback token"`
	Body  struct {
		JobID        string `json:"job_id" minLength:"1" doc:"Job the result belongs to"`
		Status       string `json:"status" enum:"completed,ready,failed" doc:"Terminal status reported by the workflow"`
		ErrorMessage string `json:"error_message,omitempty" doc:"Failure detail when status is failed"`
		CallbackData struct {
			Type  string `json:"type,omitempty"`
			JobID string `json:"job_id,omitempty"`
		} `json:"callback_data,omitempty" doc:"Echo of the dispatch payload's callback_data"`
	}
}

type JobCallbackBody struct {
	JobID  string `json:"job_id"`
	Status string `json:"status" doc:"Job status after finalization"`
}

type JobCallbackOutput struct {
	Body JobCallbackBody
}

func (h *CallbacksHandler) JobResult(ctx context.Context, input *JobCallbackInput) (*JobCallbackOutput, error) {
	if subtle.ConstantTimeCompare([]byte(input.Token), []byte(h.token)) != 1 {
		return nil, huma.Error401Unauthorized("invalid callback token")
	}

	target := job.Status(input.Body.Status)
	errorMessage := ""
	if target == job.StatusFailed {
		errorMessage = input.Body.ErrorMessage
		if errorMessage == "" {
			errorMessage = "Processing failed in the workflow system"
		}
	}

	finalized, err := h.store.FinalizeStatus(ctx, input.Body.JobID, target, errorMessage)
	if err != nil {
		if errors.Is(err, job.ErrStale) {
			// Already finalized (e.g. by the timeout sweeper); the callback
			// must not double-transition or double-notify.
			return nil, huma.Error409Conflict("job is not processing")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}

	eventType := event.TypeJobCompleted
	if target == job.StatusFailed {
		eventType = event.TypeJobFailed
	}
	h.bus.Publish(ctx, event.Event{
		Type: eventType,
		Payload: event.JobEvent{
			JobID:    finalized.ID,
			OwnerID:  finalized.OwnerID,
			Category: finalized.Category,
			Title:    finalized.Title,
			Status:   finalized.Status,
			Error:    errorMessage,
		},
	})

	return &JobCallbackOutput{Body: JobCallbackBody{
		JobID:  finalized.ID,
		Status: string(finalized.Status),
	}}, nil
}
