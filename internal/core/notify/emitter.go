package notify

import (
	"context"
	"fmt"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/event"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Outcome is the terminal state change a notification reports.
type Outcome string

const (
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
	OutcomeCompleted Outcome = "completed"
)

// Emitter turns terminal job transitions into notifications. Both the
// timeout sweeper and the callback handler go through it so message shape
// and idempotency rules live in one place. Exactly-once is enforced at the
// call site: callers only emit for rows they themselves transitioned.
type Emitter struct {
	store Store
}

func NewEmitter(store Store) *Emitter {
	return &Emitter{store: store}
}

// Emit inserts one notification addressed to the job's owner. Insert
// failures are returned for logging but must never roll back the job
// transition they report on.
func (e *Emitter) Emit(ctx context.Context, j job.Job, outcome Outcome) error {
	desc, ok := job.Describe(j.Category)
	if !ok {
		return fmt.Errorf("emit notification: unknown category %q", j.Category)
	}

	n := &Notification{
		ID:                uuid.NewString(),
		RecipientID:       j.OwnerID,
		RelatedEntityID:   j.ID,
		RelatedEntityType: string(j.Category),
	}

	title := j.Title
	if title == "" {
		title = "Untitled"
	}

	switch outcome {
	case OutcomeTimedOut:
		n.Type = TypeError
		n.Title = "Processing timed out"
		n.Message = fmt.Sprintf("Your %s %q took too long to process and was marked as failed. You can retry it from the dashboard.", desc.Label, title)
	case OutcomeFailed:
		n.Type = TypeError
		n.Title = "Processing failed"
		if j.LastErrorMessage != "" {
			n.Message = fmt.Sprintf("Your %s %q failed to process: %s", desc.Label, title, j.LastErrorMessage)
		} else {
			n.Message = fmt.Sprintf("Your %s %q failed to process.", desc.Label, title)
		}
	case OutcomeCompleted:
		n.Type = TypeSuccess
		n.Title = "Processing complete"
		n.Message = fmt.Sprintf("Your %s %q has finished processing and is ready for review.", desc.Label, title)
	default:
		return fmt.Errorf("emit notification: unknown outcome %q", outcome)
	}

	if err := e.store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// SetupEventHandlers subscribes the emitter to terminal job events published
// by the callback handler.
func (e *Emitter) SetupEventHandlers(bus event.Bus) {
	bus.Subscribe(event.TypeJobCompleted, func(ctx context.Context, ev event.Event) error {
		payload, ok := ev.Payload.(event.JobEvent)
		if !ok {
			return nil
		}
		return e.Emit(ctx, jobFromEvent(payload), OutcomeCompleted)
	})

	bus.Subscribe(event.TypeJobFailed, func(ctx context.Context, ev event.Event) error {
		payload, ok := ev.Payload.(event.JobEvent)
		if !ok {
			return nil
		}
		log.Warn().Str("job_id", payload.JobID).Str("error", payload.Error).Msg("job failed")
		return e.Emit(ctx, jobFromEvent(payload), OutcomeFailed)
	})
}

func jobFromEvent(p event.JobEvent) job.Job {
	return job.Job{
		ID:               p.JobID,
		OwnerID:          p.OwnerID,
		Category:         p.Category,
		Title:            p.Title,
		Status:           p.Status,
		LastErrorMessage: p.Error,
	}
}
