package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/event"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/webhook"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidState means the job is not in a state that permits the
	// requested transition.
	ErrInvalidState = errors.New("invalid job state")
	// ErrRetryLimitExceeded means the retry cap has been reached.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	// ErrDispatchFailed means the webhook endpoint was configured but the
	// delivery failed; the job has been rolled back to failed.
	ErrDispatchFailed = errors.New("webhook dispatch failed")
)

// dispatchFailureMessage is persisted on the job when a retry's dispatch
// cannot be confirmed sent.
const dispatchFailureMessage = "Failed to trigger retry processing"

// Store is the persistence surface the engine needs. Transition writes carry
// the status they expect to find and return job.ErrStale when the guard
// misses; there is no version column, so the guard is the only protection
// against concurrent writers.
type Store interface {
	GetJob(ctx context.Context, id string) (*job.Job, error)
	// MarkProcessing moves a job into processing, setting both processing
	// timestamps together and optionally incrementing retry_count. The
	// last error message is cleared.
	MarkProcessing(ctx context.Context, id string, from job.Status, startedAt, timeoutAt time.Time, incrementRetry bool) error
	// MarkFailed moves a job to failed with the given error message and
	// clears the processing timestamps.
	MarkFailed(ctx context.Context, id string, from job.Status, message string) error
	// ResetStatus parks a job in a neutral resumable status, clearing the
	// processing timestamps and the error message.
	ResetStatus(ctx context.Context, id string, from, to job.Status) error
	// FindParentBrief resolves a content item's parent brief, directly via
	// parent_id or through its originating submission record. Returns
	// job.ErrNotFound when the job has no parent.
	FindParentBrief(ctx context.Context, j *job.Job) (*job.Job, error)
}

// Dispatcher matches webhook.Dispatcher; tests substitute a recording stub.
type Dispatcher interface {
	Dispatch(ctx context.Context, category job.Category, payload webhook.Payload) error
}

// Method tags how a retry was resumed.
type Method string

const (
	// MethodWebhook: the workflow system was triggered and owns the job now.
	MethodWebhook Method = "webhook"
	// MethodManualReset: no endpoint was configured for a fallback-capable
	// category, so the job was parked for manual reprocessing.
	MethodManualReset Method = "manual_reset"
)

// Result reports the outcome of a successful Retry or Start call.
type Result struct {
	Method       Method
	Status       job.Status
	RetryAttempt int
}

// Engine is the parametrized retry state machine shared by all job
// categories. Per-category differences (deadline, fallback behavior) come
// from the category descriptor, not from per-category code paths.
type Engine struct {
	store           Store
	dispatcher      Dispatcher
	callbackBaseURL string
	bus             event.Bus

	now func() time.Time
}

func New(store Store, dispatcher Dispatcher, callbackBaseURL string, bus event.Bus) *Engine {
	return &Engine{
		store:           store,
		dispatcher:      dispatcher,
		callbackBaseURL: callbackBaseURL,
		bus:             bus,
		now:             time.Now,
	}
}

// Retry moves one failed job back into processing, exactly once per
// invocation, and re-triggers the workflow system. The processing write
// always lands before the dispatch call starts, and any dispatch failure
// rolls the job back to failed before the error is surfaced. The retry_count
// increment survives the rollback: a dispatch failure still consumes a retry
// slot so the cap terminates the loop regardless of infrastructure flakiness.
func (e *Engine) Retry(ctx context.Context, jobID string) (*Result, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	desc, ok := job.Describe(j.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", webhook.ErrInvalidCategory, j.Category)
	}

	if j.Status != job.StatusFailed {
		return nil, fmt.Errorf("%w: only failed %s jobs can be retried (status is %s)", ErrInvalidState, desc.Label, j.Status)
	}
	if j.RetryCount >= job.MaxRetries {
		return nil, fmt.Errorf("%w: maximum retry attempts (%d) reached", ErrRetryLimitExceeded, job.MaxRetries)
	}

	now := e.now()
	if err := e.store.MarkProcessing(ctx, j.ID, job.StatusFailed, now, now.Add(desc.Deadline), true); err != nil {
		if errors.Is(err, job.ErrStale) {
			return nil, fmt.Errorf("%w: job was modified concurrently", ErrInvalidState)
		}
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	attempt := j.RetryCount + 1
	payload := webhook.NewPayload(j, e.callbackURL(), attempt)

	if err := e.dispatcher.Dispatch(ctx, j.Category, payload); err != nil {
		return e.recoverDispatch(ctx, j, desc, attempt, err)
	}

	e.propagateParent(ctx, j, now)
	e.publish(event.TypeJobRetried, j, attempt)

	return &Result{Method: MethodWebhook, Status: job.StatusProcessing, RetryAttempt: attempt}, nil
}

// Start triggers initial processing for a queued job. Same machinery as
// Retry minus the failed-state guard and the retry_count increment.
func (e *Engine) Start(ctx context.Context, jobID string) (*Result, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	desc, ok := job.Describe(j.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", webhook.ErrInvalidCategory, j.Category)
	}

	if j.Status != job.StatusQueued {
		return nil, fmt.Errorf("%w: only queued %s jobs can be started (status is %s)", ErrInvalidState, desc.Label, j.Status)
	}

	now := e.now()
	if err := e.store.MarkProcessing(ctx, j.ID, job.StatusQueued, now, now.Add(desc.Deadline), false); err != nil {
		if errors.Is(err, job.ErrStale) {
			return nil, fmt.Errorf("%w: job was modified concurrently", ErrInvalidState)
		}
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	if err := e.dispatcher.Dispatch(ctx, j.Category, webhook.NewPayload(j, e.callbackURL(), 0)); err != nil {
		return e.recoverDispatch(ctx, j, desc, 0, err)
	}

	return &Result{Method: MethodWebhook, Status: job.StatusProcessing}, nil
}

// recoverDispatch handles the fork after a failed dispatch. A missing
// endpoint on a fallback-capable category is a recoverable outcome: the job
// is parked in the category's fallback status and the caller gets a
// manual_reset result instead of an error. Everything else rolls the job
// back to failed before reporting.
func (e *Engine) recoverDispatch(ctx context.Context, j *job.Job, desc job.Descriptor, attempt int, dispatchErr error) (*Result, error) {
	if errors.Is(dispatchErr, webhook.ErrNoEndpoint) && desc.ManualFallback {
		if err := e.store.ResetStatus(ctx, j.ID, job.StatusProcessing, desc.FallbackStatus); err != nil {
			log.Error().Err(err).Str("job_id", j.ID).Msg("manual-reset write failed")
			return nil, fmt.Errorf("reset job for manual processing: %w", err)
		}
		log.Info().
			Str("job_id", j.ID).
			Str("category", string(j.Category)).
			Str("status", string(desc.FallbackStatus)).
			Msg("no webhook configured, job reset for manual processing")
		return &Result{Method: MethodManualReset, Status: desc.FallbackStatus, RetryAttempt: attempt}, nil
	}

	// Rollback before reporting: the job must never stay in processing when
	// the dispatch could not be confirmed sent.
	if err := e.store.MarkFailed(ctx, j.ID, job.StatusProcessing, dispatchFailureMessage); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Msg("dispatch rollback write failed")
	}

	if errors.Is(dispatchErr, webhook.ErrNoEndpoint) {
		return nil, dispatchErr
	}
	return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, dispatchErr)
}

// propagateParent extends a content item retry to its failed parent brief:
// the brief re-enters processing with fresh deadlines but does not consume
// one of its own retry slots. Lookup failures degrade by skipping the
// propagation rather than failing the primary retry.
func (e *Engine) propagateParent(ctx context.Context, j *job.Job, now time.Time) {
	if j.Category != job.CategoryContentItem {
		return
	}

	parent, err := e.store.FindParentBrief(ctx, j)
	if err != nil {
		if !errors.Is(err, job.ErrNotFound) {
			log.Warn().Err(err).Str("job_id", j.ID).Msg("parent brief lookup failed, skipping propagation")
		}
		return
	}
	if parent == nil || parent.Status != job.StatusFailed {
		return
	}

	desc, ok := job.Describe(parent.Category)
	if !ok {
		return
	}
	if err := e.store.MarkProcessing(ctx, parent.ID, job.StatusFailed, now, now.Add(desc.Deadline), false); err != nil {
		log.Warn().Err(err).Str("brief_id", parent.ID).Msg("parent brief propagation failed")
	}
}

func (e *Engine) publish(t event.Type, j *job.Job, attempt int) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(context.Background(), event.Event{
		Type: t,
		Payload: event.JobEvent{
			JobID:        j.ID,
			OwnerID:      j.OwnerID,
			Category:     j.Category,
			Title:        j.Title,
			Status:       job.StatusProcessing,
			RetryAttempt: attempt,
		},
	})
}

func (e *Engine) callbackURL() string {
	return strings.TrimRight(e.callbackBaseURL, "/") + "/api/v1/callbacks/jobs"
}
