package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/retry"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/webhook"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/database"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/server/api/middleware"
	"github.com/danielgtaylor/huma/v2"
)

type JobsHandler struct {
	store  *database.Store
	engine *retry.Engine
}

func NewJobsHandler(store *database.Store, engine *retry.Engine) *JobsHandler {
	return &JobsHandler{store: store, engine: engine}
}

type JobBody struct {
	ID                  string     `json:"id" doc:"Job ID"`
	OwnerID             string     `json:"owner_id" doc:"Owning user"`
	Category            string     `json:"category" doc:"Job category"`
	Title               string     `json:"title" doc:"Display title"`
	Status              string     `json:"status" doc:"Lifecycle status"`
	RetryCount          int        `json:"retry_count" doc:"Consumed retry attempts"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty" doc:"When processing began"`
	ProcessingTimeoutAt *time.Time `json:"processing_timeout_at,omitempty" doc:"Processing deadline"`
	LastErrorMessage    string     `json:"last_error_message,omitempty" doc:"Most recent failure"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func newJobBody(j *job.Job) JobBody {
	return JobBody{
		ID:                  j.ID,
		OwnerID:             j.OwnerID,
		Category:            string(j.Category),
		Title:               j.Title,
		Status:              string(j.Status),
		RetryCount:          j.RetryCount,
		ProcessingStartedAt: j.ProcessingStartedAt,
		ProcessingTimeoutAt: j.ProcessingTimeoutAt,
		LastErrorMessage:    j.LastErrorMessage,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
	}
}

type CreateJobInput struct {
	Body struct {
		Category     string `json:"category" enum:"idea_engine,brief_creation,content_processing,derivative_generation,content_item_fix,general_content" doc:"Job category"`
		Title        string `json:"title" minLength:"1" doc:"Display title"`
		ParentID     string `json:"parent_id,omitempty" doc:"Parent brief ID (content items)"`
		SubmissionID string `json:"submission_id,omitempty" doc:"Originating submission ID"`
	}
}

type CreateJobBody struct {
	Job    JobBody `json:"job"`
	Detail string  `json:"detail,omitempty" doc:"Set when the initial trigger could not be delivered"`
}

type CreateJobOutput struct {
	Body CreateJobBody
}

// Create inserts the job and immediately triggers the workflow system. A
// failed trigger does not fail the request: the job lands in failed (or its
// manual-fallback status) and the response says why.
func (h *JobsHandler) Create(ctx context.Context, input *CreateJobInput) (*CreateJobOutput, error) {
	category, err := job.ParseCategory(input.Body.Category)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	j := &job.Job{
		OwnerID:      middleware.GetUserID(ctx),
		Category:     category,
		Title:        input.Body.Title,
		Status:       job.StatusQueued,
		ParentID:     input.Body.ParentID,
		SubmissionID: input.Body.SubmissionID,
	}
	if err := h.store.CreateJob(ctx, j); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	detail := ""
	if _, err := h.engine.Start(ctx, j.ID); err != nil {
		detail = err.Error()
	}

	created, err := h.store.GetJob(ctx, j.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	return &CreateJobOutput{Body: CreateJobBody{Job: newJobBody(created), Detail: detail}}, nil
}

type ListJobsInput struct {
	Category string `query:"category" doc:"Filter by category"`
	Status   string `query:"status" doc:"Filter by status"`
	Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Max results"`
	Offset   int    `query:"offset" default:"0" minimum:"0" doc:"Offset"`
}

type ListJobsOutput struct {
	Body []JobBody
}

func (h *JobsHandler) List(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	if input.Category != "" {
		if _, err := job.ParseCategory(input.Category); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}

	jobs, err := h.store.ListJobs(ctx, database.ListJobsParams{
		OwnerID:  middleware.GetUserID(ctx),
		Category: job.Category(input.Category),
		Status:   job.Status(input.Status),
		Limit:    int32(input.Limit),
		Offset:   int32(input.Offset),
	})
	if err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	out := make([]JobBody, 0, len(jobs))
	for i := range jobs {
		out = append(out, newJobBody(&jobs[i]))
	}
	return &ListJobsOutput{Body: out}, nil
}

type JobIDInput struct {
	ID string `path:"id" doc:"Job ID"`
}

type JobOutput struct {
	Body JobBody
}

func (h *JobsHandler) Get(ctx context.Context, input *JobIDInput) (*JobOutput, error) {
	j, err := h.getAccessible(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: newJobBody(j)}, nil
}

type RetryJobBody struct {
	Method       string `json:"method" enum:"webhook,manual_reset" doc:"How processing was resumed"`
	Status       string `json:"status" doc:"Job status after the retry"`
	RetryAttempt int    `json:"retry_attempt" doc:"Retry attempt this call consumed"`
}

type RetryJobOutput struct {
	Body RetryJobBody
}

// Retry re-triggers processing for a failed job the caller owns.
func (h *JobsHandler) Retry(ctx context.Context, input *JobIDInput) (*RetryJobOutput, error) {
	if _, err := h.getAccessible(ctx, input.ID); err != nil {
		return nil, err
	}

	result, err := h.engine.Retry(ctx, input.ID)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			return nil, huma.Error404NotFound("job not found")
		case errors.Is(err, retry.ErrInvalidState):
			return nil, huma.Error409Conflict(err.Error())
		case errors.Is(err, retry.ErrRetryLimitExceeded):
			return nil, huma.Error409Conflict(err.Error())
		case errors.Is(err, webhook.ErrNoEndpoint):
			return nil, huma.Error412PreconditionFailed(err.Error())
		case errors.Is(err, retry.ErrDispatchFailed):
			return nil, huma.Error502BadGateway(err.Error())
		default:
			return nil, huma.Error500InternalServerError(err.Error())
		}
	}

	return &RetryJobOutput{Body: RetryJobBody{
		Method:       string(result.Method),
		Status:       string(result.Status),
		RetryAttempt: result.RetryAttempt,
	}}, nil
}

// getAccessible enforces ownership for non-admin callers.
func (h *JobsHandler) getAccessible(ctx context.Context, id string) (*job.Job, error) {
	var j *job.Job
	var err error
	if middleware.GetUserRole(ctx) == "admin" {
		j, err = h.store.GetJob(ctx, id)
	} else {
		j, err = h.store.GetJobForOwner(ctx, id, middleware.GetUserID(ctx))
	}
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return j, nil
}
