package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/webhook"
)

type fakeStore struct {
	jobs      map[string]*job.Job
	parentErr error
}

func newFakeStore(jobs ...*job.Job) *fakeStore {
	s := &fakeStore{jobs: make(map[string]*job.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*job.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *fakeStore) MarkProcessing(_ context.Context, id string, from job.Status, startedAt, timeoutAt time.Time, incrementRetry bool) error {
	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return job.ErrStale
	}
	j.Status = job.StatusProcessing
	j.ProcessingStartedAt = &startedAt
	j.ProcessingTimeoutAt = &timeoutAt
	j.LastErrorMessage = ""
	if incrementRetry {
		j.RetryCount++
	}
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, from job.Status, message string) error {
	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return job.ErrStale
	}
	j.Status = job.StatusFailed
	j.ProcessingStartedAt = nil
	j.ProcessingTimeoutAt = nil
	j.LastErrorMessage = message
	return nil
}

func (s *fakeStore) ResetStatus(_ context.Context, id string, from, to job.Status) error {
	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return job.ErrStale
	}
	j.Status = to
	j.ProcessingStartedAt = nil
	j.ProcessingTimeoutAt = nil
	j.LastErrorMessage = ""
	return nil
}

func (s *fakeStore) FindParentBrief(_ context.Context, j *job.Job) (*job.Job, error) {
	if s.parentErr != nil {
		return nil, s.parentErr
	}
	if j.ParentID == "" {
		return nil, job.ErrNotFound
	}
	parent, ok := s.jobs[j.ParentID]
	if !ok {
		return nil, job.ErrNotFound
	}
	copied := *parent
	return &copied, nil
}

// stubDispatcher records every payload plus the persisted job state at the
// moment the dispatch started.
type stubDispatcher struct {
	store *fakeStore
	err   error

	payloads     []webhook.Payload
	statusAtCall []job.Status
}

func (d *stubDispatcher) Dispatch(_ context.Context, _ job.Category, payload webhook.Payload) error {
	d.payloads = append(d.payloads, payload)
	if d.store != nil {
		if j, ok := d.store.jobs[payload.JobID]; ok {
			d.statusAtCall = append(d.statusAtCall, j.Status)
		}
	}
	return d.err
}

func newEngine(store *fakeStore, dispatcher *stubDispatcher, at time.Time) *Engine {
	e := New(store, dispatcher, "https://app.example.com", nil)
	e.now = func() time.Time { return at }
	return e
}

func failedJob(id string, category job.Category, retries int) *job.Job {
	return &job.Job{
		ID:         id,
		OwnerID:    "user-1",
		Category:   category,
		Title:      "Test job",
		Status:     job.StatusFailed,
		RetryCount: retries,
	}
}

func TestRetryCapExceeded(t *testing.T) {
	store := newFakeStore(failedJob("j1", job.CategoryBriefCreation, job.MaxRetries))
	dispatcher := &stubDispatcher{store: store}
	e := newEngine(store, dispatcher, time.Now())

	before := *store.jobs["j1"]
	_, err := e.Retry(context.Background(), "j1")
	if !errors.Is(err, ErrRetryLimitExceeded) {
		t.Fatalf("expected ErrRetryLimitExceeded, got %v", err)
	}
	if len(dispatcher.payloads) != 0 {
		t.Error("dispatcher must not be called when the cap is reached")
	}
	if after := *store.jobs["j1"]; after != before {
		t.Errorf("row mutated: before %+v, after %+v", before, after)
	}
}

func TestRetryInvalidState(t *testing.T) {
	for _, status := range []job.Status{job.StatusDraft, job.StatusQueued, job.StatusProcessing, job.StatusReady, job.StatusCompleted, job.StatusDiscarded} {
		j := failedJob("j1", job.CategoryContentItem, 0)
		j.Status = status
		store := newFakeStore(j)
		dispatcher := &stubDispatcher{store: store}
		e := newEngine(store, dispatcher, time.Now())

		before := *store.jobs["j1"]
		_, err := e.Retry(context.Background(), "j1")
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", status, err)
		}
		if len(dispatcher.payloads) != 0 {
			t.Errorf("status %s: dispatcher must not be called", status)
		}
		if after := *store.jobs["j1"]; after != before {
			t.Errorf("status %s: row mutated", status)
		}
	}
}

func TestRetryNotFound(t *testing.T) {
	e := newEngine(newFakeStore(), &stubDispatcher{}, time.Now())
	_, err := e.Retry(context.Background(), "missing")
	if !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("expected job.ErrNotFound, got %v", err)
	}
}

func TestRetrySuccess(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	store := newFakeStore(failedJob("j1", job.CategoryBriefCreation, 1))
	store.jobs["j1"].LastErrorMessage = "previous failure"
	dispatcher := &stubDispatcher{store: store}
	e := newEngine(store, dispatcher, now)

	result, err := e.Retry(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if result.Method != MethodWebhook {
		t.Errorf("method = %s, want webhook", result.Method)
	}
	if result.RetryAttempt != 2 {
		t.Errorf("retry attempt = %d, want 2", result.RetryAttempt)
	}

	j := store.jobs["j1"]
	if j.Status != job.StatusProcessing {
		t.Errorf("status = %s, want processing", j.Status)
	}
	if j.RetryCount != 2 {
		t.Errorf("retry_count = %d, want 2", j.RetryCount)
	}
	if j.LastErrorMessage != "" {
		t.Errorf("last_error_message = %q, want cleared", j.LastErrorMessage)
	}
	if j.ProcessingStartedAt == nil || !j.ProcessingStartedAt.Equal(now) {
		t.Errorf("processing_started_at = %v, want %v", j.ProcessingStartedAt, now)
	}
	want := now.Add(30 * time.Minute)
	if j.ProcessingTimeoutAt == nil || !j.ProcessingTimeoutAt.Equal(want) {
		t.Errorf("processing_timeout_at = %v, want %v", j.ProcessingTimeoutAt, want)
	}

	// Write-before-send: the dispatcher must observe the processing state.
	if len(dispatcher.statusAtCall) != 1 || dispatcher.statusAtCall[0] != job.StatusProcessing {
		t.Errorf("dispatch observed status %v, want [processing]", dispatcher.statusAtCall)
	}

	payload := dispatcher.payloads[0]
	if payload.RetryAttempt != 2 {
		t.Errorf("payload retry_attempt = %d, want 2", payload.RetryAttempt)
	}
	if payload.Type != string(job.CategoryBriefCreation) {
		t.Errorf("payload type = %q", payload.Type)
	}
	if payload.CallbackURL != "https://app.example.com/api/v1/callbacks/jobs" {
		t.Errorf("payload callback_url = %q", payload.CallbackURL)
	}
	if payload.CallbackData == nil || payload.CallbackData.JobID != "j1" {
		t.Errorf("payload callback_data = %+v", payload.CallbackData)
	}
}

func TestRetryDispatchFailureRollsBack(t *testing.T) {
	store := newFakeStore(failedJob("j1", job.CategoryContentItem, 2))
	dispatcher := &stubDispatcher{store: store, err: fmt.Errorf("HTTP 500")}
	e := newEngine(store, dispatcher, time.Now())

	_, err := e.Retry(context.Background(), "j1")
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}

	j := store.jobs["j1"]
	if j.Status != job.StatusFailed {
		t.Errorf("status = %s, want failed", j.Status)
	}
	if j.ProcessingStartedAt != nil || j.ProcessingTimeoutAt != nil {
		t.Error("processing timestamps must be cleared by the rollback")
	}
	// The attempt still consumed a retry slot.
	if j.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", j.RetryCount)
	}
	if j.LastErrorMessage != dispatchFailureMessage {
		t.Errorf("last_error_message = %q, want %q", j.LastErrorMessage, dispatchFailureMessage)
	}

	// A 4th attempt must now hit the cap.
	_, err = e.Retry(context.Background(), "j1")
	if !errors.Is(err, ErrRetryLimitExceeded) {
		t.Fatalf("expected ErrRetryLimitExceeded on 4th attempt, got %v", err)
	}
}

func TestRetryNoEndpointHardCategory(t *testing.T) {
	store := newFakeStore(failedJob("j1", job.CategoryBriefCreation, 0))
	dispatcher := &stubDispatcher{store: store, err: fmt.Errorf("%w for category brief_creation", webhook.ErrNoEndpoint)}
	e := newEngine(store, dispatcher, time.Now())

	_, err := e.Retry(context.Background(), "j1")
	if !errors.Is(err, webhook.ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
	if errors.Is(err, ErrDispatchFailed) {
		t.Error("missing endpoint must not be reported as a dispatch failure")
	}
	if store.jobs["j1"].Status != job.StatusFailed {
		t.Errorf("status = %s, want failed after rollback", store.jobs["j1"].Status)
	}
}

func TestRetryNoEndpointManualFallback(t *testing.T) {
	cases := []struct {
		category job.Category
		want     job.Status
	}{
		{job.CategoryDerivative, job.StatusDraft},
		{job.CategoryContentItemFix, job.StatusReady},
	}
	for _, tc := range cases {
		store := newFakeStore(failedJob("j1", tc.category, 1))
		dispatcher := &stubDispatcher{store: store, err: fmt.Errorf("dispatch: %w", webhook.ErrNoEndpoint)}
		e := newEngine(store, dispatcher, time.Now())

		result, err := e.Retry(context.Background(), "j1")
		if err != nil {
			t.Fatalf("%s: expected manual reset, got error %v", tc.category, err)
		}
		if result.Method != MethodManualReset {
			t.Errorf("%s: method = %s, want manual_reset", tc.category, result.Method)
		}
		if result.Status != tc.want {
			t.Errorf("%s: status = %s, want %s", tc.category, result.Status, tc.want)
		}
		j := store.jobs["j1"]
		if j.Status != tc.want {
			t.Errorf("%s: persisted status = %s, want %s", tc.category, j.Status, tc.want)
		}
		if j.ProcessingStartedAt != nil || j.ProcessingTimeoutAt != nil {
			t.Errorf("%s: processing timestamps must be cleared", tc.category)
		}
	}
}

func TestRetryPropagatesToFailedParentBrief(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	parent := failedJob("brief-1", job.CategoryBriefCreation, 2)
	child := failedJob("item-1", job.CategoryContentItem, 0)
	child.ParentID = "brief-1"

	store := newFakeStore(parent, child)
	dispatcher := &stubDispatcher{store: store}
	e := newEngine(store, dispatcher, now)

	if _, err := e.Retry(context.Background(), "item-1"); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	p := store.jobs["brief-1"]
	if p.Status != job.StatusProcessing {
		t.Errorf("parent status = %s, want processing", p.Status)
	}
	// Propagation must not consume one of the parent's retry slots.
	if p.RetryCount != 2 {
		t.Errorf("parent retry_count = %d, want 2", p.RetryCount)
	}
	if p.ProcessingTimeoutAt == nil || !p.ProcessingTimeoutAt.Equal(now.Add(30*time.Minute)) {
		t.Errorf("parent deadline = %v", p.ProcessingTimeoutAt)
	}

	// Only the child's payload is dispatched.
	if len(dispatcher.payloads) != 1 || dispatcher.payloads[0].JobID != "item-1" {
		t.Errorf("unexpected dispatches: %+v", dispatcher.payloads)
	}
}

func TestRetrySkipsHealthyParent(t *testing.T) {
	parent := failedJob("brief-1", job.CategoryBriefCreation, 0)
	parent.Status = job.StatusCompleted
	child := failedJob("item-1", job.CategoryContentItem, 0)
	child.ParentID = "brief-1"

	store := newFakeStore(parent, child)
	e := newEngine(store, &stubDispatcher{store: store}, time.Now())

	if _, err := e.Retry(context.Background(), "item-1"); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if store.jobs["brief-1"].Status != job.StatusCompleted {
		t.Error("completed parent must not be touched")
	}
}

func TestRetryParentLookupFailureDegrades(t *testing.T) {
	child := failedJob("item-1", job.CategoryContentItem, 0)
	child.ParentID = "brief-1"
	store := newFakeStore(child)
	store.parentErr = fmt.Errorf("connection refused")
	e := newEngine(store, &stubDispatcher{store: store}, time.Now())

	if _, err := e.Retry(context.Background(), "item-1"); err != nil {
		t.Fatalf("parent lookup failure must not fail the retry: %v", err)
	}
	if store.jobs["item-1"].Status != job.StatusProcessing {
		t.Errorf("child status = %s, want processing", store.jobs["item-1"].Status)
	}
}

func TestStartQueuedJob(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	j := failedJob("j1", job.CategoryGeneralContent, 0)
	j.Status = job.StatusQueued
	store := newFakeStore(j)
	dispatcher := &stubDispatcher{store: store}
	e := newEngine(store, dispatcher, now)

	result, err := e.Start(context.Background(), "j1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if result.Method != MethodWebhook {
		t.Errorf("method = %s", result.Method)
	}

	got := store.jobs["j1"]
	if got.Status != job.StatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", got.RetryCount)
	}
	// General content gets the short deadline.
	want := now.Add(2 * time.Minute)
	if got.ProcessingTimeoutAt == nil || !got.ProcessingTimeoutAt.Equal(want) {
		t.Errorf("deadline = %v, want %v", got.ProcessingTimeoutAt, want)
	}
	if dispatcher.payloads[0].RetryAttempt != 0 {
		t.Errorf("payload retry_attempt = %d, want 0", dispatcher.payloads[0].RetryAttempt)
	}
}

func TestStartRejectsNonQueued(t *testing.T) {
	store := newFakeStore(failedJob("j1", job.CategoryIdeaEngine, 0))
	e := newEngine(store, &stubDispatcher{store: store}, time.Now())

	_, err := e.Start(context.Background(), "j1")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
