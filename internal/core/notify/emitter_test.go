package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/event"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
)

type fakeStore struct {
	inserted []Notification
	err      error
}

func (s *fakeStore) InsertNotification(_ context.Context, n *Notification) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, *n)
	return nil
}

func sampleJob() job.Job {
	return job.Job{
		ID:       "j1",
		OwnerID:  "user-1",
		Category: job.CategoryBriefCreation,
		Title:    "Quarterly brief",
	}
}

func TestEmitTimedOut(t *testing.T) {
	store := &fakeStore{}
	e := NewEmitter(store)

	if err := e.Emit(context.Background(), sampleJob(), OutcomeTimedOut); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d notifications, want 1", len(store.inserted))
	}

	n := store.inserted[0]
	if n.RecipientID != "user-1" {
		t.Errorf("recipient = %q, want the job owner", n.RecipientID)
	}
	if n.Type != TypeError {
		t.Errorf("type = %s, want error", n.Type)
	}
	if n.RelatedEntityID != "j1" || n.RelatedEntityType != string(job.CategoryBriefCreation) {
		t.Errorf("related entity = %q/%q", n.RelatedEntityID, n.RelatedEntityType)
	}
	if !strings.Contains(n.Message, "brief") || !strings.Contains(n.Message, "Quarterly brief") {
		t.Errorf("message %q does not name the job", n.Message)
	}
	if n.ID == "" {
		t.Error("notification ID must be assigned")
	}
}

func TestEmitCompleted(t *testing.T) {
	store := &fakeStore{}
	e := NewEmitter(store)

	if err := e.Emit(context.Background(), sampleJob(), OutcomeCompleted); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if store.inserted[0].Type != TypeSuccess {
		t.Errorf("type = %s, want success", store.inserted[0].Type)
	}
}

func TestEmitFailedIncludesError(t *testing.T) {
	store := &fakeStore{}
	e := NewEmitter(store)

	j := sampleJob()
	j.LastErrorMessage = "model unavailable"
	if err := e.Emit(context.Background(), j, OutcomeFailed); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if !strings.Contains(store.inserted[0].Message, "model unavailable") {
		t.Errorf("message %q does not include the failure detail", store.inserted[0].Message)
	}
}

func TestEmitUntitledJob(t *testing.T) {
	store := &fakeStore{}
	e := NewEmitter(store)

	j := sampleJob()
	j.Title = ""
	if err := e.Emit(context.Background(), j, OutcomeTimedOut); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if !strings.Contains(store.inserted[0].Message, "Untitled") {
		t.Errorf("message %q should fall back to Untitled", store.inserted[0].Message)
	}
}

func TestEmitRejectsUnknowns(t *testing.T) {
	e := NewEmitter(&fakeStore{})

	if err := e.Emit(context.Background(), sampleJob(), "exploded"); err == nil {
		t.Error("expected error for unknown outcome")
	}

	j := sampleJob()
	j.Category = "wordpress_publish"
	if err := e.Emit(context.Background(), j, OutcomeTimedOut); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestEmitPropagatesInsertFailure(t *testing.T) {
	e := NewEmitter(&fakeStore{err: errors.New("connection refused")})

	if err := e.Emit(context.Background(), sampleJob(), OutcomeTimedOut); err == nil {
		t.Error("expected insert failure to surface for logging")
	}
}

func TestEventSubscriptions(t *testing.T) {
	store := &fakeStore{}
	e := NewEmitter(store)
	bus := event.NewBus()
	e.SetupEventHandlers(bus)

	bus.Publish(context.Background(), event.Event{
		Type: event.TypeJobCompleted,
		Payload: event.JobEvent{
			JobID:    "j1",
			OwnerID:  "user-1",
			Category: job.CategoryDerivative,
			Title:    "LinkedIn post",
			Status:   job.StatusCompleted,
		},
	})
	bus.Publish(context.Background(), event.Event{
		Type: event.TypeJobFailed,
		Payload: event.JobEvent{
			JobID:    "j2",
			OwnerID:  "user-1",
			Category: job.CategoryDerivative,
			Title:    "X thread",
			Status:   job.StatusFailed,
			Error:    "generation failed",
		},
	})

	if len(store.inserted) != 2 {
		t.Fatalf("inserted %d notifications, want 2", len(store.inserted))
	}
	if store.inserted[0].Type != TypeSuccess {
		t.Errorf("first notification type = %s, want success", store.inserted[0].Type)
	}
	if store.inserted[1].Type != TypeError {
		t.Errorf("second notification type = %s, want error", store.inserted[1].Type)
	}
	if !strings.Contains(store.inserted[1].Message, "generation failed") {
		t.Errorf("failure message %q missing error detail", store.inserted[1].Message)
	}
}
