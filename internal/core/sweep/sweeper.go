package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/notify"
	"github.com/rs/zerolog/log"
)

// timeoutMessage is persisted on every job the sweeper fails.
const timeoutMessage = "Processing timed out and was marked as failed"

// Store is the persistence surface of the sweeper. ExpireProcessing must
// atomically flip every processing job whose deadline has elapsed to failed
// and return the affected rows. The status guard in that update is what
// makes overlapping sweeps safe: a row already failed by a previous pass
// does not match again.
type Store interface {
	ExpireProcessing(ctx context.Context, category job.Category, now time.Time, message string) ([]job.Job, error)
}

// Notifier fans out one notification per expired row.
type Notifier interface {
	Emit(ctx context.Context, j job.Job, outcome notify.Outcome) error
}

// Sweeper reclaims jobs stuck in processing past their deadline. It holds no
// schedule of its own; an external invoker (the serve loop, the sweep CLI
// command, or the admin endpoint) calls it.
type Sweeper struct {
	store    Store
	notifier Notifier

	now func() time.Time
}

func New(store Store, notifier Notifier) *Sweeper {
	return &Sweeper{store: store, notifier: notifier, now: time.Now}
}

// Sweep expires timed-out processing jobs of one category and notifies each
// owner exactly once. Only rows actually transitioned in this pass are
// notified; a failed scan/update aborts with no partial notifications and
// leaves the next scheduled run to try again. Notification inserts are
// best-effort: a failed insert is logged and never un-fails the job.
func (s *Sweeper) Sweep(ctx context.Context, category job.Category) ([]job.Job, error) {
	if _, ok := job.Describe(category); !ok {
		return nil, fmt.Errorf("sweep: unknown category %q", category)
	}

	expired, err := s.store.ExpireProcessing(ctx, category, s.now(), timeoutMessage)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", category, err)
	}

	for _, j := range expired {
		log.Warn().
			Str("job_id", j.ID).
			Str("category", string(category)).
			Str("owner_id", j.OwnerID).
			Msg("job processing timed out")

		if err := s.notifier.Emit(ctx, j, notify.OutcomeTimedOut); err != nil {
			log.Error().Err(err).Str("job_id", j.ID).Msg("timeout notification failed")
		}
	}

	return expired, nil
}

// SweepAll sweeps every category. Categories are independent: one failing
// scan does not stop the others, and all failures are reported together.
func (s *Sweeper) SweepAll(ctx context.Context) ([]job.Job, error) {
	var all []job.Job
	var errs []error
	for _, c := range job.Categories() {
		expired, err := s.Sweep(ctx, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, expired...)
	}
	return all, errors.Join(errs...)
}
