package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VersatilVC/cybra-content-flow-sub002/internal/core/job"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL persistence layer. It implements the store
// interfaces of the retry engine, the sweeper, the notification emitter and
// the webhook registry.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const jobColumns = `id, owner_id, category, title, status, retry_count,
	processing_started_at, processing_timeout_at, last_error_message,
	parent_id, submission_id, created_at, updated_at`

func scanJob(row pgx.Row) (*job.Job, error) {
	var j job.Job
	var category, status string
	var started, timeout pgtype.Timestamptz
	var lastErr, parent, submission pgtype.Text

	err := row.Scan(&j.ID, &j.OwnerID, &category, &j.Title, &status, &j.RetryCount,
		&started, &timeout, &lastErr, &parent, &submission, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, job.ErrNotFound
		}
		return nil, err
	}

	j.Category = job.Category(category)
	j.Status = job.Status(status)
	if started.Valid {
		t := started.Time
		j.ProcessingStartedAt = &t
	}
	if timeout.Valid {
		t := timeout.Time
		j.ProcessingTimeoutAt = &t
	}
	j.LastErrorMessage = lastErr.String
	j.ParentID = parent.String
	j.SubmissionID = submission.String
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]job.Job, error) {
	defer rows.Close()
	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// CreateJob inserts a new job row. ID, status and timestamps are filled in
// when unset.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = job.StatusQueued
	}
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, owner_id, category, title, status, retry_count,
			last_error_message, parent_id, submission_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		j.ID, j.OwnerID, string(j.Category), j.Title, string(j.Status), j.RetryCount,
		nullText(j.LastErrorMessage), nullText(j.ParentID), nullText(j.SubmissionID),
		j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetJobForOwner is GetJob restricted to rows the caller owns.
func (s *Store) GetJobForOwner(ctx context.Context, id, ownerID string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanJob(row)
}

type ListJobsParams struct {
	OwnerID  string
	Category job.Category
	Status   job.Status
	Limit    int32
	Offset   int32
}

func (s *Store) ListJobs(ctx context.Context, p ListJobsParams) ([]job.Job, error) {
	where := []string{"owner_id = $1"}
	args := []any{p.OwnerID}

	if p.Category != "" {
		args = append(args, string(p.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if p.Status != "" {
		args = append(args, string(p.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, p.Limit, p.Offset)

	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return collectJobs(rows)
}

// MarkProcessing transitions a job into processing. Both processing
// timestamps are set together, the previous error is cleared, and the write
// is guarded on the status the caller observed.
func (s *Store) MarkProcessing(ctx context.Context, id string, from job.Status, startedAt, timeoutAt time.Time, incrementRetry bool) error {
	inc := 0
	if incrementRetry {
		inc = 1
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'processing',
			processing_started_at = $3,
			processing_timeout_at = $4,
			last_error_message = NULL,
			retry_count = retry_count + $5,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), startedAt, timeoutAt, inc)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return job.ErrStale
	}
	return nil
}

// MarkFailed transitions a job to failed and clears the processing
// timestamps; they must never be read once the job has left processing.
func (s *Store) MarkFailed(ctx context.Context, id string, from job.Status, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed',
			last_error_message = $3,
			processing_started_at = NULL,
			processing_timeout_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), message)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return job.ErrStale
	}
	return nil
}

// ResetStatus parks a job in a neutral resumable status.
func (s *Store) ResetStatus(ctx context.Context, id string, from, to job.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $3,
			last_error_message = NULL,
			processing_started_at = NULL,
			processing_timeout_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("reset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return job.ErrStale
	}
	return nil
}

// FinalizeStatus moves a processing job to its terminal status on behalf of
// the workflow callback and returns the updated row.
func (s *Store) FinalizeStatus(ctx context.Context, id string, to job.Status, errorMessage string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = $2,
			last_error_message = NULLIF($3, ''),
			processing_started_at = NULL,
			processing_timeout_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
		RETURNING `+jobColumns,
		id, string(to), errorMessage)
	j, err := scanJob(row)
	if errors.Is(err, job.ErrNotFound) {
		return nil, job.ErrStale
	}
	return j, err
}

// ExpireProcessing flips every processing job of the category whose deadline
// has elapsed to failed, in one guarded update, and returns the affected
// rows. The status predicate makes repeated sweeps idempotent.
func (s *Store) ExpireProcessing(ctx context.Context, category job.Category, now time.Time, message string) ([]job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE jobs
		SET status = 'failed',
			last_error_message = $3,
			processing_started_at = NULL,
			processing_timeout_at = NULL,
			updated_at = NOW()
		WHERE category = $1
			AND status = 'processing'
			AND processing_timeout_at < $2
		RETURNING `+jobColumns,
		string(category), now, message)
	if err != nil {
		return nil, fmt.Errorf("expire processing jobs: %w", err)
	}
	return collectJobs(rows)
}

// FindParentBrief resolves a content item's parent brief, preferring the
// direct foreign key and falling back to the originating submission record.
func (s *Store) FindParentBrief(ctx context.Context, j *job.Job) (*job.Job, error) {
	if j.ParentID != "" {
		return s.GetJob(ctx, j.ParentID)
	}
	if j.SubmissionID == "" {
		return nil, job.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT jobs.id, jobs.owner_id, jobs.category, jobs.title, jobs.status,
			jobs.retry_count, jobs.processing_started_at, jobs.processing_timeout_at,
			jobs.last_error_message, jobs.parent_id, jobs.submission_id,
			jobs.created_at, jobs.updated_at
		FROM jobs
		JOIN submissions ON submissions.brief_id = jobs.id
		WHERE submissions.id = $1`, j.SubmissionID)
	return scanJob(row)
}

// LinkSubmission records the originating submission for a brief.
func (s *Store) LinkSubmission(ctx context.Context, submissionID, briefID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (id, brief_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET brief_id = EXCLUDED.brief_id`,
		submissionID, briefID)
	if err != nil {
		return fmt.Errorf("link submission: %w", err)
	}
	return nil
}
