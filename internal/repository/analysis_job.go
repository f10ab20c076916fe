package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clauselens/clauselens/internal/domain"
)

const jobColumns = `id, document_id, kind, status, step, total_steps, retries, error, locked_until, created_at, processed_at`

// AnalysisJobRepository persists the durable analysis queue.
type AnalysisJobRepository struct {
	db dbtx
}

func NewAnalysisJobRepository(pool *pgxpool.Pool) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: pool}
}

func NewAnalysisJobRepositoryWithTx(tx pgx.Tx) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: tx}
}

// Create inserts a job. The partial unique index on active jobs turns a
// duplicate live job for the same document into ErrAnalysisInProgress.
func (r *AnalysisJobRepository) Create(ctx context.Context, job *domain.AnalysisJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO analysis_jobs (id, document_id, kind, status, step, total_steps, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.DocumentID, job.Kind, job.Status, job.Step, job.TotalSteps,
		job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_analysis_jobs_active_document" {
			return domain.ErrAnalysisInProgress
		}
		return err
	}
	return nil
}

// HasActiveJob reports whether the document already has a pending or
// processing job.
func (r *AnalysisJobRepository) HasActiveJob(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			 SELECT 1 FROM analysis_jobs
			 WHERE document_id = $1 AND status IN ($2, $3)
		 )`,
		documentID, domain.AnalysisJobStatusPending, domain.AnalysisJobStatusProcessing,
	).Scan(&exists)
	return exists, err
}

func (r *AnalysisJobRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAnalysisJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending atomically claims up to limit pending jobs of a kind.
// FOR UPDATE SKIP LOCKED keeps concurrent workers from claiming the
// same job; the lock window starts at lockDuration from now.
func (r *AnalysisJobRepository) ClaimPending(ctx context.Context, kind domain.AnalysisJobKind, limit int, lockDuration time.Duration) ([]*domain.AnalysisJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM analysis_jobs
			 WHERE status = $1 AND kind = $2
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $3
		 )
		 UPDATE analysis_jobs
		 SET status = $4,
		     error = NULL,
		     processed_at = NULL,
		     locked_until = $5
		 FROM cte
		 WHERE analysis_jobs.id = cte.id
		 RETURNING `+prefixedJobColumns("analysis_jobs"),
		domain.AnalysisJobStatusPending, kind, limit,
		domain.AnalysisJobStatusProcessing, time.Now().UTC().Add(lockDuration),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RenewLock extends a running job's exclusive lock so a live run is
// never mistaken for stalled.
func (r *AnalysisJobRepository) RenewLock(ctx context.Context, id string, lockDuration time.Duration) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE analysis_jobs SET locked_until = $1 WHERE id = $2 AND status = $3`,
		time.Now().UTC().Add(lockDuration), id, domain.AnalysisJobStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAnalysisJobNotFound
	}
	return nil
}

// UpdateProgress records a completed pipeline stage.
func (r *AnalysisJobRepository) UpdateProgress(ctx context.Context, id string, step, totalSteps int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE analysis_jobs SET step = $1, total_steps = $2 WHERE id = $3`,
		step, totalSteps, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAnalysisJobNotFound
	}
	return nil
}

func (r *AnalysisJobRepository) UpdateStatus(ctx context.Context, id string, status domain.AnalysisJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.AnalysisJobStatusCompleted || status == domain.AnalysisJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, error = $2, processed_at = $3, locked_until = NULL WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAnalysisJobNotFound
	}
	return nil
}

func (r *AnalysisJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE analysis_jobs SET retries = retries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAnalysisJobNotFound
	}
	return nil
}

// ReapStalled requeues processing jobs whose lock has lapsed. A worker
// that stops renewing its lock is presumed dead and its job becomes
// claimable again. Returns the number of requeued jobs.
func (r *AnalysisJobRepository) ReapStalled(ctx context.Context) (int, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE analysis_jobs
		 SET status = $1, locked_until = NULL
		 WHERE status = $2 AND locked_until IS NOT NULL AND locked_until < $3`,
		domain.AnalysisJobStatusPending, domain.AnalysisJobStatusProcessing, time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func scanJob(row rowScanner) (*domain.AnalysisJob, error) {
	var job domain.AnalysisJob
	var errMsg pgtype.Text

	err := row.Scan(
		&job.ID, &job.DocumentID, &job.Kind, &job.Status, &job.Step, &job.TotalSteps,
		&job.Retries, &errMsg, &job.LockedUntil, &job.CreatedAt, &job.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

func prefixedJobColumns(alias string) string {
	return alias + ".id, " + alias + ".document_id, " + alias + ".kind, " + alias + ".status, " +
		alias + ".step, " + alias + ".total_steps, " + alias + ".retries, " + alias + ".error, " +
		alias + ".locked_until, " + alias + ".created_at, " + alias + ".processed_at"
}
