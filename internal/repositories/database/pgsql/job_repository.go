package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/SscSPs/curtain_escrow_app/internal/models"
	"github.com/SscSPs/curtain_escrow_app/internal/utils/mapping"
	"github.com/SscSPs/curtain_escrow_app/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxJobRepository struct {
	BaseRepository
}

// newPgxJobRepository creates a new repository for jobs and their progress history.
func newPgxJobRepository(pool *pgxpool.Pool) portsrepo.JobRepositoryFacade {
	return &PgxJobRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.JobRepositoryFacade = (*PgxJobRepository)(nil)

const jobColumns = `job_id, seller_id, contractor_id, customer_id, status, items, budget_min, budget_max,
	final_amount, scheduled_date, pickup_info, is_internal, customer_satisfaction, collaboration_id,
	completed_at, dispute, version, created_at, created_by, last_updated_at, last_updated_by`

func scanJob(row pgx.Row) (models.Job, error) {
	var m models.Job
	err := row.Scan(
		&m.JobID,
		&m.SellerID,
		&m.ContractorID,
		&m.CustomerID,
		&m.Status,
		&m.Items,
		&m.BudgetMin,
		&m.BudgetMax,
		&m.FinalAmount,
		&m.ScheduledDate,
		&m.PickupInfo,
		&m.IsInternal,
		&m.CustomerSatisfaction,
		&m.CollaborationID,
		&m.CompletedAt,
		&m.Dispute,
		&m.Version,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

// loadProgress returns the progress rows of the given jobs keyed by job, in sequence order.
func (r *PgxJobRepository) loadProgress(ctx context.Context, jobIDs []string) (map[string][]models.JobProgress, error) {
	out := make(map[string][]models.JobProgress, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT job_id, seq, status, occurred_at, contractor_id, actor_id, note
		FROM job_progress
		WHERE job_id = ANY($1)
		ORDER BY seq;
	`
	rows, err := r.db(ctx).Query(ctx, query, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query job progress: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.JobProgress
		if err := rows.Scan(&p.JobID, &p.Seq, &p.Status, &p.OccurredAt, &p.ContractorID, &p.ActorID, &p.Note); err != nil {
			return nil, fmt.Errorf("failed to scan job progress row: %w", err)
		}
		out[p.JobID] = append(out[p.JobID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job progress rows: %w", err)
	}
	return out, nil
}

func (r *PgxJobRepository) FindJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1;`
	m, err := scanJob(r.db(ctx).QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("job", jobID)
		}
		return nil, fmt.Errorf("failed to find job by ID %s: %w", jobID, err)
	}
	progress, err := r.loadProgress(ctx, []string{jobID})
	if err != nil {
		return nil, err
	}
	job := mapping.ToDomainJob(m, progress[jobID])
	return &job, nil
}

func (r *PgxJobRepository) ListJobsBySeller(ctx context.Context, sellerID string, limit int, nextToken *string) ([]domain.Job, *string, error) {
	return r.listJobs(ctx, "seller_id", sellerID, limit, nextToken)
}

func (r *PgxJobRepository) ListJobsByContractor(ctx context.Context, contractorID string, limit int, nextToken *string) ([]domain.Job, *string, error) {
	return r.listJobs(ctx, "contractor_id", contractorID, limit, nextToken)
}

// listJobs pages through jobs where column equals value, ordered by (created_at, job_id) descending.
func (r *PgxJobRepository) listJobs(ctx context.Context, column, value string, limit int, nextToken *string) ([]domain.Job, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	// We fetch one extra item to determine if there's a next page.
	fetchLimit := limit + 1

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + column + ` = $1`
	args := []any{value}
	if nextToken != nil && *nextToken != "" {
		lastCreatedAt, lastID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid nextToken: %v", apperrors.ErrValidation, err)
		}
		// Tuple comparison is concise and efficient in Postgres
		query += ` AND (created_at, job_id) < ($2, $3)`
		args = append(args, lastCreatedAt, lastID)
	}
	query += ` ORDER BY created_at DESC, job_id DESC LIMIT $` + strconv.Itoa(len(args)+1) + `;`
	args = append(args, fetchLimit)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query jobs by %s: %w", column, err)
	}
	defer rows.Close()

	modelJobs := make([]models.Job, 0, fetchLimit)
	for rows.Next() {
		m, err := scanJob(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		modelJobs = append(modelJobs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	var nextTokenVal *string
	results := modelJobs
	if len(modelJobs) > limit {
		last := modelJobs[limit-1]
		token := pagination.EncodeCursor(last.CreatedAt, last.JobID)
		nextTokenVal = &token
		results = modelJobs[:limit]
	}

	ids := make([]string, len(results))
	for i, m := range results {
		ids[i] = m.JobID
	}
	progress, err := r.loadProgress(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	jobs := make([]domain.Job, len(results))
	for i, m := range results {
		jobs[i] = mapping.ToDomainJob(m, progress[m.JobID])
	}
	return jobs, nextTokenVal, nil
}

func (r *PgxJobRepository) ListJobsDueForSettlement(ctx context.Context, completedBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT j.job_id
		FROM jobs j
		WHERE j.status = 'completed'
		  AND j.completed_at <= $1
		  AND (j.dispute IS NULL OR j.dispute->>'status' <> 'open')
		  AND EXISTS (
		      SELECT 1 FROM ledger_transactions t
		      WHERE t.job_id = j.job_id AND t.type = 'payment' AND t.status = 'pending'
		  )
		ORDER BY j.completed_at, j.job_id
		LIMIT $2;
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db(ctx).Query(ctx, query, completedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs due for settlement: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect jobs due for settlement: %w", err)
	}
	return ids, nil
}

func (r *PgxJobRepository) SaveJob(ctx context.Context, job domain.Job) error {
	return r.atomic(ctx, func(ctx context.Context) error {
		return r.saveJob(ctx, job)
	})
}

func (r *PgxJobRepository) saveJob(ctx context.Context, job domain.Job) error {
	m := mapping.ToModelJob(job)
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18, $19, $20)
		ON CONFLICT DO NOTHING;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.JobID,
		m.SellerID,
		m.ContractorID,
		m.CustomerID,
		m.Status,
		m.Items,
		m.BudgetMin,
		m.BudgetMax,
		m.FinalAmount,
		m.ScheduledDate,
		m.PickupInfo,
		m.IsInternal,
		m.CustomerSatisfaction,
		m.CollaborationID,
		m.CompletedAt,
		m.Dispute,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", m.JobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s", apperrors.ErrDuplicate, m.JobID)
	}
	for _, entry := range job.ProgressHistory {
		if err := r.insertProgress(ctx, job.JobID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *PgxJobRepository) insertProgress(ctx context.Context, jobID string, entry domain.ProgressEntry) error {
	p := mapping.ToModelProgress(jobID, entry)
	query := `
		INSERT INTO job_progress (job_id, status, occurred_at, contractor_id, actor_id, note)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	if _, err := r.db(ctx).Exec(ctx, query, p.JobID, p.Status, p.OccurredAt, p.ContractorID, p.ActorID, p.Note); err != nil {
		return fmt.Errorf("failed to append progress to job %s: %w", jobID, err)
	}
	return nil
}

func (r *PgxJobRepository) UpdateJob(ctx context.Context, job domain.Job, expectedVersion int64, progress *domain.ProgressEntry) error {
	return r.atomic(ctx, func(ctx context.Context) error {
		return r.updateJob(ctx, job, expectedVersion, progress)
	})
}

func (r *PgxJobRepository) updateJob(ctx context.Context, job domain.Job, expectedVersion int64, progress *domain.ProgressEntry) error {
	m := mapping.ToModelJob(job)
	query := `
		UPDATE jobs SET
			contractor_id = $3, customer_id = $4, status = $5, items = $6, budget_min = $7, budget_max = $8,
			final_amount = $9, scheduled_date = $10, pickup_info = $11, is_internal = $12,
			customer_satisfaction = $13, collaboration_id = $14, completed_at = $15, dispute = $16,
			last_updated_at = $17, last_updated_by = $18, version = version + 1
		WHERE job_id = $1 AND version = $2;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.JobID,
		expectedVersion,
		m.ContractorID,
		m.CustomerID,
		m.Status,
		m.Items,
		m.BudgetMin,
		m.BudgetMax,
		m.FinalAmount,
		m.ScheduledDate,
		m.PickupInfo,
		m.IsInternal,
		m.CustomerSatisfaction,
		m.CollaborationID,
		m.CompletedAt,
		m.Dispute,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", m.JobID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE job_id = $1);`, m.JobID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check job %s: %w", m.JobID, err)
		}
		if !exists {
			return apperrors.NewNotFoundError("job", m.JobID)
		}
		return apperrors.NewConflictError("job", m.JobID, expectedVersion)
	}
	if progress != nil {
		return r.insertProgress(ctx, job.JobID, *progress)
	}
	return nil
}
