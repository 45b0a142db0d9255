package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
)

// JobRepository stores jobs in a Store.
type JobRepository struct {
	store *Store
}

var _ portsrepo.JobRepositoryFacade = (*JobRepository)(nil)

func (r *JobRepository) FindJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var (
		job domain.Job
		ok  bool
	)
	r.store.guard(ctx, func() {
		job, ok = r.store.jobs[jobID]
	})
	if !ok {
		return nil, apperrors.NewNotFoundError("job", jobID)
	}
	job = job.Clone()
	return &job, nil
}

func (r *JobRepository) list(ctx context.Context, match func(domain.Job) bool, limit int, nextToken *string) ([]domain.Job, *string, error) {
	var jobs []domain.Job
	r.store.guard(ctx, func() {
		for _, job := range r.store.jobs {
			if match(job) {
				jobs = append(jobs, job.Clone())
			}
		}
	})
	return page(jobs, limit, nextToken, func(j domain.Job) (time.Time, string) { return j.CreatedAt, j.JobID })
}

func (r *JobRepository) ListJobsBySeller(ctx context.Context, sellerID string, limit int, nextToken *string) ([]domain.Job, *string, error) {
	return r.list(ctx, func(j domain.Job) bool { return j.SellerID == sellerID }, limit, nextToken)
}

func (r *JobRepository) ListJobsByContractor(ctx context.Context, contractorID string, limit int, nextToken *string) ([]domain.Job, *string, error) {
	return r.list(ctx, func(j domain.Job) bool { return j.IsContractor(contractorID) }, limit, nextToken)
}

func (r *JobRepository) ListJobsDueForSettlement(ctx context.Context, completedBefore time.Time, limit int) ([]string, error) {
	var ids []string
	r.store.guard(ctx, func() {
		pending := make(map[string]bool)
		for _, tx := range r.store.txs {
			if tx.Type == domain.TransactionTypePayment && tx.Status == domain.TransactionStatusPending && tx.JobID != nil {
				pending[*tx.JobID] = true
			}
		}
		for _, job := range r.store.jobs {
			if job.Status != domain.JobStatusCompleted || job.CompletedAt == nil || job.Dispute.IsOpen() {
				continue
			}
			if job.CompletedAt.After(completedBefore) || !pending[job.JobID] {
				continue
			}
			ids = append(ids, job.JobID)
		}
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *JobRepository) SaveJob(ctx context.Context, job domain.Job) error {
	var err error
	r.store.guard(ctx, func() {
		if _, exists := r.store.jobs[job.JobID]; exists {
			err = fmt.Errorf("%w: job %s", apperrors.ErrDuplicate, job.JobID)
			return
		}
		job.Version = 1
		r.store.jobs[job.JobID] = job.Clone()
	})
	return err
}

// UpdateJob replaces the stored job. The progress entry is already part of job.ProgressHistory
// here, so it is only checked for consistency.
func (r *JobRepository) UpdateJob(ctx context.Context, job domain.Job, expectedVersion int64, progress *domain.ProgressEntry) error {
	var err error
	r.store.guard(ctx, func() {
		current, ok := r.store.jobs[job.JobID]
		if !ok {
			err = apperrors.NewNotFoundError("job", job.JobID)
			return
		}
		if current.Version != expectedVersion {
			err = apperrors.NewConflictError("job", job.JobID, expectedVersion)
			return
		}
		if progress != nil && len(job.ProgressHistory) != len(current.ProgressHistory)+1 {
			err = fmt.Errorf("job %s: a status change must append exactly one progress entry", job.JobID)
			return
		}
		next := job.Clone()
		next.Version = expectedVersion + 1
		r.store.jobs[job.JobID] = next
	})
	return err
}
