package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
)

// JobReader defines read operations for job data
type JobReader interface {
	// FindJobByID retrieves a job with its full progress history.
	FindJobByID(ctx context.Context, jobID string) (*domain.Job, error)

	// ListJobsBySeller retrieves a page of a seller's jobs, newest first.
	ListJobsBySeller(ctx context.Context, sellerID string, limit int, nextToken *string) ([]domain.Job, *string, error)

	// ListJobsByContractor retrieves a page of a contractor's jobs, newest first.
	ListJobsByContractor(ctx context.Context, contractorID string, limit int, nextToken *string) ([]domain.Job, *string, error)

	// ListJobsDueForSettlement returns IDs of completed jobs finished before completedBefore that
	// have no open dispute and still hold pending payments.
	ListJobsDueForSettlement(ctx context.Context, completedBefore time.Time, limit int) ([]string, error)
}

// JobWriter defines write operations for job data
type JobWriter interface {
	// SaveJob persists a new job at version 1.
	SaveJob(ctx context.Context, job domain.Job) error

	// UpdateJob writes job if the stored version still equals expectedVersion, bumping it by one.
	// A non-nil progress entry is appended to the history in the same write. A stale version
	// fails with apperrors.ConflictError.
	UpdateJob(ctx context.Context, job domain.Job, expectedVersion int64, progress *domain.ProgressEntry) error
}

// JobRepositoryFacade combines all job-related repository interfaces
type JobRepositoryFacade interface {
	JobReader
	JobWriter
}
