package services

import (
	"context"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
)

// JobReaderSvc defines read operations for job data
type JobReaderSvc interface {
	// GetJob retrieves a job the actor is allowed to see.
	GetJob(ctx context.Context, jobID string, actor domain.Actor) (*domain.Job, error)

	// ListJobs retrieves a page of the actor's jobs, either as seller or as contractor.
	ListJobs(ctx context.Context, params dto.ListJobsParams, actor domain.Actor) ([]domain.Job, *string, error)
}

// JobWriterSvc defines write operations for job data
type JobWriterSvc interface {
	// CreateJob persists a new pending job owned by the acting seller.
	CreateJob(ctx context.Context, req dto.CreateJobRequest, actor domain.Actor) (*domain.Job, error)

	// UpdateJob patches non-status fields of a job read at req.Version.
	UpdateJob(ctx context.Context, jobID string, req dto.UpdateJobRequest, actor domain.Actor) (*domain.Job, error)

	// TransitionJob moves a job through its lifecycle and runs the escrow side effects of the
	// transition in the same unit of work.
	TransitionJob(ctx context.Context, jobID string, req dto.TransitionJobRequest, actor domain.Actor) (*domain.Job, error)
}

// JobSvcFacade combines all job-related service interfaces
type JobSvcFacade interface {
	JobReaderSvc
	JobWriterSvc
}
