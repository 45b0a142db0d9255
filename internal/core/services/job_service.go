package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/google/uuid"
)

type jobService struct {
	BaseService
	txManager         portsrepo.TransactionManager
	jobRepo           portsrepo.JobRepositoryFacade
	collaborationRepo portsrepo.CollaborationRepositoryFacade
	escrow            portssvc.EscrowHooks
}

// NewJobService creates a new job service. Transitions that move money call escrow inside the
// same unit of work as the job write.
func NewJobService(
	txManager portsrepo.TransactionManager,
	jobRepo portsrepo.JobRepositoryFacade,
	collaborationRepo portsrepo.CollaborationRepositoryFacade,
	escrow portssvc.EscrowHooks,
	options ...Option,
) portssvc.JobSvcFacade {
	return &jobService{
		BaseService:       newBaseService(options...),
		txManager:         txManager,
		jobRepo:           jobRepo,
		collaborationRepo: collaborationRepo,
		escrow:            escrow,
	}
}

var _ portssvc.JobSvcFacade = (*jobService)(nil)

func (s *jobService) CreateJob(ctx context.Context, req dto.CreateJobRequest, actor domain.Actor) (*domain.Job, error) {
	if actor.Role != domain.RoleSeller {
		return nil, fmt.Errorf("%w: only sellers create jobs", apperrors.ErrForbidden)
	}

	now := s.now()
	job := domain.Job{
		JobID:         uuid.NewString(),
		SellerID:      actor.ID,
		CustomerID:    req.CustomerID,
		Status:        domain.JobStatusPending,
		Items:         dto.ToJobItems(req.Items),
		Budget:        domain.Budget{Min: req.Budget.Min, Max: req.Budget.Max},
		FinalAmount:   req.FinalAmount,
		ScheduledDate: req.ScheduledDate,
		PickupInfo:    dto.ToPickupInfo(req.PickupInfo),
		IsInternal:    req.IsInternal,
		ProgressHistory: []domain.ProgressEntry{{
			Status:    domain.JobStatusPending,
			Timestamp: now,
			ActorID:   actor.ID,
		}},
		Version:     1,
		AuditFields: domain.NewAuditFields(actor.ID, now),
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	if err := s.jobRepo.SaveJob(ctx, job); err != nil {
		s.LogError(ctx, err, "Failed to save job", slog.String("seller_id", actor.ID))
		return nil, err
	}
	s.publish(ctx, domain.Event{Type: domain.EventJobCreated, JobID: job.JobID, ActorID: actor.ID, To: string(job.Status), OccurredAt: now})
	s.LogInfo(ctx, "Job created", slog.String("job_id", job.JobID))
	return &job, nil
}

// canView reports whether actor may read job. Contractors may browse open marketplace jobs.
func (s *jobService) canView(ctx context.Context, job *domain.Job, actor domain.Actor) bool {
	switch {
	case actor.IsAdmin(), actor.IsSystem(), job.IsSeller(actor.ID), job.IsContractor(actor.ID):
		return true
	case actor.Role == domain.RoleContractor && job.Status == domain.JobStatusPending && !job.IsInternal:
		return true
	case job.CollaborationID != nil:
		collab, err := s.collaborationRepo.FindCollaborationByID(ctx, *job.CollaborationID)
		return err == nil && (collab.HasAssignee(actor.ID) || (actor.Role == domain.RoleContractor && collab.Status == domain.CollaborationStatusOpen))
	}
	return false
}

func (s *jobService) GetJob(ctx context.Context, jobID string, actor domain.Actor) (*domain.Job, error) {
	job, err := s.jobRepo.FindJobByID(ctx, jobID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to get job", slog.String("job_id", jobID))
		}
		return nil, err
	}
	if !s.canView(ctx, job, actor) {
		return nil, fmt.Errorf("%w: job %s belongs to other parties", apperrors.ErrForbidden, jobID)
	}
	return job, nil
}

func (s *jobService) ListJobs(ctx context.Context, params dto.ListJobsParams, actor domain.Actor) ([]domain.Job, *string, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	var (
		jobs []domain.Job
		next *string
		err  error
	)
	if params.As == string(domain.RoleContractor) {
		jobs, next, err = s.jobRepo.ListJobsByContractor(ctx, actor.ID, limit, params.NextToken)
	} else {
		jobs, next, err = s.jobRepo.ListJobsBySeller(ctx, actor.ID, limit, params.NextToken)
	}
	if err != nil {
		s.LogError(ctx, err, "Failed to list jobs", slog.String("actor_id", actor.ID), slog.String("as", params.As))
		return nil, nil, err
	}
	return jobs, next, nil
}

func (s *jobService) UpdateJob(ctx context.Context, jobID string, req dto.UpdateJobRequest, actor domain.Actor) (*domain.Job, error) {
	var updated domain.Job
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobRepo.FindJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		if !canActAsSeller(actor, job.SellerID) {
			return fmt.Errorf("%w: only the owning seller can edit job %s", apperrors.ErrForbidden, jobID)
		}
		if job.Version != req.Version {
			return apperrors.NewConflictError("job", jobID, req.Version)
		}
		if job.Status.IsTerminal() && req.CustomerSatisfaction == nil {
			return fmt.Errorf("%w: job %s is %s", apperrors.ErrValidation, jobID, job.Status)
		}

		next := job.Clone()
		pricing := req.Items != nil || req.Budget != nil || req.FinalAmount != nil
		if pricing && job.Status != domain.JobStatusPending {
			return fmt.Errorf("%w: items, budget and final amount are fixed once a job is assigned", apperrors.ErrValidation)
		}
		if req.Items != nil {
			next.Items = dto.ToJobItems(req.Items)
		}
		if req.Budget != nil {
			next.Budget = domain.Budget{Min: req.Budget.Min, Max: req.Budget.Max}
		}
		if req.FinalAmount != nil {
			amount := *req.FinalAmount
			next.FinalAmount = &amount
		}
		if req.CustomerSatisfaction != nil {
			if job.Status != domain.JobStatusCompleted {
				return fmt.Errorf("%w: customer satisfaction is recorded after completion", apperrors.ErrValidation)
			}
			rating := *req.CustomerSatisfaction
			next.CustomerSatisfaction = &rating
		}
		if req.CustomerID != nil {
			next.CustomerID = req.CustomerID
		}
		if req.ScheduledDate != nil {
			next.ScheduledDate = req.ScheduledDate
		}
		if req.PickupInfo != nil {
			next.PickupInfo = dto.ToPickupInfo(req.PickupInfo)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		next.Touch(actor.ID, s.now())

		if err := s.jobRepo.UpdateJob(ctx, next, job.Version, nil); err != nil {
			return err
		}
		next.Version = job.Version + 1
		updated = next
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrConflict) && !errors.Is(err, apperrors.ErrValidation) && !errors.Is(err, apperrors.ErrForbidden) {
			s.LogError(ctx, err, "Failed to update job", slog.String("job_id", jobID))
		}
		return nil, err
	}
	return &updated, nil
}

func (s *jobService) TransitionJob(ctx context.Context, jobID string, req dto.TransitionJobRequest, actor domain.Actor) (*domain.Job, error) {
	var (
		updated domain.Job
		from    domain.JobStatus
	)
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobRepo.FindJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		if req.Version != 0 && req.Version != job.Version {
			return apperrors.NewConflictError("job", jobID, req.Version)
		}
		from = job.Status

		var collab *domain.CollaborationRequest
		if job.CollaborationID != nil {
			collab, err = s.collaborationRepo.FindCollaborationByID(ctx, *job.CollaborationID)
			if err != nil {
				return err
			}
		}

		next, entry, err := domain.Transition(*job, domain.TransitionRequest{
			To:            req.Status,
			Actor:         actor,
			Now:           s.now(),
			ContractorID:  req.ContractorID,
			Note:          req.Note,
			Collaboration: collab,
		})
		if err != nil {
			return err
		}

		assigning := from == domain.JobStatusPending && next.Status == domain.JobStatusAssigned
		if assigning && next.FinalAmount == nil {
			amount := next.EscrowAmount()
			next.FinalAmount = &amount
		}
		if next.Status == domain.JobStatusCancelled && collab != nil && collab.Status == domain.CollaborationStatusOpen {
			cancelled, err := collab.Cancel(actor.ID, entry.Timestamp)
			if err != nil {
				return err
			}
			if err := s.collaborationRepo.UpdateCollaboration(ctx, cancelled, collab.Version); err != nil {
				return err
			}
			next.CollaborationID = nil
			s.publish(ctx, domain.Event{Type: domain.EventCollaborationCancelled, JobID: jobID, CollaborationID: collab.CollaborationID, ActorID: actor.ID, OccurredAt: entry.Timestamp})
		}

		// The job write goes first: its version check rejects a concurrent transition
		// before any money moves.
		if err := s.jobRepo.UpdateJob(ctx, next, job.Version, &entry); err != nil {
			return err
		}
		next.Version = job.Version + 1

		switch {
		case assigning:
			_, err = s.escrow.HoldForAssignment(ctx, &next, actor)
		case next.Status == domain.JobStatusCancelled:
			_, err = s.escrow.RefundOnCancel(ctx, &next, actor)
		case next.Status == domain.JobStatusCompleted:
			_, err = s.escrow.ScheduleRelease(ctx, &next, collab, actor)
		}
		if err != nil {
			return err
		}

		updated = next
		s.publish(ctx, domain.Event{Type: domain.EventJobStatusChanged, JobID: jobID, ActorID: actor.ID, From: string(from), To: string(next.Status), OccurredAt: entry.Timestamp})
		return nil
	})
	if err != nil {
		s.logTransitionError(ctx, err, jobID, req.Status)
		return nil, err
	}
	s.LogInfo(ctx, "Job transitioned",
		slog.String("job_id", jobID),
		slog.String("from", string(from)),
		slog.String("to", string(updated.Status)),
		slog.String("actor_id", actor.ID))
	return &updated, nil
}

func (s *jobService) logTransitionError(ctx context.Context, err error, jobID string, to domain.JobStatus) {
	attrs := []any{slog.String("job_id", jobID), slog.String("to", string(to))}
	switch {
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrIllegalTransition),
		errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrCollaborationLocked):
		s.GetLogger(ctx).Warn("Job transition rejected", append(attrs, slog.String("error", err.Error()))...)
	default:
		s.LogError(ctx, err, "Job transition failed", attrs...)
	}
}
