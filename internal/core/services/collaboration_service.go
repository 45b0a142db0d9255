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

type collaborationService struct {
	BaseService
	txManager         portsrepo.TransactionManager
	jobRepo           portsrepo.JobRepositoryFacade
	collaborationRepo portsrepo.CollaborationRepositoryFacade
	jobs              portssvc.JobWriterSvc
}

// NewCollaborationService creates the service that splits jobs among contractors. jobs is used
// to complete the parent job once every task is done.
func NewCollaborationService(
	txManager portsrepo.TransactionManager,
	jobRepo portsrepo.JobRepositoryFacade,
	collaborationRepo portsrepo.CollaborationRepositoryFacade,
	jobs portssvc.JobWriterSvc,
	options ...Option,
) portssvc.CollaborationSvcFacade {
	return &collaborationService{
		BaseService:       newBaseService(options...),
		txManager:         txManager,
		jobRepo:           jobRepo,
		collaborationRepo: collaborationRepo,
		jobs:              jobs,
	}
}

var _ portssvc.CollaborationSvcFacade = (*collaborationService)(nil)

func toTasks(reqs []dto.CollaborationTaskRequest) []domain.CollaborationTask {
	tasks := make([]domain.CollaborationTask, len(reqs))
	for i, r := range reqs {
		tasks[i] = domain.CollaborationTask{
			TaskID:      uuid.NewString(),
			Description: r.Description,
			ItemNames:   append([]string(nil), r.ItemNames...),
			Amount:      r.Amount,
			Status:      domain.TaskStatusOffered,
		}
	}
	return tasks
}

// requireFinalAmount checks that job has the amount its split must add up to.
func requireFinalAmount(job *domain.Job) error {
	if job.FinalAmount == nil {
		return fmt.Errorf("%w: job %s has no final amount to split", apperrors.ErrValidation, job.JobID)
	}
	return nil
}

func (s *collaborationService) CreateCollaboration(ctx context.Context, req dto.CreateCollaborationRequest, actor domain.Actor) (*domain.CollaborationRequest, error) {
	var created domain.CollaborationRequest
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobRepo.FindJobByID(ctx, req.ParentJobID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !job.IsContractor(actor.ID) {
			return fmt.Errorf("%w: only the assigned contractor can split job %s", apperrors.ErrForbidden, job.JobID)
		}
		if job.Status != domain.JobStatusAssigned {
			return fmt.Errorf("%w: job %s is %s; only assigned jobs can be split", apperrors.ErrValidation, job.JobID, job.Status)
		}
		if job.CollaborationID != nil {
			existing, err := s.collaborationRepo.FindCollaborationByID(ctx, *job.CollaborationID)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			if existing != nil && existing.IsLive() {
				return fmt.Errorf("%w: job %s already has collaboration %s", apperrors.ErrDuplicate, job.JobID, existing.CollaborationID)
			}
		}
		if err := requireFinalAmount(job); err != nil {
			return err
		}

		now := s.now()
		collab := domain.CollaborationRequest{
			CollaborationID: uuid.NewString(),
			ParentJobID:     job.JobID,
			RequesterID:     actor.ID,
			Tasks:           toTasks(req.Tasks),
			Status:          domain.CollaborationStatusOpen,
			Version:         1,
			AuditFields:     domain.NewAuditFields(actor.ID, now),
		}
		if err := domain.ValidateTasks(collab.Tasks); err != nil {
			return err
		}
		if err := collab.VerifyTotal(*job.FinalAmount); err != nil {
			return err
		}
		if err := s.collaborationRepo.SaveCollaboration(ctx, collab); err != nil {
			return err
		}

		next := job.Clone()
		next.CollaborationID = &collab.CollaborationID
		next.Touch(actor.ID, now)
		if err := s.jobRepo.UpdateJob(ctx, next, job.Version, nil); err != nil {
			return err
		}
		created = collab
		s.publish(ctx, domain.Event{Type: domain.EventCollaborationCreated, JobID: job.JobID, CollaborationID: collab.CollaborationID, ActorID: actor.ID, To: string(collab.Status), OccurredAt: now})
		return nil
	})
	if err != nil {
		s.logRejected(ctx, err, "Failed to create collaboration", slog.String("job_id", req.ParentJobID))
		return nil, err
	}
	s.LogInfo(ctx, "Collaboration created", slog.String("collaboration_id", created.CollaborationID), slog.String("job_id", created.ParentJobID))
	return &created, nil
}

func (s *collaborationService) GetCollaboration(ctx context.Context, collaborationID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	collab, err := s.collaborationRepo.FindCollaborationByID(ctx, collaborationID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(), actor.IsSystem(), collab.RequesterID == actor.ID, collab.HasAssignee(actor.ID):
		return collab, nil
	case actor.Role == domain.RoleContractor && collab.Status == domain.CollaborationStatusOpen:
		return collab, nil
	}
	job, err := s.jobRepo.FindJobByID(ctx, collab.ParentJobID)
	if err != nil {
		return nil, err
	}
	if !job.IsSeller(actor.ID) {
		return nil, fmt.Errorf("%w: collaboration %s belongs to other parties", apperrors.ErrForbidden, collaborationID)
	}
	return collab, nil
}

// mutate loads a collaboration and its parent job, applies change and writes the result under
// the collaboration's version check.
func (s *collaborationService) mutate(
	ctx context.Context,
	collaborationID string,
	change func(ctx context.Context, collab *domain.CollaborationRequest, job *domain.Job) (domain.CollaborationRequest, error),
) (*domain.CollaborationRequest, error) {
	var result domain.CollaborationRequest
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		collab, err := s.collaborationRepo.FindCollaborationByID(ctx, collaborationID)
		if err != nil {
			return err
		}
		job, err := s.jobRepo.FindJobByID(ctx, collab.ParentJobID)
		if err != nil {
			return err
		}
		next, err := change(ctx, collab, job)
		if err != nil {
			return err
		}
		if err := s.collaborationRepo.UpdateCollaboration(ctx, next, collab.Version); err != nil {
			return err
		}
		next.Version = collab.Version + 1
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *collaborationService) UpdateTasks(ctx context.Context, collaborationID string, req dto.UpdateCollaborationTasksRequest, actor domain.Actor) (*domain.CollaborationRequest, error) {
	result, err := s.mutate(ctx, collaborationID, func(_ context.Context, collab *domain.CollaborationRequest, job *domain.Job) (domain.CollaborationRequest, error) {
		if !actor.IsAdmin() && collab.RequesterID != actor.ID {
			return *collab, fmt.Errorf("%w: only the requester can change the split", apperrors.ErrForbidden)
		}
		if err := requireFinalAmount(job); err != nil {
			return *collab, err
		}
		return collab.ReplaceTasks(toTasks(req.Tasks), *job.FinalAmount, actor.ID, s.now())
	})
	if err != nil {
		s.logRejected(ctx, err, "Failed to update collaboration tasks", slog.String("collaboration_id", collaborationID))
		return nil, err
	}
	return result, nil
}

func (s *collaborationService) AcceptTask(ctx context.Context, collaborationID, taskID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	if actor.Role != domain.RoleContractor {
		return nil, fmt.Errorf("%w: only contractors accept tasks", apperrors.ErrForbidden)
	}
	result, err := s.mutate(ctx, collaborationID, func(ctx context.Context, collab *domain.CollaborationRequest, job *domain.Job) (domain.CollaborationRequest, error) {
		if job.Status.IsTerminal() {
			return *collab, fmt.Errorf("%w: parent job %s is %s", apperrors.ErrValidation, job.JobID, job.Status)
		}
		next, err := collab.AcceptTask(taskID, actor.ID, s.now())
		if err != nil {
			return *collab, err
		}
		if next.Status == domain.CollaborationStatusActive {
			s.publish(ctx, domain.Event{Type: domain.EventCollaborationActivated, JobID: job.JobID, CollaborationID: collab.CollaborationID, ActorID: actor.ID, From: string(collab.Status), To: string(next.Status), OccurredAt: *next.ActivatedAt})
		}
		return next, nil
	})
	if err != nil {
		s.logRejected(ctx, err, "Failed to accept collaboration task", slog.String("collaboration_id", collaborationID), slog.String("task_id", taskID))
		return nil, err
	}
	return result, nil
}

func (s *collaborationService) CompleteTask(ctx context.Context, collaborationID, taskID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	var result domain.CollaborationRequest
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		collab, err := s.collaborationRepo.FindCollaborationByID(ctx, collaborationID)
		if err != nil {
			return err
		}
		job, err := s.jobRepo.FindJobByID(ctx, collab.ParentJobID)
		if err != nil {
			return err
		}
		next, err := collab.CompleteTask(taskID, actor, s.now())
		if err != nil {
			return err
		}
		if next.Status == domain.CollaborationStatusCompleted {
			if err := requireFinalAmount(job); err != nil {
				return err
			}
			if err := next.VerifyTotal(*job.FinalAmount); err != nil {
				return err
			}
		}
		// The collaboration is written first so the parent transition sees it completed.
		if err := s.collaborationRepo.UpdateCollaboration(ctx, next, collab.Version); err != nil {
			return err
		}
		next.Version = collab.Version + 1

		if next.Status == domain.CollaborationStatusCompleted {
			note := "all collaboration tasks completed"
			if _, err := s.jobs.TransitionJob(ctx, job.JobID, dto.TransitionJobRequest{Status: domain.JobStatusCompleted, Note: &note}, domain.SystemActor()); err != nil {
				return err
			}
			s.publish(ctx, domain.Event{Type: domain.EventCollaborationCompleted, JobID: job.JobID, CollaborationID: collab.CollaborationID, ActorID: actor.ID, From: string(collab.Status), To: string(next.Status), OccurredAt: *next.CompletedAt})
		}
		result = next
		return nil
	})
	if err != nil {
		s.logRejected(ctx, err, "Failed to complete collaboration task", slog.String("collaboration_id", collaborationID), slog.String("task_id", taskID))
		return nil, err
	}
	return &result, nil
}

func (s *collaborationService) CancelCollaboration(ctx context.Context, collaborationID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	var result domain.CollaborationRequest
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		collab, err := s.collaborationRepo.FindCollaborationByID(ctx, collaborationID)
		if err != nil {
			return err
		}
		job, err := s.jobRepo.FindJobByID(ctx, collab.ParentJobID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && collab.RequesterID != actor.ID && !job.IsSeller(actor.ID) {
			return fmt.Errorf("%w: only the requester or the seller can cancel collaboration %s", apperrors.ErrForbidden, collaborationID)
		}
		now := s.now()
		next, err := collab.Cancel(actor.ID, now)
		if err != nil {
			return err
		}
		if err := s.collaborationRepo.UpdateCollaboration(ctx, next, collab.Version); err != nil {
			return err
		}
		next.Version = collab.Version + 1

		if job.CollaborationID != nil && *job.CollaborationID == collaborationID {
			parent := job.Clone()
			parent.CollaborationID = nil
			parent.Touch(actor.ID, now)
			if err := s.jobRepo.UpdateJob(ctx, parent, job.Version, nil); err != nil {
				return err
			}
		}
		result = next
		s.publish(ctx, domain.Event{Type: domain.EventCollaborationCancelled, JobID: job.JobID, CollaborationID: collaborationID, ActorID: actor.ID, From: string(collab.Status), To: string(next.Status), OccurredAt: now})
		return nil
	})
	if err != nil {
		s.logRejected(ctx, err, "Failed to cancel collaboration", slog.String("collaboration_id", collaborationID))
		return nil, err
	}
	return &result, nil
}

// logRejected logs business rejections at warn and everything else at error.
func (s *collaborationService) logRejected(ctx context.Context, err error, msg string, attrs ...any) {
	for _, expected := range []error{
		apperrors.ErrValidation, apperrors.ErrForbidden, apperrors.ErrNotFound, apperrors.ErrConflict,
		apperrors.ErrAmountMismatch, apperrors.ErrCollaborationLocked, apperrors.ErrDuplicate, apperrors.ErrIllegalTransition,
	} {
		if errors.Is(err, expected) {
			s.GetLogger(ctx).Warn(msg, append(attrs, slog.String("error", err.Error()))...)
			return
		}
	}
	s.LogError(ctx, err, msg, attrs...)
}
