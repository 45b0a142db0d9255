package services

import (
	"context"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
)

// CollaborationReaderSvc defines read operations for collaboration splits
type CollaborationReaderSvc interface {
	GetCollaboration(ctx context.Context, collaborationID string, actor domain.Actor) (*domain.CollaborationRequest, error)
}

// CollaborationWriterSvc defines write operations for collaboration splits
type CollaborationWriterSvc interface {
	// CreateCollaboration splits an assigned job. The task amounts must sum to the job's final amount.
	CreateCollaboration(ctx context.Context, req dto.CreateCollaborationRequest, actor domain.Actor) (*domain.CollaborationRequest, error)

	// UpdateTasks replaces the tasks of an open collaboration.
	UpdateTasks(ctx context.Context, collaborationID string, req dto.UpdateCollaborationTasksRequest, actor domain.Actor) (*domain.CollaborationRequest, error)

	// AcceptTask assigns the acting contractor to a task.
	AcceptTask(ctx context.Context, collaborationID, taskID string, actor domain.Actor) (*domain.CollaborationRequest, error)

	// CompleteTask completes a task. Completing the last task completes the parent job and
	// schedules one payment per task.
	CompleteTask(ctx context.Context, collaborationID, taskID string, actor domain.Actor) (*domain.CollaborationRequest, error)

	// CancelCollaboration withdraws a collaboration that is not yet active.
	CancelCollaboration(ctx context.Context, collaborationID string, actor domain.Actor) (*domain.CollaborationRequest, error)
}

// CollaborationSvcFacade combines all collaboration-related service interfaces
type CollaborationSvcFacade interface {
	CollaborationReaderSvc
	CollaborationWriterSvc
}
