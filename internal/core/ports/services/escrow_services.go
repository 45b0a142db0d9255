package services

import (
	"context"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
)

// EscrowHooks are the money movements bound to job transitions. They run inside the unit of
// work of the transition that triggers them and are idempotent per job.
type EscrowHooks interface {
	// HoldForAssignment debits the seller by the job's final amount.
	HoldForAssignment(ctx context.Context, job *domain.Job, actor domain.Actor) (*domain.Transaction, error)

	// ScheduleRelease creates the pending payments of a completed job. collab is the job's
	// completed collaboration, or nil when the job was not split.
	ScheduleRelease(ctx context.Context, job *domain.Job, collab *domain.CollaborationRequest, actor domain.Actor) ([]domain.Transaction, error)

	// RefundOnCancel returns a held escrow to the seller. It is a no-op when nothing was held.
	RefundOnCancel(ctx context.Context, job *domain.Job, actor domain.Actor) (*domain.Transaction, error)
}

// SettlementSvc releases payments once the dispute window has elapsed.
type SettlementSvc interface {
	// TrySettle settles the pending payments of a completed job whose dispute window has
	// elapsed. Calling it again records nothing new.
	TrySettle(ctx context.Context, jobID string) (*domain.SettlementResult, error)

	// SettleDue runs TrySettle on up to limit jobs due for settlement and returns how many
	// were settled.
	SettleDue(ctx context.Context, limit int) (int, error)
}

// DisputeSvc handles disputes raised inside the dispute window.
type DisputeSvc interface {
	FileDispute(ctx context.Context, jobID string, req dto.FileDisputeRequest, actor domain.Actor) (*domain.Job, error)
	ResolveDispute(ctx context.Context, jobID string, req dto.ResolveDisputeRequest, actor domain.Actor) (*domain.SettlementResult, error)
}

// EscrowSvcFacade combines all escrow-related service interfaces
type EscrowSvcFacade interface {
	EscrowHooks
	SettlementSvc
	DisputeSvc

	// ListJobTransactions returns the ledger movements of a job the actor can see.
	ListJobTransactions(ctx context.Context, jobID string, actor domain.Actor) ([]domain.Transaction, error)
}

// SettlementScheduler arranges for TrySettle to run for jobID at or after at.
type SettlementScheduler interface {
	ScheduleSettlement(ctx context.Context, jobID string, at time.Time) error
}
