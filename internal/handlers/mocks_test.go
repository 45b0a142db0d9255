package handlers_test

import (
	"context"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/stretchr/testify/mock"
)

// --- Mock JobService ---
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) GetJob(ctx context.Context, jobID string, actor domain.Actor) (*domain.Job, error) {
	args := m.Called(ctx, jobID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) ListJobs(ctx context.Context, params dto.ListJobsParams, actor domain.Actor) ([]domain.Job, *string, error) {
	args := m.Called(ctx, params, actor)
	var next *string
	if args.Get(1) != nil {
		next = args.Get(1).(*string)
	}
	if args.Get(0) == nil {
		return nil, next, args.Error(2)
	}
	return args.Get(0).([]domain.Job), next, args.Error(2)
}

func (m *MockJobService) CreateJob(ctx context.Context, req dto.CreateJobRequest, actor domain.Actor) (*domain.Job, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) UpdateJob(ctx context.Context, jobID string, req dto.UpdateJobRequest, actor domain.Actor) (*domain.Job, error) {
	args := m.Called(ctx, jobID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) TransitionJob(ctx context.Context, jobID string, req dto.TransitionJobRequest, actor domain.Actor) (*domain.Job, error) {
	args := m.Called(ctx, jobID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

var _ portssvc.JobSvcFacade = (*MockJobService)(nil)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetBalance(ctx context.Context, accountID string, actor domain.Actor) (*domain.LedgerAccount, error) {
	args := m.Called(ctx, accountID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerAccount), args.Error(1)
}

func (m *MockLedgerService) ListAccountTransactions(ctx context.Context, accountID string, params dto.ListTransactionsParams, actor domain.Actor) ([]domain.Transaction, *string, error) {
	args := m.Called(ctx, accountID, params, actor)
	var next *string
	if args.Get(1) != nil {
		next = args.Get(1).(*string)
	}
	if args.Get(0) == nil {
		return nil, next, args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), next, args.Error(2)
}

func (m *MockLedgerService) ReconcileAccount(ctx context.Context, accountID string, actor domain.Actor) (*domain.BalanceReconciliation, error) {
	args := m.Called(ctx, accountID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceReconciliation), args.Error(1)
}

func (m *MockLedgerService) OpenAccount(ctx context.Context, ownerID string, role domain.OwnerRole) (*domain.LedgerAccount, error) {
	args := m.Called(ctx, ownerID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerAccount), args.Error(1)
}

func (m *MockLedgerService) AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockLedgerService) SettleTransaction(ctx context.Context, transactionID string, outcome domain.TransactionStatus) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, outcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockLedgerService) RecordCharge(ctx context.Context, req dto.RecordChargeRequest) (*domain.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockLedgerService) RequestWithdrawal(ctx context.Context, req dto.WithdrawalRequest, actor domain.Actor) (*domain.Transaction, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Mock EscrowService ---
type MockEscrowService struct {
	mock.Mock
}

func (m *MockEscrowService) HoldForAssignment(ctx context.Context, job *domain.Job, actor domain.Actor) (*domain.Transaction, error) {
	args := m.Called(ctx, job, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockEscrowService) ScheduleRelease(ctx context.Context, job *domain.Job, collab *domain.CollaborationRequest, actor domain.Actor) ([]domain.Transaction, error) {
	args := m.Called(ctx, job, collab, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockEscrowService) RefundOnCancel(ctx context.Context, job *domain.Job, actor domain.Actor) (*domain.Transaction, error) {
	args := m.Called(ctx, job, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockEscrowService) TrySettle(ctx context.Context, jobID string) (*domain.SettlementResult, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementResult), args.Error(1)
}

func (m *MockEscrowService) SettleDue(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockEscrowService) FileDispute(ctx context.Context, jobID string, req dto.FileDisputeRequest, actor domain.Actor) (*domain.Job, error) {
	args := m.Called(ctx, jobID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockEscrowService) ResolveDispute(ctx context.Context, jobID string, req dto.ResolveDisputeRequest, actor domain.Actor) (*domain.SettlementResult, error) {
	args := m.Called(ctx, jobID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SettlementResult), args.Error(1)
}

func (m *MockEscrowService) ListJobTransactions(ctx context.Context, jobID string, actor domain.Actor) ([]domain.Transaction, error) {
	args := m.Called(ctx, jobID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

var _ portssvc.EscrowSvcFacade = (*MockEscrowService)(nil)

// --- Mock CollaborationService ---
type MockCollaborationService struct {
	mock.Mock
}

func (m *MockCollaborationService) GetCollaboration(ctx context.Context, collaborationID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	args := m.Called(ctx, collaborationID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollaborationRequest), args.Error(1)
}

func (m *MockCollaborationService) CreateCollaboration(ctx context.Context, req dto.CreateCollaborationRequest, actor domain.Actor) (*domain.CollaborationRequest, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollaborationRequest), args.Error(1)
}

func (m *MockCollaborationService) UpdateTasks(ctx context.Context, collaborationID string, req dto.UpdateCollaborationTasksRequest, actor domain.Actor) (*domain.CollaborationRequest, error) {
	args := m.Called(ctx, collaborationID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollaborationRequest), args.Error(1)
}

func (m *MockCollaborationService) AcceptTask(ctx context.Context, collaborationID, taskID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	args := m.Called(ctx, collaborationID, taskID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollaborationRequest), args.Error(1)
}

func (m *MockCollaborationService) CompleteTask(ctx context.Context, collaborationID, taskID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	args := m.Called(ctx, collaborationID, taskID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollaborationRequest), args.Error(1)
}

func (m *MockCollaborationService) CancelCollaboration(ctx context.Context, collaborationID string, actor domain.Actor) (*domain.CollaborationRequest, error) {
	args := m.Called(ctx, collaborationID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CollaborationRequest), args.Error(1)
}

var _ portssvc.CollaborationSvcFacade = (*MockCollaborationService)(nil)
