package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/core/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/SscSPs/curtain_escrow_app/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	seller      = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	otherSeller = domain.Actor{ID: "seller-2", Role: domain.RoleSeller}
	contractorX = domain.Actor{ID: "contractor-x", Role: domain.RoleContractor}
	contractorY = domain.Actor{ID: "contractor-y", Role: domain.RoleContractor}
	contractorZ = domain.Actor{ID: "contractor-z", Role: domain.RoleContractor}
	arbiter     = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

func points(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// --- Mock SettlementScheduler ---
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ScheduleSettlement(ctx context.Context, jobID string, at time.Time) error {
	args := m.Called(ctx, jobID, at)
	return args.Error(0)
}

var _ portssvc.SettlementScheduler = (*MockScheduler)(nil)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) count(t domain.EventType) int {
	n := 0
	for _, et := range p.types() {
		if et == t {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// EscrowTestSuite runs the services against the in-memory store.
type EscrowTestSuite struct {
	suite.Suite
	ctx       context.Context
	repos     portsrepo.RepositoryProvider
	svc       *portssvc.ServiceContainer
	clock     *fakeClock
	events    *recordingPublisher
	scheduler *MockScheduler
}

func (s *EscrowTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repos = memory.NewRepositoryProvider(memory.NewStore())
	s.clock = &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	s.events = &recordingPublisher{}
	s.scheduler = new(MockScheduler)
	s.scheduler.On("ScheduleSettlement", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	s.svc = services.NewServiceContainer(s.repos, s.scheduler,
		services.WithClock(s.clock.Now),
		services.WithPublisher(s.events))
}

func (s *EscrowTestSuite) fund(accountID string, amount int64) {
	_, err := s.svc.Ledger.RecordCharge(s.ctx, dto.RecordChargeRequest{
		AccountID:   accountID,
		Amount:      points(amount),
		ExternalRef: "pg-" + accountID + "-" + points(amount).String(),
		Status:      domain.TransactionStatusCompleted,
	})
	s.Require().NoError(err)
}

func blindJobRequest() dto.CreateJobRequest {
	total := points(100000)
	return dto.CreateJobRequest{
		Items: []dto.JobItemRequest{{
			Name: "blind", Quantity: 2, UnitPrice: points(50000), TotalPrice: &total,
		}},
		Budget: dto.BudgetRequest{Min: points(80000), Max: points(120000)},
	}
}

func (s *EscrowTestSuite) createJob() *domain.Job {
	job, err := s.svc.Job.CreateJob(s.ctx, blindJobRequest(), seller)
	s.Require().NoError(err)
	return job
}

func (s *EscrowTestSuite) transition(jobID string, to domain.JobStatus, actor domain.Actor) (*domain.Job, error) {
	return s.svc.Job.TransitionJob(s.ctx, jobID, dto.TransitionJobRequest{Status: to}, actor)
}

func (s *EscrowTestSuite) mustTransition(jobID string, to domain.JobStatus, actor domain.Actor) *domain.Job {
	job, err := s.transition(jobID, to, actor)
	s.Require().NoError(err, "transition to %s", to)
	return job
}

func (s *EscrowTestSuite) assign(jobID string, contractor domain.Actor) *domain.Job {
	job, err := s.svc.Job.TransitionJob(s.ctx, jobID, dto.TransitionJobRequest{
		Status:       domain.JobStatusAssigned,
		ContractorID: &contractor.ID,
	}, seller)
	s.Require().NoError(err)
	return job
}

// workUntil moves an assigned job through preparation and pickup as the contractor.
func (s *EscrowTestSuite) workUntil(jobID string, last domain.JobStatus, contractor domain.Actor) {
	for _, status := range []domain.JobStatus{
		domain.JobStatusProductPreparing,
		domain.JobStatusProductReady,
		domain.JobStatusPickupCompleted,
		domain.JobStatusInProgress,
	} {
		s.mustTransition(jobID, status, contractor)
		if status == last {
			return
		}
	}
}

func (s *EscrowTestSuite) balance(accountID string) decimal.Decimal {
	account, err := s.repos.LedgerRepo.FindAccountByID(s.ctx, accountID)
	if err != nil {
		return decimal.Zero
	}
	return account.Balance
}

func (s *EscrowTestSuite) requireBalance(accountID string, expected int64) {
	s.Require().True(s.balance(accountID).Equal(points(expected)),
		"balance of %s: expected %d, got %s", accountID, expected, s.balance(accountID))
}

func (s *EscrowTestSuite) jobTransactions(jobID string, txType domain.TransactionType) []domain.Transaction {
	txs, err := s.repos.LedgerRepo.ListTransactionsByJobID(s.ctx, jobID)
	s.Require().NoError(err)
	var out []domain.Transaction
	for _, tx := range txs {
		if tx.Type == txType {
			out = append(out, tx)
		}
	}
	return out
}

// requireConsistent checks that every account balance equals the sum of its completed transactions.
func (s *EscrowTestSuite) requireConsistent(accountIDs ...string) {
	for _, id := range accountIDs {
		rec, err := s.svc.Ledger.ReconcileAccount(s.ctx, id, arbiter)
		require.NoError(s.T(), err)
		s.True(rec.Consistent(), "account %s drifted: cached %s, computed %s", id, rec.CachedBalance, rec.ComputedBalance)
	}
}
