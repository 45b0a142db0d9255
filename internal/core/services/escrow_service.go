package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/shopspring/decimal"
)

type escrowService struct {
	BaseService
	txManager         portsrepo.TransactionManager
	jobRepo           portsrepo.JobRepositoryFacade
	collaborationRepo portsrepo.CollaborationReader
	ledgerRepo        portsrepo.TransactionReader
	ledger            portssvc.EscrowLedgerSvc
	scheduler         portssvc.SettlementScheduler
}

// EscrowOption configures the escrow service.
type EscrowOption func(*escrowService)

// WithScheduler sets the scheduler asked to run settlement when a dispute window closes.
// Without one, settlement only happens through the periodic sweep or an explicit call.
func WithScheduler(scheduler portssvc.SettlementScheduler) EscrowOption {
	return func(s *escrowService) {
		s.scheduler = scheduler
	}
}

// WithEscrowBase applies shared service options.
func WithEscrowBase(options ...Option) EscrowOption {
	return func(s *escrowService) {
		for _, option := range options {
			option(&s.BaseService)
		}
	}
}

// NewEscrowService creates the service binding ledger movements to job transitions.
func NewEscrowService(
	txManager portsrepo.TransactionManager,
	jobRepo portsrepo.JobRepositoryFacade,
	collaborationRepo portsrepo.CollaborationReader,
	ledgerRepo portsrepo.TransactionReader,
	ledger portssvc.EscrowLedgerSvc,
	options ...EscrowOption,
) portssvc.EscrowSvcFacade {
	svc := &escrowService{
		BaseService:       newBaseService(),
		txManager:         txManager,
		jobRepo:           jobRepo,
		collaborationRepo: collaborationRepo,
		ledgerRepo:        ledgerRepo,
		ledger:            ledger,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.EscrowSvcFacade = (*escrowService)(nil)

// findByKey returns the transaction stored under key, or nil.
func (s *escrowService) findByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	tx, err := s.ledgerRepo.FindTransactionByKey(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

func (s *escrowService) HoldForAssignment(ctx context.Context, job *domain.Job, actor domain.Actor) (*domain.Transaction, error) {
	amount := job.EscrowAmount()
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: job %s has nothing to hold in escrow", apperrors.ErrValidation, job.JobID)
	}
	if !job.Budget.Contains(amount) {
		return nil, fmt.Errorf("%w: escrow amount %s is outside the budget %s-%s", apperrors.ErrValidation, amount, job.Budget.Min, job.Budget.Max)
	}

	key := domain.EscrowKey(job.JobID)
	existing, err := s.findByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == domain.TransactionStatusCompleted {
		return existing, nil
	}

	jobID := job.JobID
	held, err := s.ledger.AppendTransaction(ctx, domain.Transaction{
		AccountID:      job.SellerID,
		Type:           domain.TransactionTypeEscrow,
		Amount:         amount.Neg(),
		Status:         domain.TransactionStatusCompleted,
		JobID:          &jobID,
		IdempotencyKey: &key,
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Escrow held", slog.String("job_id", job.JobID), slog.String("amount", amount.String()))
	s.publish(ctx, domain.TransactionEvent(domain.EventEscrowHeld, *held, actor.ID, s.now()))
	return held, nil
}

// payout is one payment owed when a job completes.
type payout struct {
	part      string
	accountID string
	amount    decimal.Decimal
}

func (s *escrowService) payouts(job *domain.Job, collab *domain.CollaborationRequest, escrowed decimal.Decimal) ([]payout, error) {
	if collab == nil || !collab.IsLive() {
		if job.ContractorID == nil {
			return nil, fmt.Errorf("%w: job %s has no contractor to pay", apperrors.ErrValidation, job.JobID)
		}
		return []payout{{part: *job.ContractorID, accountID: *job.ContractorID, amount: escrowed}}, nil
	}
	if collab.Status != domain.CollaborationStatusCompleted {
		return nil, &apperrors.IllegalTransitionError{From: string(collab.Status), To: "payout", Reason: "collaboration tasks are not all completed"}
	}
	// Re-verified at payout, not only at creation.
	if err := collab.VerifyTotal(escrowed); err != nil {
		return nil, err
	}
	out := make([]payout, 0, len(collab.Tasks))
	for _, task := range collab.Tasks {
		if task.AssigneeID == nil {
			return nil, fmt.Errorf("%w: task %s has no assignee", apperrors.ErrValidation, task.TaskID)
		}
		out = append(out, payout{part: task.TaskID, accountID: *task.AssigneeID, amount: task.Amount})
	}
	return out, nil
}

func (s *escrowService) ScheduleRelease(ctx context.Context, job *domain.Job, collab *domain.CollaborationRequest, actor domain.Actor) ([]domain.Transaction, error) {
	releaseAt := job.SettlementDueAt()
	if releaseAt == nil {
		return nil, fmt.Errorf("%w: job %s is not completed", apperrors.ErrValidation, job.JobID)
	}
	escrow, err := s.findByKey(ctx, domain.EscrowKey(job.JobID))
	if err != nil {
		return nil, err
	}
	if escrow == nil || escrow.Status != domain.TransactionStatusCompleted {
		return nil, fmt.Errorf("%w: job %s has no escrow to release", apperrors.ErrValidation, job.JobID)
	}
	escrowed := escrow.Amount.Neg()

	parts, err := s.payouts(job, collab, escrowed)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p.amount)
	}
	if !total.Equal(escrowed) {
		return nil, &apperrors.AmountMismatchError{Expected: escrowed, Actual: total}
	}

	jobID := job.JobID
	scheduled := make([]domain.Transaction, 0, len(parts))
	for _, p := range parts {
		key := domain.PaymentKey(job.JobID, p.part)
		tx, err := s.ledger.AppendTransaction(ctx, domain.Transaction{
			AccountID:      p.accountID,
			Type:           domain.TransactionTypePayment,
			Amount:         p.amount,
			Status:         domain.TransactionStatusPending,
			JobID:          &jobID,
			IdempotencyKey: &key,
			ReleaseAt:      releaseAt,
		})
		if err != nil {
			return nil, err
		}
		scheduled = append(scheduled, *tx)
		s.publish(ctx, domain.TransactionEvent(domain.EventPaymentScheduled, *tx, actor.ID, s.now()))
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleSettlement(ctx, job.JobID, *releaseAt); err != nil {
			return nil, fmt.Errorf("failed to schedule settlement of job %s: %w", job.JobID, err)
		}
	}
	s.LogInfo(ctx, "Payments scheduled",
		slog.String("job_id", job.JobID),
		slog.Int("payments", len(scheduled)),
		slog.Time("release_at", *releaseAt))
	return scheduled, nil
}

func (s *escrowService) RefundOnCancel(ctx context.Context, job *domain.Job, actor domain.Actor) (*domain.Transaction, error) {
	escrow, err := s.findByKey(ctx, domain.EscrowKey(job.JobID))
	if err != nil {
		return nil, err
	}
	if escrow == nil || escrow.Status != domain.TransactionStatusCompleted {
		return nil, nil
	}
	return s.refund(ctx, job, escrow, actor)
}

// refund returns the escrow to the seller and cancels any payment still pending.
func (s *escrowService) refund(ctx context.Context, job *domain.Job, escrow *domain.Transaction, actor domain.Actor) (*domain.Transaction, error) {
	if _, err := s.settlePendingPayments(ctx, job.JobID, domain.TransactionStatusCancelled); err != nil {
		return nil, err
	}
	key := domain.RefundKey(job.JobID)
	jobID := job.JobID
	refunded, err := s.ledger.AppendTransaction(ctx, domain.Transaction{
		AccountID:      job.SellerID,
		Type:           domain.TransactionTypeRefund,
		Amount:         escrow.Amount.Neg(),
		Status:         domain.TransactionStatusCompleted,
		JobID:          &jobID,
		IdempotencyKey: &key,
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Escrow refunded", slog.String("job_id", job.JobID), slog.String("amount", refunded.Amount.String()))
	s.publish(ctx, domain.TransactionEvent(domain.EventEscrowRefunded, *refunded, actor.ID, s.now()))
	return refunded, nil
}

// settlePendingPayments moves every pending payment of a job to outcome.
func (s *escrowService) settlePendingPayments(ctx context.Context, jobID string, outcome domain.TransactionStatus) ([]domain.Transaction, error) {
	txs, err := s.ledgerRepo.ListTransactionsByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var settled []domain.Transaction
	for _, tx := range txs {
		if tx.Type != domain.TransactionTypePayment || tx.Status != domain.TransactionStatusPending {
			continue
		}
		done, err := s.ledger.SettleJobPayment(ctx, tx.TransactionID, outcome)
		if err != nil {
			return nil, err
		}
		settled = append(settled, *done)
	}
	return settled, nil
}

func hasCompletedPayment(txs []domain.Transaction) bool {
	for _, tx := range txs {
		if tx.Type == domain.TransactionTypePayment && tx.Status == domain.TransactionStatusCompleted {
			return true
		}
	}
	return false
}

func (s *escrowService) TrySettle(ctx context.Context, jobID string) (*domain.SettlementResult, error) {
	var result *domain.SettlementResult
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobRepo.FindJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != domain.JobStatusCompleted {
			return fmt.Errorf("%w: job %s is %s", apperrors.ErrSettlementNotDue, jobID, job.Status)
		}
		ruledSettled := false
		if job.Dispute != nil {
			switch job.Dispute.Status {
			case domain.DisputeStatusOpen:
				return fmt.Errorf("%w: job %s", apperrors.ErrDisputeOpen, jobID)
			case domain.DisputeStatusResolvedRefund:
				result = &domain.SettlementResult{JobID: jobID, Outcome: domain.SettlementOutcomeRefunded}
				return nil
			case domain.DisputeStatusResolvedSettle:
				// The ruling released the payments; the window no longer applies.
				ruledSettled = true
			}
		}
		if !ruledSettled && job.InDisputeWindow(s.now()) {
			return fmt.Errorf("%w: job %s settles at %s", apperrors.ErrSettlementNotDue, jobID, job.SettlementDueAt().Format(time.RFC3339))
		}

		settled, err := s.settlePendingPayments(ctx, jobID, domain.TransactionStatusCompleted)
		if err != nil {
			return err
		}
		if len(settled) > 0 {
			result = &domain.SettlementResult{JobID: jobID, Outcome: domain.SettlementOutcomeSettled, Transactions: settled}
			return nil
		}
		txs, err := s.ledgerRepo.ListTransactionsByJobID(ctx, jobID)
		if err != nil {
			return err
		}
		if !hasCompletedPayment(txs) {
			return fmt.Errorf("job %s is completed but has no payment to settle", jobID)
		}
		result = &domain.SettlementResult{JobID: jobID, Outcome: domain.SettlementOutcomeAlreadySettled}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == domain.SettlementOutcomeSettled {
		s.LogInfo(ctx, "Escrow settled", slog.String("job_id", jobID), slog.Int("payments", len(result.Transactions)))
	}
	return result, nil
}

func (s *escrowService) SettleDue(ctx context.Context, limit int) (int, error) {
	due, err := s.jobRepo.ListJobsDueForSettlement(ctx, s.now().Add(-domain.DisputeWindow), limit)
	if err != nil {
		s.LogError(ctx, err, "Failed to list jobs due for settlement")
		return 0, err
	}
	settled := 0
	var errs []error
	for _, jobID := range due {
		res, err := s.TrySettle(ctx, jobID)
		switch {
		case err == nil:
			if res.Outcome == domain.SettlementOutcomeSettled {
				settled++
			}
		case errors.Is(err, apperrors.ErrDisputeOpen), errors.Is(err, apperrors.ErrSettlementNotDue):
			s.LogDebug(ctx, "Skipping job in settlement sweep", slog.String("job_id", jobID), slog.String("reason", err.Error()))
		default:
			s.LogError(ctx, err, "Settlement failed", slog.String("job_id", jobID))
			errs = append(errs, err)
		}
	}
	return settled, errors.Join(errs...)
}

func (s *escrowService) FileDispute(ctx context.Context, jobID string, req dto.FileDisputeRequest, actor domain.Actor) (*domain.Job, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: a dispute needs a reason", apperrors.ErrValidation)
	}
	var updated domain.Job
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobRepo.FindJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		party, err := s.isPayee(ctx, job, actor)
		if err != nil {
			return err
		}
		if !party && !job.IsSeller(actor.ID) {
			return fmt.Errorf("%w: only the seller or a contractor of job %s can dispute it", apperrors.ErrForbidden, jobID)
		}
		if job.Status != domain.JobStatusCompleted {
			return fmt.Errorf("%w: only completed jobs can be disputed", apperrors.ErrValidation)
		}
		if job.Dispute != nil {
			if job.Dispute.IsOpen() {
				return fmt.Errorf("%w: job %s", apperrors.ErrDisputeOpen, jobID)
			}
			return fmt.Errorf("%w: the dispute of job %s was already resolved", apperrors.ErrValidation, jobID)
		}
		now := s.now()
		if !job.InDisputeWindow(now) {
			return fmt.Errorf("%w: the dispute window of job %s has closed", apperrors.ErrValidation, jobID)
		}

		next := job.Clone()
		next.Dispute = &domain.Dispute{
			Status:   domain.DisputeStatusOpen,
			RaisedBy: actor.ID,
			Reason:   reason,
			RaisedAt: now,
		}
		next.Touch(actor.ID, now)
		if err := s.jobRepo.UpdateJob(ctx, next, job.Version, nil); err != nil {
			return err
		}
		next.Version = job.Version + 1
		updated = next
		s.publish(ctx, domain.Event{Type: domain.EventDisputeOpened, JobID: jobID, ActorID: actor.ID, To: string(domain.DisputeStatusOpen), OccurredAt: now})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Dispute filed", slog.String("job_id", jobID), slog.String("raised_by", actor.ID))
	return &updated, nil
}

func (s *escrowService) ResolveDispute(ctx context.Context, jobID string, req dto.ResolveDisputeRequest, actor domain.Actor) (*domain.SettlementResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only an arbiter can resolve disputes", apperrors.ErrForbidden)
	}
	var result domain.SettlementResult
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		job, err := s.jobRepo.FindJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		if !job.Dispute.IsOpen() {
			return fmt.Errorf("%w: job %s has no open dispute", apperrors.ErrValidation, jobID)
		}
		now := s.now()
		next := job.Clone()
		next.Dispute.ResolvedBy = &actor.ID
		next.Dispute.ResolvedAt = &now
		next.Touch(actor.ID, now)

		switch req.Decision {
		case dto.DisputeDecisionRefund:
			escrow, err := s.findByKey(ctx, domain.EscrowKey(jobID))
			if err != nil {
				return err
			}
			if escrow == nil {
				return fmt.Errorf("%w: job %s has no escrow to refund", apperrors.ErrValidation, jobID)
			}
			refunded, err := s.refund(ctx, job, escrow, actor)
			if err != nil {
				return err
			}
			next.Dispute.Status = domain.DisputeStatusResolvedRefund
			result = domain.SettlementResult{JobID: jobID, Outcome: domain.SettlementOutcomeRefunded, Transactions: []domain.Transaction{*refunded}}
		case dto.DisputeDecisionSettle:
			settled, err := s.settlePendingPayments(ctx, jobID, domain.TransactionStatusCompleted)
			if err != nil {
				return err
			}
			next.Dispute.Status = domain.DisputeStatusResolvedSettle
			result = domain.SettlementResult{JobID: jobID, Outcome: domain.SettlementOutcomeSettled, Transactions: settled}
		default:
			return fmt.Errorf("%w: unknown decision %q", apperrors.ErrValidation, req.Decision)
		}

		if err := s.jobRepo.UpdateJob(ctx, next, job.Version, nil); err != nil {
			return err
		}
		s.publish(ctx, domain.Event{Type: domain.EventDisputeResolved, JobID: jobID, ActorID: actor.ID, From: string(domain.DisputeStatusOpen), To: string(next.Dispute.Status), OccurredAt: now})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Dispute resolved", slog.String("job_id", jobID), slog.String("decision", string(req.Decision)))
	return &result, nil
}

func (s *escrowService) ListJobTransactions(ctx context.Context, jobID string, actor domain.Actor) ([]domain.Transaction, error) {
	job, err := s.jobRepo.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsSystem() && !job.IsSeller(actor.ID) {
		allowed, err := s.isPayee(ctx, job, actor)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: job %s belongs to other parties", apperrors.ErrForbidden, jobID)
		}
	}
	return s.ledgerRepo.ListTransactionsByJobID(ctx, jobID)
}

// isPayee reports whether actor is paid for job, either as its contractor or as the
// assignee of one of its collaboration tasks.
func (s *escrowService) isPayee(ctx context.Context, job *domain.Job, actor domain.Actor) (bool, error) {
	if job.IsContractor(actor.ID) {
		return true, nil
	}
	if job.CollaborationID == nil || s.collaborationRepo == nil {
		return false, nil
	}
	collab, err := s.collaborationRepo.FindCollaborationByID(ctx, *job.CollaborationID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return collab.HasAssignee(actor.ID), nil
}
