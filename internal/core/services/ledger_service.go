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
	"github.com/SscSPs/curtain_escrow_app/internal/platform/txcontext"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxConflictRetries bounds how often a unit of work is replayed after a stale account write.
const maxConflictRetries = 5

type ledgerService struct {
	BaseService
	txManager  portsrepo.TransactionManager
	ledgerRepo portsrepo.LedgerRepositoryFacade
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(txManager portsrepo.TransactionManager, ledgerRepo portsrepo.LedgerRepositoryFacade, options ...Option) portssvc.LedgerSvcFacade {
	return newLedgerService(txManager, ledgerRepo, options...)
}

func newLedgerService(txManager portsrepo.TransactionManager, ledgerRepo portsrepo.LedgerRepositoryFacade, options ...Option) *ledgerService {
	return &ledgerService{
		BaseService: newBaseService(options...),
		txManager:   txManager,
		ledgerRepo:  ledgerRepo,
	}
}

var (
	_ portssvc.LedgerSvcFacade = (*ledgerService)(nil)
	_ portssvc.EscrowLedgerSvc = (*ledgerService)(nil)
)

// withRetry runs op in a unit of work. Outside an existing unit, a stale account write replays
// the whole unit with exponential backoff; inside one the conflict is left to the outer caller.
func (s *ledgerService) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	if _, inUnit := txcontext.FromContext(ctx); inUnit {
		return s.txManager.WithinTx(ctx, op)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxConflictRetries), ctx)
	return backoff.Retry(func() error {
		err := s.txManager.WithinTx(ctx, op)
		if err == nil {
			return nil
		}
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) && conflict.Entity == domain.AccountEntity {
			s.LogDebug(ctx, "Retrying ledger write after conflict", slog.String("error", err.Error()))
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func (s *ledgerService) GetBalance(ctx context.Context, accountID string, actor domain.Actor) (*domain.LedgerAccount, error) {
	if !canReadAccount(actor, accountID) {
		return nil, fmt.Errorf("%w: account %s belongs to another owner", apperrors.ErrForbidden, accountID)
	}
	account, err := s.ledgerRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to get ledger account", slog.String("account_id", accountID))
		}
		return nil, err
	}
	return account, nil
}

func (s *ledgerService) ListAccountTransactions(ctx context.Context, accountID string, params dto.ListTransactionsParams, actor domain.Actor) ([]domain.Transaction, *string, error) {
	if !canReadAccount(actor, accountID) {
		return nil, nil, fmt.Errorf("%w: account %s belongs to another owner", apperrors.ErrForbidden, accountID)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	txs, next, err := s.ledgerRepo.ListTransactionsByAccountID(ctx, accountID, limit, params.NextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list account transactions", slog.String("account_id", accountID))
		return nil, nil, err
	}
	return txs, next, nil
}

func (s *ledgerService) ReconcileAccount(ctx context.Context, accountID string, actor domain.Actor) (*domain.BalanceReconciliation, error) {
	if !canReadAccount(actor, accountID) {
		return nil, fmt.Errorf("%w: account %s belongs to another owner", apperrors.ErrForbidden, accountID)
	}
	var result domain.BalanceReconciliation
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.ledgerRepo.FindAccountByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		sum, err := s.ledgerRepo.SumCompletedTransactions(ctx, accountID)
		if err != nil {
			return err
		}
		result = domain.BalanceReconciliation{AccountID: accountID, CachedBalance: account.Balance, ComputedBalance: sum}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Consistent() {
		s.GetLogger(ctx).Warn("Ledger balance drift detected",
			slog.String("account_id", accountID),
			slog.String("cached", result.CachedBalance.String()),
			slog.String("computed", result.ComputedBalance.String()))
	}
	return &result, nil
}

func (s *ledgerService) OpenAccount(ctx context.Context, ownerID string, role domain.OwnerRole) (*domain.LedgerAccount, error) {
	var account *domain.LedgerAccount
	err := s.txManager.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.lockOrOpen(ctx, ownerID, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// lockOrOpen locks the account of ownerID, creating it first when it does not exist yet.
func (s *ledgerService) lockOrOpen(ctx context.Context, ownerID string, role domain.OwnerRole) (*domain.LedgerAccount, error) {
	account, err := s.ledgerRepo.FindAccountByIDForUpdate(ctx, ownerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	fresh := domain.NewLedgerAccount(ownerID, role, s.now())
	if err := s.ledgerRepo.SaveAccount(ctx, fresh); err != nil && !errors.Is(err, apperrors.ErrDuplicate) {
		return nil, err
	}
	// Another writer may have opened it first; lock whichever row won.
	return s.ledgerRepo.FindAccountByIDForUpdate(ctx, ownerID)
}

// ownerRoleFor picks the role of an account opened by its first credit.
func ownerRoleFor(txType domain.TransactionType) domain.OwnerRole {
	if txType == domain.TransactionTypePayment {
		return domain.OwnerRoleContractor
	}
	return domain.OwnerRoleSeller
}

func (s *ledgerService) AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	var recorded domain.Transaction
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		recorded, err = s.appendLocked(ctx, tx)
		return err
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrInsufficientBalance) {
			s.LogError(ctx, err, "Failed to append ledger transaction",
				slog.String("account_id", tx.AccountID),
				slog.String("type", string(tx.Type)))
		}
		return nil, err
	}
	return &recorded, nil
}

// appendLocked must run inside a unit of work.
func (s *ledgerService) appendLocked(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	var account *domain.LedgerAccount
	var err error
	if tx.Amount.IsNegative() {
		account, err = s.ledgerRepo.FindAccountByIDForUpdate(ctx, tx.AccountID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return tx, &apperrors.InsufficientBalanceError{AccountID: tx.AccountID, Available: decimal.Zero, Required: tx.Amount.Neg()}
		}
	} else {
		account, err = s.lockOrOpen(ctx, tx.AccountID, ownerRoleFor(tx.Type))
	}
	if err != nil {
		return tx, err
	}

	// The account lock orders writers, so the key lookup cannot race with a concurrent insert.
	if tx.IdempotencyKey != nil {
		existing, err := s.ledgerRepo.FindTransactionByKey(ctx, *tx.IdempotencyKey)
		if err == nil {
			if existing.AccountID != tx.AccountID || existing.Type != tx.Type || !existing.Amount.Equal(tx.Amount) {
				return tx, fmt.Errorf("%w: idempotency key %s was used for a different transaction", apperrors.ErrDuplicate, *tx.IdempotencyKey)
			}
			s.LogDebug(ctx, "Idempotent replay of ledger transaction", slog.String("key", *tx.IdempotencyKey))
			return *existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return tx, err
		}
	}

	if tx.Amount.IsNegative() {
		pending, err := s.ledgerRepo.SumPendingOutflows(ctx, account.AccountID)
		if err != nil {
			return tx, err
		}
		if err := account.CheckAvailable(tx.Amount, pending); err != nil {
			return tx, err
		}
	}

	if err := s.ledgerRepo.SaveTransaction(ctx, tx); err != nil {
		return tx, err
	}
	if tx.Status == domain.TransactionStatusCompleted {
		if err := s.applyToBalance(ctx, account, tx); err != nil {
			return tx, err
		}
	}
	s.LogInfo(ctx, "Ledger transaction recorded",
		slog.String("transaction_id", tx.TransactionID),
		slog.String("account_id", tx.AccountID),
		slog.String("type", string(tx.Type)),
		slog.String("status", string(tx.Status)),
		slog.String("amount", tx.Amount.String()))
	return tx, nil
}

func (s *ledgerService) applyToBalance(ctx context.Context, account *domain.LedgerAccount, tx domain.Transaction) error {
	next, err := account.ApplyCompleted(tx, s.now())
	if err != nil {
		return err
	}
	return s.ledgerRepo.UpdateAccountBalance(ctx, next, account.Version)
}

func (s *ledgerService) SettleTransaction(ctx context.Context, transactionID string, outcome domain.TransactionStatus) (*domain.Transaction, error) {
	return s.settle(ctx, transactionID, outcome, func(tx *domain.Transaction) error {
		if tx.Type.IsEscrowOwned() {
			return fmt.Errorf("%w: %s transaction %s is settled through its job", apperrors.ErrForbidden, tx.Type, tx.TransactionID)
		}
		return nil
	})
}

func (s *ledgerService) SettleJobPayment(ctx context.Context, transactionID string, outcome domain.TransactionStatus) (*domain.Transaction, error) {
	return s.settle(ctx, transactionID, outcome, func(tx *domain.Transaction) error {
		if tx.Type != domain.TransactionTypePayment {
			return fmt.Errorf("%w: transaction %s is a %s, not a job payment", apperrors.ErrValidation, tx.TransactionID, tx.Type)
		}
		return nil
	})
}

// settle moves a pending transaction to outcome once allow accepts it.
func (s *ledgerService) settle(ctx context.Context, transactionID string, outcome domain.TransactionStatus, allow func(*domain.Transaction) error) (*domain.Transaction, error) {
	if !outcome.IsValidOutcome() {
		return nil, fmt.Errorf("%w: %q is not a settlement outcome", apperrors.ErrValidation, outcome)
	}
	var settled domain.Transaction
	var changed bool
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		settled, changed, err = s.settleLocked(ctx, transactionID, outcome, allow)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrForbidden):
		default:
			s.LogError(ctx, err, "Failed to settle ledger transaction", slog.String("transaction_id", transactionID))
		}
		return nil, err
	}
	if changed {
		s.publish(ctx, domain.TransactionEvent(domain.EventTransactionSettled, settled, domain.SystemActorID, s.now()))
	}
	return &settled, nil
}

// settleLocked must run inside a unit of work. It reports whether the status changed.
func (s *ledgerService) settleLocked(ctx context.Context, transactionID string, outcome domain.TransactionStatus, allow func(*domain.Transaction) error) (domain.Transaction, bool, error) {
	tx, err := s.ledgerRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if err := allow(tx); err != nil {
		return domain.Transaction{}, false, err
	}
	account, err := s.ledgerRepo.FindAccountByIDForUpdate(ctx, tx.AccountID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	// Re-read under the account lock; a concurrent settle may have won.
	tx, err = s.ledgerRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, false, err
	}
	if tx.Status == outcome {
		return *tx, false, nil
	}
	if tx.Status.IsFinal() {
		return *tx, false, fmt.Errorf("transaction %s is already %s: %w", tx.TransactionID, tx.Status, apperrors.NewConflictError("transaction", tx.TransactionID, 0))
	}

	now := s.now()
	settled := *tx
	settled.Status = outcome
	settled.SettledAt = &now
	if outcome == domain.TransactionStatusCompleted {
		if err := s.applyToBalance(ctx, account, settled); err != nil {
			return *tx, false, err
		}
	}
	if err := s.ledgerRepo.UpdateTransactionStatus(ctx, tx.TransactionID, domain.TransactionStatusPending, outcome, now); err != nil {
		return *tx, false, err
	}
	return settled, true, nil
}

func (s *ledgerService) RecordCharge(ctx context.Context, req dto.RecordChargeRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: charge amount must be positive", apperrors.ErrValidation)
	}
	key := domain.ChargeKey(req.ExternalRef)
	ref := req.ExternalRef
	tx, err := s.AppendTransaction(ctx, domain.Transaction{
		AccountID:      req.AccountID,
		Type:           domain.TransactionTypeCharge,
		Amount:         req.Amount,
		Status:         req.Status,
		IdempotencyKey: &key,
		ExternalRef:    &ref,
	})
	if err != nil {
		return nil, err
	}
	// A gateway that first reported pending later confirms with the same reference.
	if tx.Status == domain.TransactionStatusPending && req.Status == domain.TransactionStatusCompleted {
		return s.SettleTransaction(ctx, tx.TransactionID, domain.TransactionStatusCompleted)
	}
	return tx, nil
}

func (s *ledgerService) RequestWithdrawal(ctx context.Context, req dto.WithdrawalRequest, actor domain.Actor) (*domain.Transaction, error) {
	if actor.Role != domain.RoleSeller && actor.Role != domain.RoleContractor {
		return nil, fmt.Errorf("%w: only account owners can withdraw", apperrors.ErrForbidden)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", apperrors.ErrValidation)
	}
	return s.AppendTransaction(ctx, domain.Transaction{
		AccountID:   actor.ID,
		Type:        domain.TransactionTypeWithdrawal,
		Amount:      req.Amount.Neg(),
		Status:      domain.TransactionStatusPending,
		ExternalRef: req.ExternalRef,
	})
}
