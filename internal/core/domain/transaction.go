package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TransactionTypeCharge     TransactionType = "charge"
	TransactionTypeEscrow     TransactionType = "escrow"
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// IsEscrowOwned reports whether transactions of type t belong to a job's escrow and may only
// be settled by the escrow engine.
func (t TransactionType) IsEscrowOwned() bool {
	return t == TransactionTypeEscrow || t == TransactionTypePayment || t == TransactionTypeRefund
}

// TransactionStatus is the settlement state of a ledger transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsFinal reports whether the status can no longer change.
func (s TransactionStatus) IsFinal() bool {
	return s != TransactionStatusPending
}

// IsValidOutcome reports whether s may be used to settle a pending transaction.
func (s TransactionStatus) IsValidOutcome() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// Transaction is a single signed movement on one ledger account.
// Escrow and withdrawal amounts are negative; charge, payment and refund amounts are positive.
type Transaction struct {
	TransactionID  string            `json:"transactionId"`
	AccountID      string            `json:"accountId"`
	Type           TransactionType   `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         TransactionStatus `json:"status"`
	JobID          *string           `json:"jobId,omitempty"`
	IdempotencyKey *string           `json:"idempotencyKey,omitempty"`
	ExternalRef    *string           `json:"externalRef,omitempty"`
	ReleaseAt      *time.Time        `json:"releaseAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SettledAt      *time.Time        `json:"settledAt,omitempty"`
}

// Validate enforces the sign convention of each transaction type.
func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("%w: transaction account is required", apperrors.ErrValidation)
	}
	if t.Amount.IsZero() {
		return fmt.Errorf("%w: transaction amount cannot be zero", apperrors.ErrValidation)
	}
	switch t.Type {
	case TransactionTypeEscrow, TransactionTypeWithdrawal:
		if !t.Amount.IsNegative() {
			return fmt.Errorf("%w: %s amount must be negative", apperrors.ErrValidation, t.Type)
		}
	case TransactionTypeCharge, TransactionTypePayment, TransactionTypeRefund:
		if !t.Amount.IsPositive() {
			return fmt.Errorf("%w: %s amount must be positive", apperrors.ErrValidation, t.Type)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, t.Type)
	}
	switch t.Status {
	case TransactionStatusPending, TransactionStatusCompleted:
	default:
		return fmt.Errorf("%w: new transactions start pending or completed, not %q", apperrors.ErrValidation, t.Status)
	}
	return nil
}

// Idempotency keys bind money movements to the job that caused them.

// EscrowKey identifies the hold placed when a job is assigned.
func EscrowKey(jobID string) string { return "escrow:" + jobID }

// RefundKey identifies the refund of a job's escrow.
func RefundKey(jobID string) string { return "refund:" + jobID }

// PaymentKey identifies one payment of a job. part is the contractor ID, or the task ID
// for collaboration payouts.
func PaymentKey(jobID, part string) string { return "payment:" + jobID + ":" + part }

// ChargeKey identifies a gateway charge by its external reference.
func ChargeKey(externalRef string) string { return "charge:" + externalRef }

// SettlementOutcome summarizes what a settlement attempt did.
type SettlementOutcome string

const (
	SettlementOutcomeSettled        SettlementOutcome = "settled"
	SettlementOutcomeAlreadySettled SettlementOutcome = "already_settled"
	SettlementOutcomeRefunded       SettlementOutcome = "refunded"
)

// SettlementResult is returned by escrow settlement and dispute resolution.
type SettlementResult struct {
	JobID        string            `json:"jobId"`
	Outcome      SettlementOutcome `json:"outcome"`
	Transactions []Transaction     `json:"transactions"`
}
