package services

import (
	"context"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
)

// LedgerReaderSvc defines read operations on point balances
type LedgerReaderSvc interface {
	// GetBalance returns the account of accountID.
	GetBalance(ctx context.Context, accountID string, actor domain.Actor) (*domain.LedgerAccount, error)

	// ListAccountTransactions returns a page of an account's transactions, newest first.
	ListAccountTransactions(ctx context.Context, accountID string, params dto.ListTransactionsParams, actor domain.Actor) ([]domain.Transaction, *string, error)

	// ReconcileAccount recomputes the balance from completed transactions.
	ReconcileAccount(ctx context.Context, accountID string, actor domain.Actor) (*domain.BalanceReconciliation, error)
}

// LedgerWriterSvc defines the balance-changing operations. Every write to an account is
// serialized per account and keeps its balance equal to the sum of its completed transactions.
type LedgerWriterSvc interface {
	// OpenAccount returns the account of ownerID, creating an empty one if needed.
	OpenAccount(ctx context.Context, ownerID string, role domain.OwnerRole) (*domain.LedgerAccount, error)

	// AppendTransaction records tx and, when it is completed, applies it to the balance.
	// A debit that would overdraw fails with apperrors.InsufficientBalanceError. A reused
	// idempotency key returns the transaction already recorded under it.
	AppendTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)

	// SettleTransaction records the outcome of a pending charge or withdrawal. Transactions
	// owned by a job's escrow are rejected with apperrors.ErrForbidden.
	SettleTransaction(ctx context.Context, transactionID string, outcome domain.TransactionStatus) (*domain.Transaction, error)

	// RecordCharge turns a payment-gateway charge into a charge transaction.
	RecordCharge(ctx context.Context, req dto.RecordChargeRequest) (*domain.Transaction, error)

	// RequestWithdrawal reserves points of the actor's account for a payout.
	RequestWithdrawal(ctx context.Context, req dto.WithdrawalRequest, actor domain.Actor) (*domain.Transaction, error)
}

// LedgerSvcFacade combines all ledger-related service interfaces
type LedgerSvcFacade interface {
	LedgerReaderSvc
	LedgerWriterSvc
}

// EscrowLedgerSvc is the ledger as used by the escrow engine, the only caller allowed to
// settle job payments.
type EscrowLedgerSvc interface {
	LedgerWriterSvc

	// SettleJobPayment records the outcome of a pending payment of a job.
	SettleJobPayment(ctx context.Context, transactionID string, outcome domain.TransactionStatus) (*domain.Transaction, error)
}
