package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerAccountReader defines read operations for ledger accounts
type LedgerAccountReader interface {
	// FindAccountByID retrieves an account by its owner ID.
	FindAccountByID(ctx context.Context, accountID string) (*domain.LedgerAccount, error)
}

// LedgerAccountWriter defines write operations for ledger accounts
type LedgerAccountWriter interface {
	// SaveAccount persists a new account. An existing account fails with apperrors.ErrDuplicate.
	SaveAccount(ctx context.Context, account domain.LedgerAccount) error

	// UpdateAccountBalance writes balance and totals if the stored version equals expectedVersion.
	UpdateAccountBalance(ctx context.Context, account domain.LedgerAccount, expectedVersion int64) error
}

// LedgerAccountTransactionSupport defines operations used inside a unit of work
type LedgerAccountTransactionSupport interface {
	// FindAccountByIDForUpdate reads an account and locks it until the unit of work ends.
	FindAccountByIDForUpdate(ctx context.Context, accountID string) (*domain.LedgerAccount, error)

	// SumPendingOutflows returns the (negative) sum of pending debits of an account.
	SumPendingOutflows(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// TransactionReader defines read operations for ledger transactions
type TransactionReader interface {
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)

	// FindTransactionByKey looks a transaction up by idempotency key.
	FindTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error)

	// ListTransactionsByJobID returns a job's transactions in creation order.
	ListTransactionsByJobID(ctx context.Context, jobID string) ([]domain.Transaction, error)

	// ListTransactionsByAccountID returns a page of an account's transactions, newest first.
	ListTransactionsByAccountID(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error)

	// SumCompletedTransactions returns the signed sum of an account's completed transactions.
	SumCompletedTransactions(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// TransactionWriter defines write operations for ledger transactions
type TransactionWriter interface {
	// SaveTransaction persists a transaction. A reused idempotency key fails with apperrors.ErrDuplicate.
	SaveTransaction(ctx context.Context, tx domain.Transaction) error

	// UpdateTransactionStatus moves a transaction from one status to another. It fails with
	// apperrors.ConflictError when the stored status is no longer from.
	UpdateTransactionStatus(ctx context.Context, transactionID string, from, to domain.TransactionStatus, settledAt time.Time) error
}

// LedgerRepositoryFacade combines all ledger-related repository interfaces
type LedgerRepositoryFacade interface {
	LedgerAccountReader
	LedgerAccountWriter
	LedgerAccountTransactionSupport
	TransactionReader
	TransactionWriter
}
