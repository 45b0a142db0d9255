package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// LedgerRepository stores ledger accounts and transactions in a Store.
type LedgerRepository struct {
	store *Store
}

var _ portsrepo.LedgerRepositoryFacade = (*LedgerRepository)(nil)

func (r *LedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.LedgerAccount, error) {
	var (
		account domain.LedgerAccount
		ok      bool
	)
	r.store.guard(ctx, func() {
		account, ok = r.store.accounts[accountID]
	})
	if !ok {
		return nil, apperrors.NewNotFoundError(domain.AccountEntity, accountID)
	}
	return &account, nil
}

// FindAccountByIDForUpdate needs no row lock: a unit of work already holds the store.
func (r *LedgerRepository) FindAccountByIDForUpdate(ctx context.Context, accountID string) (*domain.LedgerAccount, error) {
	return r.FindAccountByID(ctx, accountID)
}

func (r *LedgerRepository) SaveAccount(ctx context.Context, account domain.LedgerAccount) error {
	var err error
	r.store.guard(ctx, func() {
		if _, exists := r.store.accounts[account.AccountID]; exists {
			err = fmt.Errorf("%w: ledger account %s", apperrors.ErrDuplicate, account.AccountID)
			return
		}
		account.Version = 1
		r.store.accounts[account.AccountID] = account
	})
	return err
}

func (r *LedgerRepository) UpdateAccountBalance(ctx context.Context, account domain.LedgerAccount, expectedVersion int64) error {
	var err error
	r.store.guard(ctx, func() {
		current, ok := r.store.accounts[account.AccountID]
		if !ok {
			err = apperrors.NewNotFoundError(domain.AccountEntity, account.AccountID)
			return
		}
		if current.Version != expectedVersion {
			err = apperrors.NewConflictError(domain.AccountEntity, account.AccountID, expectedVersion)
			return
		}
		current.Balance = account.Balance
		current.TotalCharged = account.TotalCharged
		current.TotalWithdrawn = account.TotalWithdrawn
		current.LastUpdatedAt = account.LastUpdatedAt
		current.Version = expectedVersion + 1
		r.store.accounts[account.AccountID] = current
	})
	return err
}

func (r *LedgerRepository) SumPendingOutflows(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return r.sum(ctx, accountID, func(tx domain.Transaction) bool {
		return tx.Status == domain.TransactionStatusPending && tx.Amount.IsNegative()
	}), nil
}

func (r *LedgerRepository) SumCompletedTransactions(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return r.sum(ctx, accountID, func(tx domain.Transaction) bool {
		return tx.Status == domain.TransactionStatusCompleted
	}), nil
}

func (r *LedgerRepository) sum(ctx context.Context, accountID string, match func(domain.Transaction) bool) decimal.Decimal {
	total := decimal.Zero
	r.store.guard(ctx, func() {
		for _, tx := range r.store.txs {
			if tx.AccountID == accountID && match(tx) {
				total = total.Add(tx.Amount)
			}
		}
	})
	return total
}

func (r *LedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var (
		tx domain.Transaction
		ok bool
	)
	r.store.guard(ctx, func() {
		tx, ok = r.store.txs[transactionID]
	})
	if !ok {
		return nil, apperrors.NewNotFoundError("transaction", transactionID)
	}
	return &tx, nil
}

func (r *LedgerRepository) FindTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	var (
		tx domain.Transaction
		ok bool
	)
	r.store.guard(ctx, func() {
		var id string
		if id, ok = r.store.keys[key]; ok {
			tx, ok = r.store.txs[id]
		}
	})
	if !ok {
		return nil, apperrors.NewNotFoundError("transaction", key)
	}
	return &tx, nil
}

func (r *LedgerRepository) ListTransactionsByJobID(ctx context.Context, jobID string) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	r.store.guard(ctx, func() {
		for _, tx := range r.store.txs {
			if tx.JobID != nil && *tx.JobID == jobID {
				txs = append(txs, tx)
			}
		}
		sort.Slice(txs, func(i, j int) bool {
			return r.store.txSeq[txs[i].TransactionID] < r.store.txSeq[txs[j].TransactionID]
		})
	})
	return txs, nil
}

func (r *LedgerRepository) ListTransactionsByAccountID(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	var txs []domain.Transaction
	r.store.guard(ctx, func() {
		for _, tx := range r.store.txs {
			if tx.AccountID == accountID {
				txs = append(txs, tx)
			}
		}
	})
	return page(txs, limit, nextToken, func(tx domain.Transaction) (time.Time, string) { return tx.CreatedAt, tx.TransactionID })
}

func (r *LedgerRepository) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	var err error
	r.store.guard(ctx, func() {
		if _, exists := r.store.txs[tx.TransactionID]; exists {
			err = fmt.Errorf("%w: transaction %s", apperrors.ErrDuplicate, tx.TransactionID)
			return
		}
		if tx.IdempotencyKey != nil {
			if _, used := r.store.keys[*tx.IdempotencyKey]; used {
				err = fmt.Errorf("%w: idempotency key %s", apperrors.ErrDuplicate, *tx.IdempotencyKey)
				return
			}
			r.store.keys[*tx.IdempotencyKey] = tx.TransactionID
		}
		r.store.seq++
		r.store.txSeq[tx.TransactionID] = r.store.seq
		r.store.txs[tx.TransactionID] = tx
	})
	return err
}

func (r *LedgerRepository) UpdateTransactionStatus(ctx context.Context, transactionID string, from, to domain.TransactionStatus, settledAt time.Time) error {
	var err error
	r.store.guard(ctx, func() {
		tx, ok := r.store.txs[transactionID]
		if !ok {
			err = apperrors.NewNotFoundError("transaction", transactionID)
			return
		}
		if tx.Status != from {
			err = fmt.Errorf("transaction %s is %s, not %s: %w", transactionID, tx.Status, from, apperrors.NewConflictError("transaction", transactionID, 0))
			return
		}
		tx.Status = to
		tx.SettledAt = &settledAt
		r.store.txs[transactionID] = tx
	})
	return err
}
