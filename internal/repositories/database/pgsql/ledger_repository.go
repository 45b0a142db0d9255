package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/SscSPs/curtain_escrow_app/internal/models"
	"github.com/SscSPs/curtain_escrow_app/internal/utils/mapping"
	"github.com/SscSPs/curtain_escrow_app/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for ledger accounts and their transactions.
func newPgxLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

const accountColumns = `account_id, owner_role, balance, total_charged, total_withdrawn, version, created_at, last_updated_at`

const transactionColumns = `transaction_id, account_id, type, amount, status, job_id, idempotency_key,
	external_ref, release_at, created_at, settled_at`

func scanAccount(row pgx.Row) (models.LedgerAccount, error) {
	var m models.LedgerAccount
	err := row.Scan(
		&m.AccountID,
		&m.OwnerRole,
		&m.Balance,
		&m.TotalCharged,
		&m.TotalWithdrawn,
		&m.Version,
		&m.CreatedAt,
		&m.LastUpdatedAt,
	)
	return m, err
}

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.TransactionID,
		&t.AccountID,
		&t.Type,
		&t.Amount,
		&t.Status,
		&t.JobID,
		&t.IdempotencyKey,
		&t.ExternalRef,
		&t.ReleaseAt,
		&t.CreatedAt,
		&t.SettledAt,
	)
	return t, err
}

func (r *PgxLedgerRepository) findAccount(ctx context.Context, query, accountID string) (*domain.LedgerAccount, error) {
	m, err := scanAccount(r.db(ctx).QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(domain.AccountEntity, accountID)
		}
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	account := mapping.ToDomainLedgerAccount(m)
	return &account, nil
}

func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.LedgerAccount, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE account_id = $1;`, accountID)
}

// FindAccountByIDForUpdate locks the account row until the surrounding transaction ends, which
// serializes concurrent debits of one account.
func (r *PgxLedgerRepository) FindAccountByIDForUpdate(ctx context.Context, accountID string) (*domain.LedgerAccount, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE account_id = $1 FOR UPDATE;`, accountID)
}

func (r *PgxLedgerRepository) SaveAccount(ctx context.Context, account domain.LedgerAccount) error {
	m := mapping.ToModelLedgerAccount(account)
	query := `
		INSERT INTO ledger_accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		ON CONFLICT DO NOTHING;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.AccountID,
		m.OwnerRole,
		m.Balance,
		m.TotalCharged,
		m.TotalWithdrawn,
		m.CreatedAt,
		m.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", m.AccountID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s", apperrors.ErrDuplicate, m.AccountID)
	}
	return nil
}

func (r *PgxLedgerRepository) UpdateAccountBalance(ctx context.Context, account domain.LedgerAccount, expectedVersion int64) error {
	m := mapping.ToModelLedgerAccount(account)
	query := `
		UPDATE ledger_accounts
		SET balance = $3, total_charged = $4, total_withdrawn = $5, last_updated_at = $6, version = version + 1
		WHERE account_id = $1 AND version = $2;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.AccountID,
		expectedVersion,
		m.Balance,
		m.TotalCharged,
		m.TotalWithdrawn,
		m.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance of account %s: %w", m.AccountID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError(domain.AccountEntity, m.AccountID, expectedVersion)
	}
	return nil
}

func (r *PgxLedgerRepository) sum(ctx context.Context, query, accountID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db(ctx).QueryRow(ctx, query, accountID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions of account %s: %w", accountID, err)
	}
	return total, nil
}

func (r *PgxLedgerRepository) SumPendingOutflows(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return r.sum(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions
		WHERE account_id = $1 AND status = 'pending' AND amount < 0;
	`, accountID)
}

func (r *PgxLedgerRepository) SumCompletedTransactions(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return r.sum(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions
		WHERE account_id = $1 AND status = 'completed';
	`, accountID)
}

func (r *PgxLedgerRepository) findTransaction(ctx context.Context, column, value string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE ` + column + ` = $1;`
	t, err := scanTransaction(r.db(ctx).QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("transaction", value)
		}
		return nil, fmt.Errorf("failed to find transaction by %s %s: %w", column, value, err)
	}
	tx := mapping.ToDomainTransaction(t)
	return &tx, nil
}

func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "transaction_id", transactionID)
}

func (r *PgxLedgerRepository) FindTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, "idempotency_key", key)
}

func (r *PgxLedgerRepository) collect(rows pgx.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var txs []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txs, nil
}

func (r *PgxLedgerRepository) ListTransactionsByJobID(ctx context.Context, jobID string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE job_id = $1 ORDER BY seq;`
	rows, err := r.db(ctx).Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for job %s: %w", jobID, err)
	}
	txs, err := r.collect(rows)
	if err != nil {
		return nil, err
	}
	return mapping.ToDomainTransactionSlice(txs), nil
}

// ListTransactionsByAccountID retrieves a page of an account's transactions using token-based pagination.
func (r *PgxLedgerRepository) ListTransactionsByAccountID(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	// We fetch one extra item to determine if there's a next page.
	fetchLimit := limit + 1

	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE account_id = $1`
	args := []any{accountID}
	if nextToken != nil && *nextToken != "" {
		lastCreatedAt, lastID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid nextToken: %v", apperrors.ErrValidation, err)
		}
		query += ` AND (created_at, transaction_id) < ($2, $3)`
		args = append(args, lastCreatedAt, lastID)
	}
	query += ` ORDER BY created_at DESC, transaction_id DESC LIMIT $` + strconv.Itoa(len(args)+1) + `;`
	args = append(args, fetchLimit)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query transactions for account %s: %w", accountID, err)
	}
	txs, err := r.collect(rows)
	if err != nil {
		return nil, nil, err
	}

	var nextTokenVal *string
	if len(txs) > limit {
		last := txs[limit-1]
		token := pagination.EncodeCursor(last.CreatedAt, last.TransactionID)
		nextTokenVal = &token
		txs = txs[:limit]
	}
	return mapping.ToDomainTransactionSlice(txs), nextTokenVal, nil
}

// SaveTransaction inserts tx. Both the ID and the idempotency key are unique, and a clash with
// either leaves the surrounding transaction usable.
func (r *PgxLedgerRepository) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	t := mapping.ToModelTransaction(tx)
	query := `
		INSERT INTO ledger_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		t.TransactionID,
		t.AccountID,
		t.Type,
		t.Amount,
		t.Status,
		t.JobID,
		t.IdempotencyKey,
		t.ExternalRef,
		t.ReleaseAt,
		t.CreatedAt,
		t.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", t.TransactionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s", apperrors.ErrDuplicate, t.TransactionID)
	}
	return nil
}

func (r *PgxLedgerRepository) UpdateTransactionStatus(ctx context.Context, transactionID string, from, to domain.TransactionStatus, settledAt time.Time) error {
	query := `
		UPDATE ledger_transactions SET status = $3, settled_at = $4
		WHERE transaction_id = $1 AND status = $2;
	`
	tag, err := r.db(ctx).Exec(ctx, query, transactionID, string(from), string(to), settledAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.FindTransactionByID(ctx, transactionID)
		if err != nil {
			return err
		}
		return fmt.Errorf("transaction %s is %s, not %s: %w", transactionID, current.Status, from, apperrors.NewConflictError("transaction", transactionID, 0))
	}
	return nil
}
