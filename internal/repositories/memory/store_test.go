package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/platform/txcontext"
	"github.com/SscSPs/curtain_escrow_app/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newJob(id string, createdAt time.Time) domain.Job {
	return domain.Job{
		JobID:    id,
		SellerID: "seller-1",
		Status:   domain.JobStatusPending,
		Items:    []domain.JobItem{domain.NewJobItem("blackout curtain", 2, decimal.NewFromInt(50000))},
		Budget:   domain.Budget{Min: decimal.NewFromInt(80000), Max: decimal.NewFromInt(120000)},
		ProgressHistory: []domain.ProgressEntry{{
			Status: domain.JobStatusPending, Timestamp: createdAt, ActorID: "seller-1",
		}},
		AuditFields: domain.NewAuditFields("seller-1", createdAt),
	}
}

func TestJobRepositoryUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositoryProvider(memory.NewStore())

	require.NoError(t, repos.JobRepo.SaveJob(ctx, newJob("job-1", epoch)))
	err := repos.JobRepo.SaveJob(ctx, newJob("job-1", epoch))
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	job, err := repos.JobRepo.FindJobByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.Version)

	job.IsInternal = true
	require.NoError(t, repos.JobRepo.UpdateJob(ctx, *job, 1, nil))

	err = repos.JobRepo.UpdateJob(ctx, *job, 1, nil)
	var conflict *apperrors.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "job", conflict.Entity)

	stored, err := repos.JobRepo.FindJobByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.True(t, stored.IsInternal)
}

func TestJobRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositoryProvider(memory.NewStore())
	require.NoError(t, repos.JobRepo.SaveJob(ctx, newJob("job-1", epoch)))

	job, err := repos.JobRepo.FindJobByID(ctx, "job-1")
	require.NoError(t, err)
	job.ProgressHistory[0].ActorID = "someone-else"

	again, err := repos.JobRepo.FindJobByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "seller-1", again.ProgressHistory[0].ActorID)
}

func TestJobRepositoryPagination(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositoryProvider(memory.NewStore())
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, repos.JobRepo.SaveJob(ctx, newJob(id, epoch.Add(time.Duration(i)*time.Minute))))
	}

	first, next, err := repos.JobRepo.ListJobsBySeller(ctx, "seller-1", 2, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, []string{"e", "d"}, jobIDs(first))

	second, next, err := repos.JobRepo.ListJobsBySeller(ctx, "seller-1", 2, next)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, []string{"c", "b"}, jobIDs(second))

	last, next, err := repos.JobRepo.ListJobsBySeller(ctx, "seller-1", 2, next)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, []string{"a"}, jobIDs(last))

	bad := "not-a-token"
	_, _, err = repos.JobRepo.ListJobsBySeller(ctx, "seller-1", 2, &bad)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func jobIDs(jobs []domain.Job) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.JobID)
	}
	return ids
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := memory.NewRepositoryProvider(store)
	boom := errors.New("boom")

	committed := false
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		txcontext.AfterCommit(ctx, func(context.Context) { committed = true })
		require.NoError(t, repos.JobRepo.SaveJob(ctx, newJob("job-1", epoch)))
		key := "escrow:job-1"
		require.NoError(t, repos.LedgerRepo.SaveTransaction(ctx, domain.Transaction{
			TransactionID: "tx-1", AccountID: "seller-1", Type: domain.TransactionTypeEscrow,
			Amount: decimal.NewFromInt(-10), Status: domain.TransactionStatusCompleted, IdempotencyKey: &key, CreatedAt: epoch,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, committed)

	_, err = repos.JobRepo.FindJobByID(ctx, "job-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repos.LedgerRepo.FindTransactionByKey(ctx, "escrow:job-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWithinTxNestedJoinsOuterUnit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := memory.NewRepositoryProvider(store)

	var calls []string
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context) error {
			txcontext.AfterCommit(ctx, func(context.Context) { calls = append(calls, "inner") })
			return repos.JobRepo.SaveJob(ctx, newJob("job-1", epoch))
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inner"}, calls)
}

func TestLedgerRepositoryKeysAndSums(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositoryProvider(memory.NewStore())
	ledger := repos.LedgerRepo

	require.NoError(t, ledger.SaveAccount(ctx, domain.NewLedgerAccount("seller-1", domain.OwnerRoleSeller, epoch)))
	assert.ErrorIs(t, ledger.SaveAccount(ctx, domain.NewLedgerAccount("seller-1", domain.OwnerRoleSeller, epoch)), apperrors.ErrDuplicate)

	charge := "charge:ext-1"
	txs := []domain.Transaction{
		{TransactionID: "t1", AccountID: "seller-1", Type: domain.TransactionTypeCharge, Amount: decimal.NewFromInt(500), Status: domain.TransactionStatusCompleted, IdempotencyKey: &charge, CreatedAt: epoch},
		{TransactionID: "t2", AccountID: "seller-1", Type: domain.TransactionTypeWithdrawal, Amount: decimal.NewFromInt(-120), Status: domain.TransactionStatusPending, CreatedAt: epoch.Add(time.Second)},
		{TransactionID: "t3", AccountID: "seller-1", Type: domain.TransactionTypeEscrow, Amount: decimal.NewFromInt(-80), Status: domain.TransactionStatusCompleted, CreatedAt: epoch.Add(2 * time.Second)},
	}
	for _, tx := range txs {
		require.NoError(t, ledger.SaveTransaction(ctx, tx))
	}
	dup := txs[0]
	dup.TransactionID = "t4"
	assert.ErrorIs(t, ledger.SaveTransaction(ctx, dup), apperrors.ErrDuplicate)

	byKey, err := ledger.FindTransactionByKey(ctx, charge)
	require.NoError(t, err)
	assert.Equal(t, "t1", byKey.TransactionID)

	completed, err := ledger.SumCompletedTransactions(ctx, "seller-1")
	require.NoError(t, err)
	assert.True(t, completed.Equal(decimal.NewFromInt(420)))

	pending, err := ledger.SumPendingOutflows(ctx, "seller-1")
	require.NoError(t, err)
	assert.True(t, pending.Equal(decimal.NewFromInt(-120)))

	require.NoError(t, ledger.UpdateTransactionStatus(ctx, "t2", domain.TransactionStatusPending, domain.TransactionStatusCancelled, epoch))
	err = ledger.UpdateTransactionStatus(ctx, "t2", domain.TransactionStatusPending, domain.TransactionStatusCompleted, epoch)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestLedgerRepositoryBalanceVersioning(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewRepositoryProvider(memory.NewStore()).LedgerRepo
	require.NoError(t, ledger.SaveAccount(ctx, domain.NewLedgerAccount("c-1", domain.OwnerRoleContractor, epoch)))

	account, err := ledger.FindAccountByIDForUpdate(ctx, "c-1")
	require.NoError(t, err)
	account.Balance = decimal.NewFromInt(70)
	require.NoError(t, ledger.UpdateAccountBalance(ctx, *account, account.Version))
	assert.ErrorIs(t, ledger.UpdateAccountBalance(ctx, *account, account.Version), apperrors.ErrConflict)

	stored, err := ledger.FindAccountByID(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, int64(2), stored.Version)
}
