package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/core/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/SscSPs/curtain_escrow_app/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newLedger(t *testing.T) portssvc.LedgerSvcFacade {
	t.Helper()
	repos := memory.NewRepositoryProvider(memory.NewStore())
	return services.NewServiceContainer(repos, nil).Ledger
}

func charge(t *testing.T, ledger portssvc.LedgerSvcFacade, accountID, ref string, amount int64) *domain.Transaction {
	t.Helper()
	tx, err := ledger.RecordCharge(context.Background(), dto.RecordChargeRequest{
		AccountID: accountID, Amount: points(amount), ExternalRef: ref, Status: domain.TransactionStatusCompleted,
	})
	require.NoError(t, err)
	return tx
}

func TestRecordChargeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)

	first := charge(t, ledger, seller.ID, "pg-001", 30000)
	again := charge(t, ledger, seller.ID, "pg-001", 30000)
	assert.Equal(t, first.TransactionID, again.TransactionID)

	_, err := ledger.RecordCharge(ctx, dto.RecordChargeRequest{
		AccountID: seller.ID, Amount: points(1), ExternalRef: "pg-001", Status: domain.TransactionStatusCompleted,
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	account, err := ledger.GetBalance(ctx, seller.ID, seller)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(points(30000)))
	assert.True(t, account.TotalCharged.Equal(points(30000)))
	assert.Equal(t, domain.OwnerRoleSeller, account.OwnerRole)
}

func TestPendingChargeConfirmedLater(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)

	pending, err := ledger.RecordCharge(ctx, dto.RecordChargeRequest{
		AccountID: seller.ID, Amount: points(5000), ExternalRef: "pg-77", Status: domain.TransactionStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, pending.Status)

	account, err := ledger.GetBalance(ctx, seller.ID, seller)
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())

	confirmed, err := ledger.RecordCharge(ctx, dto.RecordChargeRequest{
		AccountID: seller.ID, Amount: points(5000), ExternalRef: "pg-77", Status: domain.TransactionStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, pending.TransactionID, confirmed.TransactionID)
	assert.Equal(t, domain.TransactionStatusCompleted, confirmed.Status)

	account, err = ledger.GetBalance(ctx, seller.ID, seller)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(points(5000)))
}

func TestSettleTransactionOutcomes(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	charge(t, ledger, contractorX.ID, "pg-1", 1000)

	w, err := ledger.RequestWithdrawal(ctx, dto.WithdrawalRequest{Amount: points(400)}, contractorX)
	require.NoError(t, err)
	assert.True(t, w.Amount.Equal(points(-400)))

	_, err = ledger.SettleTransaction(ctx, w.TransactionID, domain.TransactionStatusPending)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	done, err := ledger.SettleTransaction(ctx, w.TransactionID, domain.TransactionStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.SettledAt)

	replay, err := ledger.SettleTransaction(ctx, w.TransactionID, domain.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, done.TransactionID, replay.TransactionID)

	_, err = ledger.SettleTransaction(ctx, w.TransactionID, domain.TransactionStatusFailed)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	account, err := ledger.GetBalance(ctx, contractorX.ID, contractorX)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(points(600)))
	assert.True(t, account.TotalWithdrawn.Equal(points(400)))

	_, err = ledger.SettleTransaction(ctx, "missing", domain.TransactionStatusCompleted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSettleTransactionLeavesJobPaymentsToEscrow(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)

	jobID := "job-1"
	key := domain.PaymentKey(jobID, contractorX.ID)
	payment, err := ledger.AppendTransaction(ctx, domain.Transaction{
		AccountID:      contractorX.ID,
		Type:           domain.TransactionTypePayment,
		Amount:         points(500),
		Status:         domain.TransactionStatusPending,
		JobID:          &jobID,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)

	for _, outcome := range []domain.TransactionStatus{domain.TransactionStatusCompleted, domain.TransactionStatusCancelled} {
		_, err = ledger.SettleTransaction(ctx, payment.TransactionID, outcome)
		assert.ErrorIs(t, err, apperrors.ErrForbidden, string(outcome))
	}

	account, err := ledger.GetBalance(ctx, contractorX.ID, contractorX)
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())

	escrowLedger, ok := ledger.(portssvc.EscrowLedgerSvc)
	require.True(t, ok)
	done, err := escrowLedger.SettleJobPayment(ctx, payment.TransactionID, domain.TransactionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, done.Status)

	charged := charge(t, ledger, contractorX.ID, "pg-9", 100)
	_, err = escrowLedger.SettleJobPayment(ctx, charged.TransactionID, domain.TransactionStatusCancelled)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	account, err = ledger.GetBalance(ctx, contractorX.ID, contractorX)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(points(600)))
}

func TestWithdrawalChecksAvailableBalance(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)

	_, err := ledger.RequestWithdrawal(ctx, dto.WithdrawalRequest{Amount: points(1)}, contractorY)
	var insufficient *apperrors.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient), "an account that never received points has nothing to withdraw")
	assert.True(t, insufficient.Available.IsZero())

	_, err = ledger.RequestWithdrawal(ctx, dto.WithdrawalRequest{Amount: points(1)}, arbiter)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = ledger.GetBalance(ctx, contractorX.ID, contractorY)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)
	charge(t, ledger, contractorX.ID, "pg-1", 500)

	results := make(chan error, 10)
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := ledger.RequestWithdrawal(ctx, dto.WithdrawalRequest{Amount: points(100)}, contractorX)
			results <- err
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, rejected)
}

func TestConcurrentAppendsKeepBalanceEqualToLedger(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger(t)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 25; i++ {
		ref := fmt.Sprintf("pg-%02d", i)
		g.Go(func() error {
			_, err := ledger.RecordCharge(gctx, dto.RecordChargeRequest{
				AccountID: seller.ID, Amount: points(40), ExternalRef: ref, Status: domain.TransactionStatusCompleted,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	rec, err := ledger.ReconcileAccount(ctx, seller.ID, arbiter)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.True(t, rec.CachedBalance.Equal(points(1000)))

	page, next, err := ledger.ListAccountTransactions(ctx, seller.ID, dto.ListTransactionsParams{Limit: 10}, seller)
	require.NoError(t, err)
	assert.Len(t, page, 10)
	assert.NotNil(t, next)
}
