package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/shopspring/decimal"
)

// OwnerRole is the kind of party a ledger account belongs to.
type OwnerRole string

const (
	OwnerRoleSeller     OwnerRole = "seller"
	OwnerRoleContractor OwnerRole = "contractor"
)

// AccountEntity names ledger accounts in storage errors.
const AccountEntity = "ledger account"

// LedgerAccount holds the point balance of one seller or contractor. The account ID is the
// owner's actor ID. Balance always equals the signed sum of the account's completed transactions.
type LedgerAccount struct {
	AccountID      string          `json:"accountId"`
	OwnerRole      OwnerRole       `json:"ownerRole"`
	Balance        decimal.Decimal `json:"balance"`
	TotalCharged   decimal.Decimal `json:"totalCharged"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"createdAt"`
	LastUpdatedAt  time.Time       `json:"lastUpdatedAt"`
}

// NewLedgerAccount opens an empty account.
func NewLedgerAccount(ownerID string, role OwnerRole, now time.Time) LedgerAccount {
	return LedgerAccount{
		AccountID:      ownerID,
		OwnerRole:      role,
		Balance:        decimal.Zero,
		TotalCharged:   decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Version:        1,
		CreatedAt:      now,
		LastUpdatedAt:  now,
	}
}

// CheckAvailable fails with InsufficientBalanceError when a debit of amount (negative) would
// take the balance, net of pending outflows, below zero.
func (a LedgerAccount) CheckAvailable(amount, pendingOutflows decimal.Decimal) error {
	if !amount.IsNegative() {
		return nil
	}
	available := a.Balance.Add(pendingOutflows)
	if available.Add(amount).IsNegative() {
		return &apperrors.InsufficientBalanceError{
			AccountID: a.AccountID,
			Available: available,
			Required:  amount.Neg(),
		}
	}
	return nil
}

// ApplyCompleted returns the account after a completed transaction is applied.
func (a LedgerAccount) ApplyCompleted(tx Transaction, now time.Time) (LedgerAccount, error) {
	if tx.AccountID != a.AccountID {
		return a, fmt.Errorf("transaction %s belongs to account %s, not %s", tx.TransactionID, tx.AccountID, a.AccountID)
	}
	if err := a.CheckAvailable(tx.Amount, decimal.Zero); err != nil {
		return a, err
	}
	next := a
	next.Balance = a.Balance.Add(tx.Amount)
	switch tx.Type {
	case TransactionTypeCharge:
		next.TotalCharged = a.TotalCharged.Add(tx.Amount)
	case TransactionTypeWithdrawal:
		next.TotalWithdrawn = a.TotalWithdrawn.Add(tx.Amount.Neg())
	}
	next.LastUpdatedAt = now
	return next, nil
}

// BalanceReconciliation compares an account's cached balance with the sum of its completed
// transactions.
type BalanceReconciliation struct {
	AccountID       string
	CachedBalance   decimal.Decimal
	ComputedBalance decimal.Decimal
}

// Consistent reports whether the cached balance matches the ledger.
func (r BalanceReconciliation) Consistent() bool {
	return r.CachedBalance.Equal(r.ComputedBalance)
}
