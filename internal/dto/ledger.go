package dto

import (
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RecordChargeRequest is sent by the payment-gateway adapter once a seller's real-money charge
// has an outcome. ExternalRef is the gateway reference and makes the call idempotent.
type RecordChargeRequest struct {
	AccountID   string                   `json:"accountId" binding:"required"`
	Amount      decimal.Decimal          `json:"amount" binding:"required"`
	ExternalRef string                   `json:"externalRef" binding:"required"`
	Status      domain.TransactionStatus `json:"status" binding:"required,oneof=pending completed"`
}

// WithdrawalRequest asks to pay points out of the caller's account.
type WithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ExternalRef *string         `json:"externalRef"`
}

// SettleTransactionRequest records the outcome of a pending transaction.
type SettleTransactionRequest struct {
	Outcome domain.TransactionStatus `json:"outcome" binding:"required,oneof=completed failed cancelled"`
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	Limit     int     `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
	NextToken *string `form:"nextToken"`
}

// LedgerAccountResponse defines the data returned for an account balance query.
type LedgerAccountResponse struct {
	AccountID      string           `json:"accountId"`
	OwnerRole      domain.OwnerRole `json:"ownerRole"`
	Balance        decimal.Decimal  `json:"balance"`
	TotalCharged   decimal.Decimal  `json:"totalCharged"`
	TotalWithdrawn decimal.Decimal  `json:"totalWithdrawn"`
	Version        int64            `json:"version"`
	LastUpdatedAt  time.Time        `json:"lastUpdatedAt"`
}

// TransactionResponse defines the data returned for a ledger transaction.
type TransactionResponse struct {
	TransactionID string                   `json:"transactionId"`
	AccountID     string                   `json:"accountId"`
	Type          domain.TransactionType   `json:"type"`
	Amount        decimal.Decimal          `json:"amount"`
	Status        domain.TransactionStatus `json:"status"`
	JobID         *string                  `json:"jobId,omitempty"`
	ExternalRef   *string                  `json:"externalRef,omitempty"`
	ReleaseAt     *time.Time               `json:"releaseAt,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	SettledAt     *time.Time               `json:"settledAt,omitempty"`
}

// ListTransactionsResponse wraps a page of transactions.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"`
}

// ReconcileAccountResponse compares the cached balance with the transaction sum.
type ReconcileAccountResponse struct {
	AccountID       string          `json:"accountId"`
	CachedBalance   decimal.Decimal `json:"cachedBalance"`
	ComputedBalance decimal.Decimal `json:"computedBalance"`
	Consistent      bool            `json:"consistent"`
}

// ToLedgerAccountResponse converts a domain.LedgerAccount to its DTO.
func ToLedgerAccountResponse(acc *domain.LedgerAccount) LedgerAccountResponse {
	return LedgerAccountResponse{
		AccountID:      acc.AccountID,
		OwnerRole:      acc.OwnerRole,
		Balance:        acc.Balance,
		TotalCharged:   acc.TotalCharged,
		TotalWithdrawn: acc.TotalWithdrawn,
		Version:        acc.Version,
		LastUpdatedAt:  acc.LastUpdatedAt,
	}
}

// ToTransactionResponse converts a domain.Transaction to TransactionResponse DTO.
func ToTransactionResponse(tx *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: tx.TransactionID,
		AccountID:     tx.AccountID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Status:        tx.Status,
		JobID:         tx.JobID,
		ExternalRef:   tx.ExternalRef,
		ReleaseAt:     tx.ReleaseAt,
		CreatedAt:     tx.CreatedAt,
		SettledAt:     tx.SettledAt,
	}
}

// ToListTransactionResponse converts a slice of transactions.
func ToListTransactionResponse(txs []domain.Transaction) []TransactionResponse {
	res := make([]TransactionResponse, len(txs))
	for i := range txs {
		res[i] = ToTransactionResponse(&txs[i])
	}
	return res
}

// ToReconcileAccountResponse converts a domain.BalanceReconciliation.
func ToReconcileAccountResponse(r *domain.BalanceReconciliation) ReconcileAccountResponse {
	return ReconcileAccountResponse{
		AccountID:       r.AccountID,
		CachedBalance:   r.CachedBalance,
		ComputedBalance: r.ComputedBalance,
		Consistent:      r.Consistent(),
	}
}
