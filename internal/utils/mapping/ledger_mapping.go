package mapping

import (
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/models"
)

// ToModelLedgerAccount converts a domain LedgerAccount to a model LedgerAccount
func ToModelLedgerAccount(d domain.LedgerAccount) models.LedgerAccount {
	return models.LedgerAccount{
		AccountID:      d.AccountID,
		OwnerRole:      string(d.OwnerRole),
		Balance:        d.Balance,
		TotalCharged:   d.TotalCharged,
		TotalWithdrawn: d.TotalWithdrawn,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		LastUpdatedAt:  d.LastUpdatedAt,
	}
}

// ToDomainLedgerAccount converts a model LedgerAccount to a domain LedgerAccount
func ToDomainLedgerAccount(m models.LedgerAccount) domain.LedgerAccount {
	return domain.LedgerAccount{
		AccountID:      m.AccountID,
		OwnerRole:      domain.OwnerRole(m.OwnerRole),
		Balance:        m.Balance,
		TotalCharged:   m.TotalCharged,
		TotalWithdrawn: m.TotalWithdrawn,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		LastUpdatedAt:  m.LastUpdatedAt,
	}
}

// ToModelTransaction converts a domain Transaction to a model Transaction
func ToModelTransaction(d domain.Transaction) models.Transaction {
	return models.Transaction{
		TransactionID:  d.TransactionID,
		AccountID:      d.AccountID,
		Type:           string(d.Type),
		Amount:         d.Amount,
		Status:         string(d.Status),
		JobID:          d.JobID,
		IdempotencyKey: d.IdempotencyKey,
		ExternalRef:    d.ExternalRef,
		ReleaseAt:      d.ReleaseAt,
		CreatedAt:      d.CreatedAt,
		SettledAt:      d.SettledAt,
	}
}

// ToDomainTransaction converts a model Transaction to a domain Transaction
func ToDomainTransaction(m models.Transaction) domain.Transaction {
	return domain.Transaction{
		TransactionID:  m.TransactionID,
		AccountID:      m.AccountID,
		Type:           domain.TransactionType(m.Type),
		Amount:         m.Amount,
		Status:         domain.TransactionStatus(m.Status),
		JobID:          m.JobID,
		IdempotencyKey: m.IdempotencyKey,
		ExternalRef:    m.ExternalRef,
		ReleaseAt:      m.ReleaseAt,
		CreatedAt:      m.CreatedAt,
		SettledAt:      m.SettledAt,
	}
}

// ToDomainTransactionSlice converts a slice of model Transactions to a slice of domain Transactions
func ToDomainTransactionSlice(ms []models.Transaction) []domain.Transaction {
	ds := make([]domain.Transaction, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainTransaction(m)
	}
	return ds
}
