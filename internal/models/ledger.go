package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerAccount represents a row of the ledger_accounts table.
type LedgerAccount struct {
	AccountID      string          `db:"account_id"`
	OwnerRole      string          `db:"owner_role"`
	Balance        decimal.Decimal `db:"balance"`
	TotalCharged   decimal.Decimal `db:"total_charged"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	LastUpdatedAt  time.Time       `db:"last_updated_at"`
}

// Transaction represents a row of the ledger_transactions table. Amounts are signed.
type Transaction struct {
	TransactionID  string          `db:"transaction_id"`
	AccountID      string          `db:"account_id"`
	Type           string          `db:"type"`
	Amount         decimal.Decimal `db:"amount"`
	Status         string          `db:"status"`
	JobID          *string         `db:"job_id"`
	IdempotencyKey *string         `db:"idempotency_key"`
	ExternalRef    *string         `db:"external_ref"`
	ReleaseAt      *time.Time      `db:"release_at"`
	CreatedAt      time.Time       `db:"created_at"`
	SettledAt      *time.Time      `db:"settled_at"`
}
