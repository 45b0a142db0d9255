package dto

import "github.com/SscSPs/curtain_escrow_app/internal/core/domain"

// DisputeDecision is the arbiter's ruling on an open dispute.
type DisputeDecision string

const (
	DisputeDecisionRefund DisputeDecision = "refund"
	DisputeDecisionSettle DisputeDecision = "settle"
)

// FileDisputeRequest opens a dispute inside the 48 hour window.
type FileDisputeRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// ResolveDisputeRequest closes an open dispute.
type ResolveDisputeRequest struct {
	Decision DisputeDecision `json:"decision" binding:"required,oneof=refund settle"`
}

// SettlementResponse reports what a settlement or dispute resolution did.
type SettlementResponse struct {
	JobID        string                   `json:"jobId"`
	Outcome      domain.SettlementOutcome `json:"outcome"`
	Transactions []TransactionResponse    `json:"transactions"`
}

// ToSettlementResponse converts a domain.SettlementResult.
func ToSettlementResponse(res *domain.SettlementResult) SettlementResponse {
	return SettlementResponse{
		JobID:        res.JobID,
		Outcome:      res.Outcome,
		Transactions: ToListTransactionResponse(res.Transactions),
	}
}
