package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a domain event consumed by the notification dispatcher.
type EventType string

const (
	EventJobCreated             EventType = "job.created"
	EventJobStatusChanged       EventType = "job.status_changed"
	EventEscrowHeld             EventType = "escrow.held"
	EventEscrowRefunded         EventType = "escrow.refunded"
	EventPaymentScheduled       EventType = "escrow.payment_scheduled"
	EventTransactionSettled     EventType = "ledger.transaction_settled"
	EventDisputeOpened          EventType = "dispute.opened"
	EventDisputeResolved        EventType = "dispute.resolved"
	EventCollaborationCreated   EventType = "collaboration.created"
	EventCollaborationActivated EventType = "collaboration.activated"
	EventCollaborationCompleted EventType = "collaboration.completed"
	EventCollaborationCancelled EventType = "collaboration.cancelled"
)

// Event describes something that happened to a job, a transaction or a collaboration.
type Event struct {
	Type            EventType        `json:"type"`
	JobID           string           `json:"jobId,omitempty"`
	CollaborationID string           `json:"collaborationId,omitempty"`
	TransactionID   string           `json:"transactionId,omitempty"`
	AccountID       string           `json:"accountId,omitempty"`
	From            string           `json:"from,omitempty"`
	To              string           `json:"to,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	ActorID         string           `json:"actorId"`
	OccurredAt      time.Time        `json:"occurredAt"`
}

// TransactionEvent builds an event for a ledger movement.
func TransactionEvent(eventType EventType, tx Transaction, actorID string, now time.Time) Event {
	amount := tx.Amount
	evt := Event{
		Type:          eventType,
		TransactionID: tx.TransactionID,
		AccountID:     tx.AccountID,
		To:            string(tx.Status),
		Amount:        &amount,
		ActorID:       actorID,
		OccurredAt:    now,
	}
	if tx.JobID != nil {
		evt.JobID = *tx.JobID
	}
	return evt
}
