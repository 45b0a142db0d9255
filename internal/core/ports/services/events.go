package services

import (
	"context"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
)

// EventPublisher hands domain events to the notification dispatcher. Services publish only
// after the unit of work that produced the event has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// EventHandler consumes one delivered event.
type EventHandler func(ctx context.Context, event domain.Event) error
