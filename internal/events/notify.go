package events

import (
	"context"
	"log/slog"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
)

// LogNotifier is the default notification subscriber. It writes every event as a structured
// log line; a delivery channel such as push or SMS would subscribe alongside it.
func LogNotifier() portssvc.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		attrs := []any{
			slog.String("event_type", string(event.Type)),
			slog.String("actor_id", event.ActorID),
			slog.Time("occurred_at", event.OccurredAt),
		}
		if event.JobID != "" {
			attrs = append(attrs, slog.String("job_id", event.JobID))
		}
		if event.CollaborationID != "" {
			attrs = append(attrs, slog.String("collaboration_id", event.CollaborationID))
		}
		if event.TransactionID != "" {
			attrs = append(attrs, slog.String("transaction_id", event.TransactionID), slog.String("account_id", event.AccountID))
		}
		if event.From != "" || event.To != "" {
			attrs = append(attrs, slog.String("from", event.From), slog.String("to", event.To))
		}
		if event.Amount != nil {
			attrs = append(attrs, slog.String("amount", event.Amount.String()))
		}
		middleware.GetLoggerFromCtx(ctx).Info("Notification", attrs...)
		return nil
	}
}
