// Package scheduler runs escrow settlement in the background: River jobs for the PostgreSQL
// driver and a ticker sweep for the in-memory driver.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/riverqueue/river"
)

// QueueSettlement is the River queue settlement jobs run on.
const QueueSettlement = "settlement"

// minSnooze bounds how soon a job that ran early is retried.
const minSnooze = 30 * time.Second

// SettleEscrowArgs asks for the payments of one completed job to be settled at DueAt.
type SettleEscrowArgs struct {
	JobID string    `json:"job_id"`
	DueAt time.Time `json:"due_at"`
}

func (SettleEscrowArgs) Kind() string { return "settle_escrow" }

func (SettleEscrowArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueSettlement,
		MaxAttempts: 10,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// SettleEscrowWorker runs TrySettle for one job.
type SettleEscrowWorker struct {
	river.WorkerDefaults[SettleEscrowArgs]
	settlement portssvc.SettlementSvc
	logger     *slog.Logger
	now        func() time.Time
}

func NewSettleEscrowWorker(settlement portssvc.SettlementSvc, logger *slog.Logger) *SettleEscrowWorker {
	return &SettleEscrowWorker{settlement: settlement, logger: logger, now: time.Now}
}

func (w *SettleEscrowWorker) Work(ctx context.Context, job *river.Job[SettleEscrowArgs]) error {
	args := job.Args
	result, err := w.settlement.TrySettle(ctx, args.JobID)
	switch {
	case err == nil:
		w.logger.Info("Settlement job finished",
			slog.String("job_id", args.JobID),
			slog.String("outcome", string(result.Outcome)))
		return nil
	case errors.Is(err, apperrors.ErrSettlementNotDue):
		wait := args.DueAt.Sub(w.now())
		if wait < minSnooze {
			wait = minSnooze
		}
		return river.JobSnooze(wait)
	case errors.Is(err, apperrors.ErrDisputeOpen), errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrValidation):
		// The dispute resolution or a later sweep settles the job; retrying cannot help.
		w.logger.Warn("Settlement job cancelled", slog.String("job_id", args.JobID), slog.String("error", err.Error()))
		return river.JobCancel(err)
	default:
		return fmt.Errorf("failed to settle job %s: %w", args.JobID, err)
	}
}

// SweepArgs triggers one pass over all jobs due for settlement.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "settlement_sweep" }

func (SweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueSettlement, MaxAttempts: 1}
}

// SweepWorker settles whatever the scheduled jobs missed, e.g. after an outage.
type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	settlement portssvc.SettlementSvc
	batchSize  int
	logger     *slog.Logger
}

func NewSweepWorker(settlement portssvc.SettlementSvc, batchSize int, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{settlement: settlement, batchSize: batchSize, logger: logger}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepArgs]) error {
	settled, err := w.settlement.SettleDue(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("settlement sweep failed: %w", err)
	}
	if settled > 0 {
		w.logger.Info("Settlement sweep finished", slog.Int("settled", settled))
	}
	return nil
}
