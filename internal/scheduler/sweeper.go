package scheduler

import (
	"context"
	"log/slog"
	"time"

	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
)

// Sweeper settles due jobs on a fixed interval. It replaces River when jobs live in memory.
type Sweeper struct {
	settlement portssvc.SettlementSvc
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewSweeper(settlement portssvc.SettlementSvc, interval time.Duration, batchSize int, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{settlement: settlement, interval: interval, batchSize: batchSize, logger: logger}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Settlement sweeper started", slog.Duration("interval", s.interval))
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("Settlement sweeper received shutdown signal, stopping...")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	settled, err := s.settlement.SettleDue(ctx, s.batchSize)
	if err != nil {
		// The next tick retries; a failing sweep must not stop the loop.
		s.logger.Error("Settlement sweep failed", slog.String("error", err.Error()))
		return
	}
	if settled > 0 {
		s.logger.Info("Settlement sweep finished", slog.Int("settled", settled))
	}
}
