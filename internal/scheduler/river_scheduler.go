package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/repositories/database/pgsql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// ErrClientNotWired is returned when a settlement is scheduled before SetClient was called.
var ErrClientNotWired = errors.New("river client not wired")

// RiverScheduler enqueues settlement jobs. The client is set after construction because the
// client's workers depend on the services that use the scheduler.
type RiverScheduler struct {
	mu     sync.RWMutex
	client *river.Client[pgx.Tx]
}

var _ portssvc.SettlementScheduler = (*RiverScheduler)(nil)

func NewRiverScheduler() *RiverScheduler {
	return &RiverScheduler{}
}

func (s *RiverScheduler) SetClient(client *river.Client[pgx.Tx]) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
}

// ScheduleSettlement enqueues a job that runs at. Inside a unit of work the job is inserted in
// the same transaction, so it exists exactly when the completion commits.
func (s *RiverScheduler) ScheduleSettlement(ctx context.Context, jobID string, at time.Time) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return ErrClientNotWired
	}

	args := SettleEscrowArgs{JobID: jobID, DueAt: at}
	opts := &river.InsertOpts{ScheduledAt: at}
	var err error
	if tx, ok := pgsql.TxFromContext(ctx); ok {
		_, err = client.InsertTx(ctx, tx, args, opts)
	} else {
		_, err = client.Insert(ctx, args, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue settlement job for %s: %w", jobID, err)
	}
	return nil
}

// Options tunes the River client.
type Options struct {
	MaxWorkers    int
	SweepInterval time.Duration
	BatchSize     int
}

// NewRiverClient builds a client running the settlement and sweep workers. The sweep is a
// periodic job, started with the client.
func NewRiverClient(pool *pgxpool.Pool, settlement portssvc.SettlementSvc, opts Options, logger *slog.Logger) (*river.Client[pgx.Tx], error) {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewSettleEscrowWorker(settlement, logger))
	river.AddWorker(workers, NewSweepWorker(settlement, opts.BatchSize, logger))

	sweep := river.NewPeriodicJob(
		river.PeriodicInterval(opts.SweepInterval),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.MaxWorkers},
			QueueSettlement:    {MaxWorkers: opts.MaxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{sweep},
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}
	return client, nil
}

// MigrateRiver applies River's own schema migrations.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up failed: %w", err)
	}
	return nil
}
