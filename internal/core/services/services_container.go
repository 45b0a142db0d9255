package services

import (
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// scheduler may be nil, in which case settlement relies on the periodic sweep.
func NewServiceContainer(repos portsrepo.RepositoryProvider, scheduler portssvc.SettlementScheduler, options ...Option) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// The ledger is the only writer of balances; escrow and jobs build on it.
	ledger := newLedgerService(repos.TxManager, repos.LedgerRepo, options...)
	container.Ledger = ledger

	escrowOptions := []EscrowOption{WithEscrowBase(options...)}
	if scheduler != nil {
		escrowOptions = append(escrowOptions, WithScheduler(scheduler))
	}
	container.Escrow = NewEscrowService(
		repos.TxManager,
		repos.JobRepo,
		repos.CollaborationRepo,
		repos.LedgerRepo,
		ledger,
		escrowOptions...,
	)

	container.Job = NewJobService(repos.TxManager, repos.JobRepo, repos.CollaborationRepo, container.Escrow, options...)
	container.Collaboration = NewCollaborationService(repos.TxManager, repos.JobRepo, repos.CollaborationRepo, container.Job, options...)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.JobSvcFacade           = (*jobService)(nil)
	_ portssvc.LedgerSvcFacade        = (*ledgerService)(nil)
	_ portssvc.EscrowSvcFacade        = (*escrowService)(nil)
	_ portssvc.CollaborationSvcFacade = (*collaborationService)(nil)
)
