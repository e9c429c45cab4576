package services

import (
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
)

// ContainerDeps holds the external collaborators the services are built on.
type ContainerDeps struct {
	Brokerage clients.BrokerageClient
	Ledger    clients.LedgerClient
	Store     clients.CredentialStore
	History   clients.RunHistory // optional
}

// ContainerSettings carries the run-shaping knobs from configuration.
type ContainerSettings struct {
	Accounts     []domain.AccountConfig
	WindowDays   int
	GroupWorkers int
	PushBalances bool
}

// NewContainer creates the service container with properly initialized dependencies.
func NewContainer(deps ContainerDeps, settings ContainerSettings) *portssvc.ServiceContainer {
	syncOpts := []AccountSyncOption{}
	if deps.History != nil {
		syncOpts = append(syncOpts, WithRunHistory(deps.History))
	}
	if settings.PushBalances {
		syncOpts = append(syncOpts, WithBalancePush())
	}
	accountSync := NewAccountSyncService(deps.Brokerage, deps.Ledger, syncOpts...)

	rotation := NewCredentialRotationService(deps.Store)

	orchOpts := []OrchestratorOption{WithGroupWorkers(settings.GroupWorkers)}
	if deps.History != nil {
		orchOpts = append(orchOpts, WithHistory(deps.History))
	}
	orchestrator := NewSyncOrchestratorService(
		settings.Accounts,
		deps.Store,
		accountSync,
		rotation,
		settings.WindowDays,
		orchOpts...,
	)

	return &portssvc.ServiceContainer{
		AccountSync:  accountSync,
		Rotation:     rotation,
		Orchestrator: orchestrator,
	}
}
