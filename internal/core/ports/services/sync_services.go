package services

import (
	"context"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
)

// AccountSyncSvc drives one account through a single sync pass.
type AccountSyncSvc interface {
	// SyncAccount fetches the account's activity window with token, maps and
	// deduplicates it, and submits what is new. The returned result always
	// carries whatever was observed, including the rotated token when the
	// brokerage exchange completed, even if later steps failed.
	SyncAccount(ctx context.Context, acct domain.AccountConfig, token string, window domain.Window) domain.SyncResult
}

// CredentialRotationSvc persists rotated refresh tokens at the end of a run
// and bootstraps the store on first start.
type CredentialRotationSvc interface {
	// PersistRotations merges the rotated group→token pairs into the stored
	// credential set and writes the result back atomically. Groups absent from
	// rotated are left untouched. A nil return with no rotations means no
	// write happened at all.
	PersistRotations(ctx context.Context, rotated map[string]string) error

	// SeedMissing stores the configured bootstrap token under groups that have
	// no stored credential yet. Groups already stored are never overwritten.
	// An empty bootstrap value is a no-op.
	SeedMissing(ctx context.Context, groups []string, bootstrap string) error
}

// SyncOrchestratorSvc runs one full sync across all configured accounts.
type SyncOrchestratorSvc interface {
	// Run fans account sync out across credential groups, chains token
	// rotation within each group, aggregates per-account outcomes and persists
	// rotated tokens exactly once. It never returns an error; every failure is
	// reflected in the RunResult.
	Run(ctx context.Context) domain.RunResult
}

// ServiceContainer holds instances of all the application services. It is the
// entry point for accessing sync functionality from the handlers and the
// one-shot runner.
type ServiceContainer struct {
	AccountSync  AccountSyncSvc
	Rotation     CredentialRotationSvc
	Orchestrator SyncOrchestratorSvc
}
