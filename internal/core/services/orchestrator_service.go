package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultGroupWorkers = 4

// SyncOrchestratorService fans one run out across all configured accounts.
// Credential groups run concurrently under a bounded limit; accounts within a
// group run strictly in sequence so each account uses the token rotated by the
// previous one. The group is the unit of serialization, not the run.
type SyncOrchestratorService struct {
	BaseService
	accounts    []domain.AccountConfig
	store       clients.CredentialStore
	accountSync portssvc.AccountSyncSvc
	rotation    portssvc.CredentialRotationSvc
	history     clients.RunHistory
	windowDays  int
	workers     int
	now         func() time.Time
}

// OrchestratorOption configures optional behaviour of the orchestrator.
type OrchestratorOption func(*SyncOrchestratorService)

// WithGroupWorkers bounds how many credential groups sync concurrently.
func WithGroupWorkers(n int) OrchestratorOption {
	return func(s *SyncOrchestratorService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithHistory attaches a run-history recorder.
func WithHistory(h clients.RunHistory) OrchestratorOption {
	return func(s *SyncOrchestratorService) { s.history = h }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(s *SyncOrchestratorService) { s.now = now }
}

// NewSyncOrchestratorService creates a new orchestrator over the configured accounts.
func NewSyncOrchestratorService(
	accounts []domain.AccountConfig,
	store clients.CredentialStore,
	accountSync portssvc.AccountSyncSvc,
	rotation portssvc.CredentialRotationSvc,
	windowDays int,
	opts ...OrchestratorOption,
) *SyncOrchestratorService {
	s := &SyncOrchestratorService{
		accounts:    accounts,
		store:       store,
		accountSync: accountSync,
		rotation:    rotation,
		windowDays:  windowDays,
		workers:     defaultGroupWorkers,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ portssvc.SyncOrchestratorSvc = (*SyncOrchestratorService)(nil)

// Run executes one full sync. It never returns an error; every failure is
// contained at the narrowest possible scope and reported in the RunResult.
func (s *SyncOrchestratorService) Run(ctx context.Context) domain.RunResult {
	run := domain.RunResult{
		RunID:                uuid.NewString(),
		StartedAt:            s.now(),
		Accounts:             make(map[string]domain.SyncResult, len(s.accounts)),
		CredentialsPersisted: true,
	}
	window := domain.NewWindowEndingAt(s.now(), s.windowDays)

	s.LogInfo(ctx, "Starting sync run",
		slog.String("run_id", run.RunID),
		slog.Int("accounts", len(s.accounts)),
		slog.String("window_start", window.Start.Format(domain.LedgerDateLayout)),
		slog.String("window_end", window.End.Format(domain.LedgerDateLayout)),
	)

	tokens, _, err := s.store.Read(ctx)
	if err != nil {
		// No usable tokens means no account can be synced this run. This is a
		// read failure, not a lost rotation, so it is not a PersistError.
		s.LogError(ctx, err, "Credential store read failed, aborting run")
		for _, acct := range s.accounts {
			run.Accounts[acct.AccountID] = domain.SyncResult{
				AccountID: acct.AccountID,
				Err:       fmt.Errorf("loading credentials: %w", err),
			}
		}
		return s.finalize(ctx, run, nil)
	}

	groups := s.groupAccounts()

	var mu sync.Mutex
	rotated := make(map[string]string)

	var g errgroup.Group
	g.SetLimit(s.workers)
	for groupID, accts := range groups {
		g.Go(func() error {
			results, nextToken := s.syncGroup(ctx, groupID, accts, tokens[groupID], window)
			mu.Lock()
			defer mu.Unlock()
			for _, res := range results {
				run.Accounts[res.AccountID] = res
			}
			if nextToken != "" && nextToken != tokens[groupID] {
				rotated[groupID] = nextToken
			}
			return nil
		})
	}
	// Workers only report results, they never return errors: a failed group
	// must not cancel its siblings.
	_ = g.Wait()

	return s.finalize(ctx, run, rotated)
}

// syncGroup processes one credential group's accounts in sequence, chaining
// the rotated token from each fetch into the next account's call. Exchanging
// once per account instead would invalidate the token mid-group.
func (s *SyncOrchestratorService) syncGroup(ctx context.Context, groupID string, accts []domain.AccountConfig, token string, window domain.Window) ([]domain.SyncResult, string) {
	results := make([]domain.SyncResult, 0, len(accts))

	if token == "" {
		for _, acct := range accts {
			results = append(results, domain.SyncResult{
				AccountID: acct.AccountID,
				Err:       fmt.Errorf("no stored credential for group %q: %w", groupID, apperrors.ErrAuth),
			})
		}
		return results, ""
	}

	current := token
	rotatedCurrent := false
	for _, acct := range accts {
		res := s.accountSync.SyncAccount(ctx, acct, current, window)
		if res.NextToken != "" {
			current = res.NextToken
			rotatedCurrent = true
		}
		results = append(results, res)
	}
	if !rotatedCurrent {
		return results, ""
	}
	return results, current
}

// finalize aggregates totals, persists rotations exactly once, records history
// and stamps the run status.
func (s *SyncOrchestratorService) finalize(ctx context.Context, run domain.RunResult, rotated map[string]string) domain.RunResult {
	succeeded := 0
	for _, res := range run.Accounts {
		run.AccountsProcessed++
		run.TotalNew += res.NewTransactions
		run.TotalSkipped += res.SkippedDuplicates
		if !res.Failed() {
			succeeded++
		}
	}
	run.TokensRotated = len(rotated)

	if err := s.rotation.PersistRotations(ctx, rotated); err != nil {
		run.CredentialsPersisted = false
		run.PersistErr = err
	}

	switch {
	case run.PersistErr != nil:
		run.Status = domain.RunFailure
	case run.AccountsProcessed > 0 && succeeded == run.AccountsProcessed:
		run.Status = domain.RunSuccess
	case succeeded > 0:
		run.Status = domain.RunPartial
	default:
		run.Status = domain.RunFailure
	}
	run.FinishedAt = s.now()

	if s.history != nil {
		if err := s.history.RecordRun(ctx, run); err != nil {
			s.LogWarn(ctx, "Failed to record run history", slog.String("error", err.Error()))
		}
	}

	s.LogInfo(ctx, "Sync run finished",
		slog.String("run_id", run.RunID),
		slog.String("status", string(run.Status)),
		slog.Int("total_new", run.TotalNew),
		slog.Int("total_skipped", run.TotalSkipped),
		slog.Int("tokens_rotated", run.TokensRotated),
		slog.Bool("credentials_persisted", run.CredentialsPersisted),
	)
	return run
}

// groupAccounts buckets the configured accounts by credential group,
// preserving configuration order within each group.
func (s *SyncOrchestratorService) groupAccounts() map[string][]domain.AccountConfig {
	groups := make(map[string][]domain.AccountConfig)
	for _, acct := range s.accounts {
		groups[acct.GroupID] = append(groups[acct.GroupID], acct)
	}
	return groups
}
