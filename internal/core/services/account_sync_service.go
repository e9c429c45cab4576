package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
)

// AccountSyncService drives a single account through one sync pass: fetch the
// activity window, map, deduplicate against the ledger, submit what is new.
type AccountSyncService struct {
	BaseService
	brokerage    clients.BrokerageClient
	ledger       clients.LedgerClient
	history      clients.RunHistory
	pushBalances bool
}

// AccountSyncOption configures optional behaviour of the account sync service.
type AccountSyncOption func(*AccountSyncService)

// WithRunHistory attaches a recent-keys cache. The cache pre-seeds duplicate
// detection but never replaces the ledger-side key listing.
func WithRunHistory(h clients.RunHistory) AccountSyncOption {
	return func(s *AccountSyncService) { s.history = h }
}

// WithBalancePush enables pushing the account's reported balance to the ledger
// asset after a successful sync.
func WithBalancePush() AccountSyncOption {
	return func(s *AccountSyncService) { s.pushBalances = true }
}

// NewAccountSyncService creates a new account sync service.
func NewAccountSyncService(brokerage clients.BrokerageClient, ledger clients.LedgerClient, opts ...AccountSyncOption) *AccountSyncService {
	s := &AccountSyncService{
		brokerage: brokerage,
		ledger:    ledger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ portssvc.AccountSyncSvc = (*AccountSyncService)(nil)

// SyncAccount syncs one account over the window using token.
//
// Failure semantics: if the brokerage call fails before the token exchange
// completed, the whole account fails for this run and no token rotation is
// claimed (NextToken stays empty). Once the exchange completed, the rotated
// token is returned whatever else fails, because the provider genuinely
// consumed the presented one.
func (s *AccountSyncService) SyncAccount(ctx context.Context, acct domain.AccountConfig, token string, window domain.Window) domain.SyncResult {
	res := domain.SyncResult{AccountID: acct.AccountID}

	s.LogInfo(ctx, "Starting account sync",
		slog.String("account_id", acct.AccountID),
		slog.String("window_start", window.Start.Format(domain.LedgerDateLayout)),
		slog.String("window_end", window.End.Format(domain.LedgerDateLayout)),
	)

	fetch, err := s.brokerage.FetchActivities(ctx, acct.AccountID, token, window)
	// The exchange may have completed even when the fetch as a whole failed;
	// the rotated token must reach the caller either way, or the consumed
	// token's successor is lost and the group locked out.
	res.NextToken = fetch.NextToken
	if err != nil {
		res.Err = fmt.Errorf("fetching activities: %w", err)
		s.LogError(ctx, err, "Brokerage fetch failed", slog.String("account_id", acct.AccountID))
		return res
	}

	mapped := make([]domain.NormalizedTransaction, 0, len(fetch.Activities))
	for _, raw := range fetch.Activities {
		txn, err := MapActivity(raw, acct)
		if err != nil {
			res.MappingFailures++
			res.ItemErrors = append(res.ItemErrors, fmt.Sprintf("mapping activity %q: %v", raw.Description, err))
			s.LogWarn(ctx, "Skipping unmappable activity",
				slog.String("account_id", acct.AccountID),
				slog.String("error", err.Error()),
			)
			continue
		}
		mapped = append(mapped, txn)
	}

	accountRef := AccountReference(acct)
	existing, err := s.ledger.ListExistingKeys(ctx, accountRef, window)
	if err != nil {
		res.Err = fmt.Errorf("listing existing ledger keys: %w", err)
		s.LogError(ctx, err, "Ledger key listing failed", slog.String("account_id", acct.AccountID))
		return res
	}
	s.seedCachedKeys(ctx, accountRef, window, existing)

	var submitted []clients.KeyRecord
	for _, txn := range mapped {
		key := txn.Fingerprint()
		if _, dup := existing[key]; dup {
			res.SkippedDuplicates++
			s.LogDebug(ctx, "Skipping duplicate",
				slog.String("payee", txn.Payee),
				slog.String("date", txn.DateString()),
			)
			continue
		}
		// Claim the key before submitting so repeated activities within one
		// fetch collapse to a single submission.
		existing[key] = struct{}{}

		if err := s.ledger.SubmitTransaction(ctx, txn); err != nil {
			res.SubmitFailures++
			res.ItemErrors = append(res.ItemErrors, fmt.Sprintf("submitting %q on %s: %v", txn.Payee, txn.DateString(), err))
			s.LogWarn(ctx, "Transaction submission failed",
				slog.String("account_id", acct.AccountID),
				slog.String("payee", txn.Payee),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.NewTransactions++
		submitted = append(submitted, clients.KeyRecord{Key: key, Date: txn.Date})
	}

	if s.history != nil && len(submitted) > 0 {
		if err := s.history.SaveKeys(ctx, accountRef, submitted); err != nil {
			s.LogWarn(ctx, "Failed to cache submitted keys", slog.String("error", err.Error()))
		}
	}

	s.maybePushBalance(ctx, acct, fetch, &res)

	s.LogInfo(ctx, "Account sync finished",
		slog.String("account_id", acct.AccountID),
		slog.Int("new", res.NewTransactions),
		slog.Int("skipped", res.SkippedDuplicates),
		slog.Int("mapping_failures", res.MappingFailures),
		slog.Int("submit_failures", res.SubmitFailures),
	)
	return res
}

// seedCachedKeys merges recently cached keys into the ledger-derived set. Keys
// in the cache were submitted by a prior run, so treating them as existing is
// always safe; the ledger listing remains the authority.
func (s *AccountSyncService) seedCachedKeys(ctx context.Context, accountRef string, window domain.Window, existing map[domain.DedupKey]struct{}) {
	if s.history == nil {
		return
	}
	cached, err := s.history.RecentKeys(ctx, accountRef, window)
	if err != nil {
		s.LogWarn(ctx, "Recent-keys cache unavailable", slog.String("error", err.Error()))
		return
	}
	for _, key := range cached {
		existing[key] = struct{}{}
	}
}

func (s *AccountSyncService) maybePushBalance(ctx context.Context, acct domain.AccountConfig, fetch clients.ActivityFetchResult, res *domain.SyncResult) {
	if !s.pushBalances || fetch.Balance == nil || acct.LedgerTarget == "" {
		return
	}
	if err := s.ledger.UpdateAssetBalance(ctx, acct.LedgerTarget, *fetch.Balance, acct.Currency); err != nil {
		res.ItemErrors = append(res.ItemErrors, fmt.Sprintf("updating asset balance: %v", err))
		s.LogWarn(ctx, "Asset balance update failed",
			slog.String("account_id", acct.AccountID),
			slog.String("error", err.Error()),
		)
	}
}
