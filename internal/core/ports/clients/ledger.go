package clients

import (
	"context"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerClient defines the capability the sync core needs from the
// personal-finance ledger API wrapper.
type LedgerClient interface {
	// ListExistingKeys returns the dedup keys of every ledger entry already
	// present for the account over the window. This listing is the source of
	// truth for duplicate suppression.
	ListExistingKeys(ctx context.Context, accountRef string, window domain.Window) (map[domain.DedupKey]struct{}, error)

	// SubmitTransaction inserts one transaction. Fails with
	// apperrors.ErrValidation when the ledger rejects the payload and
	// apperrors.ErrRateLimited after bounded backoff attempts.
	SubmitTransaction(ctx context.Context, txn domain.NormalizedTransaction) error

	// ResolveAssetRef resolves a symbolic asset name to the ledger's asset
	// identifier. Fails with apperrors.ErrNotFound when no asset matches.
	ResolveAssetRef(ctx context.Context, name string) (string, error)

	// UpdateAssetBalance pushes a fresh balance for the asset.
	UpdateAssetBalance(ctx context.Context, assetRef string, balance decimal.Decimal, currency string) error
}
