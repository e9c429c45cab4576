package clients

import (
	"context"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ActivityFetchResult is what one authenticated activities call yields. The
// provider invalidates the presented refresh token on use, so every successful
// call carries the group's next token alongside the activities.
type ActivityFetchResult struct {
	Activities []domain.RawActivity

	// NextToken is the replacement refresh token minted by the exchange.
	NextToken string

	// Balance is the account's combined balance when the provider reports one,
	// used for the optional ledger asset balance push. Nil when unavailable.
	Balance *decimal.Decimal
}

// BrokerageClient defines the capability the sync core needs from the
// brokerage API wrapper.
type BrokerageClient interface {
	// FetchActivities retrieves raw activities for the account over the window,
	// exchanging token for its successor in the process.
	//
	// Fails with apperrors.ErrAuth when the token is invalid or expired (do not
	// retry with the same token), apperrors.ErrRateLimited after bounded
	// backoff attempts are exhausted, and apperrors.ErrRange when the window
	// exceeds the provider's maximum span.
	FetchActivities(ctx context.Context, accountID, token string, window domain.Window) (ActivityFetchResult, error)
}
