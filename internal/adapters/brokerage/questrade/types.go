package questrade

import (
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// tokenResponse is the payload of a successful refresh-token exchange. The
// refresh token in it replaces the one just presented, which the provider has
// already invalidated.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	APIServer    string `json:"api_server"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type activitiesResponse struct {
	Activities []activityJSON `json:"activities"`
}

type activityJSON struct {
	TradeDate       string          `json:"tradeDate"`
	TransactionDate string          `json:"transactionDate"`
	SettlementDate  string          `json:"settlementDate"`
	Action          string          `json:"action"`
	Symbol          string          `json:"symbol"`
	Description     string          `json:"description"`
	Currency        string          `json:"currency"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	GrossAmount     decimal.Decimal `json:"grossAmount"`
	Commission      decimal.Decimal `json:"commission"`
	NetAmount       decimal.Decimal `json:"netAmount"`
	Type            string          `json:"type"`
}

type balancesResponse struct {
	CombinedBalances []balanceJSON `json:"combinedBalances"`
}

type balanceJSON struct {
	Currency    string          `json:"currency"`
	TotalEquity decimal.Decimal `json:"totalEquity"`
}

// toDomain converts one wire activity into the core shape. The trade date is
// preferred over the transaction date when present; unparseable dates are left
// zero so the mapper can reject the single activity.
func (a activityJSON) toDomain() domain.RawActivity {
	raw := domain.RawActivity{
		TransactionDate: parseTimestamp(firstNonEmpty(a.TradeDate, a.TransactionDate)),
		SettlementDate:  parseTimestamp(a.SettlementDate),
		Currency:        a.Currency,
		Description:     a.Description,
		Type:            mapActivityType(a.Type),
		Symbol:          a.Symbol,
	}

	net := a.NetAmount
	raw.NetAmount = &net

	if !a.Quantity.IsZero() {
		q := a.Quantity
		raw.Quantity = &q
	}
	if !a.Price.IsZero() {
		p := a.Price
		raw.Price = &p
	}
	if !a.Commission.IsZero() {
		c := a.Commission
		raw.Commission = &c
	}
	return raw
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mapActivityType folds the provider's activity type vocabulary onto the core
// tagged variants.
func mapActivityType(t string) domain.ActivityType {
	switch t {
	case "Trades":
		return domain.ActivityTrade
	case "Dividends":
		return domain.ActivityDividend
	case "Interest":
		return domain.ActivityInterest
	case "Deposits":
		return domain.ActivityDeposit
	case "Withdrawals":
		return domain.ActivityWithdrawal
	case "Transfers":
		return domain.ActivityTransfer
	case "Fees and rebates":
		return domain.ActivityFee
	case "FX conversion":
		return domain.ActivityFX
	case "":
		return domain.ActivityOther
	default:
		// Pass unrecognized provider tags through verbatim; the mapper treats
		// the type as opaque text for notes.
		return domain.ActivityType(t)
	}
}
