package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType tags a brokerage activity with its kind.
type ActivityType string

const (
	ActivityTrade      ActivityType = "Trade"
	ActivityDividend   ActivityType = "Dividend"
	ActivityInterest   ActivityType = "Interest"
	ActivityTransfer   ActivityType = "Transfer"
	ActivityFee        ActivityType = "Fee"
	ActivityDeposit    ActivityType = "Deposit"
	ActivityWithdrawal ActivityType = "Withdrawal"
	ActivityFX         ActivityType = "FX conversion"
	ActivityOther      ActivityType = "Other"
)

// RawActivity is a single brokerage-reported event for an account, as returned
// by the provider. All activity kinds share the base projection (dates, net
// amount, description); trade-shaped activities additionally carry the traded
// instrument fields. Optional numeric fields use pointers so "absent" is
// distinguishable from zero.
type RawActivity struct {
	TransactionDate time.Time        `json:"transactionDate"`
	SettlementDate  time.Time        `json:"settlementDate"`
	NetAmount       *decimal.Decimal `json:"netAmount"`
	Currency        string           `json:"currency"`
	Description     string           `json:"description"`
	Type            ActivityType     `json:"type"`

	// Trade-specific fields. Symbol empty and pointers nil for cash movements.
	Symbol     string           `json:"symbol,omitempty"`
	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Commission *decimal.Decimal `json:"commission,omitempty"`
}

// HasInstrument reports whether the activity carries any traded-instrument
// detail worth surfacing in ledger notes.
func (a RawActivity) HasInstrument() bool {
	return a.Symbol != "" || a.Quantity != nil || a.Price != nil || a.Commission != nil
}
