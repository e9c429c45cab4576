package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerDateLayout is the calendar format the ledger expects for transaction dates.
const LedgerDateLayout = "2006-01-02"

// TransactionStatus is the ledger-side clearing state stamped on submitted transactions.
type TransactionStatus string

const (
	StatusCleared   TransactionStatus = "cleared"
	StatusUncleared TransactionStatus = "uncleared"
)

// NormalizedTransaction is the ledger-facing shape of one brokerage activity.
// Instances are created by the activity mapper and never mutated afterwards.
type NormalizedTransaction struct {
	AccountRef string            `json:"accountRef"` // ledger asset/account this belongs to
	Date       time.Time         `json:"date"`
	Amount     decimal.Decimal   `json:"amount"` // signed: outflows negative, inflows positive
	Payee      string            `json:"payee"`
	Currency   string            `json:"currency"`
	Notes      string            `json:"notes"`
	Status     TransactionStatus `json:"status"`
}

// DateString renders the transaction date in the ledger's calendar format.
func (t NormalizedTransaction) DateString() string {
	return t.Date.Format(LedgerDateLayout)
}

// DedupKey is a deterministic fingerprint of a normalized transaction, used to
// recognize activity already mirrored to the ledger in a previous run.
type DedupKey string

// Fingerprint derives the transaction's dedup key from account, date, amount
// and payee. Notes are deliberately excluded: free text drifts between systems
// and must never influence duplicate detection. The amount is rendered through
// decimal.String so that 12.50 and 12.5 produce the same key regardless of
// which side formatted it.
func (t NormalizedTransaction) Fingerprint() DedupKey {
	return DedupKey(t.AccountRef + "|" + t.DateString() + "|" + t.Amount.String() + "|" + t.Payee)
}
