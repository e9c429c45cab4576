package services

import (
	"strings"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
)

// MapActivity normalizes one brokerage activity into the ledger-facing
// transaction shape. It is a pure function: no I/O, no mutation of raw, and it
// only fails on malformed input (missing date or amount), returning a
// MappingError naming the field so the caller can skip that single activity.
func MapActivity(raw domain.RawActivity, acct domain.AccountConfig) (domain.NormalizedTransaction, error) {
	// The transaction date drives the ledger entry; the settlement date is
	// deliberately ignored (it shifts with clearing delays and would break
	// fingerprint stability across fetches).
	date := raw.TransactionDate
	if date.IsZero() {
		date = raw.SettlementDate
	}
	if date.IsZero() {
		return domain.NormalizedTransaction{}, apperrors.NewMappingError("transactionDate")
	}
	if raw.NetAmount == nil {
		return domain.NormalizedTransaction{}, apperrors.NewMappingError("netAmount")
	}

	payee := raw.Description
	if payee == "" {
		payee = activityLabel(raw.Type)
	}

	currency := acct.Currency
	if raw.Currency != "" {
		currency = strings.ToLower(raw.Currency)
	}

	return domain.NormalizedTransaction{
		AccountRef: AccountReference(acct),
		Date:       date,
		Amount:     *raw.NetAmount,
		Payee:      payee,
		Currency:   currency,
		Notes:      buildNotes(raw, acct.AccountID),
		Status:     domain.StatusCleared,
	}, nil
}

// AccountReference is the ledger account/asset a mapped transaction belongs
// to: the configured ledger target when set, otherwise the brokerage account
// id under an "account:" prefix so it can never be mistaken for a numeric
// ledger asset id. Both sides of duplicate detection receive the same
// reference string, so the choice only has to be consistent, not pretty.
func AccountReference(acct domain.AccountConfig) string {
	if acct.LedgerTarget != "" {
		return acct.LedgerTarget
	}
	return "account:" + acct.AccountID
}

// buildNotes renders the derived context for a transaction. The activity type
// and source account always lead; instrument fields follow in a fixed order so
// notes are reproducible for the same input.
func buildNotes(raw domain.RawActivity, accountID string) string {
	parts := []string{
		"Type: " + activityLabel(raw.Type),
		"Account: " + accountID,
	}

	if raw.Symbol != "" {
		parts = append(parts, "Symbol: "+raw.Symbol)
	}
	if raw.Quantity != nil && !raw.Quantity.IsZero() {
		parts = append(parts, "Quantity: "+raw.Quantity.String())
	}
	if raw.Price != nil && !raw.Price.IsZero() {
		parts = append(parts, "Price: $"+raw.Price.String())
	}
	if raw.Commission != nil && !raw.Commission.IsZero() {
		parts = append(parts, "Commission: $"+raw.Commission.String())
	}

	return strings.Join(parts, " | ")
}

func activityLabel(t domain.ActivityType) string {
	if t == "" {
		return "Activity"
	}
	return string(t)
}
