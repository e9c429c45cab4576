package domain_test

import (
	"testing"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	assert.NoError(t, err)
	return d
}

func TestFingerprint_Deterministic(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	a := domain.NormalizedTransaction{
		AccountRef: "42",
		Date:       date,
		Amount:     mustDecimal(t, "12.50"),
		Payee:      "DIV",
	}
	b := domain.NormalizedTransaction{
		AccountRef: "42",
		Date:       date,
		Amount:     mustDecimal(t, "12.50"),
		Payee:      "DIV",
	}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_IndependentOfNotes(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	a := domain.NormalizedTransaction{
		AccountRef: "42",
		Date:       date,
		Amount:     mustDecimal(t, "-51.00"),
		Payee:      "XYZ purchase",
		Notes:      "Type: Trade | Symbol: XYZ",
	}
	b := a
	b.Notes = "completely different notes text"
	b.Status = domain.StatusUncleared

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_AmountFormattingInsensitive(t *testing.T) {
	// The brokerage reports 12.5, the ledger echoes back "12.5000". Both must
	// collapse to one key or every prior submission looks new again.
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	a := domain.NormalizedTransaction{
		AccountRef: "42",
		Date:       date,
		Amount:     mustDecimal(t, "12.5"),
		Payee:      "DIV",
	}
	b := a
	b.Amount = mustDecimal(t, "12.5000")

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_DistinguishesDistinctEvents(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	base := domain.NormalizedTransaction{
		AccountRef: "42",
		Date:       date,
		Amount:     mustDecimal(t, "12.50"),
		Payee:      "DIV",
	}

	differentAmount := base
	differentAmount.Amount = mustDecimal(t, "12.51")
	assert.NotEqual(t, base.Fingerprint(), differentAmount.Fingerprint())

	differentDate := base
	differentDate.Date = date.AddDate(0, 0, 1)
	assert.NotEqual(t, base.Fingerprint(), differentDate.Fingerprint())

	differentAccount := base
	differentAccount.AccountRef = "43"
	assert.NotEqual(t, base.Fingerprint(), differentAccount.Fingerprint())

	differentPayee := base
	differentPayee.Payee = "INT"
	assert.NotEqual(t, base.Fingerprint(), differentPayee.Fingerprint())
}

func TestWindow_Validate(t *testing.T) {
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	ok := domain.Window{Start: end.AddDate(0, 0, -30), End: end}
	assert.NoError(t, ok.Validate())

	tooLong := domain.Window{Start: end.AddDate(0, 0, -45), End: end}
	assert.Error(t, tooLong.Validate())

	inverted := domain.Window{Start: end, End: end.AddDate(0, 0, -1)}
	assert.Error(t, inverted.Validate())
}

func TestNewWindowEndingAt_CapsAtProviderLimit(t *testing.T) {
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	w := domain.NewWindowEndingAt(end, 90)
	assert.Equal(t, domain.MaxWindowDays, w.Days())

	w = domain.NewWindowEndingAt(end, 7)
	assert.Equal(t, 7, w.Days())
}
