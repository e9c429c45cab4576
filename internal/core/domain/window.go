package domain

import (
	"fmt"
	"time"
)

// MaxWindowDays is the provider's per-request activity range limit.
const MaxWindowDays = 31

// Window is the bounded date range requested from the brokerage in one call.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindowEndingAt builds a window of at most MaxWindowDays days ending at end.
func NewWindowEndingAt(end time.Time, days int) Window {
	if days > MaxWindowDays {
		days = MaxWindowDays
	}
	if days < 1 {
		days = 1
	}
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// Days returns the window length in whole days, rounded up.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24 + 0.999)
}

// Validate rejects inverted windows and windows longer than the provider allows.
func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end %s is not after start %s", w.End.Format(LedgerDateLayout), w.Start.Format(LedgerDateLayout))
	}
	if w.Days() > MaxWindowDays {
		return fmt.Errorf("window spans %d days, provider limit is %d", w.Days(), MaxWindowDays)
	}
	return nil
}
