package domain

import "time"

// RunStatus classifies the outcome of a whole sync run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailure RunStatus = "failure"
)

// SyncResult is the per-account outcome of one sync pass.
type SyncResult struct {
	AccountID         string `json:"accountID"`
	NewTransactions   int    `json:"newTransactions"`
	SkippedDuplicates int    `json:"skippedDuplicates"`
	MappingFailures   int    `json:"mappingFailures"`
	SubmitFailures    int    `json:"submitFailures"`

	// NextToken is the rotated refresh token observed on this account's fetch.
	// Empty when the brokerage call failed before the exchange completed, in
	// which case the group's previous token is still the live one.
	NextToken string `json:"-"`

	// ItemErrors records per-activity and per-submission failures that were
	// contained within the account. Nothing is silently dropped.
	ItemErrors []string `json:"itemErrors,omitempty"`

	// Err is set when the account as a whole failed (brokerage unreachable,
	// ledger listing unavailable). Item-level failures do not set it.
	Err error `json:"-"`
}

// Failed reports whether the account failed as a whole.
func (r SyncResult) Failed() bool {
	return r.Err != nil
}

// RunResult aggregates one run across all configured accounts. It exists only
// for the duration of the run's reporting; nothing in it is persisted beyond
// the optional run-history record.
type RunResult struct {
	RunID      string    `json:"runID"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Accounts map[string]SyncResult `json:"accounts"`

	AccountsProcessed int `json:"accountsProcessed"`
	TotalNew          int `json:"totalNew"`
	TotalSkipped      int `json:"totalSkipped"`

	// TokensRotated counts distinct credential groups whose token rotated this
	// run, whether or not the rotation could be persisted.
	TokensRotated int `json:"tokensRotated"`

	// CredentialsPersisted is false when the store write failed after an
	// in-memory rotation, the run's most severe failure mode.
	CredentialsPersisted bool `json:"credentialsPersisted"`

	Status RunStatus `json:"status"`

	// PersistErr carries the credential-store failure, if any.
	PersistErr error `json:"-"`
}
