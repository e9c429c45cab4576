package domain

// CredentialGroup names a set of accounts authenticated through one shared
// provider login. Exactly one live refresh token exists per group at any time;
// the token value present in the credential store at the start of a run is the
// only one guaranteed usable, because the provider invalidates a token the
// instant it is exchanged.
type CredentialGroup struct {
	GroupID      string   `json:"groupID"`
	CurrentToken string   `json:"-"` // never serialized into reports or logs
	AccountIDs   []string `json:"accountIDs"`
}

// AccountConfig binds one brokerage account to its credential group and its
// ledger destination. Built from configuration at startup; read-only during a run.
type AccountConfig struct {
	AccountID    string `json:"accountID" validate:"required"`
	GroupID      string `json:"groupID" validate:"required"`
	LedgerTarget string `json:"ledgerTarget"` // ledger asset id or name; optional
	Currency     string `json:"currency"`     // ledger currency for mapped transactions
}
