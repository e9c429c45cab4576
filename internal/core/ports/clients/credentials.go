package clients

import "context"

// StoreVersion is the opaque version a CredentialStore read returns, presented
// back on write for optimistic concurrency. Zero is the version of a store
// that does not exist yet.
type StoreVersion int64

// CredentialStore is a versioned key-value store holding one refresh token per
// credential group. Implementations must make Write atomic: the store is
// either fully replaced or untouched, never left partial.
type CredentialStore interface {
	// Read returns the full group→token mapping and the store's current version.
	// A missing store reads as an empty mapping at version zero; a store that
	// exists but cannot be parsed is an error, never an empty result.
	Read(ctx context.Context) (map[string]string, StoreVersion, error)

	// Write atomically replaces the store contents. Fails with
	// apperrors.ErrConflict when the store changed since the presented version
	// was read.
	Write(ctx context.Context, tokens map[string]string, version StoreVersion) error
}
