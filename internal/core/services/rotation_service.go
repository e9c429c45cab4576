package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
)

// CredentialRotationService merges rotated refresh tokens back into the
// credential store at the end of a run. The store is read once per run and
// written once; groups that did not rotate are carried through untouched, so a
// store edited externally mid-run keeps its unrelated entries.
type CredentialRotationService struct {
	BaseService
	store clients.CredentialStore
}

// NewCredentialRotationService creates a new credential rotation service.
func NewCredentialRotationService(store clients.CredentialStore) *CredentialRotationService {
	return &CredentialRotationService{store: store}
}

var _ portssvc.CredentialRotationSvc = (*CredentialRotationService)(nil)

// PersistRotations writes the rotated tokens through a read-merge-write
// sequence. A store that cannot be read or parsed aborts the persist entirely;
// guessing a shape and writing it would destroy tokens for groups this run
// never touched.
func (s *CredentialRotationService) PersistRotations(ctx context.Context, rotated map[string]string) error {
	if len(rotated) == 0 {
		s.LogDebug(ctx, "No token rotations to persist")
		return nil
	}

	current, version, err := s.store.Read(ctx)
	if err != nil {
		s.logUnpersistedTokens(ctx, rotated)
		return &apperrors.PersistError{Op: "read", Err: err}
	}

	merged := make(map[string]string, len(current)+len(rotated))
	for groupID, token := range current {
		merged[groupID] = token
	}
	for groupID, token := range rotated {
		merged[groupID] = token
	}

	if err := s.store.Write(ctx, merged, version); err != nil {
		s.logUnpersistedTokens(ctx, rotated)
		return &apperrors.PersistError{Op: "write", Err: err}
	}

	s.LogInfo(ctx, "Persisted rotated credentials", slog.Int("groups", len(rotated)))
	return nil
}

// SeedMissing bootstraps the credential store from configuration on startup.
// The bootstrap value is either a bare refresh token or a JSON object mapping
// group ids to tokens. Groups that already hold a stored token are never
// overwritten: the stored token is the live one and the configured value, once
// exchanged, is dead.
func (s *CredentialRotationService) SeedMissing(ctx context.Context, groups []string, bootstrap string) error {
	bootstrap = strings.TrimSpace(bootstrap)
	if bootstrap == "" {
		return nil
	}

	current, version, err := s.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading credential store for seeding: %w", err)
	}

	var missing []string
	for _, groupID := range groups {
		if current[groupID] == "" {
			missing = append(missing, groupID)
		}
	}
	if len(missing) == 0 {
		s.LogInfo(ctx, "All credential groups already stored, ignoring bootstrap token")
		return nil
	}

	seeds, err := parseBootstrap(bootstrap, missing)
	if err != nil {
		return err
	}

	merged := make(map[string]string, len(current)+len(seeds))
	for groupID, token := range current {
		merged[groupID] = token
	}
	for groupID, token := range seeds {
		merged[groupID] = token
	}

	if err := s.store.Write(ctx, merged, version); err != nil {
		return fmt.Errorf("seeding credential store: %w", err)
	}
	s.LogInfo(ctx, "Seeded credential store from configuration", slog.Int("groups", len(seeds)))
	return nil
}

// parseBootstrap resolves the configured bootstrap value against the groups
// that need seeding. A bare token is inherently single-use, so it can only
// serve one group; seeding it under several would lock out all but the first
// to exchange it.
func parseBootstrap(bootstrap string, missing []string) (map[string]string, error) {
	if strings.HasPrefix(bootstrap, "{") {
		var byGroup map[string]string
		if err := json.Unmarshal([]byte(bootstrap), &byGroup); err != nil {
			return nil, fmt.Errorf("parsing bootstrap token map: %w", err)
		}
		seeds := make(map[string]string, len(missing))
		for _, groupID := range missing {
			if token := byGroup[groupID]; token != "" {
				seeds[groupID] = token
			}
		}
		if len(seeds) == 0 {
			return nil, fmt.Errorf("bootstrap token map names none of the unseeded groups %v", missing)
		}
		return seeds, nil
	}

	if len(missing) > 1 {
		return nil, fmt.Errorf("a single bootstrap token cannot seed %d groups %v; provide a JSON group-to-token map", len(missing), missing)
	}
	return map[string]string{missing[0]: bootstrap}, nil
}

// logUnpersistedTokens surfaces rotated tokens that could not be written so an
// operator can seed the store by hand. Without this the old, already
// invalidated token would be presented on the next run and the group locked out.
func (s *CredentialRotationService) logUnpersistedTokens(ctx context.Context, rotated map[string]string) {
	for groupID, token := range rotated {
		s.LogWarn(ctx, "Rotated token was NOT persisted; update the credential store manually",
			slog.String("group_id", groupID),
			slog.String("token", token),
		)
	}
}
