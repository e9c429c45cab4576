package clients

import (
	"context"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
)

// KeyRecord pairs a dedup key with its transaction date so the cache can be
// queried by window.
type KeyRecord struct {
	Key  domain.DedupKey
	Date time.Time
}

// RunHistory records run outcomes and caches recently submitted dedup keys.
// The key cache is strictly an optimization layered on top of the ledger-side
// key listing; it is never the sole dedup authority. All operations are best
// effort from the orchestrator's point of view.
type RunHistory interface {
	// RecordRun stores the aggregate outcome of one run.
	RecordRun(ctx context.Context, run domain.RunResult) error

	// RecentKeys returns cached dedup keys previously submitted for the
	// account within the window.
	RecentKeys(ctx context.Context, accountRef string, window domain.Window) ([]domain.DedupKey, error)

	// SaveKeys caches dedup keys submitted this run.
	SaveKeys(ctx context.Context, accountRef string, keys []KeyRecord) error
}
