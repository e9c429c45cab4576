package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/SscSPs/brokerage_sync_app/internal/adapters/brokerage/questrade"
	"github.com/SscSPs/brokerage_sync_app/internal/adapters/credstore/filestore"
	"github.com/SscSPs/brokerage_sync_app/internal/adapters/credstore/gcstore"
	"github.com/SscSPs/brokerage_sync_app/internal/adapters/history/sqlitestore"
	"github.com/SscSPs/brokerage_sync_app/internal/adapters/ledger/lunchmoney"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
	"github.com/SscSPs/brokerage_sync_app/internal/core/services"
	"github.com/SscSPs/brokerage_sync_app/internal/dto"
	"github.com/SscSPs/brokerage_sync_app/internal/handlers"
	"github.com/SscSPs/brokerage_sync_app/internal/middleware"
	"github.com/SscSPs/brokerage_sync_app/internal/platform/config"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := middleware.ContextWithLogger(context.Background(), logger)

	store, cleanup, err := buildCredentialStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize credential store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	httpc := &http.Client{Timeout: cfg.HTTPTimeout}

	brokerageOpts := []questrade.Option{questrade.WithHTTPClient(httpc)}
	if cfg.BrokerageLoginURL != "" {
		brokerageOpts = append(brokerageOpts, questrade.WithLoginURL(cfg.BrokerageLoginURL))
	}
	if cfg.PushBalances {
		brokerageOpts = append(brokerageOpts, questrade.WithBalanceFetch())
	}
	brokerage := questrade.NewClient(brokerageOpts...)

	ledgerOpts := []lunchmoney.Option{lunchmoney.WithHTTPClient(httpc)}
	if cfg.LedgerBaseURL != "" {
		ledgerOpts = append(ledgerOpts, lunchmoney.WithBaseURL(cfg.LedgerBaseURL))
	}
	ledger := lunchmoney.NewClient(cfg.LedgerAPIToken, ledgerOpts...)

	resolved, err := resolveLedgerTargets(ctx, cfg, ledger)
	if err != nil {
		logger.Error("Failed to resolve ledger targets", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var history clients.RunHistory
	if cfg.HistoryDBPath != "" {
		historyStore, err := sqlitestore.New(cfg.HistoryDBPath)
		if err != nil {
			logger.Error("Failed to open run history database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer historyStore.Close()
		history = historyStore
	}

	container := services.NewContainer(
		services.ContainerDeps{
			Brokerage: brokerage,
			Ledger:    ledger,
			Store:     store,
			History:   history,
		},
		services.ContainerSettings{
			Accounts:     cfg.AccountConfigs(resolved),
			WindowDays:   cfg.SyncDaysBack,
			GroupWorkers: cfg.SyncWorkers,
			PushBalances: cfg.PushBalances,
		},
	)

	if err := container.Rotation.SeedMissing(ctx, cfg.Groups, cfg.BrokerageRefreshToken); err != nil {
		logger.Error("Failed to seed credential store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.Serve {
		serve(cfg, container, logger)
		return
	}

	runOnce(ctx, container, logger)
}

// runOnce executes a single sync run and reports it on stdout, exiting
// non-zero on a failed run so schedulers can alert on it.
func runOnce(ctx context.Context, container *portssvc.ServiceContainer, logger *slog.Logger) {
	run := container.Orchestrator.Run(ctx)

	report, err := json.MarshalIndent(dto.ToRunReport(run), "", "  ")
	if err != nil {
		logger.Error("Failed to encode run report", slog.String("error", err.Error()))
		os.Exit(1)
	}
	os.Stdout.Write(append(report, '\n'))

	if run.Status == domain.RunFailure {
		os.Exit(1)
	}
}

func serve(cfg *config.Config, container *portssvc.ServiceContainer, logger *slog.Logger) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.StructuredLoggingMiddleware(logger))

	handlers.RegisterRoutes(r, cfg, container)

	logger.Info("Starting trigger server", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildCredentialStore picks the store backend from the CRED_STORE setting: a
// gs://bucket/object URL selects Cloud Storage, anything else is a local file path.
func buildCredentialStore(ctx context.Context, cfg *config.Config) (clients.CredentialStore, func(), error) {
	if bucket, object, ok := strings.Cut(strings.TrimPrefix(cfg.CredStore, "gs://"), "/"); ok && strings.HasPrefix(cfg.CredStore, "gs://") {
		store, err := gcstore.New(ctx, bucket, object)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return filestore.New(cfg.CredStore), func() {}, nil
}

// resolveLedgerTargets resolves symbolic ledger target names to asset ids
// once, at startup. An unresolvable name is a configuration error.
func resolveLedgerTargets(ctx context.Context, cfg *config.Config, ledger clients.LedgerClient) (map[string]string, error) {
	resolved := make(map[string]string)
	for _, acct := range cfg.Accounts {
		name := acct.LedgerTargetName
		if name == "" {
			continue
		}
		if _, done := resolved[name]; done {
			continue
		}
		ref, err := ledger.ResolveAssetRef(ctx, name)
		if err != nil {
			return nil, err
		}
		resolved[name] = ref
	}
	return resolved, nil
}
