package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AccountEntry is one configured brokerage account as it appears in the
// SYNC_ACCOUNTS JSON document.
type AccountEntry struct {
	AccountID string `json:"accountID" validate:"required"`
	GroupID   string `json:"groupID" validate:"required"`
	// LedgerTarget is the ledger asset id for this account's transactions.
	LedgerTarget string `json:"ledgerTarget"`
	// LedgerTargetName is resolved to an asset id against the ledger at
	// startup. Mutually exclusive with LedgerTarget.
	LedgerTargetName string `json:"ledgerTargetName" validate:"excluded_with=LedgerTarget"`
}

// Config holds application configuration.
type Config struct {
	BrokerageLoginURL string
	LedgerBaseURL     string
	LedgerAPIToken    string `validate:"required"`

	// BrokerageRefreshToken seeds the credential store on first start: either a
	// bare refresh token (valid when exactly one group needs seeding) or a JSON
	// object mapping group ids to tokens. Ignored for groups already stored.
	BrokerageRefreshToken string

	Accounts []AccountEntry `validate:"required,min=1,dive"`
	// Groups is the declared credential-group id set. Every account must
	// reference a declared group and every declared group must own at least
	// one account.
	Groups []string `validate:"required,min=1"`

	CredStore      string `validate:"required"`
	HistoryDBPath  string
	SyncDaysBack   int `validate:"min=1,max=31"`
	SyncWorkers    int `validate:"min=1"`
	LedgerCurrency string
	PushBalances   bool
	HTTPTimeout    time.Duration

	Serve        bool
	Port         string
	SyncRate     string // ulule/limiter formatted rate for the trigger endpoint
	IsProduction bool
}

// LoadConfig loads configuration from environment variables and .env file if
// present. Malformed account or group configuration is a startup-time fatal
// error, never a per-run one.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("BROKERAGE_LOGIN_URL", "")
	viper.SetDefault("BROKERAGE_REFRESH_TOKEN", "")
	viper.SetDefault("LEDGER_BASE_URL", "")
	viper.SetDefault("LEDGER_API_TOKEN", "")
	viper.SetDefault("SYNC_ACCOUNTS", "")
	viper.SetDefault("SYNC_GROUPS", "")
	viper.SetDefault("CRED_STORE", "credentials.json")
	viper.SetDefault("HISTORY_DB", "")
	viper.SetDefault("SYNC_DAYS_BACK", domain.MaxWindowDays)
	viper.SetDefault("SYNC_WORKERS", 4)
	viper.SetDefault("LEDGER_CURRENCY", "cad")
	viper.SetDefault("PUSH_BALANCES", false)
	viper.SetDefault("HTTP_TIMEOUT", "30s")
	viper.SetDefault("SERVE", false)
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("SYNC_RATE", "5-M")
	viper.SetDefault("IS_PRODUCTION", false)

	viper.AutomaticEnv()

	cfg := &Config{
		BrokerageLoginURL:     viper.GetString("BROKERAGE_LOGIN_URL"),
		BrokerageRefreshToken: viper.GetString("BROKERAGE_REFRESH_TOKEN"),
		LedgerBaseURL:         viper.GetString("LEDGER_BASE_URL"),
		LedgerAPIToken:        viper.GetString("LEDGER_API_TOKEN"),
		CredStore:             viper.GetString("CRED_STORE"),
		HistoryDBPath:         viper.GetString("HISTORY_DB"),
		LedgerCurrency:        viper.GetString("LEDGER_CURRENCY"),
		PushBalances:          viper.GetBool("PUSH_BALANCES"),
		Serve:                 viper.GetBool("SERVE"),
		Port:                  viper.GetString("PORT"),
		SyncRate:              viper.GetString("SYNC_RATE"),
		IsProduction:          viper.GetBool("IS_PRODUCTION"),
	}

	cfg.SyncDaysBack = viper.GetInt("SYNC_DAYS_BACK")
	if cfg.SyncDaysBack > domain.MaxWindowDays {
		slog.Warn("SYNC_DAYS_BACK exceeds provider limit, capping",
			slog.Int("requested", cfg.SyncDaysBack),
			slog.Int("capped_to", domain.MaxWindowDays),
		)
		cfg.SyncDaysBack = domain.MaxWindowDays
	}

	cfg.SyncWorkers = viper.GetInt("SYNC_WORKERS")
	if cfg.SyncWorkers < 1 {
		cfg.SyncWorkers = 4
		slog.Warn("Invalid SYNC_WORKERS, using default", slog.Int("default", cfg.SyncWorkers))
	}

	timeoutStr := viper.GetString("HTTP_TIMEOUT")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 30 * time.Second
		slog.Warn("Invalid HTTP_TIMEOUT, using default",
			slog.String("value", timeoutStr),
			slog.Duration("default", timeout),
		)
	}
	cfg.HTTPTimeout = timeout

	accountsJSON := viper.GetString("SYNC_ACCOUNTS")
	if accountsJSON == "" {
		return nil, fmt.Errorf("SYNC_ACCOUNTS environment variable is required")
	}
	if err := json.Unmarshal([]byte(accountsJSON), &cfg.Accounts); err != nil {
		return nil, fmt.Errorf("parsing SYNC_ACCOUNTS: %w", err)
	}

	groupsStr := viper.GetString("SYNC_GROUPS")
	if groupsStr != "" {
		for _, g := range strings.Split(groupsStr, ",") {
			if g = strings.TrimSpace(g); g != "" {
				cfg.Groups = append(cfg.Groups, g)
			}
		}
	} else {
		// Derive the group set from the accounts when not declared explicitly.
		seen := make(map[string]bool)
		for _, acct := range cfg.Accounts {
			if acct.GroupID != "" && !seen[acct.GroupID] {
				seen[acct.GroupID] = true
				cfg.Groups = append(cfg.Groups, acct.GroupID)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate enforces struct-level constraints plus the cross references between
// accounts and credential groups.
func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	declared := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		declared[g] = true
	}

	used := make(map[string]bool)
	seenAccounts := make(map[string]bool)
	for _, acct := range c.Accounts {
		if seenAccounts[acct.AccountID] {
			return fmt.Errorf("account %q is configured more than once", acct.AccountID)
		}
		seenAccounts[acct.AccountID] = true

		if !declared[acct.GroupID] {
			return fmt.Errorf("account %q references unknown credential group %q", acct.AccountID, acct.GroupID)
		}
		used[acct.GroupID] = true
	}

	for _, g := range c.Groups {
		if !used[g] {
			return fmt.Errorf("credential group %q has no accounts", g)
		}
	}
	return nil
}

// AccountConfigs converts the configured entries into the core's account
// shape. Symbolic ledger targets are looked up in resolvedTargets, which the
// caller fills by resolving names against the ledger at startup.
func (c *Config) AccountConfigs(resolvedTargets map[string]string) []domain.AccountConfig {
	accounts := make([]domain.AccountConfig, 0, len(c.Accounts))
	for _, entry := range c.Accounts {
		target := entry.LedgerTarget
		if target == "" && entry.LedgerTargetName != "" {
			target = resolvedTargets[entry.LedgerTargetName]
		}
		accounts = append(accounts, domain.AccountConfig{
			AccountID:    entry.AccountID,
			GroupID:      entry.GroupID,
			LedgerTarget: target,
			Currency:     c.LedgerCurrency,
		})
	}
	return accounts
}
