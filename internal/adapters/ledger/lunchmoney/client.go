// Package lunchmoney wraps the Lunch Money REST API behind the core's
// LedgerClient port.
package lunchmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://dev.lunchmoney.app/v1"

	defaultRequestsPerSecond = 5
	defaultMaxRetries        = 3
	defaultHTTPTimeout       = 30 * time.Second
)

// Client is a Lunch Money API client implementing clients.LedgerClient.
type Client struct {
	baseURL    string
	token      string
	httpc      *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithRequestRate overrides the client-side request pacing.
func WithRequestRate(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithMaxRetries bounds retry attempts for rate-limited calls.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a Lunch Money client authenticated with the given API token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpc:      &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ clients.LedgerClient = (*Client)(nil)

// ListExistingKeys fetches the ledger's transactions for the account over the
// window and reduces them to dedup keys. Amounts come back as strings like
// "12.5000"; parsing them through decimal means the fingerprint here matches
// the one computed from brokerage data.
func (c *Client) ListExistingKeys(ctx context.Context, accountRef string, window domain.Window) (map[domain.DedupKey]struct{}, error) {
	q := url.Values{}
	q.Set("start_date", window.Start.Format(domain.LedgerDateLayout))
	q.Set("end_date", window.End.Format(domain.LedgerDateLayout))
	if id, ok := numericRef(accountRef); ok {
		q.Set("asset_id", strconv.FormatInt(id, 10))
	}

	var parsed transactionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/transactions?"+q.Encode(), nil, &parsed); err != nil {
		return nil, err
	}

	keys := make(map[domain.DedupKey]struct{}, len(parsed.Transactions))
	for _, t := range parsed.Transactions {
		date, err := time.Parse(domain.LedgerDateLayout, t.Date)
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(t.Amount)
		if err != nil {
			continue
		}
		key := domain.NormalizedTransaction{
			AccountRef: accountRef,
			Date:       date,
			Amount:     amount,
			Payee:      t.Payee,
		}.Fingerprint()
		keys[key] = struct{}{}
	}
	return keys, nil
}

// SubmitTransaction inserts a single transaction.
func (c *Client) SubmitTransaction(ctx context.Context, txn domain.NormalizedTransaction) error {
	assetID, _ := numericRef(txn.AccountRef)
	payload := insertRequest{
		Transactions: []insertTransactionJSON{toInsertJSON(txn, assetID)},
	}
	return c.doJSON(ctx, http.MethodPost, "/transactions", payload, nil)
}

// ResolveAssetRef finds the ledger asset whose name matches, case-insensitively.
func (c *Client) ResolveAssetRef(ctx context.Context, name string) (string, error) {
	var parsed assetsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/assets", nil, &parsed); err != nil {
		return "", err
	}
	for _, a := range parsed.Assets {
		if strings.EqualFold(a.Name, name) {
			return strconv.FormatInt(a.ID, 10), nil
		}
	}
	return "", fmt.Errorf("%w: no ledger asset named %q", apperrors.ErrNotFound, name)
}

// UpdateAssetBalance pushes a fresh balance for the asset.
func (c *Client) UpdateAssetBalance(ctx context.Context, assetRef string, balance decimal.Decimal, currency string) error {
	id, ok := numericRef(assetRef)
	if !ok {
		return fmt.Errorf("%w: asset reference %q is not a ledger asset id", apperrors.ErrValidation, assetRef)
	}
	payload := updateAssetRequest{Balance: balance.String(), Currency: currency}
	return c.doJSON(ctx, http.MethodPut, "/assets/"+strconv.FormatInt(id, 10), payload, nil)
}

// doJSON performs an authenticated request with bounded retry on throttling.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*500*time.Millisecond); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("calling lunch money api: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out != nil {
				err = json.NewDecoder(resp.Body).Decode(out)
				resp.Body.Close()
				if err != nil {
					return fmt.Errorf("decoding response: %w", err)
				}
				return nil
			}
			resp.Body.Close()
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: lunch money api throttled", apperrors.ErrRateLimited)
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			return fmt.Errorf("%w: lunch money api token rejected", apperrors.ErrAuth)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			msg := readBodyPrefix(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w: lunch money rejected request (status %d): %s", apperrors.ErrValidation, resp.StatusCode, msg)
		default:
			msg := readBodyPrefix(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("lunch money api returned status %d: %s", resp.StatusCode, msg)
		}
	}
	return lastErr
}

// numericRef parses accountRef as a ledger asset id. References that are not
// numeric (symbolic names or raw brokerage account ids) carry no asset filter.
func numericRef(ref string) (int64, bool) {
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func readBodyPrefix(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
