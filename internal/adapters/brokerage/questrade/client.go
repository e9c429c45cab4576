// Package questrade wraps the Questrade REST API behind the core's
// BrokerageClient port. Questrade's OAuth refresh tokens are single-use: every
// exchange invalidates the presented token and mints a successor, so the
// client surfaces the new token on every fetch and never retries an exchange.
package questrade

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/apperrors"
	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	"github.com/SscSPs/brokerage_sync_app/internal/core/ports/clients"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultLoginURL   = "https://login.questrade.com"
	tokenPath         = "/oauth2/token"
	activitiesPathFmt = "/v1/accounts/%s/activities"
	balancesPathFmt   = "/v1/accounts/%s/balances"

	// Questrade allows 20 requests/second on account calls; stay well under.
	defaultRequestsPerSecond = 5
	defaultMaxRetries        = 3
	defaultHTTPTimeout       = 30 * time.Second

	requestTimeLayout = "2006-01-02T15:04:05-07:00"
)

// Client is a Questrade API client implementing clients.BrokerageClient.
type Client struct {
	loginURL      string
	httpc         *http.Client
	limiter       *rate.Limiter
	maxRetries    int
	fetchBalances bool
}

// Option configures the client.
type Option func(*Client)

// WithLoginURL overrides the OAuth login host, for tests and the practice environment.
func WithLoginURL(u string) Option {
	return func(c *Client) { c.loginURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithRequestRate overrides the client-side request pacing.
func WithRequestRate(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithMaxRetries bounds retry attempts for rate-limited API calls.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBalanceFetch also retrieves the account's combined balance on each fetch.
func WithBalanceFetch() Option {
	return func(c *Client) { c.fetchBalances = true }
}

// NewClient creates a Questrade client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		loginURL:   defaultLoginURL,
		httpc:      &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ clients.BrokerageClient = (*Client)(nil)

// FetchActivities exchanges token and retrieves the account's activities over
// the window. The returned NextToken must be persisted by the caller; the
// presented token is dead the moment the exchange succeeds.
func (c *Client) FetchActivities(ctx context.Context, accountID, token string, window domain.Window) (clients.ActivityFetchResult, error) {
	var result clients.ActivityFetchResult

	if window.Days() > domain.MaxWindowDays {
		return result, fmt.Errorf("%w: %d days requested, maximum %d", apperrors.ErrRange, window.Days(), domain.MaxWindowDays)
	}

	session, err := c.exchangeToken(ctx, token)
	if err != nil {
		return result, err
	}
	result.NextToken = session.RefreshToken

	activities, err := c.getActivities(ctx, session, accountID, window)
	if err != nil {
		// The exchange already happened; hand the rotated token back with the
		// error so it is not lost.
		return result, err
	}
	result.Activities = activities

	if c.fetchBalances {
		// Balance is supplementary; a failure here must not fail the fetch.
		result.Balance, _ = c.getBalance(ctx, session, accountID)
	}
	return result, nil
}

// exchangeToken swaps the single-use refresh token for an API session. It
// performs exactly one attempt: retrying an exchange would present an
// already-consumed token and lock the credential group out.
func (c *Client) exchangeToken(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("grant_type", "refresh_token")
	q.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL+tokenPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchanging refresh token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: token exchange rejected with status %d", apperrors.ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: token exchange throttled", apperrors.ErrRateLimited)
	default:
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, readBodyPrefix(resp.Body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.APIServer == "" {
		return nil, fmt.Errorf("token response missing required fields")
	}
	tok.APIServer = strings.TrimRight(tok.APIServer, "/")
	return &tok, nil
}

func (c *Client) getActivities(ctx context.Context, session *tokenResponse, accountID string, window domain.Window) ([]domain.RawActivity, error) {
	q := url.Values{}
	q.Set("startTime", window.Start.Format(requestTimeLayout))
	q.Set("endTime", window.End.Format(requestTimeLayout))
	endpoint := session.APIServer + fmt.Sprintf(activitiesPathFmt, accountID) + "?" + q.Encode()

	var parsed activitiesResponse
	if err := c.getJSON(ctx, session.AccessToken, endpoint, &parsed); err != nil {
		return nil, err
	}

	activities := make([]domain.RawActivity, 0, len(parsed.Activities))
	for _, a := range parsed.Activities {
		activities = append(activities, a.toDomain())
	}
	return activities, nil
}

func (c *Client) getBalance(ctx context.Context, session *tokenResponse, accountID string) (*decimal.Decimal, error) {
	endpoint := session.APIServer + fmt.Sprintf(balancesPathFmt, accountID)

	var parsed balancesResponse
	if err := c.getJSON(ctx, session.AccessToken, endpoint, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.CombinedBalances) == 0 {
		return nil, nil
	}
	b := parsed.CombinedBalances[0].TotalEquity
	return &b, nil
}

// getJSON performs an authenticated GET with bounded retry on throttling. The
// access token, unlike the refresh token, is reusable, so retries are safe here.
func (c *Client) getJSON(ctx context.Context, accessToken, endpoint string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffDelay(attempt)); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("calling questrade api: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err = json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			return nil
		case http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: questrade api throttled", apperrors.ErrRateLimited)
			continue
		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%w: questrade api rejected access token", apperrors.ErrAuth)
		default:
			body := readBodyPrefix(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("questrade api returned status %d: %s", resp.StatusCode, body)
		}
	}
	return lastErr
}

func backoffDelay(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
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
