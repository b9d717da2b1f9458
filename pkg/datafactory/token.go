package datafactory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

// tokenSkew refreshes tokens a little before their reported expiry.
const tokenSkew = 60 * time.Second

// TokenSource fetches and caches AAD client-credential tokens for the
// management API. Safe for concurrent use.
type TokenSource struct {
	cfg    Config
	client *http.Client
	logger ectologger.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a token source for the configured service principal.
func NewTokenSource(cfg Config, client *http.Client, logger ectologger.Logger) *TokenSource {
	return &TokenSource{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// Token returns a bearer token, refreshing the cached one when it is within
// the skew window of expiring.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiresAt.Add(-tokenSkew)) {
		return ts.token, nil
	}

	token, expiresIn, err := ts.fetch(ctx)
	if err != nil {
		return "", err
	}

	ts.token = token
	ts.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	ts.logger.WithContext(ctx).Debugf("Refreshed management API token, expires in %ds", expiresIn)

	return ts.token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (ts *TokenSource) fetch(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.cfg.ClientID)
	form.Set("client_secret", ts.cfg.ClientSecret)
	form.Set("resource", ts.cfg.Endpoint)

	tokenURL := fmt.Sprintf("%s/%s/oauth2/token", strings.TrimRight(ts.cfg.LoginEndpoint, "/"), ts.cfg.TenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		ts.logger.WithContext(ctx).WithError(err).Error("Token request failed")
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token request returned %d", resp.StatusCode)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, fmt.Errorf("failed to parse token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", 0, fmt.Errorf("token response contained no access token")
	}

	expiresIn, err := strconv.ParseInt(parsed.ExpiresIn, 10, 64)
	if err != nil || expiresIn <= 0 {
		expiresIn = 3600
	}

	return parsed.AccessToken, expiresIn, nil
}
