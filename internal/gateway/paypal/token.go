package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tokenSafetyMargin: refresh before the provider actually expires the token
// (the provider issues 1h tokens; the original integration refreshed at 55m).
const tokenSafetyMargin = 5 * time.Minute

// Authenticate forces a token exchange, bypassing the cache. Startup wiring
// calls this once as a connection self-test.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshTokenLocked(ctx)
}

// bearerToken returns a cached token or refreshes it. The mutex is held
// across the refresh so concurrent callers await the same exchange instead
// of issuing duplicate token requests.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}
	if err := c.refreshTokenLocked(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

// invalidateToken drops the cache after a 401 so the next call re-exchanges.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExp = time.Time{}
	c.mu.Unlock()
}

func (c *Client) refreshTokenLocked(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.hc.Do(req)
	providerDuration.WithLabelValues("token").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		providerRequests.WithLabelValues("token", "network_error").Inc()
		return fmt.Errorf("%w: token exchange: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		providerRequests.WithLabelValues("token", "network_error").Inc()
		return fmt.Errorf("%w: token exchange read: %v", ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		providerRequests.WithLabelValues("token", "auth_error").Inc()
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		desc := er.ErrorDescription
		if desc == "" {
			desc = er.Error
		}
		return fmt.Errorf("%w: %s (status %d)", ErrAuth, desc, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		providerRequests.WithLabelValues("token", "auth_error").Inc()
		return fmt.Errorf("%w: malformed token response", ErrAuth)
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl > tokenSafetyMargin {
		ttl -= tokenSafetyMargin
	}
	c.token = tr.AccessToken
	c.tokenExp = time.Now().Add(ttl)
	providerRequests.WithLabelValues("token", "ok").Inc()
	return nil
}
