package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// authProvider supplies authentication headers for MCP requests.
type authProvider interface {
	headers(ctx context.Context) (map[string]string, error)
}

// clientCredentialsAuth obtains bearer tokens via the OAuth 2.0
// client_credentials grant. Tokens are cached and refreshed once 80% of
// their lifetime has elapsed; when a refresh fails but the cached token
// has not yet expired, the cached token is kept in use.
type clientCredentialsAuth struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string

	mu         sync.Mutex
	token      string
	expiresAt  time.Time
	refreshAt  time.Time
	httpClient *http.Client
	now        func() time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func newClientCredentialsAuth(tokenURL, clientID, clientSecret string, scopes []string) *clientCredentialsAuth {
	return &clientCredentialsAuth{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
	}
}

func (a *clientCredentialsAuth) headers(ctx context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.token != "" && now.Before(a.refreshAt) {
		return map[string]string{"Authorization": "Bearer " + a.token}, nil
	}

	token, expiresIn, err := a.fetchToken(ctx)
	if err != nil {
		// A failed refresh is tolerable while the old token is still valid.
		if a.token != "" && now.Before(a.expiresAt) {
			return map[string]string{"Authorization": "Bearer " + a.token}, nil
		}
		return nil, fmt.Errorf("acquiring OAuth token: %w", err)
	}

	a.token = token
	a.expiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	a.refreshAt = now.Add(time.Duration(float64(expiresIn)*0.8) * time.Second)

	return map[string]string{"Authorization": "Bearer " + a.token}, nil
}

func (a *clientCredentialsAuth) fetchToken(ctx context.Context) (string, int, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
	}
	if len(a.scopes) > 0 {
		form.Set("scope", strings.Join(a.scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}
