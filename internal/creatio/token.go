package creatio

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

	"github.com/rs/zerolog/log"
)

// tokenTTL is how long a fetched access token is reused before a new one is
// requested. Creatio tokens live longer, but a short window keeps a stale
// token from outliving a credential rotation mid-session.
const tokenTTL = 5 * time.Minute

// TokenProvider exchanges client credentials for a bearer token and caches it.
type TokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

func NewTokenProvider(tokenURL, clientID, clientSecret string, client *http.Client) *TokenProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenProvider{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   client,
	}
}

// Token returns a cached access token, fetching a fresh one when the cache
// window has elapsed.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Since(p.fetchedAt) < tokenTTL {
		return p.token, nil
	}

	token, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.fetchedAt = time.Now()
	return token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func (p *TokenProvider) fetch(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.clientID},
		"client_secret": {p.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}

	log.Debug().Str("token_url", p.tokenURL).Msg("Fetched new access token")
	return payload.AccessToken, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
