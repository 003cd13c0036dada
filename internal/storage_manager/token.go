package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// TokenSource supplies the bearer token for a remote store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a token known at startup.
type StaticToken string

// Token returns the static token or ErrUnauthorized when it is empty.
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: no token configured", ErrUnauthorized)
	}
	return string(s), nil
}

// BootstrapTokenSource fetches the token from an HTTP endpoint whose response
// body is the token itself. The token is cached for TTL.
type BootstrapTokenSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	fetched time.Time
}

// NewBootstrapTokenSource creates a token source for url. Each fetch is bounded
// by timeout; a zero ttl disables caching.
func NewBootstrapTokenSource(url string, client *http.Client, timeout, ttl time.Duration) *BootstrapTokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &BootstrapTokenSource{
		url:     url,
		client:  client,
		timeout: timeout,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Token returns the cached token or fetches a fresh one.
func (b *BootstrapTokenSource) Token(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.token != "" && b.ttl > 0 && b.now().Sub(b.fetched) < b.ttl {
		return b.token, nil
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token endpoint unreachable: %v", ErrUnauthorized, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrUnauthorized, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token: %v", ErrUnauthorized, err)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("%w: token endpoint returned an empty token", ErrUnauthorized)
	}

	b.token = token
	b.fetched = b.now()
	return token, nil
}

// Invalidate drops the cached token so the next call refetches it.
func (b *BootstrapTokenSource) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = ""
}
