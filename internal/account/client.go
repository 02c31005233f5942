// Package account talks to the remote account API. Its only job here
// is turning an access token into the identity that owns it, so tokens
// can be validated before they are recorded locally.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrTokenRejected is returned when the API refuses the token. Callers
// must not record a token that produced this error.
var ErrTokenRejected = errors.New("account: token rejected")

// AccountInfo describes the account a token belongs to.
type AccountInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
}

// Client is a thin HTTP client for the account API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the API at baseURL. A zero timeout
// falls back to 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetAccountInfo resolves the identity behind an access token. A 401 or
// 403 response maps to ErrTokenRejected; any other failure is a
// transport or protocol error.
func (c *Client) GetAccountInfo(ctx context.Context, token string) (AccountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("account: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("account: get account info: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return AccountInfo{}, ErrTokenRejected
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return AccountInfo{}, fmt.Errorf("account: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info AccountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return AccountInfo{}, fmt.Errorf("account: decode response: %w", err)
	}
	if info.Identity == "" {
		return AccountInfo{}, fmt.Errorf("account: response missing identity")
	}
	return info, nil
}
