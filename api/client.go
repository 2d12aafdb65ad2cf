package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sessionkit "github.com/portalkit/sessionkit"
)

const maxResponseBytes = 1 << 20

// Config carries the endpoint layout of the authentication API.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://portal.example.org".
	BaseURL string
	// Timeout bounds each request when no HTTPClient is supplied. Default 15s.
	Timeout time.Duration
	// HTTPClient overrides the default client; its own timeout then applies.
	HTTPClient *http.Client

	// LoginPath defaults to "/auth/login".
	LoginPath string
	// RefreshPath defaults to "/auth/refresh".
	RefreshPath string
	// ProfilePath defaults to "/auth/me".
	ProfilePath string

	UserAgent string
}

// Client talks to the authentication endpoints and satisfies
// [sessionkit.AuthAPI].
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	cfg  Config
	http *http.Client
}

// New validates the configuration and returns a Client.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/auth/login"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/auth/refresh"
	}
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = "/auth/me"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{cfg: cfg, http: httpClient}, nil
}

// Login exchanges credentials for a token grant.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Login(ctx context.Context, email, password string) (*sessionkit.TokenGrant, error) {
	body, err := c.do(ctx, http.MethodPost, c.cfg.LoginPath, "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return parseGrant(body, true)
}

// Refresh exchanges the refresh token for a new access token. The token is
// sent under both historical field names; the backend reads whichever it
// knows.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*sessionkit.TokenGrant, error) {
	body, err := c.do(ctx, http.MethodPost, c.cfg.RefreshPath, "", map[string]string{
		"refreshToken":  refreshToken,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	return parseGrant(body, false)
}

// Profile fetches the current user record with the given bearer token.
//
// Profile may return an error when input validation, dependency calls, or security checks fail.
// Profile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) Profile(ctx context.Context, accessToken string) (*sessionkit.UserRecord, error) {
	body, err := c.do(ctx, http.MethodGet, c.cfg.ProfilePath, accessToken, nil)
	if err != nil {
		return nil, err
	}
	return parseUserResponse(body)
}

// UpdateProfile pushes changed profile fields and returns the updated record.
//
// UpdateProfile may return an error when input validation, dependency calls, or security checks fail.
// UpdateProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) UpdateProfile(ctx context.Context, accessToken string, update sessionkit.ProfileUpdate) (*sessionkit.UserRecord, error) {
	body, err := c.do(ctx, http.MethodPut, c.cfg.ProfilePath, accessToken, update)
	if err != nil {
		return nil, err
	}
	return parseUserResponse(body)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sessionkit.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", sessionkit.ErrNetworkUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", sessionkit.ErrInsufficientPrivileges, errorMessage(body))
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d", sessionkit.ErrNetworkUnavailable, status)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %s", sessionkit.ErrAuthenticationFailed, errorMessage(body))
	default:
		return fmt.Errorf("%w: unexpected status %d", sessionkit.ErrNetworkUnavailable, status)
	}
}

// errorMessage pulls a user-safe message out of a 4xx body. The backend has
// used several field names for it.
func errorMessage(body []byte) string {
	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &wire); err == nil {
		for _, s := range []string{wire.Message, wire.Error, wire.Detail} {
			if s != "" {
				return s
			}
		}
	}
	return "request rejected"
}
