package client

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

	"github.com/dmitrijs2005/librarykeeper/internal/client/models"
	"github.com/dmitrijs2005/librarykeeper/internal/common"
)

// envelope mirrors the server's response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []FieldError    `json:"errors"`
}

// APIClient talks to the librarykeeper HTTP API. Authenticated calls take
// the access token from the TokenStore on every attempt and go through the
// refresh coordinator when it is rejected.
type APIClient struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	coord   *refreshCoordinator
}

// NewAPIClient builds a client for baseURL. timeout bounds every HTTP
// round trip, including the shared refresh call.
func NewAPIClient(baseURL string, store TokenStore, timeout time.Duration) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
	}
	c.coord = newRefreshCoordinator(store, c.refresh, timeout)
	return c
}

func (c *APIClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	var s models.Session
	body := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *APIClient) Register(ctx context.Context, username, email, password string) (*models.Session, error) {
	var s models.Session
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/auth/register", "", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout revokes refreshToken on the server. An empty refreshToken only
// ends the access token's use on this client.
func (c *APIClient) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{}
	if refreshToken != "" {
		body["refreshToken"] = refreshToken
	}
	return c.authorized(ctx, http.MethodPost, "/auth/logout", body, nil)
}

func (c *APIClient) Me(ctx context.Context) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	if err := c.authorized(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Ping checks the server's health endpoint.
func (c *APIClient) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", "", nil, nil)
}

func (c *APIClient) refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var out struct {
		Tokens *models.TokenPair `json:"tokens"`
	}
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", "", body, &out); err != nil {
		return nil, err
	}
	if out.Tokens == nil {
		return nil, errors.New("refresh response carries no tokens")
	}
	return out.Tokens, nil
}

// authorized sends an authenticated request. A 401 triggers one refresh
// and one retry; a second 401 is returned as ErrUnauthorized.
func (c *APIClient) authorized(ctx context.Context, method, path string, body, out any) error {
	tokens, err := c.store.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("read tokens: %w", err)
	}
	if tokens == nil || tokens.AccessToken == "" {
		return ErrNotLoggedIn
	}

	err = c.call(ctx, method, path, tokens.AccessToken, body, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	access, err := c.coord.Refresh(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}

	err = c.call(ctx, method, path, access, body, out)
	if errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("%w after token refresh: %w", ErrUnauthorized, err)
	}
	return err
}

func (c *APIClient) call(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Fields: env.Errors}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
