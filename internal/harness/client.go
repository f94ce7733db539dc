package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API paths used by the harness.
const (
	LoginPath       = "/api/Auth/Login"
	RegisterPath    = "/api/Auth/Register"
	CurrentUserPath = "/api/Auth/CurrentUser"
)

// maxResponseBody bounds what DecodeJSON reads.
const maxResponseBody = 4 << 20

// Client is an HTTP client bound to one server. A client returned by WithBearer
// sends the token on every request.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns an anonymous client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport,
		},
	}
}

// WithBearer returns a copy of the client that authenticates with token.
func (c *Client) WithBearer(token string) *Client {
	return &Client{
		baseURL: c.baseURL,
		http: &http.Client{
			Timeout:   c.http.Timeout,
			Transport: &bearerTransport{token: token, base: c.http.Transport},
		},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient exposes the underlying client for requests the helpers do not cover.
func (c *Client) HTTPClient() *http.Client { return c.http }

// URL joins path to the base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// PostJSON sends body encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

// GetJSON fetches path and decodes the response into dst. It returns the status code.
func (c *Client) GetJSON(ctx context.Context, path string, dst any) (int, error) {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, DecodeJSON(resp, dst)
}

// DecodeJSON reads and closes the response body and decodes it into dst.
// A {"code": ..., "data": ...} envelope is unwrapped first.
func DecodeJSON(resp *http.Response, dst any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(unwrapEnvelope(raw), dst); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func unwrapEnvelope(raw []byte) []byte {
	var env struct {
		Code *int            `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Code == nil || len(env.Data) == 0 {
		return raw
	}
	return env.Data
}

// LoginResult is the body of a login or register response.
type LoginResult struct {
	Success      bool      `json:"success"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	User         *UserInfo `json:"user"`
	ErrorMessage string    `json:"errorMessage"`
}

type UserInfo struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Avatar string   `json:"avatar"`
	Roles  []string `json:"roles"`
}

// Login posts the credentials. The result is nil when the server did not answer 200.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, int, error) {
	return c.authRequest(ctx, LoginPath, map[string]string{
		"username": username,
		"password": password,
	})
}

// Register creates a user. The result is nil when the server did not answer 2xx.
func (c *Client) Register(ctx context.Context, username, email, password string) (*LoginResult, int, error) {
	return c.authRequest(ctx, RegisterPath, map[string]string{
		"userName": username,
		"email":    email,
		"password": password,
	})
}

func (c *Client) authRequest(ctx context.Context, path string, body any) (*LoginResult, int, error) {
	resp, err := c.PostJSON(ctx, path, body)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		return nil, resp.StatusCode, nil
	}

	var result LoginResult
	if err := DecodeJSON(resp, &result); err != nil {
		return nil, resp.StatusCode, err
	}
	return &result, resp.StatusCode, nil
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
