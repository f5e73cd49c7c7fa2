// Package craftyapi contains a client for the Crafty Controller v2 API:
// login with username/password or a static bearer token, server listing,
// power actions, and status queries. Session tokens live in memory only and
// are reacquired once per request when the API reports them expired.
package craftyapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/felhagen/crafty-bridge/telemetry"
)

const requestTimeout = 15 * time.Second

// Action is a Crafty server power action.
type Action string

const (
	ActionStart   Action = "start_server"
	ActionStop    Action = "stop_server"
	ActionRestart Action = "restart_server"
)

// ServerSummary is one entry from the remote server list.
type ServerSummary struct {
	ID   string
	Name string
}

// PublicStatus is the subset of GET /servers/{id}/public the bot reports.
type PublicStatus struct {
	Running bool
	Online  int64
	Max     int64
}

// ServerStats is the subset of GET /servers/{id}/stats the reconciler needs.
type ServerStats struct {
	Running bool
}

// Client issues authenticated requests against one Crafty instance.
// The zero value is unusable; set BaseURL plus either BearerToken or
// Username/Password. HTTPClient is injectable for tests; when nil a pooled
// client with a bounded timeout is created lazily and can be released with
// Close.
type Client struct {
	BaseURL     string
	Username    string
	Password    string
	BearerToken string
	VerifySSL   bool
	HTTPClient  *http.Client

	mu         sync.Mutex
	token      string
	httpClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		tr := &http.Transport{}
		if !c.VerifySSL {
			//nolint:gosec // G402: verify_ssl=false is an explicit operator opt-out for self-signed Crafty installs
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		c.httpClient = &http.Client{Timeout: requestTimeout, Transport: tr}
	}
	return c.httpClient
}

// Close drops the session token and releases pooled connections. The client
// may be used again afterwards; the pool is recreated on the next request.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
}

// Login acquires a session token. A configured static bearer token is used
// as-is without any network call. Otherwise the username/password pair is
// exchanged at /api/v2/auth/login; the token is looked up in the response
// under data.token, then token, then data.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.BearerToken != "" {
		c.mu.Lock()
		c.token = c.BearerToken
		c.mu.Unlock()
		slog.Info("using static crafty bearer token")
		return c.BearerToken, nil
	}

	payload, _ := json.Marshal(map[string]string{"username": c.Username, "password": c.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/api/v2/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		if telemetry.CraftyTransportErr != nil {
			telemetry.CraftyTransportErr.Inc()
		}
		slog.Warn("crafty not reachable during login, will retry later", slog.Any("err", err))
		return "", &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		if telemetry.CraftyAuthErrors != nil {
			telemetry.CraftyAuthErrors.Inc()
		}
		return "", &AuthError{Status: resp.StatusCode, Message: string(body)}
	}

	token := extractToken(body)
	if token == "" {
		if telemetry.CraftyAuthErrors != nil {
			telemetry.CraftyAuthErrors.Inc()
		}
		return "", &AuthError{Message: "no token found in login response: " + string(body)}
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	slog.Info("logged in to crafty with username/password")
	return token, nil
}

// extractToken checks data.token, top-level token, then top-level data, in
// that order. Crafty versions differ in where they put it.
func extractToken(body []byte) string {
	if v := gjson.GetBytes(body, "data.token"); v.Type == gjson.String && v.Str != "" {
		return v.Str
	}
	if v := gjson.GetBytes(body, "token"); v.Type == gjson.String && v.Str != "" {
		return v.Str
	}
	if v := gjson.GetBytes(body, "data"); v.Type == gjson.String && v.Str != "" {
		return v.Str
	}
	return ""
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// request performs one logical API call. On 401 with username/password
// credentials it re-logs-in and retries exactly once; any further failure is
// returned as APIError. Transport failures are wrapped, never retried.
func (c *Client) request(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, status, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.BearerToken == "" {
		slog.Info("crafty session expired, re-logging in", slog.String("path", path))
		if _, err := c.Login(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.do(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
	}

	if status >= 400 {
		if telemetry.CraftyAPIErrors != nil {
			telemetry.CraftyAPIErrors.Inc()
		}
		return nil, &APIError{Status: status, Body: string(body)}
	}
	return body, nil
}

// do issues a single HTTP request and reads the full body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http().Do(req)
	if telemetry.CraftyRequestDuration != nil {
		telemetry.CraftyRequestDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if telemetry.CraftyTransportErr != nil {
			telemetry.CraftyTransportErr.Inc()
		}
		slog.Warn("crafty request failed, will retry later", slog.String("method", method), slog.String("path", path), slog.Any("err", err))
		return nil, 0, &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if telemetry.CraftyTransportErr != nil {
			telemetry.CraftyTransportErr.Inc()
		}
		return nil, 0, &TransportError{Err: err}
	}
	return body, resp.StatusCode, nil
}

// Servers lists all servers the credentials can see.
func (c *Client) Servers(ctx context.Context) ([]ServerSummary, error) {
	body, err := c.request(ctx, http.MethodGet, "/api/v2/servers", nil)
	if err != nil {
		return nil, err
	}
	var out []ServerSummary
	for _, s := range gjson.GetBytes(body, "data").Array() {
		out = append(out, ServerSummary{
			// server_id is a UUID on current Crafty but an integer on older
			// installs; String() normalizes both.
			ID:   s.Get("server_id").String(),
			Name: s.Get("server_name").String(),
		})
	}
	return out, nil
}

// RunAction triggers a power action on a server.
func (c *Client) RunAction(ctx context.Context, serverID string, action Action) error {
	_, err := c.request(ctx, http.MethodPost, fmt.Sprintf("/api/v2/servers/%s/action/%s", serverID, action), nil)
	return err
}

// Public fetches the public status (running flag plus player counts).
func (c *Client) Public(ctx context.Context, serverID string) (PublicStatus, error) {
	body, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/v2/servers/%s/public", serverID), nil)
	if err != nil {
		return PublicStatus{}, err
	}
	data := gjson.GetBytes(body, "data")
	return PublicStatus{
		Running: data.Get("running").Bool(),
		Online:  data.Get("online").Int(),
		Max:     data.Get("max").Int(),
	}, nil
}

// Stats fetches detailed stats; the reconciler only needs the running flag.
func (c *Client) Stats(ctx context.Context, serverID string) (ServerStats, error) {
	body, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/v2/servers/%s/stats", serverID), nil)
	if err != nil {
		return ServerStats{}, err
	}
	return ServerStats{Running: gjson.GetBytes(body, "data.running").Bool()}, nil
}
