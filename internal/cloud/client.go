// Package cloud implements the stateless-session HTTP client for the remote
// control plane. Every request carries a static long-lived bearer credential;
// there is no token refresh.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/RocoByte/vorio-agent/internal/model"
)

// Client talks to the cloud control plane. It owns the connection and project
// identifiers returned by Connect.
type Client struct {
	baseURL    string
	token      string
	instanceID string
	userAgent  string
	httpClient *http.Client
	log        *logrus.Logger

	connectionID string
	projectID    string
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Logger    *logrus.Logger
}

// New creates a cloud client with a fresh per-process instance ID.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		IdleConnTimeout:       30 * time.Second,
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		instanceID: uuid.NewString(),
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		log: opts.Logger,
	}
}

// InstanceID returns the per-process instance identifier sent on Connect.
func (c *Client) InstanceID() string { return c.instanceID }

// ConnectionID returns the identifier assigned by the last Connect.
func (c *Client) ConnectionID() string { return c.connectionID }

// ProjectID returns the project assigned by the last Connect.
func (c *Client) ProjectID() string { return c.projectID }

// Connect registers the agent and retains the returned connection and project
// identifiers. Called exactly once per process run, at startup.
func (c *Client) Connect(ctx context.Context, req ConnectRequest) (*ConnectResponse, error) {
	req.InstanceID = c.instanceID

	var out ConnectResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/agent/connect", req, &out); err != nil {
		return nil, err
	}

	c.connectionID = out.ConnectionID
	c.projectID = out.ProjectID
	c.log.Infof("cloud: agent connected (connection %s, project %s)", out.ConnectionID, out.ProjectID)
	return &out, nil
}

// Disconnect sends a best-effort teardown notice. Failures are logged, never
// returned, since this runs during shutdown.
func (c *Client) Disconnect(ctx context.Context) {
	if err := c.doJSON(ctx, http.MethodPost, "/api/agent/disconnect", nil, nil); err != nil {
		c.log.Warnf("cloud: disconnect notice failed: %v", err)
	}
}

// SyncVouchers uploads the full current voucher snapshot. The server replaces
// its stored copy (not a merge) and returns the authoritative synced count.
// A *SyncError signals a partially accepted upload.
func (c *Client) SyncVouchers(ctx context.Context, vouchers []model.Voucher) (int, error) {
	if vouchers == nil {
		vouchers = []model.Voucher{}
	}

	var out syncResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/agent/sync", syncRequest{Vouchers: vouchers}, &out); err != nil {
		return 0, err
	}
	if out.Synced < len(vouchers) {
		return out.Synced, &SyncError{Attempted: len(vouchers), Synced: out.Synced}
	}
	return out.Synced, nil
}

// GetCommands polls for pending work. An empty result is normal steady-state.
func (c *Client) GetCommands(ctx context.Context) ([]model.Command, error) {
	var out commandsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/agent/commands", nil, &out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

// AcknowledgeCommand signals "received, will attempt". It must run before the
// command's side effects.
func (c *Client) AcknowledgeCommand(ctx context.Context, commandID string) error {
	path := fmt.Sprintf("/api/agent/commands/%s/ack", url.PathEscape(commandID))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// CompleteCommand reports the terminal outcome of a command.
func (c *Client) CompleteCommand(ctx context.Context, commandID string, success bool, errMsg string) error {
	path := fmt.Sprintf("/api/agent/commands/%s/complete", url.PathEscape(commandID))
	return c.doJSON(ctx, http.MethodPost, path, completeRequest{Success: success, Error: errMsg}, nil)
}

// Heartbeat reports periodic liveness and the last-known sync state.
func (c *Client) Heartbeat(ctx context.Context, hb HeartbeatRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/agent/heartbeat", hb, nil)
}

// doJSON issues one request and classifies any failure into an *APIError.
// The client never retries on its own; retry and backoff policy belongs to
// the caller.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindConnection, Endpoint: path, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    msg,
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    "invalid json response",
			Err:        err,
		}
	}
	return nil
}
