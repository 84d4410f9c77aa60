// Package wpp is the client for the WPPConnect automation server. It
// exposes connect/close/send/device operations per session and feeds the
// server's QR and state-change events to a registered handler.
package wpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"zapcentral/pkg/wpp/types"

	"github.com/sirupsen/logrus"
)

type connector struct {
	cfg    types.ClientConfig
	client *http.Client
	logger *logrus.Logger
}

// NewConnector creates a connector bound to one automation server.
func NewConnector(cfg types.ClientConfig, logger *logrus.Logger) types.Connector {
	return &connector{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Connect starts the session on the automation server and opens its event
// feed. The returned handle stays valid until Close; pairing progress is
// reported exclusively through the handler.
func (c *connector) Connect(ctx context.Context, sessionID string, handler types.EventHandler) (types.Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}

	connectCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	body := types.StartSessionRequest{Session: sessionID, Waiting: false}
	if err := c.postJSON(connectCtx, fmt.Sprintf("/api/%s/start-session", sessionID), body, nil); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	feed, err := c.dialEventFeed(connectCtx, sessionID, handler)
	if err != nil {
		// Session started but the feed is unreachable; tear down so the
		// caller can retry from a clean slate.
		if stopErr := c.postJSON(context.WithoutCancel(ctx), fmt.Sprintf("/api/%s/close-session", sessionID), nil, nil); stopErr != nil {
			c.logger.WithError(stopErr).WithField("session", sessionID).Warn("Failed to close session after feed dial error")
		}
		return nil, fmt.Errorf("failed to open event feed: %w", err)
	}

	return &sessionClient{
		connector: c,
		sessionID: sessionID,
		feed:      feed,
	}, nil
}

func (c *connector) postJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	var reqBody *bytes.Buffer
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	return c.doJSON(req, out)
}

func (c *connector) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)

	return c.doJSON(req, out)
}

func (c *connector) setAuth(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func (c *connector) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp types.StatusResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Message != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type sessionClient struct {
	connector *connector
	sessionID string
	feed      *eventFeed
}

func (sc *sessionClient) SendText(ctx context.Context, chatID, body string) error {
	payload := types.SendMessageRequest{
		Phone:   chatID,
		Message: body,
	}
	endpoint := fmt.Sprintf("/api/%s/send-message", sc.sessionID)
	if err := sc.connector.postJSON(ctx, endpoint, payload, nil); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func (sc *sessionClient) HostDevice(ctx context.Context) (*types.HostDevice, error) {
	var resp types.HostDeviceResponse
	endpoint := fmt.Sprintf("/api/%s/host-device", sc.sessionID)
	if err := sc.connector.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to get host device: %w", err)
	}
	return resp.Response, nil
}

func (sc *sessionClient) State(ctx context.Context) (string, error) {
	var resp types.StatusResponse
	endpoint := fmt.Sprintf("/api/%s/status-session", sc.sessionID)
	if err := sc.connector.getJSON(ctx, endpoint, &resp); err != nil {
		return "", fmt.Errorf("failed to get session state: %w", err)
	}
	return resp.Status, nil
}

// Close stops the event feed first so no events race the teardown, then
// closes the session on the server.
func (sc *sessionClient) Close() error {
	sc.feed.Close()

	endpoint := fmt.Sprintf("/api/%s/close-session", sc.sessionID)
	if err := sc.connector.postJSON(context.Background(), endpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}
