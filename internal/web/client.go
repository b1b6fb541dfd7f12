package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/termsaver/indicatord/internal/activation"
	"github.com/termsaver/indicatord/internal/daemon"
	"github.com/termsaver/indicatord/internal/models"
	"github.com/termsaver/indicatord/internal/updater"
)

// APIError is a non-2xx answer from the daemon. Known codes unwrap to the
// matching sentinel error.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeAlreadyRunning:
		return activation.ErrAlreadyRunning
	case CodeScreensaverMissing:
		return activation.ErrScreensaverMissing
	case CodeHistoryDisabled:
		return daemon.ErrNoHistory
	case CodeNotRunning:
		return daemon.ErrNotRunning
	}
	return nil
}

// Client talks to a running daemon. When nothing listens on the socket
// every call fails with daemon.ErrNotRunning.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(socket string) *Client {
	dialer := &net.Dialer{Timeout: 2 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socket)
		},
	}
	return NewClientWithHTTP("http://indicatord", &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	})
}

// NewClientWithHTTP targets baseURL with a caller supplied client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, http: httpClient}
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *Client) Toggle(ctx context.Context) (bool, error) {
	var resp ToggleResponse
	err := c.do(ctx, http.MethodPost, "/api/toggle", nil, &resp)
	return resp.Enabled, err
}

func (c *Client) Launch(ctx context.Context) (int, error) {
	var resp PIDResponse
	err := c.do(ctx, http.MethodPost, "/api/launch", nil, &resp)
	return resp.PID, err
}

func (c *Client) SetTimeout(ctx context.Context, seconds int) error {
	return c.do(ctx, http.MethodPut, "/api/timeout", TimeoutRequest{Seconds: seconds}, nil)
}

func (c *Client) CheckUpdates(ctx context.Context) (updater.State, error) {
	var state updater.State
	err := c.do(ctx, http.MethodPost, "/api/update/check", nil, &state)
	return state, err
}

func (c *Client) RunUpdate(ctx context.Context) (int, error) {
	var resp PIDResponse
	err := c.do(ctx, http.MethodPost, "/api/update/run", nil, &resp)
	return resp.PID, err
}

func (c *Client) Quit(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/quit", nil, nil)
}

func (c *Client) History(ctx context.Context, limit int) ([]*models.ActivationEvent, error) {
	var events []*models.ActivationEvent
	path := "/api/history?limit=" + strconv.Itoa(limit)
	err := c.do(ctx, http.MethodGet, path, nil, &events)
	return events, err
}

func (c *Client) Summary(ctx context.Context, since time.Duration) (*models.History, error) {
	var history models.History
	path := "/api/history/summary?since=" + url.QueryEscape(since.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

func (c *Client) Errors(ctx context.Context, limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	path := "/api/history/errors?limit=" + strconv.Itoa(limit)
	err := c.do(ctx, http.MethodGet, path, nil, &logs)
	return logs, err
}

func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/history", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return daemon.ErrNotRunning
		}
		return fmt.Errorf("request to daemon failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
