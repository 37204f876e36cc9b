// Package telegram talks to the Telegram Bot API: sending notifications and
// long-polling the bot's updates.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAPIBaseURL is the public Bot API endpoint
	DefaultAPIBaseURL = "https://api.telegram.org"

	maxResponseSize = 1 << 20
)

// ErrNotConfigured is returned when the client has no bot token
var ErrNotConfigured = errors.New("telegram: bot token not configured")

// APIError is a failure reported by the Bot API itself
type APIError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed (HTTP %d, code %d): %s", e.Method, e.StatusCode, e.ErrorCode, e.Description)
}

// Chat is the chat an update belongs to
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an incoming chat message
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Update is one entry returned by getUpdates
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Client is a minimal Bot API client
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	requestTimeout time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL points the client at another API endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRequestTimeout bounds calls other than long polls
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// NewClient creates a client for the bot identified by token
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultAPIBaseURL,
		token:   token,
		// Deadlines come from the per-call context; long polls outlive any fixed timeout
		httpClient:     &http.Client{},
		requestTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends an HTML formatted message to a chat
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	params := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	return c.call(ctx, "sendMessage", params, c.requestTimeout, nil)
}

// GetUpdates long-polls for updates with IDs >= offset
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, timeout+c.requestTimeout, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// DeleteWebhook switches the bot to polling mode
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, c.requestTimeout, nil)
}

func (c *Client) call(ctx context.Context, method string, params any, timeout time.Duration, result any) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal %s params: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL embeds the token; keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("telegram: failed to read %s response: %w", method, err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Method: method, StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("telegram: failed to decode %s response: %w", method, err)
	}
	if !decoded.OK || resp.StatusCode >= 400 {
		return &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   decoded.ErrorCode,
			Description: decoded.Description,
		}
	}

	if result != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("telegram: failed to decode %s result: %w", method, err)
		}
	}
	return nil
}
