// Package sendblue is a minimal client for the Sendblue send-message API.
package sendblue

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
)

const defaultBaseURL = "https://api.sendblue.co"

type sendMessageRequest struct {
	Number  string `json:"number"`
	Content string `json:"content"`
}

// HTTPStatusError captures non-2xx responses from the Sendblue API.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sendblue: unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiKey, apiSecret string, opts ...Option) (*Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("sendblue: api key and secret must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendMessage sends an outbound text to the given E.164 phone number.
func (c *Client) SendMessage(ctx context.Context, number, content string) error {
	body, err := json.Marshal(sendMessageRequest{Number: number, Content: content})
	if err != nil {
		return fmt.Errorf("sendblue: marshal request: %w", err)
	}

	url := c.baseURL + "/api/send-message"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sendblue: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sb-api-key-id", c.apiKey)
	req.Header.Set("sb-api-secret-key", c.apiSecret)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendblue: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			Body:       string(buf),
		}
	}
	return nil
}
