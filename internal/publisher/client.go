package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// Client posts statuses to the social media API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a social API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Identity returns the limiter identity used for this API endpoint.
func (c *Client) Identity() string {
	if c == nil || c.baseURL == "" {
		return "social-api"
	}
	parsed, errParse := url.Parse(c.baseURL)
	if errParse != nil || parsed.Host == "" {
		return c.baseURL
	}
	return parsed.Host
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	ID string `json:"id"`
}

// PublishStatus posts one status and returns the remote post ID.
func (c *Client) PublishStatus(ctx context.Context, text string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("publisher: client not configured")
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("publisher: empty status text")
	}

	body, errMarshal := json.Marshal(statusRequest{Status: text})
	if errMarshal != nil {
		return "", fmt.Errorf("publisher: marshal status: %w", errMarshal)
	}

	req, errBuild := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statuses", bytes.NewReader(body))
	if errBuild != nil {
		return "", fmt.Errorf("publisher: build request: %w", errBuild)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, errDo := c.client.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("publisher: request failed: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("publisher: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed statusResponse
	if errDecode := json.NewDecoder(resp.Body).Decode(&parsed); errDecode != nil {
		return "", fmt.Errorf("publisher: decode response: %w", errDecode)
	}
	return parsed.ID, nil
}
