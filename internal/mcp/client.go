package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/api"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
)

// Client is the HTTP client for the bot's admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ReplyList is one page of stored replies
type ReplyList struct {
	Total   int          `json:"total"`
	Replies []*api.Reply `json:"replies"`
}

// ResolveResult is the reply the bot would send for a text
type ResolveResult struct {
	Replied    bool                `json:"replied"`
	Resolution *usecase.Resolution `json:"resolution,omitempty"`
}

// ============ Reply Operations ============

// SetReply stores a reply and returns the normalized keyword
func (c *Client) SetReply(ctx context.Context, keyword, response string) (string, error) {
	var result struct {
		Keyword string `json:"keyword"`
	}
	body := map[string]string{"keyword": keyword, "response": response}
	if err := c.do(ctx, http.MethodPost, "/api/replies", body, &result); err != nil {
		return "", err
	}
	return result.Keyword, nil
}

// DeleteReply removes a reply
func (c *Client) DeleteReply(ctx context.Context, keyword string) error {
	return c.do(ctx, http.MethodDelete, "/api/replies/"+url.PathEscape(keyword), nil, nil)
}

// ListReplies lists stored replies sorted by keyword
func (c *Client) ListReplies(ctx context.Context, offset, limit int) (*ReplyList, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var result ReplyList
	if err := c.do(ctx, http.MethodGet, "/api/replies?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchKeywords returns the stored keywords contained in text
func (c *Client) SearchKeywords(ctx context.Context, text string) ([]string, error) {
	var result struct {
		Keywords []string `json:"keywords"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/search?text="+url.QueryEscape(text), nil, &result); err != nil {
		return nil, err
	}
	return result.Keywords, nil
}

// Resolve asks the bot which reply it would send
func (c *Client) Resolve(ctx context.Context, text string) (*ResolveResult, error) {
	var result ResolveResult
	if err := c.do(ctx, http.MethodPost, "/api/resolve", map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ Stats Operations ============

// Stats returns the store-wide summary
func (c *Client) Stats(ctx context.Context) (*api.Stats, error) {
	var result api.Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetGroupAutoReply toggles auto-reply for a group
func (c *Client) SetGroupAutoReply(ctx context.Context, groupID string, enabled bool) (*api.Group, error) {
	var result api.Group
	body := map[string]bool{"auto_reply_enabled": enabled}
	if err := c.do(ctx, http.MethodPut, "/api/groups/"+url.PathEscape(groupID), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============ HTTP Helpers ============

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
