/**
 * @description
 * This package provides a client for the payment processor's statement feed.
 * It encapsulates the logic for making authenticated HTTP requests to the
 * feed's endpoints, handling request construction, and parsing responses.
 *
 * @dependencies
 * - context, encoding/json, fmt, io, log, net/http, net/url, time: Standard Go libraries.
 */
package bankfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Client is a client for the bank statement feed API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new statement feed client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StatementEntry is one settled transaction row in a statement.
type StatementEntry struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
}

// StatementResponse is the feed's response for one reconciliation period.
type StatementResponse struct {
	Data []StatementEntry `json:"data"`
	Meta struct {
		Period string `json:"period"`
		Total  int    `json:"total"`
	} `json:"meta"`
}

// ErrorResponse represents an error from the statement feed API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("bank feed api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown bank feed api error"
}

// FetchStatement retrieves the settled transactions for a reconciliation
// period (e.g. "2026-08").
func (c *Client) FetchStatement(ctx context.Context, period string) (*StatementResponse, error) {
	endpoint := c.BaseURL + "/api/v1/statements?period=" + url.QueryEscape(period)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-feed-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=bankfeed_client op=fetch_statement period=%s status=%d msg=\"non-2xx response (unparsable error body)\"", period, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=bankfeed_client op=fetch_statement period=%s status=%d title=%q detail=%q", period, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return nil, &errResp
	}

	var statement StatementResponse
	if err := json.Unmarshal(bodyBytes, &statement); err != nil {
		return nil, fmt.Errorf("failed to decode statement response: %w", err)
	}

	return &statement, nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}
