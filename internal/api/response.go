package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/matthieugras/vidctl/internal/logging"
)

// maxResponseBody caps how much of an API response typed endpoints will read
const maxResponseBody = 32 << 20

// decodeEnvelope reads an API envelope and stores its data field in out.
// Statuses >= 400 become *APIError carrying the envelope message.
// out may be nil when the caller only cares about success.
func decodeEnvelope(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return NewAPIError(resp.StatusCode, errorMessage(body, resp.StatusCode))
	}

	env := Envelope[json.RawMessage]{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			logging.Error("Failed to parse JSON response from %s (status %d)", requestURL(resp), resp.StatusCode)
			logging.Error("Response body (first 2000 chars): %s", truncateString(string(body), 2000))
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		logging.Error("Unexpected data shape from %s: %s", requestURL(resp), truncateString(string(env.Data), 2000))
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// getJSON issues an authenticated GET and decodes the envelope data into out
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, path, nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

// sendJSON issues an authenticated request with an optional JSON body
func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	opts := &RequestOptions{Method: method}
	if in != nil {
		var err error
		if opts, err = JSONRequest(method, in); err != nil {
			return err
		}
	}
	resp, err := c.Do(ctx, path, opts)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

// errorMessage extracts "message" from an error body, falling back to the status text
func errorMessage(body []byte, status int) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	if len(body) > 0 {
		return truncateString(string(body), 500)
	}
	return http.StatusText(status)
}

func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return "<unknown>"
	}
	return resp.Request.URL.String()
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
