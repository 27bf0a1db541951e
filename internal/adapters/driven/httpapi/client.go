// Package httpapi is the JSON-over-HTTP plumbing shared by the REST
// provider adapters (OpenAI, Anthropic, Ollama). Non-2xx responses become
// *domain.ProviderError so the embedding client can classify them.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/carebot/internal/core/domain"
)

// maxErrorBody caps how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

// Client sends JSON requests to one provider's base URL.
type Client struct {
	// Provider names the API in errors ("openai", "ollama").
	Provider string

	// BaseURL has no trailing slash.
	BaseURL string

	// Header is added to every request (credentials, API version).
	Header http.Header

	HTTP *http.Client
}

// New creates a client. A trailing slash on baseURL is dropped.
func New(provider, baseURL string, timeout time.Duration) *Client {
	return &Client{
		Provider: provider,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Header:   make(http.Header),
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// PostJSON sends in as the body of a POST to path and decodes the response
// into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.Provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.Provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// Get issues a GET to path and discards the body. Used for pings.
func (c *Client) Get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.Provider, err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", c.Provider, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ResponseError(c.Provider, resp, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.Provider, err)
	}
	return nil
}

// ResponseError builds a ProviderError from a failed response. The message
// is taken from {"error":{"message":...}} or {"error":"..."} bodies when
// present, otherwise the trimmed body.
func ResponseError(provider string, resp *http.Response, body []byte) *domain.ProviderError {
	return &domain.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
		RetryAfter: retryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	return strings.TrimSpace(string(body))
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// Float32s narrows a decoded JSON vector.
func Float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
