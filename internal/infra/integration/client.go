// Package integration holds the HTTP plumbing shared by the clients of the
// external scoring, prediction, scraper and LLM services.
package integration

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

	"github.com/xavierca1/leadforge/internal/entity"
)

const maxErrorBody = 512

// ErrorHook is told about every failed call; used for metrics.
type ErrorHook func(service string)

// Client posts JSON to one service and turns failures into
// *entity.AdapterError. 4xx answers are permanent, everything else is
// worth a retry.
type Client struct {
	Service string
	BaseURL string
	Headers map[string]string
	HTTP    *http.Client
	OnError ErrorHook
}

func NewClient(service, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		Service: service,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Headers: map[string]string{},
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// PostJSON sends in to path and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, in, out any) error {
	err := c.postJSON(ctx, path, in, out)
	if err == nil {
		return nil
	}
	if c.OnError != nil {
		c.OnError(c.Service)
	}

	var ae *entity.AdapterError
	if errors.As(err, &ae) {
		ae.Adapter, ae.Op = c.Service, op
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out: %w", err)
	}
	return &entity.AdapterError{Adapter: c.Service, Op: op, Err: err}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return entity.NewPermanentAdapterError("", "", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return entity.NewPermanentAdapterError("", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusRequestTimeout {
			return entity.NewPermanentAdapterError("", "", statusErr)
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return entity.NewPermanentAdapterError("", "", fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
