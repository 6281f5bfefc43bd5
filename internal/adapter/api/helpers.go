package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chatline/internal/domain"
)

// maxResponseBody is the maximum non-streaming response body we read.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// errBadPayload marks a 2xx response whose body could not be decoded.
var errBadPayload = errors.New("malformed response body")

// StatusError is a non-2xx answer from the service. It unwraps to the domain
// sentinel chosen for the status code.
type StatusError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Err, e.StatusCode, e.Detail)
}

func (e *StatusError) Unwrap() error { return e.Err }

// statusRemap overrides the default sentinel for specific status codes.
type statusRemap map[int]error

// mapHTTPError maps an HTTP status code and body to a *StatusError.
func mapHTTPError(statusCode int, body []byte, remap statusRemap) error {
	var sentinel error
	switch {
	case remap[statusCode] != nil:
		sentinel = remap[statusCode]
	case statusCode == http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		sentinel = domain.ErrAuthInvalid
	case statusCode == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case statusCode == http.StatusConflict:
		sentinel = domain.ErrDuplicate
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		sentinel = domain.ErrInvalidInput
	case statusCode >= 500:
		sentinel = domain.ErrServiceUnavailable
	default:
		sentinel = fmt.Errorf("unexpected status %d", statusCode)
	}
	return &StatusError{StatusCode: statusCode, Detail: errorDetail(body), Err: sentinel}
}

// errorDetail extracts a message from an error body. The service answers
// {"detail": "..."} or {"error": "..."}; anything else is returned trimmed.
func errorDetail(body []byte) string {
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch d := payload.Detail.(type) {
		case string:
			return d
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}

// do executes req, checks the status and decodes a JSON body into out
// (skipped when out is nil).
func (c *Client) do(ctx context.Context, req *http.Request, remap statusRemap, out any) error {
	if err := c.prepare(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapHTTPError(resp.StatusCode, body, remap)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", errBadPayload, err)
	}
	return nil
}

// newJSONRequest builds a request with an optional JSON body.
func (c *Client) newJSONRequest(ctx context.Context, method, path string, query map[string]string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
