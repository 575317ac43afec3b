package anchor

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

	"anchor-e2e/internal/metrics"
	"anchor-e2e/internal/model"
	"anchor-e2e/pkg/logger"
)

// ErrUnexpectedStatus is matched by every *StatusError
var ErrUnexpectedStatus = errors.New("unexpected status code")

// ErrMalformedResponse is matched by errors decoding a 2xx response body
var ErrMalformedResponse = errors.New("malformed response")

// StatusError is returned for non-2xx anchor responses
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status code: %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// maxErrorBody bounds how much of an error response is kept for messages
const maxErrorBody = 512

// Client talks to the anchor platform's SEP-10/12/31/38 endpoints. Every
// request is bounded by the HTTP client timeout.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewClientWithHTTP creates a client over an existing HTTP client. The
// caller owns the timeout.
func NewClientWithHTTP(endpoints Endpoints, httpClient *http.Client, log *logger.Logger, m *metrics.Metrics) *Client {
	return &Client{
		httpClient: httpClient,
		endpoints:  endpoints,
		logger:     log,
		metrics:    m,
	}
}

// AuthHeader is a bearer token for authenticated calls
type AuthHeader string

// Bearer builds the Authorization header value for token
func Bearer(token string) AuthHeader {
	return AuthHeader("Bearer " + token)
}

// do sends one request and decodes a JSON response into out (if non-nil).
// label names the endpoint for logs and metrics.
func (c *Client) do(ctx context.Context, method, rawURL, label string, auth AuthHeader, body io.Reader, contentType string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "anchor-e2e/1.0")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth != "" {
		req.Header.Set("Authorization", string(auth))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, label, 0, time.Since(start))
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(method, label, resp.StatusCode, time.Since(start))

	c.logger.Debug("Anchor request",
		"method", method,
		"endpoint", label,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{
			Method: method,
			URL:    rawURL,
			Code:   resp.StatusCode,
			Body:   errorMessage(snippet),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w: %w", label, ErrMalformedResponse, err)
		}
	}
	return resp.StatusCode, nil
}

// doJSON marshals payload as the request body
func (c *Client) doJSON(ctx context.Context, method, rawURL, label string, auth AuthHeader, payload, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = c.do(ctx, method, rawURL, label, auth, bytes.NewReader(jsonData), "application/json", out)
	return err
}

// doForm posts url-encoded form values
func (c *Client) doForm(ctx context.Context, rawURL, label string, form url.Values, out any) error {
	_, err := c.do(ctx, http.MethodPost, rawURL, label, "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
	return err
}

// IsPermanent reports whether retrying the same request cannot help: a 4xx
// answer or a body that does not decode. Transport errors and 5xx answers
// are not permanent.
func IsPermanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}
	return errors.Is(err, ErrMalformedResponse)
}

func errorMessage(body []byte) string {
	var e model.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
