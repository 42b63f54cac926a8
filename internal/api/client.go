package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/livetemplate/signup"
	"github.com/sirupsen/logrus"
)

const (
	maxErrorBody      = 1024
	maxValidationBody = 64 * 1024
)

// Client posts sign-up payloads to <base>/api/1.0/users.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *logrus.Entry
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout bounds every request. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger requests are reported to.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for the API rooted at baseURL. An empty baseURL
// posts to the path alone, which only works behind a proxy that resolves it.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logrus.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &http.Client{Timeout: c.timeout}
	return c
}

// URL returns the registration endpoint.
func (c *Client) URL() string {
	return c.baseURL + signup.UsersPath
}

// Register sends one sign-up request. It returns nil for any 2xx response,
// *ValidationError for 400, *HTTPError for other statuses and *RequestError
// when no response was received.
func (c *Client) Register(ctx context.Context, payload signup.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &RequestError{Op: "encode body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return &RequestError{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("users api responded")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return c.decodeValidation(resp.Body)
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       strings.TrimSpace(string(raw)),
		}
	}
}

// validationBody is the 400 response shape.
type validationBody struct {
	ValidationErrors signup.FieldErrors `json:"validationErrors"`
}

// decodeValidation never fails: a 400 whose body cannot be read still
// counts as a validation failure, just one without messages.
func (c *Client) decodeValidation(r io.Reader) *ValidationError {
	var body validationBody
	if err := json.NewDecoder(io.LimitReader(r, maxValidationBody)).Decode(&body); err != nil {
		c.log.WithError(fmt.Errorf("decode validation body: %w", err)).Warn("unreadable 400 response")
	}
	errs := body.ValidationErrors.Clone()
	if known := errs.Known(); len(known) < len(errs) {
		c.log.WithField("unknown", len(errs)-len(known)).Debug("validation errors for fields the form does not show")
	}
	return &ValidationError{Errors: errs}
}
