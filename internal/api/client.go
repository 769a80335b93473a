package api

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

	"go.uber.org/zap"

	"github.com/nhle/campus-client/internal/model"
)

// defaultTimeout bounds every request unless the caller's context
// carries an earlier deadline.
const defaultTimeout = 10 * time.Second

// CredentialSource supplies the current credential as a snapshot.
// The second return is false when no credential is held; the request
// is then sent unauthenticated, which is legal at this layer.
type CredentialSource interface {
	Current() (model.Credential, bool)
}

// CredentialFunc adapts a function to the CredentialSource interface.
type CredentialFunc func() (model.Credential, bool)

func (f CredentialFunc) Current() (model.Credential, bool) { return f() }

// Client executes authenticated HTTP requests against the backend with
// a bounded deadline and total failure classification. It is stateless
// apart from its configuration; every call reads the credential fresh
// from its source.
type Client struct {
	baseURL    string
	creds      CredentialSource
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient overrides the underlying transport, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new backend client. The baseURL is the root URL
// of the backend (e.g. https://campus.example.com). creds may be nil
// for a client that never authenticates.
func NewClient(baseURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get executes an HTTP GET request.
func (c *Client) Get(ctx context.Context, path string) Outcome {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post executes an HTTP POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) Outcome {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put executes an HTTP PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) Outcome {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Patch executes an HTTP PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) Outcome {
	return c.Do(ctx, http.MethodPatch, path, body)
}

// Delete executes an HTTP DELETE request.
func (c *Client) Delete(ctx context.Context, path string) Outcome {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do executes one request and returns exactly one Outcome; no error
// escapes unclassified. body, when non-nil, is marshaled as JSON.
//
// Classification, in priority order: deadline expiry is a timeout,
// caller cancellation is cancelled, any other transport error is
// network-unreachable, a non-2xx response is an HTTP error carrying
// the body, and everything else is unknown.
func (c *Client) Do(ctx context.Context, method, path string, body any) Outcome {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return failure(FailureUnknown, fmt.Sprintf("marshaling request body: %v", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	// The deadline timer is released on every exit path.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return failure(FailureUnknown, fmt.Sprintf("creating request: %v", err))
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if cred, ok := c.creds.Current(); ok {
			req.Header.Set("Authorization", "Bearer "+cred.Token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyTransport(ctx, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return failure(FailureTimeout, fmt.Sprintf("%s %s: deadline exceeded", method, path))
		}
		return failure(FailureUnknown, fmt.Sprintf("reading response body: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{
			Failure: &Failure{
				Kind:    FailureHTTP,
				Status:  resp.StatusCode,
				Message: failureMessage(respBody),
				Body:    respBody,
			},
		}
	}

	return Outcome{
		Status:  resp.StatusCode,
		Body:    respBody,
		Content: contentKind(resp.Header.Get("Content-Type")),
	}
}

// classifyTransport maps a transport-level error from http.Client.Do
// to a Failure, honouring the timeout-before-network priority.
func (c *Client) classifyTransport(ctx context.Context, method, path string, err error) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		c.logger.Debug("request timed out",
			zap.String("method", method), zap.String("path", path))
		return failure(FailureTimeout, fmt.Sprintf("%s %s: deadline exceeded", method, path))

	case errors.Is(err, context.Canceled):
		return failure(FailureCancelled, fmt.Sprintf("%s %s: cancelled", method, path))
	}

	// Everything else http.Client.Do surfaces is a dial, DNS, or
	// connection error wrapped in *url.Error.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		c.logger.Debug("network unreachable",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return failure(FailureNetwork, urlErr.Err.Error())
	}

	return failure(FailureUnknown, err.Error())
}

// contentKind interprets a response Content-Type header. Anything that
// does not declare JSON is handed to the caller as raw text.
func contentKind(contentType string) ContentKind {
	if strings.Contains(contentType, "json") {
		return ContentJSON
	}
	return ContentText
}

func failure(kind FailureKind, message string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: message}}
}
