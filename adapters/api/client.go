package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dataexplorer/domain/core"
	"dataexplorer/internal"
	"dataexplorer/internal/errors"
	"dataexplorer/ports"

	"github.com/tidwall/gjson"
)

// RequestIDHeader correlates client and service logs for one call
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is echoed into errors
const maxErrorBody = 512

var _ ports.AnalysisService = (*Client)(nil)

// Client talks to the remote analysis service over HTTP
type Client struct {
	config      ClientConfig
	baseURL     *url.URL
	httpClient  *http.Client
	rateLimiter *RateLimiter
	logger      *internal.Logger
}

// NewClient creates a client for the configured service
func NewClient(config ClientConfig, logger *internal.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "invalid analysis service URL")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Client{
		config:  config,
		baseURL: base,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:      logger.WithComponent("AnalysisClient"),
	}, nil
}

// BaseURL returns the service root the client resolves paths against
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}

// resolve turns a service path or an absolute URL into an absolute URL
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// buildRequest attaches the request id and content type
func (c *Client) buildRequest(ctx context.Context, method, ref string, body io.Reader, contentType string) (*http.Request, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(RequestIDHeader, string(core.NewRequestID()))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// response is a fully read HTTP response
type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) isJSON() bool {
	return strings.Contains(r.contentType, "json") || (gjson.ValidBytes(r.body) && bytes.HasPrefix(bytes.TrimSpace(r.body), []byte("{")))
}

// do waits for the rate limiter, sends the request, and reads the whole body.
// Non-2xx statuses become external service errors carrying the service's
// `error` or `detail` text when present.
func (c *Client) do(req *http.Request, call string) (*response, error) {
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("%s: rate limit wait: %w", call, err))
	}

	requestID := req.Header.Get(RequestIDHeader)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("%s %s failed [request_id=%s]: %v", req.Method, req.URL.Path, requestID, err)
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("%s: HTTP request failed: %w", call, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("%s: failed to read response: %w", call, err))
	}
	c.logger.Debug("%s %s -> %d in %s [request_id=%s]", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)

	out := &response{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.ExternalServiceError("analysis", fmt.Errorf("%s returned status %d: %s", call, resp.StatusCode, failureText(out)))
	}
	return out, nil
}

// failureText prefers the service's own message over the raw body
func failureText(r *response) string {
	if gjson.ValidBytes(r.body) {
		for _, field := range []string{"error", "detail", "message"} {
			if v := gjson.GetBytes(r.body, field); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
	}
	text := strings.TrimSpace(string(r.body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		text = http.StatusText(r.status)
	}
	return text
}

// reportedError returns the `{error: ...}` payload of a 2xx response, if any
func reportedError(call string, r *response) error {
	if !r.isJSON() {
		return nil
	}
	if v := gjson.GetBytes(r.body, "error"); v.Exists() && v.Type != gjson.Null {
		return errors.ServiceReported(call, v.String())
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, call, path string, payload interface{}) (*response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s request", call)
	}
	req, err := c.buildRequest(ctx, http.MethodPost, path, bytes.NewReader(raw), "application/json")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s request", call)
	}
	return c.do(req, call)
}

func (c *Client) postMultipart(ctx context.Context, call, path string, write func(*multipart.Writer) error) (*response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := write(mw); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s form", call)
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s form", call)
	}
	req, err := c.buildRequest(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s request", call)
	}
	return c.do(req, call)
}
