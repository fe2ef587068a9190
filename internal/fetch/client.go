// Package fetch is the outbound file retrieval used to locate and interpret
// manifests: page text, JSON documents and raw tile bodies.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	acceptText = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptJSON = "application/ld+json,application/json;q=0.9,*/*;q=0.1"
)

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		Retries:      2,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		UserAgent:    "tilerelay/dev",
	}
}

// Client fetches files over HTTP.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

// New builds a client. The retrying transport honours Retry-After on 429 and
// 503 responses and hands the last response back once retries run out.
func New(opts Options, logger *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(opts.Retries, 0)
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		retryClient.Logger = retryLogger{logger: logger}
	} else {
		retryClient.Logger = nil
	}

	client := resty.New().
		SetTransport(&retryablehttp.RoundTripper{Client: retryClient}).
		SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(int(opts.RateLimit), 1))
	}

	return &Client{resty: client, limiter: limiter, logger: logger}
}

// Text fetches rawURL and returns its body decoded to UTF-8.
func (c *Client) Text(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.get(ctx, rawURL, acceptText, false)
	if err != nil {
		return "", err
	}
	return decodeText(resp.Body(), resp.Header().Get("Content-Type"))
}

// JSON fetches rawURL and decodes its body into v.
func (c *Client) JSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.get(ctx, rawURL, acceptJSON, false)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// Open streams the body of rawURL. The caller closes it.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, rawURL, "image/*,*/*;q=0.8", true)
	if err != nil {
		return nil, err
	}
	return resp.RawBody(), nil
}

func (c *Client) get(ctx context.Context, rawURL, accept string, stream bool) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetDoNotParseResponse(stream).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		if stream && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}
		statusErr := newStatusError(rawURL, resp.RawResponse)
		if c.logger != nil {
			c.logger.Debug("Upstream returned non-success status",
				zap.String("url", rawURL),
				zap.Int("status", statusErr.StatusCode),
				zap.Duration("retry_after", statusErr.RetryAfter))
		}
		return nil, statusErr
	}
	return resp, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

func newStatusError(rawURL string, resp *http.Response) *StatusError {
	e := &StatusError{URL: rawURL}
	if resp == nil {
		e.Status = "no response"
		return e
	}
	e.StatusCode = resp.StatusCode
	e.Status = resp.Status
	if e.Status == "" {
		e.Status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	e.RetryAfter = retryAfter(resp.Header)
	return e
}

func retryAfter(h http.Header) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(value + "s"); err == nil {
		return seconds
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// retryLogger forwards retryablehttp's leveled logging to gofulmen.
type retryLogger struct {
	logger *logging.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.logger.Error(msg, kvFields(kv)...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.logger.Debug(msg, kvFields(kv)...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug(msg, kvFields(kv)...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.logger.Warn(msg, kvFields(kv)...) }

func kvFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}
