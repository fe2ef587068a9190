// Package relay forwards a caller's request to an upstream URL as if it came
// from the upstream's own site, walking redirects itself so the rewritten
// headers survive every hop.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tilerelay/tilerelay/internal/metrics"
)

const (
	// DefaultMaxHops is the redirect budget of one relay call.
	DefaultMaxHops = 3

	// DefaultMaxBodyBytes caps the inbound body buffered for replay.
	DefaultMaxBodyBytes int64 = 32 << 20

	// HeaderDisabledLocation carries a redirect the relay refused to follow.
	HeaderDisabledLocation = "X-Disabled-Location"
	// HeaderSetCookie carries upstream Set-Cookie values.
	HeaderSetCookie = "X-Set-Cookie"
)

// ErrMissingTarget is returned when the url query parameter is absent.
var ErrMissingTarget = errors.New("missing url query parameter")

// Options configures a Relay.
type Options struct {
	MaxHops int
	// Timeout bounds each upstream exchange; 0 means no timeout.
	Timeout time.Duration
	// RateLimit is upstream requests per second; 0 disables limiting.
	RateLimit    float64
	MaxBodyBytes int64
}

// DefaultOptions returns the relay defaults.
func DefaultOptions() Options {
	return Options{
		MaxHops:      DefaultMaxHops,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Target is what a proxied request asks for.
type Target struct {
	URL     string
	Cookies string
}

// ParseTarget reads the url and cookies query parameters.
func ParseTarget(r *http.Request) (Target, error) {
	q := r.URL.Query()
	t := Target{URL: q.Get("url"), Cookies: q.Get("cookies")}
	if t.URL == "" {
		return t, ErrMissingTarget
	}
	return t, nil
}

// RedirectState tracks the redirect walk of one relay call.
type RedirectState struct {
	Response *http.Response
	Location string
	Hops     int
	MaxHops  int
}

// Relay is an http.Handler that proxies ?url= targets.
type Relay struct {
	client       *http.Client
	limiter      *rate.Limiter
	maxHops      int
	maxBodyBytes int64
	logger       *logging.Logger
}

// New builds a relay whose client never follows redirects on its own.
func New(opts Options, logger *logging.Logger) *Relay {
	if opts.MaxHops < 0 {
		opts.MaxHops = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(int(opts.RateLimit), 1))
	}

	return &Relay{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:      limiter,
		maxHops:      opts.MaxHops,
		maxBodyBytes: opts.MaxBodyBytes,
		logger:       logger,
	}
}

// hopTemplate is the rewritten request replayed unchanged on every hop.
type hopTemplate struct {
	method string
	header http.Header
	body   []byte
}

func (t hopTemplate) build(ctx context.Context, target string) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(t.body) > 0 {
		body = bytes.NewReader(t.body)
	}
	req, err := http.NewRequestWithContext(ctx, t.method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header = t.header.Clone()
	return req, nil
}

// Do performs the upstream exchange for inbound and returns the sanitized
// response. The caller closes the response body.
func (r *Relay) Do(ctx context.Context, inbound *http.Request) (*http.Response, error) {
	target, err := ParseTarget(inbound)
	if err != nil {
		return nil, err
	}

	tmpl, err := r.template(inbound, target)
	if err != nil {
		return nil, err
	}

	state := &RedirectState{MaxHops: r.maxHops}
	current := target.URL
	if state.Response, err = r.dispatch(ctx, tmpl, current); err != nil {
		return nil, err
	}
	state.Location = state.Response.Header.Get("Location")

	for state.Location != "" && state.Hops < state.MaxHops {
		next, err := resolveLocation(current, state.Location)
		if err != nil {
			closeBody(state.Response)
			return nil, err
		}
		closeBody(state.Response)

		state.Hops++
		metrics.RecordRedirectHop()
		current = next
		if state.Response, err = r.dispatch(ctx, tmpl, current); err != nil {
			return nil, err
		}
		state.Location = state.Response.Header.Get("Location")
	}

	resp := state.Response
	if state.Location != "" {
		resp.Header.Set(HeaderDisabledLocation, state.Location)
		resp.Header.Del("Location")
		metrics.RecordRedirectDisabled()
		r.debug("Redirect budget exhausted",
			zap.String("target", target.URL),
			zap.String("location", state.Location),
			zap.Int("hops", state.Hops))
	}

	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) > 0 {
		resp.Header.Set(HeaderSetCookie, strings.Join(cookies, ", "))
	}
	resp.Header.Del("Set-Cookie")

	return resp, nil
}

// ServeHTTP relays the request. Every failure, including a panic, becomes a
// 500 with the error text as a plain body.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordPanic()
			r.fail(w, req, fmt.Errorf("relay panic: %v", rec))
		}
	}()

	resp, err := r.Do(req.Context(), req)
	if err != nil {
		r.fail(w, req, err)
		return
	}
	defer closeBody(resp)

	CopyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	metrics.RecordRelayRequest(req.Method, resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		r.warn("Failed to stream upstream body", zap.Error(err))
	}
}

func (r *Relay) fail(w http.ResponseWriter, req *http.Request, err error) {
	if r.logger != nil {
		r.logger.Error("Relay failed",
			zap.String("method", req.Method),
			zap.String("target", req.URL.Query().Get("url")),
			zap.Error(err))
	}
	metrics.RecordRelayRequest(req.Method, http.StatusInternalServerError)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, err.Error())
}

func (r *Relay) template(inbound *http.Request, target Target) (hopTemplate, error) {
	var body []byte
	if inbound.Body != nil && inbound.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(inbound.Body, r.maxBodyBytes+1))
		if err != nil {
			return hopTemplate{}, fmt.Errorf("read request body: %w", err)
		}
		if int64(len(data)) > r.maxBodyBytes {
			return hopTemplate{}, fmt.Errorf("request body exceeds %d bytes", r.maxBodyBytes)
		}
		body = data
	}

	header := inbound.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	stripHopByHop(header)
	header.Del("Content-Length")
	header.Del("Host")

	if origin, err := originOf(target.URL); err != nil {
		r.warn("Invalid URL: "+target.URL, zap.Error(err))
	} else {
		header.Set("Origin", origin)
	}
	header.Set("Referer", target.URL)
	if target.Cookies != "" {
		header.Set("Cookie", target.Cookies)
	}

	return hopTemplate{method: inbound.Method, header: header, body: body}, nil
}

func (r *Relay) dispatch(ctx context.Context, tmpl hopTemplate, target string) (*http.Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := tmpl.build(ctx, target)
	if err != nil {
		return nil, err
	}

	r.debug("Making upstream request",
		zap.String("method", req.Method),
		zap.String("url", target))

	return r.client.Do(req)
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute URL")
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == defaultPorts[scheme] {
		port = ""
	}
	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port), nil
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host, nil
}

// defaultPorts are dropped from a serialized origin.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", location, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func closeBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func (r *Relay) debug(msg string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.Debug(msg, fields...)
	}
}

func (r *Relay) warn(msg string, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.Warn(msg, fields...)
	}
}
