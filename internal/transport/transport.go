// Package transport issues the HTTP calls every adapter shares: one Send
// primitive with a timeout raced against external cancellation, normalized
// errors, and a local-relay fallback for requests the direct network path
// cannot satisfy.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/casualjim/modelbridge/provider"
	"github.com/go-openapi/swag"
)

// FileMarker is the textual local-file reference that forces the relay path:
// bodies containing it reference assets only a local process can read.
const FileMarker = "file://"

// Strategy selects how a request reaches the provider.
type Strategy string

const (
	// StrategyAuto lets the transport pick: direct, unless the request needs
	// the relay (file references, TLS relaxation, HTTP/1.1 forcing).
	StrategyAuto Strategy = ""
	// StrategyNative forces the direct network path.
	StrategyNative Strategy = "native"
	// StrategyRelay forces the local relay.
	StrategyRelay Strategy = "relay"
)

// DefaultTimeout bounds requests whose spec carries no explicit timeout.
const DefaultTimeout = 5 * time.Minute

// Spec describes one outgoing request.
type Spec struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration

	Strategy  Strategy
	TLSRelax  bool
	HTTP1Only bool
	Proxy     string

	_ struct{}
}

// Handle is the normalized response: status, headers and a body reader whose
// lifetime is bound to the operation deadline, so a pathologically slow
// stream still aborts with a timeout.
type Handle struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       io.ReadCloser
}

// Close releases the body and the underlying cancellation resources.
func (h *Handle) Close() error { return h.Body.Close() }

// Client issues requests. The zero value is not usable; construct with New.
type Client struct {
	http     *http.Client
	relayURL string
	log      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRelayURL points the relay fallback at a different local endpoint.
func WithRelayURL(url string) Option {
	return func(c *Client) { c.relayURL = url }
}

// WithLogger substitutes the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a Client with sensible connection pooling defaults. The overall
// request timeout is enforced per call, not on the http.Client, so streaming
// bodies stay readable past the header phase.
func New(options ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		relayURL: "http://127.0.0.1:18760/relay",
		log:      slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NeedsRelay reports whether the spec must go through the local relay: the
// body textually contains a local-file reference, the relay strategy is
// forced, or TLS relaxation / HTTP/1.1 forcing is requested while the native
// strategy is not.
func NeedsRelay(spec Spec) bool {
	if spec.Strategy == StrategyRelay {
		return true
	}
	if bytes.Contains(spec.Body, []byte(FileMarker)) {
		return true
	}
	if spec.Strategy != StrategyNative && (spec.TLSRelax || spec.HTTP1Only) {
		return true
	}
	return false
}

// Send issues the request described by spec. The timeout is raced against
// ctx: whichever fires first aborts the in-flight call, and the resulting
// error stays distinguishable afterwards (TimeoutError vs CancellationError).
// Non-2xx responses surface as *provider.HTTPStatusError with the response
// body attached; network failures as *provider.ConnectivityError.
func (c *Client) Send(ctx context.Context, spec Spec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		// Already cancelled: fail without issuing the call.
		return nil, c.mapContextErr(ctx)
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// Tag the deadline abort so it is distinguishable from an external
	// cancel even though both travel through the same context.
	tErr := &provider.TimeoutError{After: timeout}
	opCtx, cancel := context.WithTimeoutCause(ctx, timeout, tErr)

	if NeedsRelay(spec) {
		h, err := c.sendRelay(opCtx, spec, timeout)
		if err != nil {
			cancel()
			return nil, err
		}
		h.Body = &deadlineBody{body: h.Body, ctx: opCtx, cancel: cancel}
		return h, nil
	}

	handle, err := c.sendDirect(opCtx, spec)
	if err != nil {
		cancel()
		return nil, err
	}
	// Keep the deadline armed while the caller drains the body.
	handle.Body = &deadlineBody{body: handle.Body, ctx: opCtx, cancel: cancel}
	return handle, nil
}

func (c *Client) sendDirect(ctx context.Context, spec Spec) (*Handle, error) {
	req, err := http.NewRequestWithContext(ctx, spec.Method, spec.URL, bytes.NewReader(spec.Body))
	if err != nil {
		return nil, &provider.ConnectivityError{Op: spec.Method, URL: spec.URL, Err: err}
	}
	for k, vs := range spec.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.log.Debug("dispatching request", slog.String("method", spec.Method), slog.String("url", spec.URL))

	resp, err := c.http.Do(req)
	if err != nil {
		if isIdempotentRetryable(spec, err, ctx) {
			c.log.Debug("retrying idempotent request", slog.String("url", spec.URL))
			retry, rerr := http.NewRequestWithContext(ctx, spec.Method, spec.URL, bytes.NewReader(spec.Body))
			if rerr == nil {
				retry.Header = req.Header.Clone()
				resp, err = c.http.Do(retry)
			}
		}
		if err != nil {
			return nil, c.mapSendErr(ctx, spec, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp)
	}

	return &Handle{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// isIdempotentRetryable allows exactly one retry, and only for GETs that
// failed before any response bytes arrived. Nothing is ever re-issued after a
// partial stream has begun: partial content cannot be safely replayed.
func isIdempotentRetryable(spec Spec, err error, ctx context.Context) bool {
	if spec.Method != http.MethodGet {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) mapSendErr(ctx context.Context, spec Spec, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return c.mapContextErr(ctx)
	}
	return &provider.ConnectivityError{Op: spec.Method, URL: spec.URL, Err: err}
}

func (c *Client) mapContextErr(ctx context.Context) error {
	cause := context.Cause(ctx)
	var te *provider.TimeoutError
	if errors.As(cause, &te) {
		return te
	}
	return &provider.CancellationError{Err: cause}
}

func newStatusError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &provider.HTTPStatusError{
		StatusCode:        resp.StatusCode,
		Status:            resp.Status,
		Body:              strings.TrimSpace(string(body)),
		RetryAfterSeconds: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) *float64 {
	if value == "" {
		return nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return swag.Float64(seconds)
	}
	for _, layout := range []string{time.RFC1123, time.RFC850} {
		if t, err := time.Parse(layout, value); err == nil {
			seconds := time.Until(t).Seconds()
			if seconds < 0 {
				seconds = 0
			}
			return swag.Float64(seconds)
		}
	}
	return nil
}

// ParseRateLimit lifts best-effort rate-limit telemetry from response
// headers. Returns nil when no known header is present.
func ParseRateLimit(headers http.Header) *provider.RateLimit {
	info := &provider.RateLimit{}
	hasAny := false

	grab := func(name string, dst **int) {
		if v := headers.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = swag.Int(n)
				hasAny = true
			}
		}
	}
	grab("x-ratelimit-remaining-requests", &info.RequestsRemaining)
	grab("x-ratelimit-limit-requests", &info.RequestsLimit)
	grab("x-ratelimit-remaining-tokens", &info.TokensRemaining)
	grab("x-ratelimit-limit-tokens", &info.TokensLimit)

	if !hasAny {
		return nil
	}
	return info
}

// deadlineBody keeps the operation context alive while the caller drains the
// stream and maps late aborts onto the error taxonomy.
type deadlineBody struct {
	body   io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *deadlineBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if err != nil && err != io.EOF {
		if ctxErr := b.ctx.Err(); ctxErr != nil {
			cause := context.Cause(b.ctx)
			var te *provider.TimeoutError
			if errors.As(cause, &te) {
				return n, te
			}
			return n, &provider.CancellationError{Err: cause}
		}
	}
	return n, err
}

func (b *deadlineBody) Close() error {
	b.cancel()
	return b.body.Close()
}
