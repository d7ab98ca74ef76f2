package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultMaxBodyBytes = 32 << 20
	defaultUserAgent    = "havencomics-scraper/1.0"
)

var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrBodyTooLarge     = errors.New("response body too large")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ProgressFunc receives human-readable retry progress such as "attempt 2/3".
type ProgressFunc func(message string)

type Response struct {
	Body        []byte
	ContentType string
	StatusCode  int
	Attempts    int
}

// Policy controls how many times a request is attempted and how long to
// wait between attempts. MaxAttempts <= 0 keeps trying until the context
// is cancelled.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// RetryStatus decides whether a response status is worth retrying.
	// Nil retries every non-2xx status.
	RetryStatus func(status int) bool
}

func BoundedPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   1,
		RetryStatus:  isGatewayStatus,
	}
}

func PersistentPolicy() Policy {
	return Policy{
		MaxAttempts:  0,
		InitialDelay: 3 * time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
	}
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		if p.Multiplier <= 1 {
			break
		}
		d = time.Duration(float64(d) * p.Multiplier)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if p.RetryStatus == nil {
			return true
		}
		return p.RetryStatus(statusErr.StatusCode)
	}
	return true
}

func isGatewayStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

type Fetcher struct {
	httpClient   *http.Client
	logger       *slog.Logger
	userAgent    string
	maxBodyBytes int64
	bounded      Policy
	persistent   Policy
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if strings.TrimSpace(userAgent) != "" {
			f.userAgent = userAgent
		}
	}
}

// WithMaxBodyBytes caps the size of a response body, before and after
// decompression.
func WithMaxBodyBytes(limit int64) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.maxBodyBytes = limit
		}
	}
}

func WithBoundedPolicy(policy Policy) Option {
	return func(f *Fetcher) {
		f.bounded = policy
	}
}

func WithPersistentPolicy(policy Policy) Option {
	return func(f *Fetcher) {
		f.persistent = policy
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		logger:       slog.Default(),
		userAgent:    defaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
		bounded:      BoundedPolicy(),
		persistent:   PersistentPolicy(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches url with the bounded policy. Only gateway failures and
// network errors are retried; any other non-2xx fails at once.
func (f *Fetcher) Get(ctx context.Context, rawURL string, progress ProgressFunc) (*Response, error) {
	return f.do(ctx, rawURL, f.bounded, progress)
}

// GetPersistent keeps retrying any failure with exponential backoff until
// it succeeds, the context is cancelled or the policy's attempt cap is hit.
func (f *Fetcher) GetPersistent(ctx context.Context, rawURL string, progress ProgressFunc) (*Response, error) {
	return f.do(ctx, rawURL, f.persistent, progress)
}

func (f *Fetcher) do(ctx context.Context, rawURL string, policy Policy, progress ProgressFunc) (*Response, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", redact(rawURL), err)
		}

		report(progress, attemptMessage(attempt, policy.MaxAttempts))
		response, err := f.once(ctx, rawURL)
		if err == nil {
			response.Attempts = attempt
			return response, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", redact(rawURL), ctx.Err())
		}
		lastErr = err

		if !policy.retryable(err) {
			return nil, err
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, fmt.Errorf("fetch %s: %w after %d attempts: %w", redact(rawURL), ErrRetriesExhausted, attempt, lastErr)
		}

		wait := policy.delay(attempt)
		f.logger.Debug("fetch attempt failed", "url", redact(rawURL), "attempt", attempt, "retryIn", wait.String(), "error", err)
		report(progress, fmt.Sprintf("reconnecting in %s", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("fetch %s: %w", redact(rawURL), ctx.Err())
		case <-timer.C:
		}
	}
}

func (f *Fetcher) once(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", redact(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: redact(rawURL)}
	}

	raw, err := readLimited(resp.Body, f.maxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", redact(rawURL), err)
	}

	body, err := decodeBody(raw, resp.Header.Get("Content-Encoding"), f.maxBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("decode body %s: %w", redact(rawURL), err)
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

func attemptMessage(attempt int, maxAttempts int) string {
	if maxAttempts > 0 {
		return fmt.Sprintf("attempt %d/%d", attempt, maxAttempts)
	}
	return fmt.Sprintf("attempt %d", attempt)
}

func report(progress ProgressFunc, message string) {
	if progress != nil {
		progress(message)
	}
}

// redact drops the query string so proxy credentials never reach logs or
// error messages.
func redact(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	parsed.RawQuery = ""
	parsed.User = nil
	return parsed.String()
}
