// Package source holds the HTTP plumbing shared by every vendor adapter:
// bounded retry with exponential backoff, error classification, optional
// client-side rate limiting and pagination bounds.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"mention_collector/internal/config"
	"mention_collector/internal/domain"
)

const maxErrorBody = 512

// Config holds shared client configuration.
type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RPS            float64
	Burst          int
	UserAgent      string
}

// FromAPIConfig maps a vendor section of the config file.
func FromAPIConfig(c config.APIConfig) Config {
	return Config{
		Timeout:        c.Timeout,
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		RPS:            c.RateLimit.RPS,
		Burst:          c.RateLimit.Burst,
	}
}

// Client executes vendor requests. Each branch owns its own Client.
type Client struct {
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	limiter        *rate.Limiter
	userAgent      string
	logger         *slog.Logger
}

// RequestFunc builds a fresh request per attempt so bodies can be re-read.
type RequestFunc func(ctx context.Context) (*http.Request, error)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mention-collector/1.0"
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		userAgent:      cfg.UserAgent,
		logger:         logger,
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c
}

// StatusError is a non-2xx vendor response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return domain.ErrSourceUnavailable
}

// retryable reports whether another attempt may succeed: rate limits, 5xx and
// transport failures. Other 4xx responses fail immediately.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return errors.Is(err, domain.ErrSourceUnavailable) && !errors.Is(err, errDecode)
}

var errDecode = errors.New("decode response")

// Do runs the request with bounded retry and decodes the JSON body into out.
func (c *Client) Do(ctx context.Context, build RequestFunc, out any) error {
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.once(ctx, build, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, ctx.Err())
		}
		if !retryable(err) || attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		if err := sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
	}

	return fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

// Once runs the request a single time without retry.
func (c *Client) Once(ctx context.Context, build RequestFunc, out any) error {
	return c.once(ctx, build, out)
}

func (c *Client) once(ctx context.Context, build RequestFunc, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %w", domain.ErrSourceUnavailable, err)
		}
	}

	req, err := build(ctx)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: execute request: %w", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w: %w", domain.ErrSourceUnavailable, errDecode, err)
	}
	return nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
