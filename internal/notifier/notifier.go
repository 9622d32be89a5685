// Package notifier delivers the aggregated job result to the downstream
// consumer. Delivery is attempted once and never retried.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mention_collector/internal/domain"
)

const (
	DefaultTimeout   = 25 * time.Second
	DefaultUserAgent = "mention-collector/1.0"

	maxAckBody = 1 << 20
)

type HTTP struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

func NewHTTP(timeout time.Duration, userAgent string, logger *slog.Logger) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTP{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Notify POSTs notice as JSON. Any transport error or non-2xx status is
// returned wrapped in domain.ErrNotificationFailed.
func (n *HTTP) Notify(ctx context.Context, url string, notice domain.Notice) (domain.Ack, error) {
	if url == "" {
		return domain.Ack{}, fmt.Errorf("%w: no notify url for job %s", domain.ErrNotificationFailed, notice.JobID)
	}

	body, err := json.Marshal(notice)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("%w: encode notice: %w", domain.ErrNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Ack{}, fmt.Errorf("%w: create request: %w", domain.ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	ack := domain.Ack{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ack, fmt.Errorf("%w: unexpected status %d", domain.ErrNotificationFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBody))
	if err != nil {
		n.logger.Warn("failed to read notification response", "url", url, "error", err)
		return ack, nil
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &ack.Body); err != nil {
			n.logger.Debug("notification response is not a JSON object", "url", url)
		}
	}

	n.logger.Info("notification delivered", "url", url, "job_id", notice.JobID, "status", resp.StatusCode)
	return ack, nil
}

// Log writes the notice to the logger instead of delivering it.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (n *Log) Notify(_ context.Context, url string, notice domain.Notice) (domain.Ack, error) {
	succeeded := 0
	for _, o := range notice.Outcomes {
		if o.Success {
			succeeded++
		}
	}
	n.logger.Info("job result",
		"url", url,
		"job_id", notice.JobID,
		"brand", notice.Brand,
		"sources", len(notice.Outcomes),
		"succeeded", succeeded,
	)
	return domain.Ack{StatusCode: http.StatusOK}, nil
}

// Call is one recorded Memory delivery.
type Call struct {
	URL    string
	Notice domain.Notice
}

// Memory records deliveries. A non-nil Err fails every call.
type Memory struct {
	mu    sync.Mutex
	calls []Call
	Err   error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Notify(_ context.Context, url string, notice domain.Notice) (domain.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{URL: url, Notice: notice})
	if m.Err != nil {
		return domain.Ack{}, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, m.Err)
	}
	return domain.Ack{StatusCode: http.StatusOK}, nil
}

func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
