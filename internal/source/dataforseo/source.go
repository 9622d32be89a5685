// Package dataforseo collects Trustpilot reviews through DataForSEO's
// asynchronous task API: task_post, then tasks_ready polling, then task_get.
package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

const (
	DefaultBaseURL         = "https://api.dataforseo.com/v3/business_data/trustpilot/reviews"
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 15

	// depth is billed per SERP of 20 reviews
	depthUnit = 20
	maxDepth  = 5000
)

var timestampLayouts = []string{"2006-01-02 15:04:05 -07:00", "2006-01-02 15:04:05", time.RFC3339}

// TaskState is the lifecycle of one vendor task.
type TaskState string

const (
	StateSubmitted TaskState = "submitted"
	StatePolling   TaskState = "polling"
	StateReady     TaskState = "ready"
	StateFetched   TaskState = "fetched"
	StateTimedOut  TaskState = "timed_out"
)

type Config struct {
	BaseURL         string
	PollInterval    time.Duration
	MaxPollAttempts int
}

type Source struct {
	client          *source.Client
	baseURL         string
	login           string
	password        string
	pollInterval    time.Duration
	maxPollAttempts int
	logger          *slog.Logger
	now             func() time.Time

	// OnState observes task transitions.
	OnState func(taskID string, state TaskState)
}

func New(client *source.Client, cfg Config, creds domain.Credentials, logger *slog.Logger) (*Source, error) {
	if err := creds.Require("login", "password"); err != nil {
		return nil, fmt.Errorf("dataforseo: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = DefaultMaxPollAttempts
	}
	return &Source{
		client:          client,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		login:           creds.Get("login"),
		password:        creds.Get("password"),
		pollInterval:    cfg.PollInterval,
		maxPollAttempts: cfg.MaxPollAttempts,
		logger:          logger.With("source", domain.KindBusinessReview, "vendor", "dataforseo"),
		now:             time.Now,
	}, nil
}

// Depth rounds limit up to the vendor's billing unit, capped at maxDepth.
func Depth(limit int) int {
	d := min(limit, maxDepth)
	return (d + depthUnit - 1) / depthUnit * depthUnit
}

func (s *Source) Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	taskID, err := s.submit(ctx, q.Origin, Depth(q.Limit))
	if err != nil {
		return nil, err
	}
	s.transition(taskID, StateSubmitted)

	if err := s.poll(ctx, taskID); err != nil {
		return nil, err
	}
	s.transition(taskID, StateReady)

	items, err := s.fetch(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.transition(taskID, StateFetched)

	records := make([]domain.Record, 0, min(len(items), q.Limit))
	for _, raw := range items {
		if len(records) >= q.Limit {
			break
		}
		rec, err := s.toRecord(raw, q)
		if err != nil {
			s.logger.Warn("skipping review", "task_id", taskID, "error", err)
			continue
		}
		records = append(records, rec)
	}

	s.logger.Info("collected reviews", "task_id", taskID, "items", len(items), "records", len(records))
	return records, nil
}

func (s *Source) submit(ctx context.Context, domainName string, depth int) (string, error) {
	payload, err := json.Marshal([]taskPostRequest{{
		Domain:   domainName,
		Depth:    depth,
		SortBy:   "recency",
		Priority: 1,
		Tag:      "trustpilot_" + domainName,
	}})
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	var resp Envelope[json.RawMessage]
	err = s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/task_post", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(s.login, s.password)
		return req, nil
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}

	if len(resp.Tasks) == 0 {
		return "", fmt.Errorf("submit task: %w: no tasks in response", domain.ErrSourceUnavailable)
	}
	task := resp.Tasks[0]
	if task.ID == "" {
		return "", fmt.Errorf("submit task: %w: no task id in response", domain.ErrSourceUnavailable)
	}
	if task.StatusCode != StatusTaskCreated {
		return "", fmt.Errorf("submit task: %w: %s (code %d)", domain.ErrSourceUnavailable, task.StatusMessage, task.StatusCode)
	}

	s.logger.Debug("task created", "task_id", task.ID, "domain", domainName, "depth", depth)
	return task.ID, nil
}

// poll checks tasks_ready up to maxPollAttempts times. A failed check still
// counts as an attempt.
func (s *Source) poll(ctx context.Context, taskID string) error {
	s.transition(taskID, StatePolling)

	for attempt := 1; attempt <= s.maxPollAttempts; attempt++ {
		ready, err := s.isReady(ctx, taskID)
		switch {
		case err != nil:
			s.logger.Warn("poll attempt failed", "task_id", taskID, "attempt", attempt, "error", err)
		case ready:
			return nil
		default:
			s.logger.Debug("task not ready", "task_id", taskID, "attempt", attempt, "max_attempts", s.maxPollAttempts)
		}

		if attempt == s.maxPollAttempts {
			break
		}
		if err := source.Sleep(ctx, s.pollInterval); err != nil {
			return fmt.Errorf("poll task %s: %w: %w", taskID, domain.ErrSourceUnavailable, err)
		}
	}

	s.transition(taskID, StateTimedOut)
	return fmt.Errorf("task %s not ready after %d attempts: %w", taskID, s.maxPollAttempts, domain.ErrPollTimeout)
}

func (s *Source) isReady(ctx context.Context, taskID string) (bool, error) {
	var resp Envelope[ReadyTask]
	err := s.client.Once(ctx, s.get("/tasks_ready"), &resp)
	if err != nil {
		return false, err
	}
	return containsReady(resp, taskID), nil
}

// containsReady searches tasks[].result[].id.
func containsReady(resp Envelope[ReadyTask], taskID string) bool {
	for _, container := range resp.Tasks {
		for _, ready := range container.Result {
			if ready.ID == taskID {
				return true
			}
		}
	}
	return false
}

func (s *Source) fetch(ctx context.Context, taskID string) ([]json.RawMessage, error) {
	var resp Envelope[ReviewResult]
	if err := s.client.Do(ctx, s.get("/task_get/"+taskID), &resp); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if len(resp.Tasks) == 0 || len(resp.Tasks[0].Result) == 0 {
		s.logger.Warn("task returned no results", "task_id", taskID)
		return nil, nil
	}
	return resp.Tasks[0].Result[0].Items, nil
}

func (s *Source) get(path string) source.RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(s.login, s.password)
		return req, nil
	}
}

func (s *Source) toRecord(raw json.RawMessage, q domain.Query) (domain.Record, error) {
	var r Review
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}

	rating := 0
	if r.Rating != nil {
		rating = int(r.Rating.Value)
	}
	var author, country string
	if r.UserProfile != nil {
		author = r.UserProfile.Name
		country = r.UserProfile.Location
	}
	language := r.Language
	if len(language) < 2 {
		language = "en"
	}
	backlink := r.URL
	if backlink == "" {
		backlink = "https://www.trustpilot.com/review/" + q.Origin
	}

	now := s.now()
	rec, err := domain.NewRecord(domain.RecordInput{
		ID:         domain.StableID(q.Origin, author, r.Title, r.Timestamp),
		Kind:       domain.KindBusinessReview,
		Brand:      q.Brand,
		Origin:     q.Origin,
		Backlink:   backlink,
		Title:      strings.TrimSpace(r.Title),
		Body:       strings.TrimSpace(r.ReviewText),
		Rating:     rating,
		Language:   language,
		Country:    country,
		AuthorHint: author,
		CreatedAt:  source.ParseDate(s.logger, r.Timestamp, now, timestampLayouts...),
		FetchedAt:  now,
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	return rec, nil
}

func (s *Source) transition(taskID string, state TaskState) {
	s.logger.Debug("task state", "task_id", taskID, "state", state)
	if s.OnState != nil {
		s.OnState(taskID, state)
	}
}
