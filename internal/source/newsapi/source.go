// Package newsapi collects news articles mentioning a brand from NewsAPI.org.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

const (
	DefaultBaseURL = "https://newsapi.org/v2"
	MaxPageSize    = 100

	SearchEverything   = "everything"
	SearchTopHeadlines = "top-headlines"
)

// Source pages through /everything or /top-headlines until the limit, the
// reported totalResults or the page bound is reached.
type Source struct {
	client  *source.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
	now     func() time.Time
}

func New(client *source.Client, baseURL string, creds domain.Credentials, logger *slog.Logger) (*Source, error) {
	if err := creds.Require("api_key"); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Source{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  creds.Get("api_key"),
		logger:  logger.With("source", domain.KindNewsArticle),
		now:     time.Now,
	}, nil
}

func (s *Source) Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	cfg := q.Config
	searchType := cfg.SearchType
	if searchType == "" {
		searchType = SearchEverything
	}
	if searchType != SearchEverything && searchType != SearchTopHeadlines {
		return nil, fmt.Errorf("%w: invalid search type %q", domain.ErrValidation, searchType)
	}
	if searchType == SearchTopHeadlines && cfg.Outlets != "" && (cfg.Country != "" || cfg.Category != "") {
		return nil, fmt.Errorf("%w: sources cannot be combined with country or category", domain.ErrValidation)
	}

	pageSize := source.PageSize(q.Limit, MaxPageSize)
	maxPages := source.MaxPages(q.Limit, pageSize)
	seen := 0

	var records []domain.Record
	for page := 1; page <= maxPages && len(records) < q.Limit; page++ {
		resp, err := s.fetchPage(ctx, searchType, q, pageSize, page)
		if err != nil {
			return records, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(resp.Articles) == 0 {
			break
		}
		seen += len(resp.Articles)

		for _, raw := range resp.Articles {
			if len(records) >= q.Limit {
				break
			}
			rec, err := s.toRecord(raw, q)
			if err != nil {
				s.logger.Warn("skipping article", "error", err)
				continue
			}
			records = append(records, rec)
		}

		s.logger.Debug("fetched page",
			"page", page,
			"articles", len(resp.Articles),
			"total_results", resp.TotalResults,
		)

		if seen >= resp.TotalResults {
			break
		}
	}

	return records, nil
}

func (s *Source) fetchPage(ctx context.Context, searchType string, q domain.Query, pageSize, page int) (*Response, error) {
	cfg := q.Config
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("page", strconv.Itoa(page))
	if q.Origin != "" {
		params.Set("q", q.Origin)
	}

	if searchType == SearchEverything {
		params.Set("sortBy", "publishedAt")
		setIf(params, "from", cfg.FromDate)
		setIf(params, "to", cfg.ToDate)
		setIf(params, "language", cfg.Language)
	} else {
		setIf(params, "country", cfg.Country)
		setIf(params, "category", cfg.Category)
		setIf(params, "sources", cfg.Outlets)
	}

	endpoint := fmt.Sprintf("%s/%s?%s", s.baseURL, searchType, params.Encode())

	var resp Response
	err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Api-Key", s.apiKey)
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Status != "ok" {
		if resp.Code == "rateLimited" {
			return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, resp.Message)
		}
		return nil, fmt.Errorf("%w: newsapi error %s: %s", domain.ErrSourceUnavailable, resp.Code, resp.Message)
	}
	return &resp, nil
}

func (s *Source) toRecord(raw json.RawMessage, q domain.Query) (domain.Record, error) {
	var a Article
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	if strings.TrimSpace(a.Title) == "" || a.URL == "" {
		return domain.Record{}, fmt.Errorf("%w: article without title or url", domain.ErrParse)
	}

	origin := a.Source.ID
	if origin == "" {
		origin = a.Source.Name
	}
	if origin == "" {
		origin = "unknown"
	}

	var body []string
	if a.Description != "" {
		body = append(body, a.Description)
	}
	if a.Content != "" {
		body = append(body, a.Content)
	}

	language := q.Config.Language
	if len(language) < 2 {
		language = "en"
	}

	now := s.now()
	rec, err := domain.NewRecord(domain.RecordInput{
		ID:         domain.StableID(a.URL),
		Kind:       domain.KindNewsArticle,
		Brand:      q.Brand,
		Origin:     origin,
		Backlink:   a.URL,
		Title:      strings.TrimSpace(a.Title),
		Body:       strings.Join(body, "\n\n"),
		Rating:     domain.RatingNotApplicable,
		Language:   language,
		Country:    q.Config.Country,
		AuthorHint: a.Author,
		CreatedAt:  source.ParseDate(s.logger, a.PublishedAt, now, time.RFC3339, "2006-01-02T15:04:05Z"),
		FetchedAt:  now,
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	return rec, nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
