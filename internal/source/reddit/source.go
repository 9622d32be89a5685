// Package reddit collects posts mentioning a brand from Reddit search.
package reddit

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
	DefaultBaseURL = "https://oauth.reddit.com"
	DefaultAuthURL = "https://www.reddit.com/api/v1/access_token"
	MaxPageSize    = 100
)

// Source searches all of Reddit for the exact keyword phrase, following the
// listing's after token. Posts older than DaysBack are filtered out, so the
// page bound is computed over twice the limit.
type Source struct {
	client       *source.Client
	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	userAgent    string
	logger       *slog.Logger
	now          func() time.Time

	token string
}

func New(client *source.Client, baseURL, authURL string, creds domain.Credentials, logger *slog.Logger) (*Source, error) {
	if err := creds.Require("client_id", "client_secret"); err != nil {
		return nil, fmt.Errorf("reddit: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	userAgent := creds.Get("user_agent")
	if userAgent == "" {
		userAgent = "mention-collector/1.0"
	}
	return &Source{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		authURL:      authURL,
		clientID:     creds.Get("client_id"),
		clientSecret: creds.Get("client_secret"),
		userAgent:    userAgent,
		logger:       logger.With("source", domain.KindSocialPost),
		now:          time.Now,
	}, nil
}

func (s *Source) Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	if err := s.authenticate(ctx); err != nil {
		return nil, err
	}

	daysBack := q.Config.DaysBack
	if daysBack <= 0 {
		daysBack = 30
	}
	sort := q.Config.Sort
	if sort == "" {
		sort = "new"
	}
	cutoff := s.now().AddDate(0, 0, -daysBack)

	pageSize := source.PageSize(q.Limit, MaxPageSize)
	maxPages := source.MaxPages(q.Limit*2, pageSize)
	after := ""
	filtered := 0

	var records []domain.Record
	for page := 1; page <= maxPages && len(records) < q.Limit; page++ {
		listing, err := s.search(ctx, q.Origin, sort, pageSize, after)
		if err != nil {
			return records, fmt.Errorf("fetch page %d: %w", page, err)
		}

		for _, child := range listing.Data.Children {
			if len(records) >= q.Limit {
				break
			}
			var post Post
			if err := json.Unmarshal(child.Data, &post); err != nil {
				s.logger.Warn("skipping malformed post", "error", fmt.Errorf("%w: %w", domain.ErrParse, err))
				continue
			}
			created := time.Unix(int64(post.CreatedUTC), 0).UTC()
			if created.Before(cutoff) {
				filtered++
				continue
			}
			rec, err := s.toRecord(post, created, q)
			if err != nil {
				s.logger.Warn("skipping invalid post", "id", post.ID, "error", fmt.Errorf("%w: %w", domain.ErrParse, err))
				continue
			}
			records = append(records, rec)
		}

		after = listing.Data.After
		if after == "" || len(listing.Data.Children) == 0 {
			break
		}
	}

	s.logger.Debug("reddit search finished", "posts", len(records), "filtered_out", filtered)
	return records, nil
}

func (s *Source) authenticate(ctx context.Context) error {
	if s.token != "" {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	var tok tokenResponse
	err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(s.clientID, s.clientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", s.userAgent)
		return req, nil
	}, &tok)
	if err != nil {
		return fmt.Errorf("reddit auth: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("reddit auth: %w: empty access token", domain.ErrSourceUnavailable)
	}

	s.token = tok.AccessToken
	return nil
}

func (s *Source) search(ctx context.Context, keywords, sort string, limit int, after string) (*Listing, error) {
	params := url.Values{}
	params.Set("q", `"`+keywords+`"`)
	params.Set("sort", sort)
	params.Set("t", "month")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("type", "link")
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}
	endpoint := s.baseURL + "/search?" + params.Encode()

	var listing Listing
	err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+s.token)
		req.Header.Set("User-Agent", s.userAgent)
		return req, nil
	}, &listing)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (s *Source) toRecord(p Post, created time.Time, q domain.Query) (domain.Record, error) {
	body := p.Selftext
	if body == "" && !p.IsSelf && p.URL != "" {
		body = fmt.Sprintf("[Link post: %s]", p.URL)
	}
	author := p.Author
	if author == "" {
		author = "[deleted]"
	}

	return domain.NewRecord(domain.RecordInput{
		ID:         p.ID,
		Kind:       domain.KindSocialPost,
		Brand:      q.Brand,
		Origin:     p.Subreddit,
		Backlink:   "https://www.reddit.com" + p.Permalink,
		Title:      p.Title,
		Body:       body,
		Rating:     domain.RatingNotApplicable,
		Language:   "en",
		AuthorHint: author,
		CreatedAt:  created,
		FetchedAt:  s.now(),
	})
}
