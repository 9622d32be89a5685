package serpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

// PlayPageSize is how many reviews google_play_product returns per page.
const PlayPageSize = 20

var playDateLayouts = []string{"January 2, 2006", "2006-01-02", "Jan 2, 2006", "2006-01-02T15:04:05Z07:00"}

// GooglePlay collects Google Play reviews, following next_page_token.
type GooglePlay struct {
	base
}

func NewGooglePlay(client *source.Client, baseURL string, creds domain.Credentials, logger *slog.Logger) (*GooglePlay, error) {
	b, err := newBase(client, baseURL, creds, logger.With("source", domain.KindPlayReview))
	if err != nil {
		return nil, err
	}
	return &GooglePlay{base: b}, nil
}

func (g *GooglePlay) Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	maxPages := source.MaxPages(q.Limit, PlayPageSize)
	token := ""

	var records []domain.Record
	for page := 1; page <= maxPages && len(records) < q.Limit; page++ {
		params := url.Values{}
		params.Set("engine", "google_play_product")
		params.Set("product_id", q.Origin)
		params.Set("store", "apps")
		params.Set("all_reviews", "true")
		if q.Config.Country != "" {
			params.Set("gl", q.Config.Country)
		}
		if token != "" {
			params.Set("next_page_token", token)
		}

		resp, err := g.search(ctx, params)
		if err != nil {
			return records, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(resp.Reviews) == 0 {
			break
		}

		batch := decodeItems(g.logger, resp.Reviews, q.Limit-len(records), func(r PlayReview) (domain.Record, error) {
			return g.toRecord(r, q)
		})
		records = append(records, batch...)

		g.logger.Debug("fetched page", "page", page, "reviews", len(resp.Reviews), "total", len(records))

		if resp.Pagination == nil || resp.Pagination.NextPageToken == "" {
			break
		}
		token = resp.Pagination.NextPageToken
	}

	return records, nil
}

func (g *GooglePlay) toRecord(r PlayReview, q domain.Query) (domain.Record, error) {
	now := g.now()
	id := r.ID
	if id == "" {
		id = domain.StableID(q.Origin, r.Title, source.Truncate(r.Snippet, 50), r.Date)
	}

	return domain.NewRecord(domain.RecordInput{
		ID:        id,
		Kind:      domain.KindPlayReview,
		Brand:     q.Brand,
		Origin:    q.Origin,
		Backlink:  fmt.Sprintf("https://play.google.com/store/apps/details?id=%s&showAllReviews=true", q.Origin),
		Title:     strings.TrimSpace(r.Title),
		Body:      strings.TrimSpace(r.Snippet),
		Rating:    truncRating(r.Rating),
		Language:  "en",
		Country:   q.Config.Country,
		CreatedAt: source.ParseDate(g.logger, r.Date, now, playDateLayouts...),
		FetchedAt: now,
	})
}
