package serpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

// ApplePageSize is how many reviews apple_reviews returns per page.
const ApplePageSize = 25

var appleDateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05Z07:00", "Jan 2, 2006", "January 2, 2006"}

// AppStore collects App Store reviews through the apple_reviews engine,
// paginating by page number while serpapi_pagination.next is present.
type AppStore struct {
	base
}

func NewAppStore(client *source.Client, baseURL string, creds domain.Credentials, logger *slog.Logger) (*AppStore, error) {
	b, err := newBase(client, baseURL, creds, logger.With("source", domain.KindAppStoreReview))
	if err != nil {
		return nil, err
	}
	return &AppStore{base: b}, nil
}

func (a *AppStore) Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	maxPages := source.MaxPages(q.Limit, ApplePageSize)
	country := q.Config.Country
	if country == "" {
		country = "us"
	}

	var records []domain.Record
	for page := 1; page <= maxPages && len(records) < q.Limit; page++ {
		params := url.Values{}
		params.Set("engine", "apple_reviews")
		params.Set("product_id", q.Origin)
		params.Set("country", country)
		params.Set("page", strconv.Itoa(page))
		params.Set("sort", "mostrecent")

		resp, err := a.search(ctx, params)
		if err != nil {
			return records, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(resp.Reviews) == 0 {
			break
		}

		batch := decodeItems(a.logger, resp.Reviews, q.Limit-len(records), func(r AppleReview) (domain.Record, error) {
			return a.toRecord(r, q)
		})
		records = append(records, batch...)

		a.logger.Debug("fetched page", "page", page, "reviews", len(resp.Reviews), "total", len(records))

		if resp.Pagination == nil || resp.Pagination.Next == "" {
			break
		}
	}

	return records, nil
}

func (a *AppStore) toRecord(r AppleReview, q domain.Query) (domain.Record, error) {
	author := authorName(r.Author)
	now := a.now()
	id := r.ID
	if id == "" {
		id = domain.StableID(q.Origin, author, r.Title, r.ReviewDate)
	}

	return domain.NewRecord(domain.RecordInput{
		ID:         id,
		Kind:       domain.KindAppStoreReview,
		Brand:      q.Brand,
		Origin:     q.Origin,
		Backlink:   fmt.Sprintf("https://apps.apple.com/app/id%s?see-all=reviews", q.Origin),
		Title:      strings.TrimSpace(r.Title),
		Body:       strings.TrimSpace(r.Text),
		Rating:     truncRating(r.Rating),
		Language:   "en",
		Country:    q.Config.Country,
		AuthorHint: author,
		CreatedAt:  source.ParseDate(a.logger, r.ReviewDate, now, appleDateLayouts...),
		FetchedAt:  now,
	})
}
