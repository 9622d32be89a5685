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

// TrustpilotPageSize is the most reviews the trustpilot engine returns per request.
const TrustpilotPageSize = 20

var trustpilotDateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05Z07:00", "January 2, 2006", "Jan 2, 2006"}

// Trustpilot collects business reviews through SerpAPI's trustpilot engine.
// It is the synchronous alternative to the DataForSEO task adapter.
type Trustpilot struct {
	base
}

func NewTrustpilot(client *source.Client, baseURL string, creds domain.Credentials, logger *slog.Logger) (*Trustpilot, error) {
	b, err := newBase(client, baseURL, creds, logger.With("source", domain.KindBusinessReview, "vendor", "serpapi"))
	if err != nil {
		return nil, err
	}
	return &Trustpilot{base: b}, nil
}

func (t *Trustpilot) Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	pageSize := source.PageSize(q.Limit, TrustpilotPageSize)
	maxPages := source.MaxPages(q.Limit, pageSize)

	var records []domain.Record
	for page := 1; page <= maxPages && len(records) < q.Limit; page++ {
		params := url.Values{}
		params.Set("engine", "trustpilot")
		params.Set("domain", q.Origin)
		params.Set("num", strconv.Itoa(pageSize))
		params.Set("page", strconv.Itoa(page))

		resp, err := t.search(ctx, params)
		if err != nil {
			return records, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(resp.Reviews) == 0 {
			break
		}

		batch := decodeItems(t.logger, resp.Reviews, q.Limit-len(records), func(r TrustpilotReview) (domain.Record, error) {
			return t.toRecord(r, q)
		})
		records = append(records, batch...)

		if resp.Pagination == nil || (resp.Pagination.Next == "" && resp.Pagination.NextPageToken == "") {
			break
		}
	}

	return records, nil
}

func (t *Trustpilot) toRecord(r TrustpilotReview, q domain.Query) (domain.Record, error) {
	author := authorName(r.Author)
	now := t.now()

	return domain.NewRecord(domain.RecordInput{
		ID:         domain.StableID(q.Origin, author, r.Title, r.Date),
		Kind:       domain.KindBusinessReview,
		Brand:      q.Brand,
		Origin:     q.Origin,
		Backlink:   "https://www.trustpilot.com/review/" + q.Origin,
		Title:      strings.TrimSpace(r.Title),
		Body:       strings.TrimSpace(r.Text),
		Rating:     truncRating(r.Rating),
		Language:   "en",
		Country:    r.Location,
		AuthorHint: author,
		CreatedAt:  source.ParseDate(t.logger, r.Date, now, trustpilotDateLayouts...),
		FetchedAt:  now,
	})
}
