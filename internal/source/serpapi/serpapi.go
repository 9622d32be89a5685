// Package serpapi implements the SerpAPI-backed review adapters: App Store,
// Google Play and Trustpilot. All three are synchronous paginated sources.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mention_collector/internal/domain"
	"mention_collector/internal/source"
)

const DefaultBaseURL = "https://serpapi.com/search.json"

// base carries what every engine shares: the key, endpoint and HTTP client.
type base struct {
	client  *source.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
	now     func() time.Time
}

func newBase(client *source.Client, baseURL string, creds domain.Credentials, logger *slog.Logger) (base, error) {
	if err := creds.Require("api_key"); err != nil {
		return base{}, fmt.Errorf("serpapi: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return base{
		client:  client,
		baseURL: baseURL,
		apiKey:  creds.Get("api_key"),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (b base) search(ctx context.Context, params url.Values) (*response, error) {
	params.Set("api_key", b.apiKey)
	endpoint := b.baseURL + "?" + params.Encode()

	b.logger.Debug("executing serpapi search",
		"engine", params.Get("engine"),
		"page", params.Get("page"),
	)

	var resp response
	err := b.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("serpapi %s: %w", params.Get("engine"), err)
	}

	if resp.Error != "" {
		if strings.Contains(strings.ToLower(resp.Error), "rate limit") {
			return nil, fmt.Errorf("serpapi %s: %w: %s", params.Get("engine"), domain.ErrRateLimited, resp.Error)
		}
		// An empty result set is reported as an error by some engines.
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return &response{}, nil
		}
		return nil, fmt.Errorf("serpapi %s: %w: %s", params.Get("engine"), domain.ErrSourceUnavailable, resp.Error)
	}
	return &resp, nil
}

// decodeItems maps raw page items one by one; a malformed item is logged and
// skipped so the rest of the page survives.
func decodeItems[T any](logger *slog.Logger, raws []json.RawMessage, remaining int, build func(T) (domain.Record, error)) []domain.Record {
	records := make([]domain.Record, 0, min(len(raws), remaining))
	for _, raw := range raws {
		if len(records) >= remaining {
			break
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			logger.Warn("skipping malformed review", "error", fmt.Errorf("%w: %w", domain.ErrParse, err))
			continue
		}
		rec, err := build(item)
		if err != nil {
			logger.Warn("skipping invalid review", "error", fmt.Errorf("%w: %w", domain.ErrParse, err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// truncRating drops the fraction: 4.5 stars is stored as 4.
func truncRating(v float64) int {
	return int(v)
}
