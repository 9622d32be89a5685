// Package registry builds a fresh source adapter per branch from the vendor
// configuration and the branch's credentials.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"mention_collector/internal/config"
	"mention_collector/internal/domain"
	"mention_collector/internal/source"
	"mention_collector/internal/source/dataforseo"
	"mention_collector/internal/source/newsapi"
	"mention_collector/internal/source/reddit"
	"mention_collector/internal/source/serpapi"
)

// Fetcher is what every adapter implements.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) ([]domain.Record, error)
}

type Registry struct {
	cfg    config.SourcesConfig
	logger *slog.Logger
}

func New(cfg config.SourcesConfig, logger *slog.Logger) *Registry {
	return &Registry{cfg: cfg, logger: logger}
}

// New returns an adapter owning its own HTTP client, so branches share nothing.
func (r *Registry) New(kind domain.SourceKind, creds domain.Credentials) (Fetcher, error) {
	switch kind {
	case domain.KindAppStoreReview:
		return fetcher(serpapi.NewAppStore(r.client(r.cfg.SerpAPI), r.cfg.SerpAPI.BaseURL, creds, r.logger))
	case domain.KindPlayReview:
		return fetcher(serpapi.NewGooglePlay(r.client(r.cfg.SerpAPI), r.cfg.SerpAPI.BaseURL, creds, r.logger))
	case domain.KindBusinessReview:
		if r.cfg.BusinessReviewVendor == "serpapi" {
			return fetcher(serpapi.NewTrustpilot(r.client(r.cfg.SerpAPI), r.cfg.SerpAPI.BaseURL, creds, r.logger))
		}
		d := r.cfg.DataForSEO
		return fetcher(dataforseo.New(r.client(d.APIConfig), dataforseo.Config{
			BaseURL:         d.BaseURL,
			PollInterval:    d.PollInterval,
			MaxPollAttempts: d.MaxPollAttempts,
		}, creds, r.logger))
	case domain.KindNewsArticle:
		return fetcher(newsapi.New(r.client(r.cfg.NewsAPI), r.cfg.NewsAPI.BaseURL, creds, r.logger))
	case domain.KindSocialPost:
		rc := r.cfg.Reddit
		return fetcher(reddit.New(r.client(rc.APIConfig), rc.BaseURL, rc.AuthURL, creds, r.logger))
	default:
		return nil, fmt.Errorf("%w: no adapter for source %q", domain.ErrValidation, kind)
	}
}

func fetcher[T Fetcher](f T, err error) (Fetcher, error) {
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Registry) client(c config.APIConfig) *source.Client {
	return source.NewClient(source.FromAPIConfig(c), r.logger)
}

// CredentialVendor names the credential bundle a kind needs under the
// configured vendor choice.
func (r *Registry) CredentialVendor(kind domain.SourceKind) string {
	switch kind {
	case domain.KindAppStoreReview, domain.KindPlayReview:
		return "serpapi"
	case domain.KindBusinessReview:
		return r.cfg.BusinessReviewVendor
	case domain.KindNewsArticle:
		return "newsapi"
	case domain.KindSocialPost:
		return "reddit"
	default:
		return ""
	}
}
