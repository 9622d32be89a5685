// Package job turns a raw collection request into a validated JobDescriptor.
package job

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"mention_collector/internal/domain"
)

const (
	DefaultLimit = 50
	MinLimit     = 1
	MaxLimit     = 500
)

// Initializer validates requests and mints job ids. It performs no I/O.
type Initializer struct {
	now    func() time.Time
	suffix func() string
}

func NewInitializer() *Initializer {
	return &Initializer{
		now:    time.Now,
		suffix: randomSuffix,
	}
}

// Init validates req and returns the descriptor every branch reads from.
func (i *Initializer) Init(req domain.Request) (domain.JobDescriptor, error) {
	brand := StorageBrand(req.Brand)
	if brand == "" {
		return domain.JobDescriptor{}, domain.Validationf("field 'brand' is required")
	}

	limit := DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < MinLimit || limit > MaxLimit {
		return domain.JobDescriptor{}, domain.Validationf("limit must be between %d and %d, got %d", MinLimit, MaxLimit, limit)
	}

	if req.NotifyURL != "" {
		if err := validateNotifyURL(req.NotifyURL); err != nil {
			return domain.JobDescriptor{}, err
		}
	}

	search := SearchBrand(req.Brand)

	sources := make(map[domain.SourceKind]domain.SourceConfig, len(req.Sources))
	for key, cfg := range req.Sources {
		kind, err := domain.ParseSourceKind(key)
		if err != nil {
			return domain.JobDescriptor{}, err
		}
		if _, dup := sources[kind]; dup {
			return domain.JobDescriptor{}, domain.Validationf("source %q configured twice", kind)
		}
		cfg = withDefaults(kind, cfg, search)
		if cfg.Origin(kind) == "" {
			return domain.JobDescriptor{}, domain.Validationf("source %q is missing its %s", kind, originField(kind))
		}
		sources[kind] = cfg
	}
	if len(sources) == 0 {
		return domain.JobDescriptor{}, domain.Validationf("at least one source must be configured")
	}

	now := i.now().UTC()
	return domain.JobDescriptor{
		JobID:       fmt.Sprintf("job_%s_%s", now.Format("20060102_150405"), i.suffix()),
		Brand:       brand,
		SearchBrand: search,
		Sources:     sources,
		Limit:       limit,
		NotifyURL:   req.NotifyURL,
		CreatedAt:   now,
	}, nil
}

func withDefaults(kind domain.SourceKind, cfg domain.SourceConfig, searchBrand string) domain.SourceConfig {
	switch kind {
	case domain.KindAppStoreReview, domain.KindPlayReview:
		if cfg.Country == "" {
			cfg.Country = "us"
		}
	case domain.KindSocialPost:
		if cfg.DaysBack == 0 {
			cfg.DaysBack = 30
		}
		if cfg.Sort == "" {
			cfg.Sort = "new"
		}
		if cfg.Keywords == "" {
			cfg.Keywords = searchBrand
		}
	case domain.KindNewsArticle:
		if cfg.SearchType == "" {
			cfg.SearchType = "everything"
		}
		if cfg.Language == "" {
			cfg.Language = "en"
		}
		if cfg.Keywords == "" {
			cfg.Keywords = searchBrand
		}
	}
	return cfg
}

func originField(kind domain.SourceKind) string {
	switch kind {
	case domain.KindAppStoreReview:
		return "id"
	case domain.KindPlayReview:
		return "package_name"
	case domain.KindBusinessReview:
		return "domain"
	default:
		return "keywords"
	}
}

func validateNotifyURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.Validationf("notify url %q must be an absolute http(s) url", raw)
	}
	return nil
}

// StorageBrand lowercases brand and joins its words with single underscores:
// "Tea App" and "tea-app" both become "tea_app".
func StorageBrand(brand string) string {
	return strings.Join(words(strings.ToLower(brand)), "_")
}

// SearchBrand is the human-readable form used for external search queries:
// "tea_app" becomes "Tea App".
func SearchBrand(brand string) string {
	parts := words(brand)
	for i, w := range parts {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	})
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
