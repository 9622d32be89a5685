package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceConfig is the per-source block of a collection request. Each kind
// reads the fields it understands and ignores the rest.
type SourceConfig struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	PackageName string `json:"package_name,omitempty" yaml:"package_name"`
	Domain      string `json:"domain,omitempty" yaml:"domain"`
	Keywords    string `json:"keywords,omitempty" yaml:"keywords"`
	Country     string `json:"country,omitempty" yaml:"country"`
	Language    string `json:"language,omitempty" yaml:"language"`
	Sort        string `json:"sort,omitempty" yaml:"sort"`
	DaysBack    int    `json:"days_back,omitempty" yaml:"days_back"`
	SearchType  string `json:"search_type,omitempty" yaml:"search_type"`
	FromDate    string `json:"from_date,omitempty" yaml:"from_date"`
	ToDate      string `json:"to_date,omitempty" yaml:"to_date"`
	Category    string `json:"category,omitempty" yaml:"category"`
	Outlets     string `json:"sources,omitempty" yaml:"sources"`
}

// Origin returns the identifier the given kind is collected for.
func (c SourceConfig) Origin(kind SourceKind) string {
	switch kind {
	case KindAppStoreReview:
		return c.ID
	case KindPlayReview:
		return c.PackageName
	case KindBusinessReview:
		return c.Domain
	case KindNewsArticle, KindSocialPost:
		return c.Keywords
	default:
		return ""
	}
}

// Request is the inbound collection request.
type Request struct {
	Brand     string                  `json:"brand"`
	Limit     *int                    `json:"limit,omitempty"`
	Sources   map[string]SourceConfig `json:"sources,omitempty"`
	NotifyURL string                  `json:"notify_url,omitempty"`
}

// UnmarshalJSON also accepts the legacy shape where source blocks sit at the
// top level (appstore, googleplay, ...) and the notify URL is named
// processing_endpoint_url.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}

	for key, raw := range extra {
		switch {
		case IsLegacyAlias(key):
			var cfg SourceConfig
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return fmt.Errorf("decode %s block: %w", key, err)
			}
			if cfg == (SourceConfig{}) {
				continue
			}
			if p.Sources == nil {
				p.Sources = make(map[string]SourceConfig)
			}
			if _, exists := p.Sources[key]; !exists {
				p.Sources[key] = cfg
			}
		case key == "processing_endpoint_url" && p.NotifyURL == "":
			if err := json.Unmarshal(raw, &p.NotifyURL); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
	}

	*r = Request(p)
	return nil
}

// JobDescriptor is produced once by the initializer and read-only afterwards.
type JobDescriptor struct {
	JobID       string
	Brand       string // storage form
	SearchBrand string // human-readable form for external search APIs
	Sources     map[SourceKind]SourceConfig
	Limit       int
	NotifyURL   string
	CreatedAt   time.Time
}

// Kinds returns the configured kinds in stable order.
func (j JobDescriptor) Kinds() []SourceKind {
	kinds := make([]SourceKind, 0, len(j.Sources))
	for k := range j.Sources {
		kinds = append(kinds, k)
	}
	SortKinds(kinds)
	return kinds
}

// Query returns the adapter input for one configured kind.
func (j JobDescriptor) Query(kind SourceKind) Query {
	cfg := j.Sources[kind]
	return Query{
		JobID:       j.JobID,
		Kind:        kind,
		Origin:      cfg.Origin(kind),
		Limit:       j.Limit,
		Brand:       j.Brand,
		SearchBrand: j.SearchBrand,
		Config:      cfg,
	}
}

// Query is what a source adapter is asked to collect.
type Query struct {
	JobID       string
	Kind        SourceKind
	Origin      string
	Limit       int
	Brand       string
	SearchBrand string
	Config      SourceConfig
}
