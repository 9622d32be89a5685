package domain

import (
	"sort"
	"strings"
)

// SourceKind identifies the kind of content a source produces.
type SourceKind string

const (
	KindAppStoreReview SourceKind = "app-store-review"
	KindPlayReview     SourceKind = "play-review"
	KindBusinessReview SourceKind = "business-review"
	KindNewsArticle    SourceKind = "news-article"
	KindSocialPost     SourceKind = "social-post"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []SourceKind{
	KindAppStoreReview,
	KindPlayReview,
	KindBusinessReview,
	KindNewsArticle,
	KindSocialPost,
}

// legacy request keys still sent by older callers
var kindAliases = map[string]SourceKind{
	"appstore":   KindAppStoreReview,
	"googleplay": KindPlayReview,
	"trustpilot": KindBusinessReview,
	"news":       KindNewsArticle,
	"reddit":     KindSocialPost,
}

// ParseSourceKind accepts a canonical kind or one of its legacy aliases.
func ParseSourceKind(s string) (SourceKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	k := SourceKind(key)
	if !k.Valid() {
		return "", Validationf("unknown source %q", s)
	}
	return k, nil
}

// IsLegacyAlias reports whether key is one of the legacy request keys.
func IsLegacyAlias(key string) bool {
	_, ok := kindAliases[key]
	return ok
}

func (k SourceKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k SourceKind) String() string {
	return string(k)
}

// SortKinds orders kinds lexically in place.
func SortKinds(kinds []SourceKind) {
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
}
