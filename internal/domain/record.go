package domain

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RatingNotApplicable marks content without a star rating (news, social posts).
const RatingNotApplicable = -1

// Record is the canonical, normalized unit produced by every source adapter.
// Values are treated as immutable: build them with NewRecord, and build a new
// one to change content.
type Record struct {
	ID          string     `json:"id"`
	Kind        SourceKind `json:"source"`
	Brand       string     `json:"brand"`
	Origin      string     `json:"origin_identifier"`
	Backlink    string     `json:"backlink,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Body        *string    `json:"body,omitempty"`
	Rating      int        `json:"rating"`
	Language    string     `json:"language"`
	Country     *string    `json:"country,omitempty"`
	AuthorHint  *string    `json:"author_hint,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
	IsProcessed bool       `json:"is_processed"`
	ContentHash string     `json:"content_hash"`
}

// RecordInput carries the raw fields a record is built from.
type RecordInput struct {
	ID          string
	Kind        SourceKind
	Brand       string
	Origin      string
	Backlink    string
	Title       string
	Body        string
	Rating      int
	Language    string
	Country     string
	AuthorHint  string
	CreatedAt   time.Time
	FetchedAt   time.Time
	IsProcessed bool
}

// NewRecord validates in and returns a record with its content hash computed.
// Empty optional strings become nil.
func NewRecord(in RecordInput) (Record, error) {
	if err := in.validate(); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:          in.ID,
		Kind:        in.Kind,
		Brand:       in.Brand,
		Origin:      in.Origin,
		Backlink:    in.Backlink,
		Title:       optional(in.Title),
		Body:        optional(in.Body),
		Rating:      in.Rating,
		Language:    in.Language,
		Country:     optional(in.Country),
		AuthorHint:  optional(in.AuthorHint),
		CreatedAt:   in.CreatedAt.UTC(),
		FetchedAt:   in.FetchedAt.UTC(),
		IsProcessed: in.IsProcessed,
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	rec.ContentHash = rec.computeHash()
	return rec, nil
}

func (in RecordInput) validate() error {
	if in.ID == "" {
		return Validationf("record id is empty")
	}
	if !in.Kind.Valid() {
		return Validationf("invalid source kind %q", in.Kind)
	}
	if in.Brand == "" {
		return Validationf("record brand is empty")
	}
	if in.Origin == "" {
		return Validationf("record origin identifier is empty")
	}
	if in.Rating != RatingNotApplicable && (in.Rating < 1 || in.Rating > 5) {
		return Validationf("rating must be -1 or 1-5, got %d", in.Rating)
	}
	if len(in.Language) < 2 {
		return Validationf("invalid language code %q", in.Language)
	}
	return nil
}

// Key is the store primary key: <kind>#<id>.
func (r Record) Key() string {
	return RecordKey(r.Kind, r.ID)
}

// RecordKey builds the store primary key for a kind and id.
func RecordKey(kind SourceKind, id string) string {
	return string(kind) + "#" + id
}

// Input returns the fields the record was built from, for deriving a changed copy.
func (r Record) Input() RecordInput {
	return RecordInput{
		ID:          r.ID,
		Kind:        r.Kind,
		Brand:       r.Brand,
		Origin:      r.Origin,
		Backlink:    r.Backlink,
		Title:       deref(r.Title),
		Body:        deref(r.Body),
		Rating:      r.Rating,
		Language:    r.Language,
		Country:     deref(r.Country),
		AuthorHint:  deref(r.AuthorHint),
		CreatedAt:   r.CreatedAt,
		FetchedAt:   r.FetchedAt,
		IsProcessed: r.IsProcessed,
	}
}

// computeHash covers every field except FetchedAt and IsProcessed.
func (r Record) computeHash() string {
	stable := []string{
		r.ID,
		string(r.Kind),
		r.Brand,
		r.Origin,
		r.Backlink,
		deref(r.Title),
		deref(r.Body),
		strconv.Itoa(r.Rating),
		r.Language,
		deref(r.Country),
		deref(r.AuthorHint),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	// Length prefixes keep field boundaries unambiguous.
	h := sha256.New()
	for _, f := range stable {
		fmt.Fprintf(h, "%d:%s|", len(f), f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StableID derives an identifier for vendors that expose no review id.
func StableID(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "_")))
	return hex.EncodeToString(sum[:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
