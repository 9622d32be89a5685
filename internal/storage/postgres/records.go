package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mention_collector/internal/domain"
	"mention_collector/internal/storage"
)

// RecordStore is the postgres storage.KV. Conditional writes rely on the
// primary key and a content_hash guard in the WHERE clause.
type RecordStore struct {
	db *sqlx.DB
}

func NewRecordStore(db *sqlx.DB) *RecordStore {
	return &RecordStore{db: db}
}

type recordRow struct {
	RecordKey   string         `db:"record_key"`
	ID          string         `db:"id"`
	Source      string         `db:"source"`
	Brand       string         `db:"brand"`
	Origin      string         `db:"origin_identifier"`
	Backlink    string         `db:"backlink"`
	Title       sql.NullString `db:"title"`
	Body        sql.NullString `db:"body"`
	Rating      int            `db:"rating"`
	Language    string         `db:"language"`
	Country     sql.NullString `db:"country"`
	AuthorHint  sql.NullString `db:"author_hint"`
	CreatedAt   sql.NullTime   `db:"created_at"`
	FetchedAt   sql.NullTime   `db:"fetched_at"`
	IsProcessed bool           `db:"is_processed"`
	ContentHash string         `db:"content_hash"`
}

func (s *RecordStore) Hash(ctx context.Context, key string) (string, bool, error) {
	var hash string
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &hash,
		`SELECT content_hash FROM records WHERE record_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

func (s *RecordStore) Insert(ctx context.Context, rec domain.Record) error {
	query := `
		INSERT INTO records (
			record_key, id, source, brand, origin_identifier, backlink, title, body,
			rating, language, country, author_hint, created_at, fetched_at,
			is_processed, content_hash
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (record_key) DO NOTHING`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		rec.Key(),
		rec.ID,
		string(rec.Kind),
		rec.Brand,
		rec.Origin,
		rec.Backlink,
		rec.Title,
		rec.Body,
		rec.Rating,
		rec.Language,
		rec.Country,
		rec.AuthorHint,
		nullTime(rec.CreatedAt),
		rec.FetchedAt,
		rec.IsProcessed,
		rec.ContentHash,
	)
	if err != nil {
		return err
	}
	return conflictIfUnchanged(res)
}

func (s *RecordStore) Replace(ctx context.Context, rec domain.Record, expectedHash string) error {
	query := `
		UPDATE records SET
			brand = $2,
			origin_identifier = $3,
			backlink = $4,
			title = $5,
			body = $6,
			rating = $7,
			language = $8,
			country = $9,
			author_hint = $10,
			created_at = $11,
			fetched_at = $12,
			is_processed = $13,
			content_hash = $14
		WHERE record_key = $1 AND content_hash = $15`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		rec.Key(),
		rec.Brand,
		rec.Origin,
		rec.Backlink,
		rec.Title,
		rec.Body,
		rec.Rating,
		rec.Language,
		rec.Country,
		rec.AuthorHint,
		nullTime(rec.CreatedAt),
		rec.FetchedAt,
		rec.IsProcessed,
		rec.ContentHash,
		expectedHash,
	)
	if err != nil {
		return err
	}
	return conflictIfUnchanged(res)
}

// Get loads a stored record by key.
func (s *RecordStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	var row recordRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, `
		SELECT record_key, id, source, brand, origin_identifier, backlink, title, body,
			rating, language, country, author_hint, created_at, fetched_at,
			is_processed, content_hash
		FROM records
		WHERE record_key = $1`, key)
	if err != nil {
		return nil, err
	}
	return row.toRecord(), nil
}

func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &n, `SELECT COUNT(*) FROM records`); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func conflictIfUnchanged(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (r recordRow) toRecord() *domain.Record {
	rec := &domain.Record{
		ID:          r.ID,
		Kind:        domain.SourceKind(r.Source),
		Brand:       r.Brand,
		Origin:      r.Origin,
		Backlink:    r.Backlink,
		Title:       nullString(r.Title),
		Body:        nullString(r.Body),
		Rating:      r.Rating,
		Language:    r.Language,
		Country:     nullString(r.Country),
		AuthorHint:  nullString(r.AuthorHint),
		IsProcessed: r.IsProcessed,
		ContentHash: r.ContentHash,
	}
	if r.CreatedAt.Valid {
		rec.CreatedAt = r.CreatedAt.Time.UTC()
	}
	if r.FetchedAt.Valid {
		rec.FetchedAt = r.FetchedAt.Time.UTC()
	}
	return rec
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
