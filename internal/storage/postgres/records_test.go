package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mention_collector/internal/domain"
	"mention_collector/internal/storage"
	"mention_collector/internal/storage/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func testRecord(t *testing.T) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(domain.RecordInput{
		ID:        "rev-1",
		Kind:      domain.KindAppStoreReview,
		Brand:     "zara",
		Origin:    "547951480",
		Body:      "Great app",
		Rating:    5,
		Language:  "en",
		CreatedAt: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		FetchedAt: time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return rec
}

func TestRecordStore_Hash(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewRecordStore(db)

	mock.ExpectQuery("SELECT content_hash FROM records WHERE record_key").
		WithArgs("app-store-review#rev-1").
		WillReturnRows(sqlmock.NewRows([]string{"content_hash"}).AddRow("abc"))
	mock.ExpectQuery("SELECT content_hash FROM records WHERE record_key").
		WithArgs("app-store-review#missing").
		WillReturnRows(sqlmock.NewRows([]string{"content_hash"}))

	hash, found, err := store.Hash(context.Background(), "app-store-review#rev-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", hash)

	_, found, err = store.Hash(context.Background(), "app-store-review#missing")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewRecordStore(db)
	rec := testRecord(t)

	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Insert(context.Background(), rec))

	err := store.Insert(context.Background(), rec)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_ReplaceGuardsOnHash(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewRecordStore(db)
	rec := testRecord(t)

	mock.ExpectExec("UPDATE records SET .+ WHERE record_key = \\$1 AND content_hash = \\$15").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Replace(context.Background(), rec, "stale")
	assert.True(t, errors.Is(err, storage.ErrConflict))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_UpsertThroughStore(t *testing.T) {
	db, mock := newMockDB(t)
	store := storage.NewStore(postgres.NewRecordStore(db), 3, testLogger())
	rec := testRecord(t)

	// first run: absent, inserted
	mock.ExpectQuery("SELECT content_hash").
		WillReturnRows(sqlmock.NewRows([]string{"content_hash"}))
	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// second run: same hash, no write
	mock.ExpectQuery("SELECT content_hash").
		WillReturnRows(sqlmock.NewRows([]string{"content_hash"}).AddRow(rec.ContentHash))

	outcome, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, storage.Created, outcome)

	outcome, err = store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, storage.Skipped, outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Count(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewRecordStore(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM records").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestRecordStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	store := postgres.NewRecordStore(db)
	created := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	columns := []string{
		"record_key", "id", "source", "brand", "origin_identifier", "backlink", "title", "body",
		"rating", "language", "country", "author_hint", "created_at", "fetched_at",
		"is_processed", "content_hash",
	}
	mock.ExpectQuery("SELECT .+ FROM records WHERE record_key").
		WithArgs("social-post#t3_x").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"social-post#t3_x", "t3_x", "social-post", "zara", "all", "https://reddit.com/x", "Title", nil,
			-1, "en", nil, "bob", created, created, false, "h",
		))

	rec, err := store.Get(context.Background(), "social-post#t3_x")
	require.NoError(t, err)
	assert.Equal(t, domain.KindSocialPost, rec.Kind)
	require.NotNil(t, rec.Title)
	assert.Equal(t, "Title", *rec.Title)
	assert.Nil(t, rec.Body)
	assert.Equal(t, domain.RatingNotApplicable, rec.Rating)
	assert.Equal(t, created, rec.CreatedAt)
}
