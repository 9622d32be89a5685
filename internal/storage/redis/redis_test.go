package redis_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mention_collector/internal/domain"
	"mention_collector/internal/storage"
	"mention_collector/internal/storage/redis"
)

func newStore(t *testing.T) (*redis.RecordStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewRecordStore(client, "test"), mr
}

func testRecord(t *testing.T, body string) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(domain.RecordInput{
		ID:        "r-1",
		Kind:      domain.KindPlayReview,
		Brand:     "zara",
		Origin:    "com.inditex.zara",
		Body:      body,
		Rating:    3,
		Language:  "en",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return rec
}

func TestRecordStore_InsertAndHash(t *testing.T) {
	ctx := context.Background()
	kv, _ := newStore(t)
	rec := testRecord(t, "ok")

	_, found, err := kv.Hash(ctx, rec.Key())
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Insert(ctx, rec))

	hash, found, err := kv.Hash(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec.ContentHash, hash)

	err = kv.Insert(ctx, rec)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	n, err := kv.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordStore_ReplaceRequiresExpectedHash(t *testing.T) {
	ctx := context.Background()
	kv, _ := newStore(t)
	rec := testRecord(t, "ok")
	require.NoError(t, kv.Insert(ctx, rec))

	changed := testRecord(t, "changed")
	err := kv.Replace(ctx, changed, "not-the-stored-hash")
	assert.True(t, errors.Is(err, storage.ErrConflict))

	require.NoError(t, kv.Replace(ctx, changed, rec.ContentHash))

	got, err := kv.Get(ctx, changed.Key())
	require.NoError(t, err)
	assert.Equal(t, changed.ContentHash, got.ContentHash)
	require.NotNil(t, got.Body)
	assert.Equal(t, "changed", *got.Body)
}

func TestRecordStore_ThroughStore(t *testing.T) {
	ctx := context.Background()
	kv, _ := newStore(t)
	store := storage.NewStore(kv, 3, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res := store.UpsertBatch(ctx, []domain.Record{testRecord(t, "a")})
	assert.Equal(t, 1, res.Written)

	res = store.UpsertBatch(ctx, []domain.Record{testRecord(t, "a")})
	assert.Equal(t, 0, res.Written)
	assert.Equal(t, 1, res.Skipped)
}

func TestRecordStore_PingFailsWhenServerDown(t *testing.T) {
	kv, mr := newStore(t)
	require.NoError(t, kv.Ping(context.Background()))

	mr.Close()
	assert.Error(t, kv.Ping(context.Background()))
}
