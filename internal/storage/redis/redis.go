// Package redis stores records as redis hashes. Conditional writes use
// WATCH on the record key so a concurrent writer aborts the transaction.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mention_collector/internal/domain"
	"mention_collector/internal/storage"
)

const (
	fieldHash   = "content_hash"
	fieldRecord = "record"
)

type RecordStore struct {
	client *redis.Client
	prefix string
}

func NewRecordStore(client *redis.Client, prefix string) *RecordStore {
	return &RecordStore{client: client, prefix: prefix}
}

func (s *RecordStore) key(recordKey string) string {
	return s.prefix + ":record:" + recordKey
}

func (s *RecordStore) indexKey() string {
	return s.prefix + ":records"
}

func (s *RecordStore) Hash(ctx context.Context, key string) (string, bool, error) {
	hash, err := s.client.HGet(ctx, s.key(key), fieldHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get content hash: %w", err)
	}
	return hash, true, nil
}

func (s *RecordStore) Insert(ctx context.Context, rec domain.Record) error {
	key := s.key(rec.Key())
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return storage.ErrConflict
		}
		return s.write(ctx, tx, key, rec)
	})
}

func (s *RecordStore) Replace(ctx context.Context, rec domain.Record, expectedHash string) error {
	key := s.key(rec.Key())
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, fieldHash).Result()
		if errors.Is(err, redis.Nil) {
			return storage.ErrConflict
		}
		if err != nil {
			return err
		}
		if current != expectedHash {
			return storage.ErrConflict
		}
		return s.write(ctx, tx, key, rec)
	})
}

// Get loads a stored record by record key.
func (s *RecordStore) Get(ctx context.Context, recordKey string) (*domain.Record, error) {
	data, err := s.client.HGet(ctx, s.key(recordKey), fieldRecord).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

func (s *RecordStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(n), nil
}

func (s *RecordStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RecordStore) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	err := s.client.Watch(ctx, fn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return storage.ErrConflict
	}
	return err
}

func (s *RecordStore) write(ctx context.Context, tx *redis.Tx, key string, rec domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldHash, rec.ContentHash, fieldRecord, data)
		pipe.SAdd(ctx, s.indexKey(), rec.Key())
		return nil
	})
	return err
}
