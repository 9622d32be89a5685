// Package storage implements the idempotent record store: a content-hash
// gated upsert over a pluggable key-value backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mention_collector/internal/domain"
)

// ErrConflict is returned by a backend when a conditional write lost a race.
var ErrConflict = errors.New("conditional write conflict")

// KV is the persistence port. Keys are <kind>#<id>.
type KV interface {
	// Hash returns the stored content hash for key, or found=false.
	Hash(ctx context.Context, key string) (hash string, found bool, err error)
	// Insert writes rec only if its key is absent, else ErrConflict.
	Insert(ctx context.Context, rec domain.Record) error
	// Replace overwrites rec only if the stored hash still equals
	// expectedHash, else ErrConflict.
	Replace(ctx context.Context, rec domain.Record, expectedHash string) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Outcome of a single upsert. Created and Updated both count as written.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Skipped Outcome = "skipped"
)

func (o Outcome) Written() bool {
	return o == Created || o == Updated
}

// Change is a record that was actually written.
type Change struct {
	Record domain.Record
	IsNew  bool
}

// BatchResult aggregates an UpsertBatch call.
type BatchResult struct {
	Written int
	Skipped int
	Errors  int
	Changes []Change
}

type Store struct {
	kv         KV
	maxRetries int
	logger     *slog.Logger
}

func NewStore(kv KV, maxRetries int, logger *slog.Logger) *Store {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Store{kv: kv, maxRetries: maxRetries, logger: logger}
}

// Upsert writes rec unless the stored version has the same content hash.
// Lost races re-read and retry, so concurrent upserts of one key converge.
func (s *Store) Upsert(ctx context.Context, rec domain.Record) (Outcome, error) {
	key := rec.Key()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		hash, found, err := s.kv.Hash(ctx, key)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", key, err)
		}

		if !found {
			err = s.kv.Insert(ctx, rec)
			if err == nil {
				return Created, nil
			}
		} else {
			if hash == rec.ContentHash {
				return Skipped, nil
			}
			err = s.kv.Replace(ctx, rec, hash)
			if err == nil {
				return Updated, nil
			}
		}

		if !errors.Is(err, ErrConflict) {
			return "", fmt.Errorf("write %s: %w", key, err)
		}
		s.logger.Debug("upsert conflict, re-reading", "key", key, "attempt", attempt)
	}

	return "", fmt.Errorf("upsert %s after %d attempts: %w", key, s.maxRetries, ErrConflict)
}

// UpsertBatch upserts every record; a failing item is counted and skipped.
func (s *Store) UpsertBatch(ctx context.Context, recs []domain.Record) BatchResult {
	var res BatchResult
	for _, rec := range recs {
		outcome, err := s.Upsert(ctx, rec)
		if err != nil {
			res.Errors++
			s.logger.Error("failed to upsert record", "key", rec.Key(), "error", err)
			continue
		}
		if outcome.Written() {
			res.Written++
			res.Changes = append(res.Changes, Change{Record: rec, IsNew: outcome == Created})
		} else {
			res.Skipped++
		}
	}
	return res
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.kv.Count(ctx)
}

// Ping fails with domain.ErrStoreUnavailable when the backend is unreachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.kv.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
