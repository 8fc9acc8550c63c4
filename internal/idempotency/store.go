// Package idempotency provides the reservation and result cache that gives
// chat requests exactly-once semantics under at-least-once client retry.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ragstack/ragchat/internal/cache"
)

type Store struct {
	kv  cache.Store
	ttl time.Duration
}

func NewStore(kv cache.Store, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func reserveKey(key string) string { return "idem:" + key }
func resultKey(key string) string  { return "idem:" + key + ":result" }

// Reserve atomically claims the key for the duration of the TTL. It returns
// false when a reservation already exists, which callers must treat as
// "duplicate request in progress" and not start the pipeline.
func (s *Store) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.kv.SetNX(ctx, reserveKey(key), "reserved", s.ttl)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Result returns the cached response body for the key, if one was saved.
func (s *Store) Result(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.kv.Get(ctx, resultKey(key))
	if errors.Is(err, cache.ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotent result: %w", err)
	}
	return []byte(v), true, nil
}

// SaveResult caches the serialized response so retried requests with the
// same key replay it byte-identically without recomputation.
func (s *Store) SaveResult(ctx context.Context, key string, body []byte) error {
	if err := s.kv.Set(ctx, resultKey(key), string(body), s.ttl); err != nil {
		return fmt.Errorf("save idempotent result: %w", err)
	}
	return nil
}
