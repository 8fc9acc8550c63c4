// Package breaker implements a per-upstream circuit breaker backed by a
// shared key-value store, so the open/closed decision is consistent across
// all API and worker processes.
package breaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ragstack/ragchat/internal/cache"
	"github.com/ragstack/ragchat/internal/config"
)

type Breaker struct {
	kv            cache.Store
	failWindow    time.Duration
	tripThreshold int
	openTTL       time.Duration
}

func New(kv cache.Store, cfg config.BreakerConfig) *Breaker {
	return &Breaker{
		kv:            kv,
		failWindow:    cfg.FailWindow,
		tripThreshold: cfg.TripThreshold,
		openTTL:       cfg.OpenTTL,
	}
}

func openKey(key string) string { return "cb:" + key }
func failKey(key string) string { return "cb:" + key + ":fail" }

// Allow reports whether a call to the upstream may proceed. Store errors
// fail open: a broken Redis must not take every upstream down with it.
func (b *Breaker) Allow(ctx context.Context, key string) bool {
	open, err := b.kv.Exists(ctx, openKey(key))
	if err != nil {
		slog.Warn("breaker state unavailable, allowing call", "key", key, "error", err)
		return true
	}
	return !open
}

// RecordSuccess clears both the failure counter and the open flag.
func (b *Breaker) RecordSuccess(ctx context.Context, key string) {
	if err := b.kv.Del(ctx, failKey(key), openKey(key)); err != nil {
		slog.Warn("breaker reset failed", "key", key, "error", err)
	}
}

// RecordFailure bumps the windowed failure counter and trips the breaker
// open once the counter reaches the threshold.
func (b *Breaker) RecordFailure(ctx context.Context, key string) {
	n, err := b.kv.Incr(ctx, failKey(key))
	if err != nil {
		slog.Warn("breaker failure count unavailable", "key", key, "error", err)
		return
	}
	if err := b.kv.Expire(ctx, failKey(key), b.failWindow); err != nil {
		slog.Warn("breaker window expire failed", "key", key, "error", err)
	}
	if n >= int64(b.tripThreshold) {
		if err := b.kv.Set(ctx, openKey(key), "open", b.openTTL); err != nil {
			slog.Warn("breaker trip failed", "key", key, "error", err)
			return
		}
		slog.Warn("circuit opened", "key", key, "failures", n, "open_ttl", b.openTTL)
	}
}
