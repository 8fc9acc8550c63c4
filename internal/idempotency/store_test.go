package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/cache"
)

func TestReserveOnce(t *testing.T) {
	s := NewStore(cache.NewMemory(), time.Hour)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "t1:key-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "t1:key-a")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same key must fail")

	// A different tenant prefix is a different key.
	ok, err = s.Reserve(ctx, "t2:key-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResultRoundTrip(t *testing.T) {
	s := NewStore(cache.NewMemory(), time.Hour)
	ctx := context.Background()

	_, found, err := s.Result(ctx, "t1:key-b")
	require.NoError(t, err)
	assert.False(t, found)

	body := []byte(`{"id":"resp_1","answer":"42"}`)
	require.NoError(t, s.SaveResult(ctx, "t1:key-b", body))

	got, found, err := s.Result(ctx, "t1:key-b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, body, got, "cached body is replayed byte-identically")
}

func TestReservationExpires(t *testing.T) {
	s := NewStore(cache.NewMemory(), 20*time.Millisecond)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "t1:key-c")
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, err = s.Reserve(ctx, "t1:key-c")
	require.NoError(t, err)
	assert.True(t, ok, "expired reservation can be claimed again")
}
