package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/cache"
	"github.com/ragstack/ragchat/internal/config"
)

func newTestBreaker() *Breaker {
	return New(cache.NewMemory(), config.BreakerConfig{
		FailWindow:    time.Minute,
		TripThreshold: 5,
		OpenTTL:       time.Minute,
	})
}

func TestAllowWhileClosed(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	assert.True(t, b.Allow(ctx, "openai:gpt-4o"))

	for i := 0; i < 4; i++ {
		b.RecordFailure(ctx, "openai:gpt-4o")
	}
	assert.True(t, b.Allow(ctx, "openai:gpt-4o"), "below threshold must stay closed")
}

func TestTripsAtThreshold(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b.RecordFailure(ctx, "gemini:gemini-2.5-flash")
	}
	assert.False(t, b.Allow(ctx, "gemini:gemini-2.5-flash"))

	// Other upstreams are unaffected.
	assert.True(t, b.Allow(ctx, "openai:gpt-4o"))
}

func TestSuccessResetsCountAndOpenFlag(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b.RecordFailure(ctx, "deepseek:deepseek-chat")
	}
	require.False(t, b.Allow(ctx, "deepseek:deepseek-chat"))

	b.RecordSuccess(ctx, "deepseek:deepseek-chat")
	assert.True(t, b.Allow(ctx, "deepseek:deepseek-chat"))

	// The counter restarted from zero: four more failures must not trip.
	for i := 0; i < 4; i++ {
		b.RecordFailure(ctx, "deepseek:deepseek-chat")
	}
	assert.True(t, b.Allow(ctx, "deepseek:deepseek-chat"))
}

func TestOpenPeriodExpires(t *testing.T) {
	b := New(cache.NewMemory(), config.BreakerConfig{
		FailWindow:    time.Minute,
		TripThreshold: 2,
		OpenTTL:       20 * time.Millisecond,
	})
	ctx := context.Background()

	b.RecordFailure(ctx, "openai:gpt-4o")
	b.RecordFailure(ctx, "openai:gpt-4o")
	require.False(t, b.Allow(ctx, "openai:gpt-4o"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow(ctx, "openai:gpt-4o"), "open flag expires after the cool-down")
}

func TestFailureWindowSlides(t *testing.T) {
	b := New(cache.NewMemory(), config.BreakerConfig{
		FailWindow:    20 * time.Millisecond,
		TripThreshold: 3,
		OpenTTL:       time.Minute,
	})
	ctx := context.Background()

	b.RecordFailure(ctx, "openai:gpt-4o")
	b.RecordFailure(ctx, "openai:gpt-4o")
	time.Sleep(30 * time.Millisecond)

	// Window elapsed: the earlier failures no longer count.
	b.RecordFailure(ctx, "openai:gpt-4o")
	b.RecordFailure(ctx, "openai:gpt-4o")
	assert.True(t, b.Allow(ctx, "openai:gpt-4o"))
}
