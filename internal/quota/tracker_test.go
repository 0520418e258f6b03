package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-concierge/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFirstCheckInitializesStat(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	stats := store.NewMemoryStore()
	tr := NewTracker(stats, 3, time.Hour, WithClock(clock.Now))

	ok, stat, err := tr.Check(context.Background(), "chat")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, stat.MessageCount)
	assert.Equal(t, clock.t, stat.WindowStart)

	saved, err := stats.GetStat(context.Background(), "chat")
	require.NoError(t, err)
	assert.Equal(t, 0, saved.MessageCount)
}

func TestQuotaBlocksAfterLimitUntilWindowElapses(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := NewTracker(store.NewMemoryStore(), 500, 86400*time.Second, WithClock(clock.Now))

	for i := 0; i < 500; i++ {
		ok, _, err := tr.Check(ctx, "chat")
		require.NoError(t, err)
		require.True(t, ok, "send %d", i+1)
		_, err = tr.Increment(ctx, "chat")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	ok, stat, err := tr.Check(ctx, "chat")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 500, stat.MessageCount)

	clock.Advance(24 * time.Hour)

	ok, stat, err = tr.Check(ctx, "chat")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, stat.MessageCount)
	assert.Equal(t, clock.t, stat.WindowStart)

	stat, err = tr.Increment(ctx, "chat")
	require.NoError(t, err)
	assert.Equal(t, 1, stat.MessageCount)
}

func TestCountBelowLimitNeverResets(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := NewTracker(store.NewMemoryStore(), 5, time.Minute, WithClock(clock.Now))

	_, err := tr.Increment(ctx, "chat")
	require.NoError(t, err)
	clock.Advance(time.Hour)

	ok, stat, err := tr.Check(ctx, "chat")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, stat.MessageCount)
}
