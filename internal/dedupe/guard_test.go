package dedupe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "event:01HX", EventKey(" 01HX ", "token"))
	tokenKey := EventKey("", "reply-token")
	assert.Contains(t, tokenKey, "token:")
	assert.NotContains(t, tokenKey, "reply-token")
	assert.Equal(t, tokenKey, EventKey("", "reply-token"))
	assert.Empty(t, EventKey("", " "))
}

func TestMemoryGuardRemembersWithinTTL(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	guard := NewMemoryGuard(Config{TTL: time.Minute, Now: clock.Now})
	ctx := context.Background()

	seen, err := guard.Seen(ctx, "event:1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, _ = guard.Seen(ctx, "event:1")
	assert.True(t, seen)

	clock.now = clock.now.Add(2 * time.Minute)
	seen, _ = guard.Seen(ctx, "event:1")
	assert.False(t, seen)
}

func TestMemoryGuardIgnoresEmptyKey(t *testing.T) {
	guard := NewMemoryGuard(Config{})

	for i := 0; i < 3; i++ {
		seen, err := guard.Seen(context.Background(), "")
		require.NoError(t, err)
		assert.False(t, seen)
	}
	assert.Zero(t, guard.Len())
}

func TestMemoryGuardEvictsOldestWhenFull(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	guard := NewMemoryGuard(Config{TTL: time.Hour, MaxEntries: 3, Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := guard.Seen(ctx, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		clock.now = clock.now.Add(time.Second)
	}

	assert.Equal(t, 3, guard.Len())
	seen, _ := guard.Seen(ctx, "k3")
	assert.True(t, seen)
	seen, _ = guard.Seen(ctx, "k0")
	assert.False(t, seen)
}

func TestRedisGuard(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := NewRedisGuard(client, time.Minute)
	ctx := context.Background()

	seen, err := guard.Seen(ctx, "event:1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.Seen(ctx, "event:1")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.True(t, server.Exists(defaultKeyPrefix+"event:1"))
	server.FastForward(2 * time.Minute)

	seen, err = guard.Seen(ctx, "event:1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisGuardReportsBackendErrors(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	_, err := NewRedisGuard(client, time.Minute).Seen(context.Background(), "event:1")
	assert.Error(t, err)
}
