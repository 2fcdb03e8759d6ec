package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", &Token{AccessToken: "T1"}, time.Minute))
	tok, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", tok.AccessToken)

	now = now.Add(59 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_NonPositiveTTLIsNotStored(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", &Token{AccessToken: "T"}, 0))
	require.NoError(t, s.Set(ctx, "k", &Token{AccessToken: "T"}, -time.Second))
	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	orig := &Token{AccessToken: "T1"}
	require.NoError(t, s.Set(ctx, "k", orig, time.Minute))
	orig.AccessToken = "mutated"

	tok, _, _ := s.Get(ctx, "k")
	tok.AccessToken = "also mutated"

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "T1", again.AccessToken)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ := s.Get(ctx, "k")
	assert.False(t, ok)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client)
	ctx := context.Background()

	expires := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "hipchat-tokens:abc", &Token{AccessToken: "T1", GroupID: 7, ExpiresIn: 3599, ExpiresAt: expires}, 3599*time.Second))
	assert.Equal(t, 3599*time.Second, mr.TTL("hipchat-tokens:abc"))

	tok, ok, err := s.Get(ctx, "hipchat-tokens:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", tok.AccessToken)
	assert.Equal(t, int64(7), tok.GroupID)
	assert.True(t, expires.Equal(tok.ExpiresAt))

	mr.FastForward(3600 * time.Second)
	_, ok, err = s.Get(ctx, "hipchat-tokens:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_DeleteAndSkipNonPositiveTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", &Token{AccessToken: "T"}, 0))
	assert.False(t, mr.Exists("k"))

	require.NoError(t, s.Set(ctx, "k", &Token{AccessToken: "T"}, time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set("k", "not json"))

	_, ok, err := NewRedisStore(client).Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
