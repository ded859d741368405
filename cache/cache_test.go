package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Toonbeat/core/player"
)

func TestLRUHandleCache_Expiry(t *testing.T) {
	c := NewLRUHandleCache(2, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "t1", "http://a/t1", 30*time.Millisecond))
	uri, ok, err := c.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://a/t1", uri)

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "t1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestLRUHandleCache_EvictsLeastRecent(t *testing.T) {
	c := NewLRUHandleCache(2, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", "3", 0))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestHandleTTL(t *testing.T) {
	assert.Equal(t, 8*time.Minute, HandleTTL(10*time.Minute))
}

func TestCachedResolver_CoalescesConcurrentMisses(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	upstream := player.ResolverFunc(func(ctx context.Context, id string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "http://minio/" + id, nil
	})
	lc := NewLRUHandleCache(8, HandleTTL(10*time.Minute))
	r := NewCachedResolver(upstream, lc, 10*time.Minute)

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri, err := r.ResolveStreamHandle(context.Background(), "t1")
			assert.NoError(t, err)
			results[i] = uri
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, uri := range results {
		assert.Equal(t, "http://minio/t1", uri)
	}

	// Served from cache afterwards.
	_, err := r.ResolveStreamHandle(context.Background(), "t1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCachedResolver_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	upstream := player.ResolverFunc(func(ctx context.Context, id string) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", boom
		}
		return "http://minio/" + id, nil
	})
	lc := NewLRUHandleCache(8, HandleTTL(time.Minute))
	r := NewCachedResolver(upstream, lc, time.Minute)

	_, err := r.ResolveStreamHandle(context.Background(), "t1")
	assert.ErrorIs(t, err, boom)

	uri, err := r.ResolveStreamHandle(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "http://minio/t1", uri)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}

func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache down")
}

func TestCachedResolver_CacheFailuresFallThrough(t *testing.T) {
	r := NewCachedResolver(player.ResolverFunc(func(ctx context.Context, id string) (string, error) {
		return "http://minio/" + id, nil
	}), failingCache{}, time.Minute)

	uri, err := r.ResolveStreamHandle(context.Background(), "t9")

	require.NoError(t, err)
	assert.Equal(t, "http://minio/t9", uri)
}

// Runs against a real server only when TOONBEAT_TEST_REDIS_ADDR is set.
func TestRedisHandleCache(t *testing.T) {
	addr := os.Getenv("TOONBEAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TOONBEAT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	c := NewRedisHandleCache(client, "toonbeat:test:stream:")

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "t1", "http://minio/t1", time.Minute))
	uri, ok, err := c.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "http://minio/t1", uri)

	require.NoError(t, c.Invalidate(ctx, "t1"))
	_, ok, err = c.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}
