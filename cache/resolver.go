package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"Toonbeat/core/player"
	"Toonbeat/logger"
)

// CachedResolver wraps a StreamResolver with a HandleCache. Concurrent misses
// for one track share a single upstream resolve.
type CachedResolver struct {
	next  player.StreamResolver
	cache HandleCache
	ttl   time.Duration
	group singleflight.Group
}

// HandleTTL is how long a handle signed for urlTTL may be cached: four
// fifths of it, so a cached URI never outlives its signature.
func HandleTTL(urlTTL time.Duration) time.Duration {
	return urlTTL - urlTTL/5
}

func NewCachedResolver(next player.StreamResolver, cache HandleCache, urlTTL time.Duration) *CachedResolver {
	return &CachedResolver{next: next, cache: cache, ttl: HandleTTL(urlTTL)}
}

func (r *CachedResolver) ResolveStreamHandle(ctx context.Context, trackID string) (string, error) {
	if uri, ok, err := r.cache.Get(ctx, trackID); err != nil {
		logger.Warn("读取流地址缓存失败", logger.String("trackId", trackID), logger.ErrorField(err))
	} else if ok {
		return uri, nil
	}

	v, err, shared := r.group.Do(trackID, func() (interface{}, error) {
		uri, err := r.next.ResolveStreamHandle(ctx, trackID)
		if err != nil {
			return "", err
		}
		if err := r.cache.Set(ctx, trackID, uri, r.ttl); err != nil {
			logger.Warn("写入流地址缓存失败", logger.String("trackId", trackID), logger.ErrorField(err))
		}
		return uri, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		logger.Debug("stream resolve coalesced", logger.String("trackId", trackID))
	}
	return v.(string), nil
}
