// Package cache keeps resolved stream handles so repeated plays of a track
// skip the storage round trip.
package cache

import (
	"context"
	"time"
)

// HandleCache stores stream URIs by track id.
type HandleCache interface {
	// Get reports a cached URI; a miss is not an error.
	Get(ctx context.Context, trackID string) (string, bool, error)
	Set(ctx context.Context, trackID, uri string, ttl time.Duration) error
}
