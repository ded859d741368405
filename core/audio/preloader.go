package audio

import (
	"context"

	"Toonbeat/logger"
	"Toonbeat/model"
)

// DefaultAhead is how many following markers are preloaded after a trigger.
const DefaultAhead = 2

// Capability warms up a track so that a later play starts quickly.
type Capability interface {
	Preload(ctx context.Context, track model.Track) error
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, track model.Track) error

func (f CapabilityFunc) Preload(ctx context.Context, track model.Track) error {
	return f(ctx, track)
}

// Preloader is best effort: it never returns an error and a nil Preloader
// or a nil Capability does nothing.
type Preloader struct {
	capability Capability
	ahead      int
}

func NewPreloader(capability Capability, ahead int) *Preloader {
	if ahead <= 0 {
		ahead = DefaultAhead
	}
	return &Preloader{capability: capability, ahead: ahead}
}

// Preload warms the tracks of the markers following index in ordered, which
// must be sorted by y. Markers past the end are skipped.
func (p *Preloader) Preload(ctx context.Context, ordered []model.TrackMarker, index int) {
	if p == nil || p.capability == nil || index < 0 || index >= len(ordered)-1 {
		return
	}

	end := index + 1 + p.ahead
	if end > len(ordered) {
		end = len(ordered)
	}
	for _, m := range ordered[index+1 : end] {
		if ctx.Err() != nil {
			return
		}
		if err := p.capability.Preload(ctx, m.Track); err != nil {
			logger.Warn("预加载失败",
				logger.String("markerId", m.ID),
				logger.String("trackId", m.Track.ID),
				logger.ErrorField(err))
		}
	}
}
