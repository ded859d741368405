// Package playback connects marker triggers to the audio session.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"Toonbeat/core/audio"
	"Toonbeat/core/marker"
	"Toonbeat/core/player"
	"Toonbeat/logger"
	"Toonbeat/model"
)

const defaultPreloadTimeout = 30 * time.Second

// Session is the part of player.Session the orchestrator drives.
type Session interface {
	State() player.State
	PlayAsync(track model.Track, playlist []model.Track) <-chan error
}

// Orchestrator plays the track of each triggered marker with the markers in
// y order as playlist, then preloads the tracks that follow.
type Orchestrator struct {
	session        Session
	registry       *marker.Registry
	preloader      *audio.Preloader
	preloadTimeout time.Duration

	wg sync.WaitGroup
}

func New(session Session, registry *marker.Registry, preloader *audio.Preloader) *Orchestrator {
	return &Orchestrator{
		session:        session,
		registry:       registry,
		preloader:      preloader,
		preloadTimeout: defaultPreloadTimeout,
	}
}

// HandleTrigger has the signature of a tracker trigger callback.
func (o *Orchestrator) HandleTrigger(m model.TrackMarker) {
	o.Trigger(m)
}

// Trigger starts playback for m without blocking. It returns false when the
// marker's track is already playing or loading.
func (o *Orchestrator) Trigger(m model.TrackMarker) bool {
	st := o.session.State()
	if st.IsCurrent(m.Track.ID) || st.IsLoadingTrack(m.Track.ID) {
		logger.Debug("trigger ignored, track already active",
			logger.String("markerId", m.ID),
			logger.String("trackId", m.Track.ID))
		return false
	}

	ordered := o.registry.Markers()
	playlist := make([]model.Track, len(ordered))
	for i, om := range ordered {
		playlist[i] = om.Track
	}

	result := o.session.PlayAsync(m.Track, playlist)
	o.wg.Add(1)
	go o.await(m, ordered, result)
	return true
}

func (o *Orchestrator) await(m model.TrackMarker, ordered []model.TrackMarker, result <-chan error) {
	defer o.wg.Done()

	err := <-result
	switch {
	case err == nil:
		ctx, cancel := context.WithTimeout(context.Background(), o.preloadTimeout)
		defer cancel()
		o.preloader.Preload(ctx, ordered, marker.IndexOf(ordered, m.ID))
	case errors.Is(err, player.ErrSuperseded):
		logger.Debug("marker playback superseded", logger.String("markerId", m.ID))
	default:
		// The marker stays passed; the reader scrolls past it again to retry.
		logger.Error("marker playback failed",
			logger.String("markerId", m.ID),
			logger.String("trackId", m.Track.ID),
			logger.ErrorField(err))
	}
}

// Wait blocks until every started trigger has settled and its preload has
// finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
