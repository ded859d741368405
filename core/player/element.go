package player

import (
	"context"

	"Toonbeat/logger"
)

// Element is the single playable media handle owned by a Session. Only the
// Session calls it. Implementations must not call back into the Session
// synchronously; media events are delivered through Session.HandleEvent.
type Element interface {
	SetSource(uri string)
	Load()
	// Play starts playback and returns once playback has started or was
	// rejected (autoplay policy, network, decode error).
	Play(ctx context.Context) error
	Pause()
	Seek(seconds float64)
	SetVolume(v float64)
	SetMuted(muted bool)
}

// EventType names the media element signals mirrored into the session.
type EventType string

const (
	EventTimeUpdate     EventType = "timeupdate"
	EventDurationChange EventType = "durationchange"
	EventEnded          EventType = "ended"
	EventCanPlay        EventType = "canplay"
	EventLoadStart      EventType = "loadstart"
	EventError          EventType = "error"
	EventPause          EventType = "pause"
)

// Event is one signal from the media element.
type Event struct {
	Type     EventType `json:"type"`
	Time     float64   `json:"time,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// StreamResolver turns a track id into a playable stream URI.
type StreamResolver interface {
	ResolveStreamHandle(ctx context.Context, trackID string) (string, error)
}

// ResolverFunc adapts a function to StreamResolver.
type ResolverFunc func(ctx context.Context, trackID string) (string, error)

func (f ResolverFunc) ResolveStreamHandle(ctx context.Context, trackID string) (string, error) {
	return f(ctx, trackID)
}

// LogElement is an Element without audio output. Every call succeeds and is
// logged; the simulate command uses it.
type LogElement struct {
	Source string
}

func (e *LogElement) SetSource(uri string) {
	e.Source = uri
	logger.Info("element source", logger.String("uri", uri))
}

func (e *LogElement) Load() {}

func (e *LogElement) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Info("element play", logger.String("uri", e.Source))
	return nil
}

func (e *LogElement) Pause() { logger.Info("element pause") }

func (e *LogElement) Seek(seconds float64) {
	logger.Info("element seek", logger.Float64("seconds", seconds))
}

func (e *LogElement) SetVolume(v float64) {
	logger.Debug("element volume", logger.Float64("volume", v))
}

func (e *LogElement) SetMuted(muted bool) {
	logger.Debug("element muted", logger.Bool("muted", muted))
}
