package player

import "errors"

var (
	// ErrStreamResolve means no stream handle could be obtained for the track.
	ErrStreamResolve = errors.New("player: could not resolve stream")
	// ErrPlaybackStart means the media element rejected the play request.
	ErrPlaybackStart = errors.New("player: could not start playback")
	// ErrSuperseded is returned to a play call overtaken by a newer play or stop.
	ErrSuperseded = errors.New("player: superseded by a newer request")
)
