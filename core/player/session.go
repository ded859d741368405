// Package player owns the single audio session of the process: one media
// Element, its transport state, the current playlist and the subscribers
// that mirror the state to renderers.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Toonbeat/logger"
	"Toonbeat/model"
)

const (
	DefaultRestartThreshold = 3 * time.Second
	DefaultPlayTimeout      = 15 * time.Second
	defaultVolume           = 1.0
	subscriberBuffer        = 16
)

type Options struct {
	// RestartThreshold is how far into a track Previous restarts it
	// instead of moving back.
	RestartThreshold time.Duration
	// PlayTimeout bounds plays that run in the background: PlayAsync and
	// auto-advance.
	PlayTimeout time.Duration
}

// Session is safe for concurrent use. It is the only writer of its Element.
type Session struct {
	mu         sync.Mutex
	el         Element
	resolver   StreamResolver
	state      State
	lastVolume float64
	gen        uint64
	inflight   *attempt

	restart  time.Duration
	timeout  time.Duration
	watchers map[chan State]struct{}
	wg       sync.WaitGroup
}

func NewSession(el Element, resolver StreamResolver, opts Options) *Session {
	if opts.RestartThreshold <= 0 {
		opts.RestartThreshold = DefaultRestartThreshold
	}
	if opts.PlayTimeout <= 0 {
		opts.PlayTimeout = DefaultPlayTimeout
	}
	el.SetVolume(defaultVolume)
	return &Session{
		el:       el,
		resolver: resolver,
		state: State{
			Status:       StatusIdle,
			CurrentIndex: -1,
			Volume:       defaultVolume,
			UpdatedAt:    time.Now(),
		},
		lastVolume: defaultVolume,
		restart:    opts.RestartThreshold,
		timeout:    opts.PlayTimeout,
		watchers:   make(map[chan State]struct{}),
	}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Play resolves a stream for track, attaches it to the element and starts
// playback. A non-nil playlist replaces the current one. A call for the
// track already loading joins that attempt; a later call for another track
// makes the earlier one return ErrSuperseded.
func (s *Session) Play(ctx context.Context, track model.Track, playlist []model.Track) error {
	a, leader := s.begin(track, playlist)
	if leader {
		s.run(ctx, a)
		return a.err
	}
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlayAsync registers the play before returning, so successive calls take
// effect in call order, and completes it in the background. The channel
// receives the result.
func (s *Session) PlayAsync(track model.Track, playlist []model.Track) <-chan error {
	result := make(chan error, 1)
	a, leader := s.begin(track, playlist)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if leader {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			s.run(ctx, a)
			cancel()
		} else {
			<-a.done
		}
		result <- a.err
	}()
	return result
}

// attempt is one in-flight play. done is closed once err is final.
type attempt struct {
	gen      uint64
	track    model.Track
	playlist []model.Track
	done     chan struct{}
	err      error
}

func (s *Session) begin(track model.Track, playlist []model.Track) (*attempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil && s.inflight.track.ID == track.ID {
		return s.inflight, false
	}

	s.gen++
	a := &attempt{
		gen:   s.gen,
		track: track,
		done:  make(chan struct{}),
	}
	if playlist != nil {
		a.playlist = append([]model.Track(nil), playlist...)
	}
	s.inflight = a

	loading := track
	s.state.Status = StatusLoading
	s.state.IsLoading = true
	s.state.IsPlaying = false
	s.state.LoadingTrack = &loading
	s.notifyLocked()
	return a, true
}

func (s *Session) run(ctx context.Context, a *attempt) {
	track := a.track
	uri, err := s.resolver.ResolveStreamHandle(ctx, track.ID)

	s.mu.Lock()
	if a.gen != s.gen {
		s.finishLocked(a, ErrSuperseded)
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.failLocked()
		s.finishLocked(a, fmt.Errorf("%w: track %s: %w", ErrStreamResolve, track.ID, err))
		s.mu.Unlock()
		logger.Error("failed to resolve stream",
			logger.String("trackId", track.ID), logger.ErrorField(err))
		return
	}
	s.el.SetSource(uri)
	s.el.Load()
	s.mu.Unlock()

	err = s.el.Play(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if a.gen != s.gen {
		s.finishLocked(a, ErrSuperseded)
		return
	}
	if err != nil {
		s.failLocked()
		s.finishLocked(a, fmt.Errorf("%w: track %s: %w", ErrPlaybackStart, track.ID, err))
		logger.Error("failed to start playback",
			logger.String("trackId", track.ID), logger.ErrorField(err))
		return
	}

	current := track
	s.state.Status = StatusPlaying
	s.state.CurrentTrack = &current
	s.state.LoadingTrack = nil
	s.state.IsPlaying = true
	s.state.IsLoading = false
	s.state.CurrentTime = 0
	s.state.Duration = float64(track.Duration)
	if a.playlist != nil {
		s.state.Playlist = a.playlist
	}
	s.state.CurrentIndex = indexOf(s.state.Playlist, track.ID)
	s.finishLocked(a, nil)
	s.notifyLocked()

	logger.Info("playback started",
		logger.String("trackId", track.ID),
		logger.Int("index", s.state.CurrentIndex),
		logger.Int("playlistSize", len(s.state.Playlist)))
}

func (s *Session) finishLocked(a *attempt, err error) {
	a.err = err
	close(a.done)
	if s.inflight == a {
		s.inflight = nil
	}
}

// failLocked leaves the session idle with nothing attached. The element may
// still hold the previous track, or the source that failed to start, so it
// is paused to match.
func (s *Session) failLocked() {
	s.el.Pause()
	s.state.Status = StatusIdle
	s.state.CurrentTrack = nil
	s.state.CurrentIndex = -1
	s.state.LoadingTrack = nil
	s.state.IsPlaying = false
	s.state.IsLoading = false
	s.state.CurrentTime = 0
	s.state.Duration = 0
	s.notifyLocked()
}

// TogglePlay pauses a playing session and resumes a paused one. It does
// nothing while idle or loading.
func (s *Session) TogglePlay(ctx context.Context) error {
	s.mu.Lock()
	switch s.state.Status {
	case StatusPlaying:
		s.el.Pause()
		s.state.Status = StatusPaused
		s.state.IsPlaying = false
		s.notifyLocked()
		s.mu.Unlock()
		return nil
	case StatusPaused:
		gen := s.gen
		s.mu.Unlock()

		err := s.el.Play(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen || s.state.Status != StatusPaused {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: resume: %w", ErrPlaybackStart, err)
		}
		s.state.Status = StatusPlaying
		s.state.IsPlaying = true
		s.notifyLocked()
		return nil
	default:
		s.mu.Unlock()
		return nil
	}
}

// Stop pauses, rewinds and detaches the current track. An in-flight play
// is superseded.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.inflight = nil
	s.el.Pause()
	s.el.Seek(0)
	s.state.Status = StatusIdle
	s.state.CurrentTrack = nil
	s.state.LoadingTrack = nil
	s.state.IsPlaying = false
	s.state.IsLoading = false
	s.state.CurrentTime = 0
	s.state.Duration = 0
	s.notifyLocked()
}

// Next plays the following playlist entry; at the end of the playlist it
// does nothing.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	idx := s.state.CurrentIndex
	if idx < 0 || idx+1 >= len(s.state.Playlist) {
		s.mu.Unlock()
		return nil
	}
	next := s.state.Playlist[idx+1]
	playlist := append([]model.Track(nil), s.state.Playlist...)
	s.mu.Unlock()

	return s.Play(ctx, next, playlist)
}

// Previous restarts the current track once it has played past the restart
// threshold; otherwise it moves to the preceding playlist entry, or rewinds
// when there is none.
func (s *Session) Previous(ctx context.Context) error {
	s.mu.Lock()
	idx := s.state.CurrentIndex
	if s.state.CurrentTime > s.restart.Seconds() || idx <= 0 || idx >= len(s.state.Playlist) {
		s.seekLocked(0)
		s.mu.Unlock()
		return nil
	}
	prev := s.state.Playlist[idx-1]
	playlist := append([]model.Track(nil), s.state.Playlist...)
	s.mu.Unlock()

	return s.Play(ctx, prev, playlist)
}

// Seek moves the playhead, clamped to the known duration.
func (s *Session) Seek(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekLocked(seconds)
}

func (s *Session) seekLocked(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if s.state.Duration > 0 && seconds > s.state.Duration {
		seconds = s.state.Duration
	}
	s.el.Seek(seconds)
	s.state.CurrentTime = seconds
	s.notifyLocked()
}

// SetVolume clamps v to [0,1]. Zero mutes; the last audible volume is kept
// for ToggleMute.
func (s *Session) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.el.SetVolume(v)
	s.state.Volume = v
	if v == 0 {
		if !s.state.IsMuted {
			s.el.SetMuted(true)
		}
		s.state.IsMuted = true
	} else {
		s.lastVolume = v
		if s.state.IsMuted {
			s.el.SetMuted(false)
		}
		s.state.IsMuted = false
	}
	s.notifyLocked()
}

// ToggleMute mutes, or unmutes restoring the last non-zero volume.
func (s *Session) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsMuted {
		v := s.lastVolume
		if v <= 0 {
			v = defaultVolume
		}
		s.el.SetVolume(v)
		s.el.SetMuted(false)
		s.state.Volume = v
		s.state.IsMuted = false
	} else {
		if s.state.Volume > 0 {
			s.lastVolume = s.state.Volume
		}
		s.el.SetMuted(true)
		s.state.IsMuted = true
	}
	s.notifyLocked()
}

// HandleEvent mirrors a media element event into the session.
func (s *Session) HandleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case EventTimeUpdate:
		s.state.CurrentTime = ev.Time
	case EventDurationChange:
		s.state.Duration = ev.Duration
	case EventLoadStart:
		s.state.IsLoading = true
	case EventCanPlay:
		s.state.IsLoading = false
	case EventPause:
		// Pauses issued while a new source loads are not user pauses.
		if s.state.Status != StatusPlaying {
			return
		}
		s.state.Status = StatusPaused
		s.state.IsPlaying = false
	case EventEnded:
		s.state.Status = StatusPaused
		s.state.IsPlaying = false
		if s.state.Duration > 0 {
			s.state.CurrentTime = s.state.Duration
		}
		if s.state.CurrentIndex >= 0 && s.state.CurrentIndex+1 < len(s.state.Playlist) {
			s.wg.Add(1)
			go s.advance()
		}
	case EventError:
		// A failing load is reported by the pending Play call.
		if s.state.Status == StatusLoading {
			return
		}
		logger.Error("media element error", logger.String("message", ev.Message))
		s.failLocked()
		return
	default:
		return
	}
	s.notifyLocked()
}

func (s *Session) advance() {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Next(ctx); err != nil {
		logger.Warn("auto-advance failed", logger.ErrorField(err))
	}
}

// Wait blocks until background plays and auto-advances have finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Subscribe returns a channel receiving a snapshot after every change. A
// subscriber that falls behind misses intermediate snapshots.
func (s *Session) Subscribe() <-chan State {
	ch := make(chan State, subscriberBuffer)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	ch <- s.state.clone()
	s.mu.Unlock()
	return ch
}

// Unsubscribe closes a channel returned by Subscribe.
func (s *Session) Unsubscribe(ch <-chan State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		if w == ch {
			delete(s.watchers, w)
			close(w)
			return
		}
	}
}

func (s *Session) notifyLocked() {
	s.state.UpdatedAt = time.Now()
	snapshot := s.state.clone()
	for w := range s.watchers {
		select {
		case w <- snapshot:
		default:
		}
	}
}

func indexOf(playlist []model.Track, trackID string) int {
	for i, t := range playlist {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}
