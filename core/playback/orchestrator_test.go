package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"Toonbeat/core/audio"
	"Toonbeat/core/marker"
	"Toonbeat/core/player"
	"Toonbeat/logger"
	"Toonbeat/model"
)

type silentElement struct {
	mu      sync.Mutex
	playErr error
}

func (e *silentElement) SetSource(string)  {}
func (e *silentElement) Load()             {}
func (e *silentElement) Pause()            {}
func (e *silentElement) Seek(float64)      {}
func (e *silentElement) SetVolume(float64) {}
func (e *silentElement) SetMuted(bool)     {}

func (e *silentElement) Play(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playErr
}

type preloads struct {
	mu  sync.Mutex
	ids []string
}

func (p *preloads) Preload(ctx context.Context, track model.Track) error {
	p.mu.Lock()
	p.ids = append(p.ids, track.ID)
	p.mu.Unlock()
	return nil
}

type harness struct {
	registry  *marker.Registry
	session   *player.Session
	element   *silentElement
	preloaded *preloads
	resolves  int32
	orch      *Orchestrator
}

func newHarness(t *testing.T, resolve player.ResolverFunc) *harness {
	t.Helper()
	h := &harness{
		registry:  marker.NewRegistry(),
		element:   &silentElement{},
		preloaded: &preloads{},
	}
	if resolve == nil {
		resolve = func(ctx context.Context, id string) (string, error) {
			return "https://media.example/" + id, nil
		}
	}
	counting := player.ResolverFunc(func(ctx context.Context, id string) (string, error) {
		atomic.AddInt32(&h.resolves, 1)
		return resolve(ctx, id)
	})
	h.session = player.NewSession(h.element, counting, player.Options{})
	h.orch = New(h.session, h.registry, audio.NewPreloader(h.preloaded, 2))

	// Inserted out of order on purpose.
	for _, m := range []struct {
		id string
		y  float64
	}{{"c", 900}, {"a", 100}, {"d", 1300}, {"b", 500}} {
		require.NoError(t, h.registry.AddMarker(model.TrackMarker{
			ID:       m.id,
			Track:    model.Track{ID: "track-" + m.id},
			Position: model.Position{Y: m.y},
		}))
	}
	return h
}

func (h *harness) marker(t *testing.T, id string) model.TrackMarker {
	t.Helper()
	m, ok := h.registry.Marker(id)
	require.True(t, ok)
	return m
}

func TestOrchestrator_PlaysWithOrderedPlaylistAndPreloads(t *testing.T) {
	h := newHarness(t, nil)

	require.True(t, h.orch.Trigger(h.marker(t, "b")))
	h.orch.Wait()

	st := h.session.State()
	require.NotNil(t, st.CurrentTrack)
	assert.Equal(t, "track-b", st.CurrentTrack.ID)
	assert.Equal(t, 1, st.CurrentIndex)
	ids := make([]string, len(st.Playlist))
	for i, tr := range st.Playlist {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"track-a", "track-b", "track-c", "track-d"}, ids)
	assert.Equal(t, []string{"track-c", "track-d"}, h.preloaded.ids)
}

func TestOrchestrator_IgnoresTrackAlreadyPlaying(t *testing.T) {
	h := newHarness(t, nil)
	m := h.marker(t, "a")

	h.orch.HandleTrigger(m)
	h.orch.Wait()
	require.True(t, h.session.State().IsCurrent("track-a"))

	assert.False(t, h.orch.Trigger(m))
	h.orch.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&h.resolves))
}

func TestOrchestrator_IgnoresTrackAlreadyLoading(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, id string) (string, error) {
		<-gate
		return "https://media.example/" + id, nil
	})
	m := h.marker(t, "c")

	require.True(t, h.orch.Trigger(m))
	assert.False(t, h.orch.Trigger(m))
	close(gate)
	h.orch.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&h.resolves))
	assert.True(t, h.session.State().IsCurrent("track-c"))
}

func TestOrchestrator_LatestTriggerWins(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, func(ctx context.Context, id string) (string, error) {
		<-gate
		return "https://media.example/" + id, nil
	})

	h.orch.HandleTrigger(h.marker(t, "a"))
	h.orch.HandleTrigger(h.marker(t, "b"))
	close(gate)
	h.orch.Wait()

	assert.True(t, h.session.State().IsCurrent("track-b"))
	assert.Equal(t, []string{"track-c", "track-d"}, h.preloaded.ids)
}

func TestOrchestrator_FailureIsLoggedWithoutPreload(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })

	h := newHarness(t, nil)
	h.element.playErr = errors.New("autoplay blocked")

	h.orch.HandleTrigger(h.marker(t, "a"))
	h.orch.Wait()

	assert.Empty(t, h.preloaded.ids)
	assert.Equal(t, player.StatusIdle, h.session.State().Status)
	assert.Equal(t, 1, logs.FilterMessage("marker playback failed").Len())
}
