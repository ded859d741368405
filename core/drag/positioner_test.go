package drag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Toonbeat/core/marker"
	"Toonbeat/core/tracker"
	"Toonbeat/model"
)

type dragFixture struct {
	registry  *marker.Registry
	passed    *marker.PassedSet
	container *tracker.StaticContainer
	now       time.Time
	noteTaps  []string
	markTaps  []string
	deleted   []Target
	moves     int
	p         *Positioner
}

func newDragFixture(t *testing.T) *dragFixture {
	t.Helper()
	f := &dragFixture{
		registry:  marker.NewRegistry(),
		passed:    marker.NewPassedSet(),
		container: tracker.NewStaticContainer(tracker.Viewport{Left: 20, Top: 60, Width: 800, Height: 600}),
		now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.registry.AddMarker(model.TrackMarker{
		ID: "m", Track: model.Track{ID: "t"}, Position: model.Position{Y: 200},
	}))
	require.NoError(t, f.registry.AddNote(model.MemoNote{
		ID: "n", Content: "hello", Position: model.Position{X: 100, Y: 200}, Width: 200, Height: 100,
	}))
	f.p = New(Options{
		Container:   f.container,
		Registry:    f.registry,
		Passed:      f.passed,
		Now:         func() time.Time { return f.now },
		OnNoteTap:   func(id string) { f.noteTaps = append(f.noteTaps, id) },
		OnMarkerTap: func(id string) { f.markTaps = append(f.markTaps, id) },
		OnMove:      func(Target, model.Position) { f.moves++ },
		OnDelete:    func(t Target) { f.deleted = append(f.deleted, t) },
	})
	return f
}

func (f *dragFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestPositioner_DragFollowsPointerAndScroll(t *testing.T) {
	f := newDragFixture(t)
	target := Target{Kind: KindMarker, ID: "m"}

	// Marker at (0,200), scroll 0: its top edge is at client y 260.
	require.True(t, f.p.Press(target, Point{X: 400, Y: 270}))
	f.advance(50 * time.Millisecond)
	f.p.Move(Point{X: 400, Y: 370})
	f.container.ScrollTo(50)
	f.p.Scroll(f.container)
	f.advance(500 * time.Millisecond)

	assert.Equal(t, OutcomeMoved, f.p.Release(Point{X: 400, Y: 370}))
	m, ok := f.registry.Marker("m")
	require.True(t, ok)
	assert.Equal(t, model.Position{X: 0, Y: 350}, m.Position)
	assert.Equal(t, 3, f.moves)
}

// The drag delta of (0,+150) is the pointer's displacement in content
// coordinates: 100px of pointer travel on screen plus the 50px the content
// scrolled under it. However the moves and scrolls interleave, the marker
// lands at (0,350).
func TestPositioner_ContentDeltaWithScrollLandsAt350(t *testing.T) {
	for _, steps := range []int{1, 2, 5, 25} {
		f := newDragFixture(t)
		target := Target{Kind: KindMarker, ID: "m"}

		require.True(t, f.p.Press(target, Point{X: 400, Y: 270}))
		for i := 1; i <= steps; i++ {
			frac := float64(i) / float64(steps)
			f.p.Move(Point{X: 400, Y: 270 + 100*frac})
			f.container.ScrollTo(50 * frac)
			f.p.Scroll(f.container)
		}
		f.advance(time.Second)

		require.Equal(t, OutcomeMoved, f.p.Release(Point{X: 400, Y: 370}), "steps=%d", steps)
		m, _ := f.registry.Marker("m")
		assert.Equal(t, model.Position{X: 0, Y: 350}, m.Position, "steps=%d", steps)
	}

	// Read as 150px of on-screen travel, the same scroll adds on top.
	f := newDragFixture(t)
	require.True(t, f.p.Press(Target{Kind: KindMarker, ID: "m"}, Point{X: 400, Y: 270}))
	f.p.Move(Point{X: 400, Y: 420})
	f.container.ScrollTo(50)
	f.p.Scroll(f.container)
	require.Equal(t, OutcomeMoved, f.p.Release(Point{X: 400, Y: 420}))
	m, _ := f.registry.Marker("m")
	assert.Equal(t, 400.0, m.Position.Y)
}

func TestPositioner_GestureFollowsItsOwnSurface(t *testing.T) {
	f := newDragFixture(t)
	mobile := tracker.NewStaticContainer(tracker.Viewport{Width: 390, Height: 800, ScrollTop: 1000})
	note := Target{Kind: KindNote, ID: "n"}

	// Note at (100,200) shows at client y -800 on the scrolled mobile surface.
	require.True(t, f.p.PressOn(mobile, note, Point{X: 110, Y: -790}))
	f.p.Move(Point{X: 110, Y: -690})

	// Desktop scrolling does not move a mobile gesture.
	f.container.ScrollTo(400)
	f.p.Scroll(f.container)
	mobile.ScrollTo(1030)
	f.p.Scroll(mobile)

	require.Equal(t, OutcomeMoved, f.p.Release(Point{X: 110, Y: -690}))
	n, _ := f.registry.Note("n")
	assert.Equal(t, model.Position{X: 100, Y: 330}, n.Position)

	// Clamped against the mobile width, not the desktop one.
	require.True(t, f.p.PressOn(mobile, note, Point{X: 110, Y: -690}))
	assert.Equal(t, OutcomeMoved, f.p.Release(Point{X: 900, Y: -690}))
	n, _ = f.registry.Note("n")
	assert.Equal(t, 190.0, n.Position.X)
}

func TestPositioner_ClampsToContainer(t *testing.T) {
	f := newDragFixture(t)
	note := Target{Kind: KindNote, ID: "n"}

	require.True(t, f.p.Press(note, Point{X: 130, Y: 270}))
	f.p.Move(Point{X: 2000, Y: -500})
	assert.Equal(t, OutcomeMoved, f.p.Release(Point{X: 2000, Y: -500}))

	n, _ := f.registry.Note("n")
	assert.Equal(t, model.Position{X: 600, Y: 0}, n.Position)

	require.True(t, f.p.Press(note, Point{X: 700, Y: 70}))
	assert.Equal(t, OutcomeMoved, f.p.Release(Point{X: -300, Y: 90}))
	n, _ = f.registry.Note("n")
	assert.Zero(t, n.Position.X)
	assert.Equal(t, 20.0, n.Position.Y)
}

func TestPositioner_TapOpensNoteEditor(t *testing.T) {
	f := newDragFixture(t)
	note := Target{Kind: KindNote, ID: "n"}

	require.True(t, f.p.Press(note, Point{X: 150, Y: 280}))
	f.p.Move(Point{X: 152, Y: 281}) // under the threshold
	f.advance(120 * time.Millisecond)

	assert.Equal(t, OutcomeTap, f.p.Release(Point{X: 152, Y: 281}))
	assert.Equal(t, []string{"n"}, f.noteTaps)
	assert.True(t, f.registry.IsEditing("n"))
	n, _ := f.registry.Note("n")
	assert.Equal(t, model.Position{X: 100, Y: 200}, n.Position)

	// A note in editing ignores presses.
	assert.False(t, f.p.Press(note, Point{X: 150, Y: 280}))
}

func TestPositioner_TapTogglesMarker(t *testing.T) {
	f := newDragFixture(t)

	require.True(t, f.p.Press(Target{Kind: KindMarker, ID: "m"}, Point{X: 50, Y: 265}))
	f.advance(80 * time.Millisecond)

	assert.Equal(t, OutcomeTap, f.p.Release(Point{X: 50, Y: 265}))
	assert.Equal(t, []string{"m"}, f.markTaps)
}

func TestPositioner_LongPressWithoutMovementCommitsNothing(t *testing.T) {
	f := newDragFixture(t)

	require.True(t, f.p.Press(Target{Kind: KindNote, ID: "n"}, Point{X: 150, Y: 280}))
	f.advance(DefaultTapMaxDuration)

	assert.Equal(t, OutcomeNone, f.p.Release(Point{X: 150, Y: 280}))
	assert.Empty(t, f.noteTaps)
	assert.False(t, f.registry.IsEditing("n"))
}

func TestPositioner_DropOnDeletionZone(t *testing.T) {
	f := newDragFixture(t)
	f.p.RegisterZone("trash", Rect{Left: 700, Top: 600, Width: 100, Height: 60})

	require.True(t, f.p.Press(Target{Kind: KindMarker, ID: "m"}, Point{X: 100, Y: 265}))
	f.p.Move(Point{X: 400, Y: 450})

	assert.Equal(t, OutcomeDeleted, f.p.Release(Point{X: 750, Y: 630}))
	_, ok := f.registry.Marker("m")
	assert.False(t, ok)
	assert.True(t, f.passed.Has("m"))
	assert.Equal(t, []Target{{Kind: KindMarker, ID: "m"}}, f.deleted)

	require.True(t, f.p.Press(Target{Kind: KindNote, ID: "n"}, Point{X: 150, Y: 280}))
	assert.Equal(t, OutcomeDeleted, f.p.Release(Point{X: 720, Y: 610}))
	_, ok = f.registry.Note("n")
	assert.False(t, ok)
}

func TestPositioner_TapOverZoneIsNotADrop(t *testing.T) {
	f := newDragFixture(t)
	f.p.RegisterZone("trash", Rect{Left: 0, Top: 0, Width: 1000, Height: 1000})

	require.True(t, f.p.Press(Target{Kind: KindMarker, ID: "m"}, Point{X: 100, Y: 265}))
	assert.Equal(t, OutcomeTap, f.p.Release(Point{X: 100, Y: 265}))

	_, ok := f.registry.Marker("m")
	assert.True(t, ok)
	assert.False(t, f.passed.Has("m"))
}

func TestPositioner_OneGestureAtATime(t *testing.T) {
	f := newDragFixture(t)

	assert.False(t, f.p.Press(Target{Kind: KindNote, ID: "missing"}, Point{}))
	require.True(t, f.p.Press(Target{Kind: KindMarker, ID: "m"}, Point{X: 10, Y: 265}))
	assert.False(t, f.p.Press(Target{Kind: KindNote, ID: "n"}, Point{X: 150, Y: 280}))

	active, ok := f.p.Active()
	require.True(t, ok)
	assert.Equal(t, "m", active.ID)

	f.p.Cancel()
	_, ok = f.p.Active()
	assert.False(t, ok)
	assert.Equal(t, OutcomeNone, f.p.Release(Point{}))
}
