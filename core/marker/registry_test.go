package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Toonbeat/model"
)

func trackMarker(id string, y float64) model.TrackMarker {
	return model.TrackMarker{
		ID:       id,
		Track:    model.Track{ID: "track-" + id, Title: id},
		Position: model.Position{Y: y},
	}
}

func TestRegistry_MarkersSortedByY(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddMarker(trackMarker("c", 500)))
	require.NoError(t, r.AddMarker(trackMarker("a", 100)))
	require.NoError(t, r.AddMarker(trackMarker("b", 300)))

	got := r.Markers()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, 1, IndexOf(got, "b"))
	assert.Equal(t, -1, IndexOf(got, "missing"))
}

func TestRegistry_AddMarkerRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddMarker(trackMarker("a", 100)))

	err := r.AddMarker(trackMarker("a", 200))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestRegistry_MarkerXIsAlwaysZero(t *testing.T) {
	r := NewRegistry()
	m := trackMarker("a", 100)
	m.Position.X = 42
	require.NoError(t, r.AddMarker(m))

	got, ok := r.Marker("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, got.Position.X)

	require.NoError(t, r.MoveMarker("a", 250))
	got, _ = r.Marker("a")
	assert.Equal(t, model.Position{X: 0, Y: 250}, got.Position)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddMarker(trackMarker("a", 100)))

	assert.True(t, r.RemoveMarker("a"))
	assert.False(t, r.RemoveMarker("a"))
	assert.ErrorIs(t, r.MoveMarker("a", 10), ErrNotFound)
}

func TestRegistry_NotesAndEditing(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddNote(model.MemoNote{ID: "n1", Content: "hello"}))

	n, ok := r.Note("n1")
	require.True(t, ok)
	assert.Equal(t, float64(model.DefaultNoteWidth), n.Width)

	r.SetEditing("n1", true)
	assert.True(t, r.IsEditing("n1"))

	require.NoError(t, r.UpdateNote("n1", func(n *model.MemoNote) {
		n.Content = "edited"
		n.ID = "hijack"
	}))
	n, _ = r.Note("n1")
	assert.Equal(t, "edited", n.Content)
	assert.Equal(t, "n1", n.ID)

	assert.True(t, r.RemoveNote("n1"))
	assert.False(t, r.IsEditing("n1"))

	r.SetEditing("ghost", true)
	assert.False(t, r.IsEditing("ghost"))
}

func TestRegistry_ReplaceRunsHooks(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.OnReplace(func() { calls++ })
	require.NoError(t, r.AddMarker(trackMarker("old", 10)))

	r.Replace([]model.TrackMarker{trackMarker("new", 20)}, nil)

	assert.Equal(t, 1, calls)
	_, ok := r.Marker("old")
	assert.False(t, ok)
	_, ok = r.Marker("new")
	assert.True(t, ok)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddMarker(trackMarker("m2", 400)))
	require.NoError(t, r.AddMarker(trackMarker("m1", 200)))
	require.NoError(t, r.AddNote(model.MemoNote{
		ID: "n1", Content: "beat drop", Position: model.Position{X: 30, Y: 350},
		Width: 180, Height: 90, TextColor: "#ff0000",
	}))

	snap := r.Snapshot()

	assert.Equal(t, []model.MarkerSnapshot{
		{ID: "m1", TrackID: "track-m1", PositionY: 200},
		{ID: "m2", TrackID: "track-m2", PositionY: 400},
	}, snap.Markers)
	require.Len(t, snap.Notes, 1)
	assert.Equal(t, model.NoteSnapshot{
		ID: "n1", Content: "beat drop", PositionX: 30, PositionY: 350,
		Width: 180, Height: 90, TextColor: "#ff0000",
	}, snap.Notes[0])
}

func TestPassedSet(t *testing.T) {
	s := NewPassedSet()

	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Has("a"))
	s.Add("b")
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, 1, s.Len())

	s.Reset()
	assert.Equal(t, 0, s.Len())
}
