// Package marker keeps the authoring session's track markers and memo notes.
package marker

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"Toonbeat/model"
)

var (
	ErrDuplicateID = errors.New("marker: duplicate id")
	ErrNotFound    = errors.New("marker: not found")
)

// Registry maps marker and note ids to their content-relative positions.
// Readers always get copies; the tracker reads it at callback time so it
// never works from a stale list.
type Registry struct {
	mu      sync.RWMutex
	markers map[string]model.TrackMarker
	notes   map[string]model.MemoNote
	editing map[string]bool

	onReplace []func()
}

func NewRegistry() *Registry {
	return &Registry{
		markers: make(map[string]model.TrackMarker),
		notes:   make(map[string]model.MemoNote),
		editing: make(map[string]bool),
	}
}

// OnReplace registers fn to run after every Replace, outside the lock.
func (r *Registry) OnReplace(fn func()) {
	r.mu.Lock()
	r.onReplace = append(r.onReplace, fn)
	r.mu.Unlock()
}

// Replace swaps the whole marker and note sets, e.g. on project load.
func (r *Registry) Replace(markers []model.TrackMarker, notes []model.MemoNote) {
	r.mu.Lock()
	r.markers = make(map[string]model.TrackMarker, len(markers))
	for _, m := range markers {
		r.markers[m.ID] = m
	}
	r.notes = make(map[string]model.MemoNote, len(notes))
	for _, n := range notes {
		r.notes[n.ID] = n
	}
	r.editing = make(map[string]bool)
	hooks := append([]func(){}, r.onReplace...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// ========== 音频标记 ==========

func (r *Registry) AddMarker(m model.TrackMarker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markers[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, m.ID)
	}
	m.Position.X = 0
	r.markers[m.ID] = m
	return nil
}

func (r *Registry) Marker(id string) (model.TrackMarker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markers[id]
	return m, ok
}

// MoveMarker updates the vertical position of a marker.
func (r *Registry) MoveMarker(id string, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markers[id]
	if !ok {
		return fmt.Errorf("%w: marker %s", ErrNotFound, id)
	}
	m.Position = model.Position{X: 0, Y: y}
	r.markers[id] = m
	return nil
}

// RemoveMarker is a no-op for unknown ids and reports whether it removed one.
func (r *Registry) RemoveMarker(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markers[id]; !ok {
		return false
	}
	delete(r.markers, id)
	return true
}

// Markers returns all markers in ascending y order (id breaks ties).
func (r *Registry) Markers() []model.TrackMarker {
	r.mu.RLock()
	out := make([]model.TrackMarker, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, m)
	}
	r.mu.RUnlock()

	SortByY(out)
	return out
}

// SortByY orders markers by ascending y, then id.
func SortByY(markers []model.TrackMarker) {
	sort.SliceStable(markers, func(i, j int) bool {
		if markers[i].Position.Y != markers[j].Position.Y {
			return markers[i].Position.Y < markers[j].Position.Y
		}
		return markers[i].ID < markers[j].ID
	})
}

// IndexOf returns the position of id in ordered, or -1.
func IndexOf(ordered []model.TrackMarker, id string) int {
	for i, m := range ordered {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// ========== 文字备注 ==========

func (r *Registry) AddNote(n model.MemoNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	if n.Width <= 0 {
		n.Width = model.DefaultNoteWidth
	}
	if n.Height <= 0 {
		n.Height = model.DefaultNoteHeight
	}
	r.notes[n.ID] = n
	return nil
}

func (r *Registry) Note(id string) (model.MemoNote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notes[id]
	return n, ok
}

// UpdateNote applies fn to a copy of the note and stores the result.
// The id cannot be changed through fn.
func (r *Registry) UpdateNote(id string, fn func(*model.MemoNote)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	fn(&n)
	n.ID = id
	r.notes[id] = n
	return nil
}

func (r *Registry) MoveNote(id string, pos model.Position) error {
	return r.UpdateNote(id, func(n *model.MemoNote) { n.Position = pos })
}

func (r *Registry) RemoveNote(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return false
	}
	delete(r.notes, id)
	delete(r.editing, id)
	return true
}

// Notes returns all notes ordered by y, then id.
func (r *Registry) Notes() []model.MemoNote {
	r.mu.RLock()
	out := make([]model.MemoNote, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position.Y != out[j].Position.Y {
			return out[i].Position.Y < out[j].Position.Y
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetEditing toggles the note's editing sub-state; drag handling is
// suspended while it is set.
func (r *Registry) SetEditing(id string, editing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return
	}
	if editing {
		r.editing[id] = true
	} else {
		delete(r.editing, id)
	}
}

func (r *Registry) IsEditing(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.editing[id]
}

// Snapshot reduces the registry to its persisted form.
func (r *Registry) Snapshot() model.Snapshot {
	markers := r.Markers()
	notes := r.Notes()

	snap := model.Snapshot{
		Markers: make([]model.MarkerSnapshot, 0, len(markers)),
		Notes:   make([]model.NoteSnapshot, 0, len(notes)),
	}
	for _, m := range markers {
		snap.Markers = append(snap.Markers, model.MarkerSnapshot{
			ID:        m.ID,
			TrackID:   m.Track.ID,
			PositionY: m.Position.Y,
		})
	}
	for _, n := range notes {
		snap.Notes = append(snap.Notes, model.NoteSnapshot{
			ID:        n.ID,
			Content:   n.Content,
			PositionX: n.Position.X,
			PositionY: n.Position.Y,
			Width:     n.Width,
			Height:    n.Height,
			TextColor: n.TextColor,
		})
	}
	return snap
}
