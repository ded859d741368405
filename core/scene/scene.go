// Package scene assembles one authoring session: the marker registry, the
// shared passed set, a tracker per surface, the playback orchestrator and
// the drag positioner, plus explicit save and load of the project.
package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"Toonbeat/core/audio"
	"Toonbeat/core/drag"
	"Toonbeat/core/marker"
	"Toonbeat/core/playback"
	"Toonbeat/core/player"
	"Toonbeat/core/tracker"
	"Toonbeat/logger"
	"Toonbeat/model"
	"Toonbeat/repository"
)

// SnapshotStore persists project snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, projectID string, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context, projectID string) (*model.Snapshot, error)
}

// TrackCatalog resolves the tracks referenced by a snapshot.
type TrackCatalog interface {
	GetTracksByIDs(ctx context.Context, ids []string) ([]model.Track, error)
}

type Options struct {
	ProjectID string
	Session   *player.Session
	Preloader *audio.Preloader
	Store     SnapshotStore
	Catalog   TrackCatalog

	Desktop tracker.Container
	// Mobile is optional; without it the scene runs a single surface.
	Mobile tracker.Container

	Clock           tracker.Clock
	PollInterval    time.Duration
	ExternalWatcher bool

	DragThreshold  float64
	TapMaxDuration time.Duration

	// OnDragMove previews positions while an entity is dragged.
	OnDragMove func(drag.Target, model.Position)
	// OnNoteTap runs when a tap opened a note for editing.
	OnNoteTap func(noteID string)
}

type Scene struct {
	projectID string
	session   *player.Session
	store     SnapshotStore
	catalog   TrackCatalog

	registry   *marker.Registry
	passed     *marker.PassedSet
	desktop    *tracker.Tracker
	mobile     *tracker.Tracker
	orch       *playback.Orchestrator
	positioner *drag.Positioner

	wg sync.WaitGroup
}

func New(opts Options) *Scene {
	s := &Scene{
		projectID: opts.ProjectID,
		session:   opts.Session,
		store:     opts.Store,
		catalog:   opts.Catalog,
		registry:  marker.NewRegistry(),
		passed:    marker.NewPassedSet(),
	}
	s.orch = playback.New(opts.Session, s.registry, opts.Preloader)

	newTracker := func(name string, c tracker.Container) *tracker.Tracker {
		return tracker.New(tracker.Options{
			Name:            name,
			Container:       c,
			Registry:        s.registry,
			Passed:          s.passed,
			OnTrigger:       s.orch.HandleTrigger,
			PollInterval:    opts.PollInterval,
			Clock:           opts.Clock,
			ExternalWatcher: opts.ExternalWatcher,
		})
	}
	s.desktop = newTracker("desktop", opts.Desktop)
	if opts.Mobile != nil {
		s.mobile = newTracker("mobile", opts.Mobile)
	}

	s.positioner = drag.New(drag.Options{
		Container:      opts.Desktop,
		Registry:       s.registry,
		Passed:         s.passed,
		Threshold:      opts.DragThreshold,
		TapMaxDuration: opts.TapMaxDuration,
		OnMarkerTap:    s.toggleMarker,
		OnNoteTap:      opts.OnNoteTap,
		OnMove:         opts.OnDragMove,
		OnDelete:       s.forget,
	})

	s.registry.OnReplace(s.Reset)
	return s
}

func (s *Scene) ProjectID() string                    { return s.projectID }
func (s *Scene) Registry() *marker.Registry           { return s.registry }
func (s *Scene) Passed() *marker.PassedSet            { return s.passed }
func (s *Scene) Desktop() *tracker.Tracker            { return s.desktop }
func (s *Scene) Orchestrator() *playback.Orchestrator { return s.orch }
func (s *Scene) Positioner() *drag.Positioner         { return s.positioner }
func (s *Scene) Session() *player.Session             { return s.session }

// Mobile returns nil for a single-surface scene.
func (s *Scene) Mobile() *tracker.Tracker { return s.mobile }

// Surface returns the tracker of the named surface.
func (s *Scene) Surface(name string) (*tracker.Tracker, bool) {
	switch name {
	case "", "desktop":
		return s.desktop, true
	case "mobile":
		return s.mobile, s.mobile != nil
	}
	return nil, false
}

func (s *Scene) trackers() []*tracker.Tracker {
	if s.mobile == nil {
		return []*tracker.Tracker{s.desktop}
	}
	return []*tracker.Tracker{s.desktop, s.mobile}
}

// Mount attaches every surface to its current geometry.
func (s *Scene) Mount() {
	for _, t := range s.trackers() {
		t.Mount()
	}
}

// AddTrackMarker places a new marker for track at content offset y.
func (s *Scene) AddTrackMarker(track model.Track, y float64) (model.TrackMarker, error) {
	if track.ID == "" {
		return model.TrackMarker{}, errors.New("scene: marker needs a track")
	}
	m := model.TrackMarker{
		ID:       uuid.NewString(),
		Track:    track,
		Position: model.Position{Y: y},
	}
	if err := s.registry.AddMarker(m); err != nil {
		return model.TrackMarker{}, err
	}
	return m, nil
}

// AddNote places a new note at pos with the default size.
func (s *Scene) AddNote(content string, pos model.Position) (model.MemoNote, error) {
	n := model.MemoNote{
		ID:       uuid.NewString(),
		Content:  content,
		Position: pos,
	}
	if err := s.registry.AddNote(n); err != nil {
		return model.MemoNote{}, err
	}
	n, _ = s.registry.Note(n.ID)
	return n, nil
}

// UpdateNote stores edited note content and leaves the editing state.
func (s *Scene) UpdateNote(id, content, textColor string) error {
	err := s.registry.UpdateNote(id, func(n *model.MemoNote) {
		n.Content = content
		if textColor != "" {
			n.TextColor = textColor
		}
	})
	if err != nil {
		return err
	}
	s.registry.SetEditing(id, false)
	return nil
}

// DeleteMarker removes a marker. Its id is added to the passed set first so
// no surface triggers it on the way out.
func (s *Scene) DeleteMarker(id string) bool {
	if _, ok := s.registry.Marker(id); !ok {
		return false
	}
	s.passed.Add(id)
	if !s.registry.RemoveMarker(id) {
		return false
	}
	s.forget(drag.Target{Kind: drag.KindMarker, ID: id})
	return true
}

func (s *Scene) DeleteNote(id string) bool {
	return s.registry.RemoveNote(id)
}

// LoadProject replaces the scene content with the stored snapshot and
// resets passage tracking. A project that was never saved loads empty.
func (s *Scene) LoadProject(ctx context.Context) error {
	if s.store == nil {
		return errors.New("scene: no snapshot store")
	}
	snap, err := s.store.LoadSnapshot(ctx, s.projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		snap, err = &model.Snapshot{}, nil
	}
	if err != nil {
		return fmt.Errorf("load project %s: %w", s.projectID, err)
	}

	markers, err := s.hydrate(ctx, snap.Markers)
	if err != nil {
		return fmt.Errorf("load project %s: %w", s.projectID, err)
	}
	notes := make([]model.MemoNote, 0, len(snap.Notes))
	for _, n := range snap.Notes {
		notes = append(notes, model.MemoNote{
			ID:        n.ID,
			Content:   n.Content,
			Position:  model.Position{X: n.PositionX, Y: n.PositionY},
			Width:     n.Width,
			Height:    n.Height,
			TextColor: n.TextColor,
		})
	}

	// Replace runs Reset through the registry hook.
	s.registry.Replace(markers, notes)

	logger.Info("project loaded",
		logger.String("projectId", s.projectID),
		logger.Int("markers", len(markers)),
		logger.Int("notes", len(notes)))
	return nil
}

func (s *Scene) hydrate(ctx context.Context, in []model.MarkerSnapshot) ([]model.TrackMarker, error) {
	byID := make(map[string]model.Track)
	if s.catalog != nil && len(in) > 0 {
		ids := make([]string, 0, len(in))
		for _, m := range in {
			ids = append(ids, m.TrackID)
		}
		found, err := s.catalog.GetTracksByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			byID[t.ID] = t
		}
	}

	out := make([]model.TrackMarker, 0, len(in))
	for _, m := range in {
		track, ok := byID[m.TrackID]
		if !ok {
			logger.Warn("marker references unknown track",
				logger.String("markerId", m.ID),
				logger.String("trackId", m.TrackID))
			track = model.Track{ID: m.TrackID}
		}
		out = append(out, model.TrackMarker{
			ID:       m.ID,
			Track:    track,
			Position: model.Position{Y: m.PositionY},
		})
	}
	return out, nil
}

// Save persists the current markers and notes. Nothing is saved implicitly.
func (s *Scene) Save(ctx context.Context) error {
	if s.store == nil {
		return errors.New("scene: no snapshot store")
	}
	snap := s.registry.Snapshot()
	if err := s.store.SaveSnapshot(ctx, s.projectID, snap); err != nil {
		return fmt.Errorf("save project %s: %w", s.projectID, err)
	}
	logger.Info("project saved",
		logger.String("projectId", s.projectID),
		logger.Int("markers", len(snap.Markers)),
		logger.Int("notes", len(snap.Notes)))
	return nil
}

// Reset clears the passed set once and re-applies the initialization rule
// on every surface.
func (s *Scene) Reset() {
	s.passed.Reset()
	for _, t := range s.trackers() {
		t.Remount()
	}
}

// Close stops the trackers and waits for in-flight triggers.
func (s *Scene) Close() {
	for _, t := range s.trackers() {
		t.Close()
	}
	s.positioner.Cancel()
	s.wg.Wait()
	s.orch.Wait()
}

// toggleMarker pauses or resumes the marker's track when it is the current
// one and plays it otherwise. Element round trips run off the caller's
// goroutine.
func (s *Scene) toggleMarker(id string) {
	m, ok := s.registry.Marker(id)
	if !ok {
		return
	}
	st := s.session.State()
	if st.CurrentTrack == nil || st.CurrentTrack.ID != m.Track.ID {
		s.orch.Trigger(m)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), player.DefaultPlayTimeout)
		defer cancel()
		if err := s.session.TogglePlay(ctx); err != nil {
			logger.Warn("inline toggle failed", logger.String("markerId", id), logger.ErrorField(err))
		}
	}()
}

// WaitIdle blocks until pending inline toggles and triggers have settled.
func (s *Scene) WaitIdle() {
	s.wg.Wait()
	s.orch.Wait()
	s.session.Wait()
}

func (s *Scene) forget(t drag.Target) {
	if t.Kind != drag.KindMarker {
		return
	}
	for _, tr := range s.trackers() {
		tr.Unregister(t.ID)
	}
}
