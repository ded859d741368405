// Package tracker decides when the viewport of a scroll container has passed
// a track marker. It combines two visibility sources (an intersection watcher
// and a throttled scroll poll) with the container's scroll direction, and
// keeps a shared PassedSet so that either source triggers a marker at most
// once per downward traversal.
package tracker

import (
	"math"
	"sync"
	"time"

	"Toonbeat/core/marker"
	"Toonbeat/core/scroll"
	"Toonbeat/logger"
	"Toonbeat/model"
)

const DefaultPollInterval = 50 * time.Millisecond

// Options configure one Tracker. Desktop and mobile surfaces each get a
// Tracker with their own Container and share Registry and Passed.
type Options struct {
	Name      string
	Container Container
	Registry  *marker.Registry
	Passed    *marker.PassedSet

	// OnTrigger runs when a marker is passed while scrolling down.
	OnTrigger func(model.TrackMarker)
	// OnRetract runs when a passed marker is scrolled back below the window.
	OnRetract func(model.TrackMarker)

	PollInterval time.Duration
	Clock        Clock

	// ExternalWatcher disables the built-in geometric intersection watcher;
	// the host then reports transitions through HandleIntersections.
	ExternalWatcher bool
}

// Tracker is safe for use from multiple goroutines. Callbacks are never
// invoked while its lock is held.
type Tracker struct {
	mu sync.Mutex

	name      string
	container Container
	registry  *marker.Registry
	passed    *marker.PassedSet
	onTrigger func(model.TrackMarker)
	onRetract func(model.TrackMarker)
	interval  time.Duration
	clock     Clock
	external  bool

	estimator   *scroll.Estimator
	elements    map[string]Element
	visible     map[string]bool
	initialized bool

	lastPoll     time.Time
	stopTrailing func() bool
	closed       bool
}

type event struct {
	marker  model.TrackMarker
	trigger bool
}

func New(opts Options) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Registry == nil {
		opts.Registry = marker.NewRegistry()
	}
	if opts.Passed == nil {
		opts.Passed = marker.NewPassedSet()
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	return &Tracker{
		name:      opts.Name,
		container: opts.Container,
		registry:  opts.Registry,
		passed:    opts.Passed,
		onTrigger: opts.OnTrigger,
		onRetract: opts.OnRetract,
		interval:  opts.PollInterval,
		clock:     opts.Clock,
		external:  opts.ExternalWatcher,
		estimator: scroll.NewEstimator(0),
		elements:  make(map[string]Element),
		visible:   make(map[string]bool),
	}
}

// Name identifies the surface in logs.
func (t *Tracker) Name() string { return t.name }

// Direction returns the most recently estimated scroll direction.
func (t *Tracker) Direction() scroll.Direction { return t.estimator.Current() }

// Mount attaches the tracker to its container's current geometry and applies
// the initialization rule when markers are already present.
func (t *Tracker) Mount() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	vp := t.container.Viewport()
	t.estimator.Reset(vp.ScrollTop)
	events := t.initLocked(vp)
	t.mu.Unlock()

	t.emit(events)
}

// Register records the rendered element of a marker. A nil element is
// ignored. The element's current visibility is recorded without emitting.
func (t *Tracker) Register(id string, el Element) {
	if el == nil || id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.elements[id] = el
	if m, ok := t.registry.Marker(id); ok {
		t.visible[id] = intersects(m.Position.Y, el.Height(), t.container.Viewport())
	}
}

// Unregister forgets a marker element. Unknown ids are ignored.
func (t *Tracker) Unregister(id string) {
	t.mu.Lock()
	delete(t.elements, id)
	delete(t.visible, id)
	t.mu.Unlock()
}

// Registered reports whether id currently has a rendered element.
func (t *Tracker) Registered(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.elements[id]
	return ok
}

// OnScroll handles a scroll event of the container: it estimates the
// direction, runs the built-in watcher and the throttled poll.
func (t *Tracker) OnScroll() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	vp := t.container.Viewport()
	dir := t.estimator.Direction(vp.ScrollTop)

	events := t.initLocked(vp)
	if !t.external {
		events = append(events, t.watchLocked(vp, dir)...)
	}
	events = append(events, t.throttledPollLocked(vp, dir)...)
	t.mu.Unlock()

	t.emit(events)
}

// HandleIntersections applies transitions reported by a host-side watcher,
// using the direction estimated by the latest scroll event.
func (t *Tracker) HandleIntersections(entries []Entry) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	dir := t.estimator.Current()
	var events []event
	for _, e := range entries {
		if _, ok := t.elements[e.MarkerID]; !ok {
			continue
		}
		t.visible[e.MarkerID] = e.Intersecting
		if e.Intersecting {
			events = t.enterLocked(events, e.MarkerID, dir)
		} else {
			events = t.exitLocked(events, e.MarkerID, dir)
		}
	}
	t.mu.Unlock()

	t.emit(events)
}

// Poll runs the position poll immediately, bypassing the throttle.
func (t *Tracker) Poll() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.lastPoll = t.clock.Now()
	events := t.pollLocked(t.container.Viewport(), t.estimator.Current())
	t.mu.Unlock()

	t.emit(events)
}

// Reset clears the passed set and re-applies the initialization rule
// against the current geometry, as on a fresh mount.
func (t *Tracker) Reset() {
	t.passed.Reset()
	t.Remount()
}

// Remount re-applies the initialization rule without clearing the passed
// set. Surfaces sharing one set clear it once and then remount each.
func (t *Tracker) Remount() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.initialized = false
	t.visible = make(map[string]bool)
	vp := t.container.Viewport()
	t.estimator.Reset(vp.ScrollTop)
	events := t.initLocked(vp)
	t.mu.Unlock()

	t.emit(events)
}

// Close stops a pending trailing poll; later events are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.stopTrailing != nil {
		t.stopTrailing()
		t.stopTrailing = nil
	}
}

// initLocked marks every marker already above the viewport bottom as passed
// and triggers only the bottom-most one. It runs once, the first time
// markers are present.
func (t *Tracker) initLocked(vp Viewport) []event {
	if t.initialized {
		return nil
	}
	markers := t.registry.Markers()
	if len(markers) == 0 {
		return nil
	}
	t.initialized = true

	for id, el := range t.elements {
		if m, ok := t.registry.Marker(id); ok {
			t.visible[id] = intersects(m.Position.Y, el.Height(), vp)
		}
	}

	bottom := vp.WindowBottom()
	var last *model.TrackMarker
	newlyPassed := false
	for i := range markers {
		if markers[i].Position.Y > bottom {
			break
		}
		added := t.passed.Add(markers[i].ID)
		last = &markers[i]
		newlyPassed = added
	}
	if last == nil || !newlyPassed {
		return nil
	}

	logger.Debug("tracker initialized",
		logger.String("surface", t.name),
		logger.String("markerId", last.ID),
		logger.Float64("viewportBottom", bottom))
	return []event{{marker: *last, trigger: true}}
}

// watchLocked is the built-in intersection watcher: it diffs the
// visibility of registered elements against the previous scroll tick.
func (t *Tracker) watchLocked(vp Viewport, dir scroll.Direction) []event {
	if len(t.elements) == 0 {
		return nil
	}
	var entering, leaving []model.TrackMarker
	for id, el := range t.elements {
		m, ok := t.registry.Marker(id)
		if !ok {
			delete(t.visible, id)
			continue
		}
		now := intersects(m.Position.Y, el.Height(), vp)
		if now == t.visible[id] {
			continue
		}
		t.visible[id] = now
		if now {
			entering = append(entering, m)
		} else {
			leaving = append(leaving, m)
		}
	}

	marker.SortByY(entering)
	marker.SortByY(leaving)

	var events []event
	for _, m := range entering {
		events = t.enterLocked(events, m.ID, dir)
	}
	for _, m := range leaving {
		events = t.exitLocked(events, m.ID, dir)
	}
	return events
}

func (t *Tracker) throttledPollLocked(vp Viewport, dir scroll.Direction) []event {
	now := t.clock.Now()
	elapsed := now.Sub(t.lastPoll)
	if t.lastPoll.IsZero() || elapsed >= t.interval {
		t.lastPoll = now
		return t.pollLocked(vp, dir)
	}
	if t.stopTrailing == nil {
		t.stopTrailing = t.clock.AfterFunc(t.interval-elapsed, t.trailingPoll)
	}
	return nil
}

func (t *Tracker) trailingPoll() {
	t.mu.Lock()
	t.stopTrailing = nil
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.lastPoll = t.clock.Now()
	events := t.pollLocked(t.container.Viewport(), t.estimator.Current())
	t.mu.Unlock()

	t.emit(events)
}

// pollLocked is the fallback for flung scrolls the watcher can miss. Going
// down it feeds the in-window marker nearest the viewport centre to the
// trigger rule; going up it retracts passed markers now below the window.
func (t *Tracker) pollLocked(vp Viewport, dir scroll.Direction) []event {
	markers := t.registry.Markers()
	if len(markers) == 0 {
		return nil
	}

	if dir == scroll.Up {
		var events []event
		bottom := vp.WindowBottom()
		for i := len(markers) - 1; i >= 0; i-- {
			if markers[i].Position.Y <= bottom {
				break
			}
			events = t.exitLocked(events, markers[i].ID, dir)
		}
		return events
	}

	center := vp.Center()
	best := -1
	bestDist := math.Inf(1)
	for i, m := range markers {
		y := m.Position.Y
		if y < vp.WindowTop() {
			continue
		}
		if y > vp.WindowBottom() {
			break
		}
		if d := math.Abs(y - center); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil
	}
	return t.enterLocked(nil, markers[best].ID, dir)
}

// enterLocked applies the trigger rule.
func (t *Tracker) enterLocked(events []event, id string, dir scroll.Direction) []event {
	if dir != scroll.Down {
		return events
	}
	m, ok := t.registry.Marker(id)
	if !ok {
		return events
	}
	if !t.passed.Add(id) {
		return events
	}
	return append(events, event{marker: m, trigger: true})
}

// exitLocked applies the retract rule.
func (t *Tracker) exitLocked(events []event, id string, dir scroll.Direction) []event {
	if dir != scroll.Up {
		return events
	}
	if !t.passed.Remove(id) {
		return events
	}
	m, ok := t.registry.Marker(id)
	if !ok {
		return events
	}
	return append(events, event{marker: m})
}

func (t *Tracker) emit(events []event) {
	for _, e := range events {
		if e.trigger {
			logger.Debug("marker triggered",
				logger.String("surface", t.name),
				logger.String("markerId", e.marker.ID),
				logger.String("trackId", e.marker.Track.ID))
			if t.onTrigger != nil {
				t.onTrigger(e.marker)
			}
			continue
		}
		logger.Debug("marker retracted",
			logger.String("surface", t.name),
			logger.String("markerId", e.marker.ID))
		if t.onRetract != nil {
			t.onRetract(e.marker)
		}
	}
}
