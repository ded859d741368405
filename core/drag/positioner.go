// Package drag turns press/move/release pointer sequences into positions in
// content coordinates and tells taps from drags.
package drag

import (
	"math"
	"sync"
	"time"

	"Toonbeat/core/marker"
	"Toonbeat/core/tracker"
	"Toonbeat/logger"
	"Toonbeat/model"
)

const (
	DefaultThreshold      = 3.0
	DefaultTapMaxDuration = 200 * time.Millisecond
)

// Kind says what a gesture moves.
type Kind string

const (
	KindMarker Kind = "marker"
	KindNote   Kind = "note"
)

// Target identifies the dragged entity.
type Target struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Point is a pointer position in client coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a deletion zone in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Left+r.Width &&
		p.Y >= r.Top && p.Y <= r.Top+r.Height
}

// Outcome is what a release did.
type Outcome string

const (
	OutcomeNone    Outcome = "none"
	OutcomeTap     Outcome = "tap"
	OutcomeMoved   Outcome = "moved"
	OutcomeDeleted Outcome = "deleted"
)

type Options struct {
	// Container is the surface gestures start on unless PressOn names one.
	Container tracker.Container
	Registry  *marker.Registry
	Passed    *marker.PassedSet

	Threshold      float64
	TapMaxDuration time.Duration
	Now            func() time.Time

	// OnNoteTap runs after a tap put a note into editing.
	OnNoteTap func(noteID string)
	// OnMarkerTap runs on a tap on a marker; hosts toggle inline playback.
	OnMarkerTap func(markerID string)
	// OnMove reports live positions while dragging.
	OnMove func(Target, model.Position)
	// OnDelete runs after a drop on a deletion zone removed the entity.
	OnDelete func(Target)
}

type gesture struct {
	target    Target
	container tracker.Container
	anchor    Point
	origin    Point
	last      Point
	width     float64
	started   time.Time
	moved     bool
	pos       model.Position
}

// Positioner handles one gesture at a time.
type Positioner struct {
	mu     sync.Mutex
	opts   Options
	active *gesture
	zones  map[string]Rect
}

func New(opts Options) *Positioner {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TapMaxDuration <= 0 {
		opts.TapMaxDuration = DefaultTapMaxDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Positioner{opts: opts, zones: make(map[string]Rect)}
}

// RegisterZone adds or replaces a deletion zone.
func (p *Positioner) RegisterZone(id string, r Rect) {
	p.mu.Lock()
	p.zones[id] = r
	p.mu.Unlock()
}

func (p *Positioner) UnregisterZone(id string) {
	p.mu.Lock()
	delete(p.zones, id)
	p.mu.Unlock()
}

// Active returns the target of the gesture in progress.
func (p *Positioner) Active() (Target, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return Target{}, false
	}
	return p.active.target, true
}

// Press starts a gesture on the default container.
func (p *Positioner) Press(target Target, pointer Point) bool {
	return p.PressOn(p.opts.Container, target, pointer)
}

// PressOn starts a gesture on surface c; the whole gesture is measured
// against c. It returns false for unknown targets, notes in editing and
// while another gesture is active.
func (p *Positioner) PressOn(c tracker.Container, target Target, pointer Point) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil || c == nil {
		return false
	}

	var pos model.Position
	var width float64
	switch target.Kind {
	case KindMarker:
		m, ok := p.opts.Registry.Marker(target.ID)
		if !ok {
			return false
		}
		pos = m.Position
	case KindNote:
		if p.opts.Registry.IsEditing(target.ID) {
			return false
		}
		n, ok := p.opts.Registry.Note(target.ID)
		if !ok {
			return false
		}
		pos, width = n.Position, n.Width
	default:
		return false
	}

	vp := c.Viewport()
	p.active = &gesture{
		target:    target,
		container: c,
		anchor: Point{
			X: (pointer.X - vp.Left) - (pos.X - vp.ScrollLeft),
			Y: (pointer.Y - vp.Top) - (pos.Y - vp.ScrollTop),
		},
		origin:  pointer,
		last:    pointer,
		width:   width,
		started: p.opts.Now(),
		pos:     pos,
	}
	return true
}

// Move updates the gesture with a new pointer position.
func (p *Positioner) Move(pointer Point) {
	p.mu.Lock()
	g := p.active
	if g == nil {
		p.mu.Unlock()
		return
	}
	g.last = pointer
	if !g.moved && math.Hypot(pointer.X-g.origin.X, pointer.Y-g.origin.Y) > p.opts.Threshold {
		g.moved = true
	}
	if !g.moved {
		p.mu.Unlock()
		return
	}
	g.pos = p.positionLocked(g, g.container.Viewport())
	target, pos := g.target, g.pos
	p.mu.Unlock()

	if p.opts.OnMove != nil {
		p.opts.OnMove(target, pos)
	}
}

// Scroll recomputes the dragged position after container c scrolled, so
// the entity stays under a stationary pointer. Scrolling any other surface
// leaves the gesture alone.
func (p *Positioner) Scroll(c tracker.Container) {
	p.mu.Lock()
	g := p.active
	if g == nil || !g.moved || g.container != c {
		p.mu.Unlock()
		return
	}
	g.pos = p.positionLocked(g, g.container.Viewport())
	target, pos := g.target, g.pos
	p.mu.Unlock()

	if p.opts.OnMove != nil {
		p.opts.OnMove(target, pos)
	}
}

// Release ends the gesture at pointer and applies it.
func (p *Positioner) Release(pointer Point) Outcome {
	p.Move(pointer)

	p.mu.Lock()
	g := p.active
	p.active = nil
	if g == nil {
		p.mu.Unlock()
		return OutcomeNone
	}
	elapsed := p.opts.Now().Sub(g.started)
	overZone := false
	for _, z := range p.zones {
		if z.Contains(pointer) {
			overZone = true
			break
		}
	}
	p.mu.Unlock()

	switch {
	case g.moved && overZone:
		p.delete(g.target)
		return OutcomeDeleted
	case g.moved:
		p.commit(g.target, g.pos)
		return OutcomeMoved
	case elapsed < p.opts.TapMaxDuration:
		p.tap(g.target)
		return OutcomeTap
	default:
		return OutcomeNone
	}
}

// Cancel drops the gesture without applying it.
func (p *Positioner) Cancel() {
	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
}

func (p *Positioner) positionLocked(g *gesture, vp tracker.Viewport) model.Position {
	x := g.last.X - vp.Left + vp.ScrollLeft - g.anchor.X
	y := g.last.Y - vp.Top + vp.ScrollTop - g.anchor.Y

	if g.target.Kind == KindMarker {
		x = 0
	} else {
		x = math.Max(0, math.Min(x, vp.Width-g.width))
	}
	return model.Position{X: x, Y: math.Max(0, y)}
}

func (p *Positioner) commit(t Target, pos model.Position) {
	var err error
	if t.Kind == KindMarker {
		err = p.opts.Registry.MoveMarker(t.ID, pos.Y)
	} else {
		err = p.opts.Registry.MoveNote(t.ID, pos)
	}
	if err != nil {
		// Deleted elsewhere while being dragged.
		logger.Warn("drag commit skipped",
			logger.String("kind", string(t.Kind)),
			logger.String("id", t.ID),
			logger.ErrorField(err))
	}
}

func (p *Positioner) delete(t Target) {
	var removed bool
	if t.Kind == KindMarker {
		// Keeps the tracker from triggering the marker while it disappears.
		if p.opts.Passed != nil {
			p.opts.Passed.Add(t.ID)
		}
		removed = p.opts.Registry.RemoveMarker(t.ID)
	} else {
		removed = p.opts.Registry.RemoveNote(t.ID)
	}
	if !removed {
		return
	}
	logger.Info("entity deleted by drop",
		logger.String("kind", string(t.Kind)),
		logger.String("id", t.ID))
	if p.opts.OnDelete != nil {
		p.opts.OnDelete(t)
	}
}

func (p *Positioner) tap(t Target) {
	if t.Kind == KindNote {
		p.opts.Registry.SetEditing(t.ID, true)
		if p.opts.OnNoteTap != nil {
			p.opts.OnNoteTap(t.ID)
		}
		return
	}
	if p.opts.OnMarkerTap != nil {
		p.opts.OnMarkerTap(t.ID)
	}
}
