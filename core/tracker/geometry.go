package tracker

import (
	"sync"
	"time"
)

// Viewport is a scroll container's live geometry as reported by the renderer.
// Left/Top are the container's edges in client coordinates; ScrollTop and
// ScrollLeft are the current scroll offsets.
type Viewport struct {
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ScrollLeft float64 `json:"scrollLeft"`
	ScrollTop  float64 `json:"scrollTop"`
}

// WindowTop is the first visible content row.
func (v Viewport) WindowTop() float64 { return v.ScrollTop }

// WindowBottom is the last visible content row.
func (v Viewport) WindowBottom() float64 { return v.ScrollTop + v.Height }

// Center is the vertical centre of the visible window in content coordinates.
func (v Viewport) Center() float64 { return v.ScrollTop + v.Height/2 }

// Container supplies a scrollable container's geometry on demand.
type Container interface {
	Viewport() Viewport
}

// ContainerFunc adapts a function to Container.
type ContainerFunc func() Viewport

func (f ContainerFunc) Viewport() Viewport { return f() }

// StaticContainer is a Container whose geometry is pushed by the renderer.
type StaticContainer struct {
	mu sync.RWMutex
	vp Viewport
}

func NewStaticContainer(vp Viewport) *StaticContainer {
	return &StaticContainer{vp: vp}
}

func (c *StaticContainer) Viewport() Viewport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vp
}

// Set replaces the geometry.
func (c *StaticContainer) Set(vp Viewport) {
	c.mu.Lock()
	c.vp = vp
	c.mu.Unlock()
}

// ScrollTo updates only the vertical scroll offset.
func (c *StaticContainer) ScrollTo(top float64) {
	c.mu.Lock()
	c.vp.ScrollTop = top
	c.mu.Unlock()
}

// Element is a rendered marker element. Its top edge sits at the marker's y.
type Element interface {
	Height() float64
}

// FixedElement is an Element of constant height.
type FixedElement float64

func (e FixedElement) Height() float64 { return float64(e) }

// Entry is one visibility transition reported by an intersection watcher.
type Entry struct {
	MarkerID     string `json:"markerId"`
	Intersecting bool   `json:"intersecting"`
}

// Clock abstracts time for the poll throttle.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

func intersects(y, height float64, vp Viewport) bool {
	if height < 0 {
		height = 0
	}
	return y <= vp.WindowBottom() && y+height >= vp.WindowTop()
}
