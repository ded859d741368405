// Package scroll classifies the motion of a scrollable container.
package scroll

import "sync"

// Direction is the vertical motion of a container between two observations.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Estimator remembers the last scroll offset of one container. Desktop and
// mobile containers each get their own Estimator.
type Estimator struct {
	mu      sync.Mutex
	last    float64
	current Direction
}

// NewEstimator starts from the given offset.
func NewEstimator(offset float64) *Estimator {
	return &Estimator{last: offset}
}

// Direction compares offset against the recorded one and records offset.
// An unchanged offset counts as Down so previously passed markers are not
// retracted by a no-op scroll event.
func (e *Estimator) Direction(offset float64) Direction {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := Down
	if offset < e.last {
		d = Up
	}
	e.last = offset
	e.current = d
	return d
}

// Current returns the direction computed by the latest Direction call.
func (e *Estimator) Current() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Offset returns the last recorded offset.
func (e *Estimator) Offset() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Reset records offset without classifying motion.
func (e *Estimator) Reset(offset float64) {
	e.mu.Lock()
	e.last = offset
	e.current = Down
	e.mu.Unlock()
}
