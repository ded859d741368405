package model

// Position is a content-relative coordinate: pixels from the top-left of the
// full scrollable content, not of the viewport.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TrackMarker anchors one track to a vertical offset in the image sequence.
// X is kept for symmetry with notes but audio markers always span the full width.
type TrackMarker struct {
	ID       string   `json:"id"`
	Track    Track    `json:"track"`
	Position Position `json:"position"`
}

// MemoNote is a free-floating text note placed on the canvas.
type MemoNote struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Position  Position `json:"position"`
	Width     float64  `json:"width"`
	Height    float64  `json:"height"`
	TextColor string   `json:"textColor,omitempty"`
}

// Default note geometry used when a note is created without a size.
const (
	DefaultNoteWidth  = 200
	DefaultNoteHeight = 120
)
