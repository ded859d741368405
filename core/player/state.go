package player

import (
	"time"

	"Toonbeat/model"
)

// Status is the transport state of the session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// State mirrors the audio session. CurrentTrack is nil before anything has
// played and after Stop.
type State struct {
	Status       Status        `json:"status"`
	CurrentTrack *model.Track  `json:"currentTrack,omitempty"`
	LoadingTrack *model.Track  `json:"loadingTrack,omitempty"`
	Playlist     []model.Track `json:"playlist"`
	CurrentIndex int           `json:"currentIndex"`
	IsPlaying    bool          `json:"isPlaying"`
	IsLoading    bool          `json:"isLoading"`
	CurrentTime  float64       `json:"currentTime"` // in seconds
	Duration     float64       `json:"duration"`    // in seconds
	Volume       float64       `json:"volume"`      // 0.0 to 1.0
	IsMuted      bool          `json:"isMuted"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (s State) clone() State {
	c := s
	if s.Playlist != nil {
		c.Playlist = append([]model.Track(nil), s.Playlist...)
	}
	return c
}

// IsCurrent reports whether track is attached and audibly playing.
func (s State) IsCurrent(trackID string) bool {
	return s.CurrentTrack != nil && s.CurrentTrack.ID == trackID && s.IsPlaying
}

// IsLoadingTrack reports whether a play of trackID is in flight.
func (s State) IsLoadingTrack(trackID string) bool {
	return s.LoadingTrack != nil && s.LoadingTrack.ID == trackID
}
