package model

import "time"

// Track represents an audio track in the catalog. The engine only reads it.
type Track struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Artist    string    `json:"artist" gorm:"size:255"`
	Album     string    `json:"album,omitempty" gorm:"size:255"`
	Duration  float32   `json:"duration,omitempty"` // Duration in seconds, 0 when unknown
	ObjectKey string    `json:"-" gorm:"size:512"`  // storage key of the audio object, not exposed in API
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Track) TableName() string {
	return "tracks"
}

// SameTrack reports whether a and b reference the same catalog entry.
func SameTrack(a, b *Track) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID == b.ID
}
